// Package store persists DSN profiles.
package store

import (
	"context"
	"errors"

	"github.com/xabinapal/esdsn/internal/profile"
)

// ErrNotFound is returned when no DSN has the requested name.
var ErrNotFound = errors.New("dsn not found")

// Store loads and saves DSN profiles. Only resolved profiles can be saved.
type Store interface {
	Load(ctx context.Context, name string) (profile.Profile, error)
	Save(ctx context.Context, r profile.Resolved) error
	Exists(ctx context.Context, name string) (bool, error)
	Delete(ctx context.Context, name string) error
	List(ctx context.Context) ([]string, error)
}
