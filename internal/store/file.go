package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/xabinapal/esdsn/internal/config"
	"github.com/xabinapal/esdsn/internal/keyring"
	"github.com/xabinapal/esdsn/internal/profile"
)

var errUnresolved = errors.New("dsn has not been validated")

// FileStore keeps DSN entries in the YAML configuration file and their
// passwords in the keyring.
type FileStore struct {
	mu      sync.Mutex
	cfg     *config.Config
	keyring keyring.Store
}

// NewFileStore creates a store over cfg. Changes are written with cfg.Save.
func NewFileStore(cfg *config.Config, kr keyring.Store) *FileStore {
	return &FileStore{cfg: cfg, keyring: kr}
}

// Load implements Store. The keyring is only read for entries with a stored
// password; a missing keyring entry yields an empty password.
func (s *FileStore) Load(ctx context.Context, name string) (profile.Profile, error) {
	if err := ctx.Err(); err != nil {
		return profile.Profile{}, err
	}

	s.mu.Lock()
	entry, err := s.cfg.GetDSN(name)
	var d config.DSN
	if err == nil {
		d = *entry
	}
	s.mu.Unlock()
	if err != nil {
		return profile.Profile{}, fmt.Errorf("%w: %q", ErrNotFound, name)
	}

	p := fromEntry(d)
	if !d.PasswordSet {
		return p, nil
	}

	password, err := s.keyring.Get(name)
	switch {
	case err == nil:
		p.Password = password
	case errors.Is(err, keyring.ErrSecretNotFound):
	default:
		return profile.Profile{}, fmt.Errorf("failed to read password for %q: %w", name, err)
	}

	return p, nil
}

// Save implements Store. The password goes to the keyring first so a
// failed keyring write leaves the file untouched. A DSN without a password,
// and none stored before, never touches the keyring.
func (s *FileStore) Save(ctx context.Context, r profile.Resolved) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if r.IsZero() {
		return errUnresolved
	}
	p := r.Profile()

	s.mu.Lock()
	defer s.mu.Unlock()

	switch {
	case p.Password != "":
		if err := s.keyring.Set(p.Name, p.Password); err != nil {
			return fmt.Errorf("failed to store password for %q: %w", p.Name, err)
		}
	case s.hasPassword(p.Name):
		if err := s.keyring.Delete(p.Name); err != nil {
			return fmt.Errorf("failed to clear password for %q: %w", p.Name, err)
		}
	}

	if err := s.cfg.PutDSN(toEntry(p)); err != nil {
		return err
	}
	if err := s.cfg.Save(); err != nil {
		return fmt.Errorf("failed to save %q: %w", p.Name, err)
	}
	return nil
}

// Exists implements Store.
func (s *FileStore) Exists(ctx context.Context, name string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.cfg.GetDSN(name)
	return err == nil, nil
}

// Delete implements Store.
func (s *FileStore) Delete(ctx context.Context, name string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	hadPassword := s.hasPassword(name)
	if err := s.cfg.RemoveDSN(name); err != nil {
		return fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	if err := s.cfg.Save(); err != nil {
		return fmt.Errorf("failed to delete %q: %w", name, err)
	}
	if !hadPassword {
		return nil
	}
	if err := s.keyring.Delete(name); err != nil {
		return fmt.Errorf("dsn %q deleted but its password is still in the keyring: %w", name, err)
	}
	return nil
}

// List implements Store.
func (s *FileStore) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cfg.DSNNames(), nil
}

// hasPassword reports whether the stored entry has a password in the
// keyring. Callers hold s.mu.
func (s *FileStore) hasPassword(name string) bool {
	d, err := s.cfg.GetDSN(name)
	return err == nil && d.PasswordSet
}

func toEntry(p profile.Profile) config.DSN {
	return config.DSN{
		Name:            p.Name,
		Description:     p.Description,
		CloudID:         p.CloudID,
		Host:            p.Host,
		Port:            p.Port,
		Username:        p.Username,
		PasswordSet:     p.Password != "",
		Trust:           p.Trust,
		CertificatePath: p.CertificatePath,
		Logging: config.DSNLogging{
			Enabled:   p.Logging.Enabled,
			Level:     p.Logging.Level,
			Directory: p.Logging.Directory,
		},
	}
}

func fromEntry(d config.DSN) profile.Profile {
	return profile.Profile{
		Name:            d.Name,
		Description:     d.Description,
		CloudID:         d.CloudID,
		Host:            d.Host,
		Port:            d.Port,
		Username:        d.Username,
		Trust:           d.Trust,
		CertificatePath: d.CertificatePath,
		Logging: profile.Logging{
			Enabled:   d.Logging.Enabled,
			Level:     d.Logging.Level,
			Directory: d.Logging.Directory,
		},
	}
}
