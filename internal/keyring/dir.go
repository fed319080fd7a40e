package keyring

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/xabinapal/esdsn/internal/utils"
)

// DirStore keeps one file per DSN in a directory. It exists so tests and
// CI can run without an OS keyring; it is not encrypted.
type DirStore struct {
	mu  sync.Mutex
	dir string
}

// NewDirStore creates dir with owner-only permissions if needed.
func NewDirStore(dir string) (*DirStore, error) {
	if dir == "" {
		return nil, errors.New("directory path is required")
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create keyring directory: %w", err)
	}
	return &DirStore{dir: dir}, nil
}

// IsAvailable implements Store.
func (d *DirStore) IsAvailable() error {
	info, err := os.Stat(d.dir)
	if err != nil {
		return fmt.Errorf("%w: directory not accessible: %v", ErrKeyringUnavailable, err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: path is not a directory", ErrKeyringUnavailable)
	}
	return nil
}

// path maps a DSN name to a file inside the store directory.
func (d *DirStore) path(dsn string) (string, error) {
	full := filepath.Join(d.dir, utils.SanitizeKey(dsn)+".secret")

	absDir, err := filepath.Abs(d.dir)
	if err != nil {
		return "", fmt.Errorf("failed to resolve directory: %w", err)
	}
	absPath, err := filepath.Abs(full)
	if err != nil {
		return "", fmt.Errorf("failed to resolve path: %w", err)
	}
	if !strings.HasPrefix(absPath, absDir+string(filepath.Separator)) {
		return "", errors.New("invalid dsn name: path traversal detected")
	}
	return full, nil
}

// Set implements Store.
func (d *DirStore) Set(dsn, secret string) error {
	if dsn == "" {
		return ErrEmptyKey
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	path, err := d.path(dsn)
	if err != nil {
		return err
	}

	// Recreate with O_EXCL so an attacker-planted symlink is never followed.
	_ = os.Remove(path)
	// #nosec G304 - path is confined to the store directory
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0600)
	if err != nil {
		return fmt.Errorf("failed to create secret file: %w", err)
	}
	defer f.Close()

	if _, err := f.WriteString(secret); err != nil {
		return fmt.Errorf("failed to write secret: %w", err)
	}
	return nil
}

// Get implements Store.
func (d *DirStore) Get(dsn string) (string, error) {
	if dsn == "" {
		return "", ErrEmptyKey
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	path, err := d.path(dsn)
	if err != nil {
		return "", err
	}
	// #nosec G304 - path is confined to the store directory
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", ErrSecretNotFound
		}
		return "", fmt.Errorf("failed to read secret: %w", err)
	}
	return string(data), nil
}

// Delete implements Store.
func (d *DirStore) Delete(dsn string) error {
	if dsn == "" {
		return ErrEmptyKey
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	path, err := d.path(dsn)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete secret: %w", err)
	}
	return nil
}
