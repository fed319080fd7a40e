// Package keyring keeps DSN passwords out of the configuration file by
// storing them in the OS keyring.
package keyring

import (
	"errors"
	"fmt"
	"os"
	"runtime"

	gokeyring "github.com/zalando/go-keyring"

	"github.com/xabinapal/esdsn/internal/utils"
)

const (
	// ServicePrefix prefixes every keyring entry: "esdsn - <dsn name>".
	ServicePrefix = "esdsn"

	// TestKeyringEnvVar points at a directory to use instead of the OS
	// keyring. Tests only.
	TestKeyringEnvVar = "ESDSN_TEST_KEYRING_DIR"

	// probeKey is looked up to find out whether the keyring answers at all.
	probeKey = "__availability_check__"
)

var (
	// ErrKeyringUnavailable is returned when no secure keyring is available.
	ErrKeyringUnavailable = errors.New("secure keyring is not available on this system")
	// ErrSecretNotFound is returned when no password is stored for a DSN.
	ErrSecretNotFound = errors.New("password not found in keyring")
	// ErrKeyringAccessDenied is returned when access to the keyring is denied.
	ErrKeyringAccessDenied = errors.New("access to keyring denied")
	// ErrEmptyKey is returned for an empty DSN name.
	ErrEmptyKey = errors.New("dsn name cannot be empty")
)

// Store holds one secret per DSN name.
type Store interface {
	Set(dsn, secret string) error
	Get(dsn string) (string, error)
	Delete(dsn string) error
	IsAvailable() error
}

func serviceName(dsn string) string {
	return ServicePrefix + " - " + dsn
}

// DefaultStore returns the OS keyring, or a DirStore when
// ESDSN_TEST_KEYRING_DIR is set.
func DefaultStore() Store {
	if dir := os.Getenv(TestKeyringEnvVar); dir != "" {
		if s, err := NewDirStore(dir); err == nil {
			return s
		}
	}
	return &osKeyring{}
}

type osKeyring struct{}

// IsAvailable implements Store.
func (k *osKeyring) IsAvailable() error {
	_, err := gokeyring.Get(serviceName(probeKey), probeKey)
	if err == nil || errors.Is(err, gokeyring.ErrNotFound) {
		return nil
	}

	msg := err.Error()
	switch runtime.GOOS {
	case "linux":
		if utils.ContainsAny(msg, "secret service", "dbus", "org.freedesktop.secrets") {
			return fmt.Errorf("%w: D-Bus secret service not available - install and start gnome-keyring, kwallet, or another secret service provider", ErrKeyringUnavailable)
		}
	case "darwin":
		if utils.ContainsAny(msg, "keychain", "security") {
			return fmt.Errorf("%w: macOS Keychain not accessible", ErrKeyringUnavailable)
		}
	case "windows":
		if utils.ContainsAny(msg, "credential", "wincred") {
			return fmt.Errorf("%w: Windows Credential Manager not accessible", ErrKeyringUnavailable)
		}
	}

	// Anything else surfaces with more detail from the real operation.
	return nil
}

// Set implements Store.
func (k *osKeyring) Set(dsn, secret string) error {
	if dsn == "" {
		return ErrEmptyKey
	}
	if err := k.IsAvailable(); err != nil {
		return err
	}
	if err := gokeyring.Set(serviceName(dsn), dsn, secret); err != nil {
		return wrapKeyringError(err, "failed to store password")
	}
	return nil
}

// Get implements Store.
func (k *osKeyring) Get(dsn string) (string, error) {
	if dsn == "" {
		return "", ErrEmptyKey
	}
	if err := k.IsAvailable(); err != nil {
		return "", err
	}
	secret, err := gokeyring.Get(serviceName(dsn), dsn)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return "", ErrSecretNotFound
		}
		return "", wrapKeyringError(err, "failed to retrieve password")
	}
	return secret, nil
}

// Delete implements Store. Deleting a missing entry is not an error.
func (k *osKeyring) Delete(dsn string) error {
	if dsn == "" {
		return ErrEmptyKey
	}
	if err := k.IsAvailable(); err != nil {
		return err
	}
	err := gokeyring.Delete(serviceName(dsn), dsn)
	if err != nil && !errors.Is(err, gokeyring.ErrNotFound) {
		return wrapKeyringError(err, "failed to delete password")
	}
	return nil
}

func wrapKeyringError(err error, action string) error {
	if err == nil {
		return nil
	}

	msg := err.Error()
	if utils.ContainsAny(msg, "denied", "permission", "not allowed", "unauthorized") {
		return fmt.Errorf("%w: %s: %v", ErrKeyringAccessDenied, action, err)
	}
	if utils.ContainsAny(msg, "no keyring", "unavailable", "secret service") {
		return fmt.Errorf("%w: %s: %v", ErrKeyringUnavailable, action, err)
	}
	return fmt.Errorf("%s: %w", action, err)
}
