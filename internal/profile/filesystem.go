package profile

import (
	"errors"
	"os"
	"path/filepath"
)

// FileSystem answers the two filesystem questions validation needs.
type FileSystem interface {
	// IsReadableFile reports whether path is a regular file that can be opened.
	IsReadableFile(path string) bool
	// IsWritableDirectory reports whether path is, or can become, a writable directory.
	IsWritableDirectory(path string) bool
}

// OSFileSystem checks the real filesystem.
type OSFileSystem struct{}

// IsReadableFile implements FileSystem.
func (OSFileSystem) IsReadableFile(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	// #nosec G304 - only opened to probe readability
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	_ = f.Close()
	return true
}

// IsWritableDirectory implements FileSystem.
// A missing directory qualifies when its nearest existing ancestor is writable.
func (OSFileSystem) IsWritableDirectory(path string) bool {
	dir := filepath.Clean(path)
	for {
		info, err := os.Stat(dir)
		if err == nil {
			return info.IsDir() && canCreateIn(dir)
		}
		if !errors.Is(err, os.ErrNotExist) {
			return false
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return false
		}
		dir = parent
	}
}

// canCreateIn probes write permission by creating and removing a temp file.
func canCreateIn(dir string) bool {
	f, err := os.CreateTemp(dir, ".esdsn-probe-*")
	if err != nil {
		return false
	}
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
	return true
}
