package logging

import (
	"errors"
	"path/filepath"

	"github.com/xabinapal/esdsn/internal/utils"
)

const (
	// tracePrefix is prepended to every DSN trace file name.
	tracePrefix = "esdsn-"
	// traceMaxSize is the rotation threshold for trace files (10 MB).
	traceMaxSize = 10 << 20
)

// TracePath returns the trace file a DSN writes to inside dir.
func TracePath(dir, dsn string) string {
	return filepath.Join(dir, tracePrefix+utils.SanitizeKey(dsn)+".log")
}

// OpenTrace opens the trace log of a DSN whose logging is enabled.
func OpenTrace(dir, dsn string, level Level) (*Logger, error) {
	if dir == "" {
		return nil, errors.New("log directory is required")
	}
	return New(Config{
		Level:    level,
		FilePath: TracePath(dir, dsn),
		MaxSize:  traceMaxSize,
	})
}
