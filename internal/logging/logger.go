// Package logging provides the leveled logger used by esdsn and the per-DSN trace files.
package logging

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Level represents logging severity.
type Level int

const (
	// LevelDebug includes detailed debugging information.
	LevelDebug Level = iota
	// LevelInfo includes standard operational information.
	LevelInfo
	// LevelWarn includes warnings about potential issues.
	LevelWarn
	// LevelError includes only error messages.
	LevelError
)

// maxRotatedFiles is how many rotated log files are kept.
const maxRotatedFiles = 5

// String returns the string representation of the log level.
func (l Level) String() string {
	switch l {
	case LevelDebug:
		return "DEBUG"
	case LevelInfo:
		return "INFO"
	case LevelWarn:
		return "WARN"
	case LevelError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether l is one of the four defined levels.
func (l Level) Valid() bool {
	return l >= LevelDebug && l <= LevelError
}

// ParseLevel parses a log level string.
func ParseLevel(s string) (Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG":
		return LevelDebug, nil
	case "INFO", "":
		return LevelInfo, nil
	case "WARN", "WARNING":
		return LevelWarn, nil
	case "ERROR":
		return LevelError, nil
	default:
		return LevelInfo, fmt.Errorf("invalid log level: %s", s)
	}
}

// MarshalYAML implements yaml.Marshaler.
func (l Level) MarshalYAML() (interface{}, error) {
	if !l.Valid() {
		return nil, fmt.Errorf("invalid log level: %d", int(l))
	}
	return l.String(), nil
}

// UnmarshalYAML implements yaml.Unmarshaler.
func (l *Level) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := ParseLevel(s)
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

// Logger provides leveled logging in text or JSON lines.
type Logger struct {
	mu       sync.Mutex
	writer   io.Writer
	level    Level
	jsonMode bool

	// For log rotation
	filePath    string
	maxSize     int64 // bytes
	currentSize int64
}

// Config configures the logger.
type Config struct {
	Level    Level
	FilePath string
	JSONMode bool
	MaxSize  int64 // Max file size before rotation (0 = no rotation)
}

// New creates a new Logger. Without a FilePath it writes to stderr.
func New(cfg Config) (*Logger, error) {
	l := &Logger{
		level:    cfg.Level,
		jsonMode: cfg.JSONMode,
		maxSize:  cfg.MaxSize,
	}

	if cfg.FilePath == "" {
		l.writer = os.Stderr
		return l, nil
	}

	dir := filepath.Dir(cfg.FilePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	// #nosec G304 - path is the configured log file
	f, err := os.OpenFile(cfg.FilePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to open log file: %w", err)
	}

	if info, err := f.Stat(); err == nil {
		l.currentSize = info.Size()
	}

	l.writer = f
	l.filePath = cfg.FilePath
	return l, nil
}

// NewWriter creates a Logger writing to w.
func NewWriter(w io.Writer, level Level, jsonMode bool) *Logger {
	return &Logger{writer: w, level: level, jsonMode: jsonMode}
}

// Discard returns a Logger that drops everything.
func Discard() *Logger {
	return NewWriter(io.Discard, LevelError+1, false)
}

// Close closes the underlying file, if any.
func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if f, ok := l.writer.(*os.File); ok && f != os.Stderr && f != os.Stdout {
		return f.Close()
	}
	return nil
}

// logEntry represents a JSON log entry.
type logEntry struct {
	Time    string      `json:"time"`
	Level   string      `json:"level"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

func (l *Logger) log(level Level, msg string, data interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if level < l.level {
		return
	}

	timestamp := time.Now().Format(time.RFC3339)

	var line string
	if l.jsonMode {
		entry := logEntry{
			Time:    timestamp,
			Level:   level.String(),
			Message: msg,
			Data:    data,
		}
		b, err := json.Marshal(entry)
		if err != nil {
			line = fmt.Sprintf("%s [%s] %s\n", timestamp, level.String(), msg)
		} else {
			line = string(b) + "\n"
		}
	} else {
		if data != nil {
			line = fmt.Sprintf("%s [%s] %s %v\n", timestamp, level.String(), msg, data)
		} else {
			line = fmt.Sprintf("%s [%s] %s\n", timestamp, level.String(), msg)
		}
	}

	if l.maxSize > 0 && l.filePath != "" {
		l.currentSize += int64(len(line))
		if l.currentSize > l.maxSize {
			l.rotate()
		}
	}

	// Write errors are non-fatal; there is nowhere left to report them.
	_, _ = l.writer.Write([]byte(line))
}

func (l *Logger) rotate() {
	if f, ok := l.writer.(*os.File); ok {
		_ = f.Close()
	}

	rotatedPath := l.filePath + "." + time.Now().Format("20060102-150405.000000000")
	_ = os.Rename(l.filePath, rotatedPath)

	// #nosec G304 - path is the configured log file
	f, err := os.OpenFile(l.filePath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0600)
	if err != nil {
		l.writer = os.Stderr
		return
	}

	l.writer = f
	l.currentSize = 0

	l.cleanupOldLogs()
}

func (l *Logger) cleanupOldLogs() {
	matches, err := filepath.Glob(l.filePath + ".*")
	if err != nil || len(matches) <= maxRotatedFiles {
		return
	}

	// Timestamps sort lexically, oldest first.
	sort.Strings(matches)
	for i := 0; i < len(matches)-maxRotatedFiles; i++ {
		_ = os.Remove(matches[i])
	}
}

func firstData(data []interface{}) interface{} {
	if len(data) > 0 {
		return data[0]
	}
	return nil
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, data ...interface{}) {
	l.log(LevelDebug, msg, firstData(data))
}

// Info logs an info message.
func (l *Logger) Info(msg string, data ...interface{}) {
	l.log(LevelInfo, msg, firstData(data))
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, data ...interface{}) {
	l.log(LevelWarn, msg, firstData(data))
}

// Error logs an error message.
func (l *Logger) Error(msg string, data ...interface{}) {
	l.log(LevelError, msg, firstData(data))
}

// Printf logs an info message with formatting.
func (l *Logger) Printf(format string, v ...interface{}) {
	l.Info(fmt.Sprintf(format, v...))
}

// GetLevel returns the current log level.
func (l *Logger) GetLevel() Level {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.level
}

// SetLevel sets the log level.
func (l *Logger) SetLevel(level Level) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.level = level
}
