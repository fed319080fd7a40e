package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xabinapal/esdsn/internal/logging"
	"github.com/xabinapal/esdsn/internal/trust"
)

// DefaultProbeTimeout bounds a connection test unless configured otherwise.
const DefaultProbeTimeout = 5 * time.Second

var (
	// ErrDSNNotFound is returned when no entry has the requested name.
	ErrDSNNotFound = errors.New("dsn not found")
	// ErrDuplicateDSN is returned when a file lists the same name twice.
	ErrDuplicateDSN = errors.New("duplicate dsn")
)

// DSN is one stored data source. The password lives in the keyring.
type DSN struct {
	Name            string      `yaml:"name"`
	Description     string      `yaml:"description,omitempty"`
	CloudID         string      `yaml:"cloud_id,omitempty"`
	Host            string      `yaml:"host,omitempty"`
	Port            int         `yaml:"port,omitempty"`
	Username        string      `yaml:"username,omitempty"`
	// PasswordSet records that the keyring holds a password for this DSN.
	PasswordSet     bool        `yaml:"password_set,omitempty"`
	Trust           trust.Level `yaml:"trust"`
	CertificatePath string      `yaml:"certificate_path,omitempty"`
	Logging         DSNLogging  `yaml:"logging,omitempty"`
}

// DSNLogging is the per-DSN driver trace setting.
type DSNLogging struct {
	Enabled   bool          `yaml:"enabled,omitempty"`
	Level     logging.Level `yaml:"level"`
	Directory string        `yaml:"directory,omitempty"`
}

// ProbeConfig holds connection test settings.
type ProbeConfig struct {
	// Timeout bounds a single connection test.
	Timeout time.Duration `yaml:"timeout,omitempty"`
}

// NotificationConfig holds settings for desktop notifications.
type NotificationConfig struct {
	// Enabled enables desktop notifications.
	Enabled bool `yaml:"enabled,omitempty"`
	// OnSuccess notifies when a connection test succeeds.
	OnSuccess bool `yaml:"on_success,omitempty"`
	// OnFailure notifies when a connection test fails.
	OnFailure bool `yaml:"on_failure,omitempty"`
}

// Config represents the esdsn configuration file.
type Config struct {
	DSNs          []DSN              `yaml:"dsns,omitempty"`
	Probe         ProbeConfig        `yaml:"probe,omitempty"`
	Notifications NotificationConfig `yaml:"notifications,omitempty"`

	// LogLevel, LogFile and LogJSON configure the application log, not
	// the per-DSN traces.
	LogLevel   logging.Level `yaml:"log_level"`
	LogFile    string        `yaml:"log_file,omitempty"`
	LogJSON    bool          `yaml:"log_json,omitempty"`
	LogMaxSize int           `yaml:"log_max_size,omitempty"`

	filePath string `yaml:"-"`
}

// Default returns a new Config with default values.
func Default() *Config {
	return &Config{
		DSNs: []DSN{},
		Probe: ProbeConfig{
			Timeout: DefaultProbeTimeout,
		},
		Notifications: NotificationConfig{
			Enabled:   false,
			OnSuccess: false,
			OnFailure: true,
		},
		LogLevel: logging.LevelInfo,
		filePath: GetPaths().ConfigFile,
	}
}

// Load loads the configuration from the default path.
func Load() (*Config, error) {
	return LoadFrom(GetPaths().ConfigFile)
}

// LoadFrom loads the configuration from path. A missing file yields defaults.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()
	cfg.filePath = path

	// #nosec G304 - path is the config file path
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if cfg.Probe.Timeout <= 0 {
		cfg.Probe.Timeout = DefaultProbeTimeout
	}
	if cfg.DSNs == nil {
		cfg.DSNs = []DSN{}
	}

	seen := make(map[string]bool, len(cfg.DSNs))
	for _, d := range cfg.DSNs {
		if seen[d.Name] {
			return nil, fmt.Errorf("failed to parse config file: %w: %q", ErrDuplicateDSN, d.Name)
		}
		seen[d.Name] = true
	}

	return cfg, nil
}

// Save writes the whole configuration to its file path. The file is
// replaced atomically so readers never see a partial write.
func (c *Config) Save() error {
	if c.filePath == "" {
		return errors.New("config file path not set")
	}

	dir := filepath.Dir(c.filePath)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.yaml")
	if err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	if err := os.Rename(tmpName, c.filePath); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// FilePath returns the path where this config was loaded from.
func (c *Config) FilePath() string {
	return c.filePath
}

// SetFilePath changes where Save writes.
func (c *Config) SetFilePath(path string) {
	c.filePath = path
}

// GetDSN returns a DSN entry by name.
func (c *Config) GetDSN(name string) (*DSN, error) {
	for i := range c.DSNs {
		if c.DSNs[i].Name == name {
			return &c.DSNs[i], nil
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrDSNNotFound, name)
}

// PutDSN adds d, or replaces the entry with the same name in place.
func (c *Config) PutDSN(d DSN) error {
	if d.Name == "" {
		return errors.New("dsn name is required")
	}
	for i := range c.DSNs {
		if c.DSNs[i].Name == d.Name {
			c.DSNs[i] = d
			return nil
		}
	}
	c.DSNs = append(c.DSNs, d)
	return nil
}

// RemoveDSN removes a DSN entry by name.
func (c *Config) RemoveDSN(name string) error {
	for i := range c.DSNs {
		if c.DSNs[i].Name == name {
			c.DSNs = append(c.DSNs[:i], c.DSNs[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrDSNNotFound, name)
}

// DSNNames returns the stored names in sorted order.
func (c *Config) DSNNames() []string {
	names := make([]string, 0, len(c.DSNs))
	for _, d := range c.DSNs {
		names = append(names, d.Name)
	}
	sort.Strings(names)
	return names
}

// LoggerConfig returns the application logger settings. verbose forces DEBUG.
func (c *Config) LoggerConfig(verbose bool) logging.Config {
	level := c.LogLevel
	if verbose {
		level = logging.LevelDebug
	}
	return logging.Config{
		Level:    level,
		FilePath: c.LogFile,
		JSONMode: c.LogJSON,
		MaxSize:  int64(c.LogMaxSize) * 1024 * 1024,
	}
}
