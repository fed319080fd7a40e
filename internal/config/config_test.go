package config

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/xabinapal/esdsn/internal/logging"
	"github.com/xabinapal/esdsn/internal/trust"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Probe.Timeout != DefaultProbeTimeout {
		t.Errorf("Probe.Timeout = %v, want %v", cfg.Probe.Timeout, DefaultProbeTimeout)
	}
	if cfg.Notifications.Enabled {
		t.Error("notifications should be off by default")
	}
	if !cfg.Notifications.OnFailure || cfg.Notifications.OnSuccess {
		t.Errorf("unexpected notification defaults: %+v", cfg.Notifications)
	}
	if cfg.LogLevel != logging.LevelInfo {
		t.Errorf("LogLevel = %v, want INFO", cfg.LogLevel)
	}
	if len(cfg.DSNs) != 0 {
		t.Errorf("expected no DSNs, got %d", len(cfg.DSNs))
	}
}

func TestLoadNonExistent(t *testing.T) {
	t.Setenv(ConfigDirEnvVar, t.TempDir())

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if cfg.Probe.Timeout != DefaultProbeTimeout {
		t.Errorf("expected default timeout, got %v", cfg.Probe.Timeout)
	}
	if !strings.HasSuffix(cfg.FilePath(), ConfigFileName) {
		t.Errorf("FilePath() = %s", cfg.FilePath())
	}
}

func TestLoadAndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg := Default()
	cfg.SetFilePath(path)
	cfg.Probe.Timeout = 2 * time.Second
	cfg.Notifications.Enabled = true
	cfg.LogLevel = logging.LevelWarn
	if err := cfg.PutDSN(DSN{
		Name:            "prod",
		Description:     "Production cluster",
		Host:            "es.example.com",
		Port:            9243,
		Username:        "elastic",
		PasswordSet:     true,
		Trust:           trust.EnabledFull,
		CertificatePath: "/etc/esdsn/ca.pem",
		Logging:         DSNLogging{Enabled: true, Level: logging.LevelDebug, Directory: "/var/log/esdsn"},
	}); err != nil {
		t.Fatal(err)
	}

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("config file not written: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("config permissions = %v, want 0600", info.Mode().Perm())
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "trust: full") {
		t.Errorf("trust level should be stored by name:\n%s", data)
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if loaded.Probe.Timeout != 2*time.Second || !loaded.Notifications.Enabled || loaded.LogLevel != logging.LevelWarn {
		t.Errorf("settings lost: %+v", loaded)
	}
	d, err := loaded.GetDSN("prod")
	if err != nil {
		t.Fatalf("GetDSN() failed: %v", err)
	}
	if *d != cfg.DSNs[0] {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", *d, cfg.DSNs[0])
	}

	entries, err := os.ReadDir(filepath.Dir(path))
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Errorf("Save() left temporary files: %v", entries)
	}
}

func TestLoadFromAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	content := `dsns:
  - name: local
    host: localhost
    port: 9200
    trust: disabled
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom() failed: %v", err)
	}
	if cfg.Probe.Timeout != DefaultProbeTimeout {
		t.Errorf("Probe.Timeout = %v", cfg.Probe.Timeout)
	}
	if cfg.LogLevel != logging.LevelInfo {
		t.Errorf("LogLevel = %v", cfg.LogLevel)
	}
	if d, _ := cfg.GetDSN("local"); d == nil || d.Trust != trust.Disabled {
		t.Errorf("unexpected dsn: %+v", d)
	}
}

func TestLoadFromErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    error
	}{
		{"invalid yaml", "dsns: [unclosed", nil},
		{"unknown trust", "dsns:\n  - name: a\n    trust: paranoid\n", nil},
		{"duplicate", "dsns:\n  - name: a\n    trust: full\n  - name: a\n    trust: full\n", ErrDuplicateDSN},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.content), 0600); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFrom(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("LoadFrom() = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestLoadFromReadError(t *testing.T) {
	if _, err := LoadFrom(t.TempDir()); err == nil {
		t.Error("expected error reading a directory")
	}
}

func TestSaveWithoutFilePath(t *testing.T) {
	cfg := Default()
	cfg.SetFilePath("")
	if err := cfg.Save(); err == nil {
		t.Error("expected error without file path")
	}
}

func TestSaveCreatesDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "config.yaml")
	cfg := Default()
	cfg.SetFilePath(path)

	if err := cfg.Save(); err != nil {
		t.Fatalf("Save() failed: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config file not created: %v", err)
	}
}

func TestDSNManagement(t *testing.T) {
	cfg := Default()

	if err := cfg.PutDSN(DSN{Name: "b", Host: "b.example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.PutDSN(DSN{Name: "a", Host: "a.example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.PutDSN(DSN{Name: "b", Host: "b2.example.com"}); err != nil {
		t.Fatal(err)
	}
	if err := cfg.PutDSN(DSN{}); err == nil {
		t.Error("PutDSN() should reject an empty name")
	}

	if len(cfg.DSNs) != 2 {
		t.Fatalf("expected 2 DSNs, got %d", len(cfg.DSNs))
	}
	if cfg.DSNs[0].Host != "b2.example.com" {
		t.Errorf("PutDSN() should replace in place, got %+v", cfg.DSNs[0])
	}
	if got := cfg.DSNNames(); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("DSNNames() = %v", got)
	}

	if err := cfg.RemoveDSN("a"); err != nil {
		t.Errorf("RemoveDSN() failed: %v", err)
	}
	if _, err := cfg.GetDSN("a"); !errors.Is(err, ErrDSNNotFound) {
		t.Errorf("GetDSN() after remove = %v", err)
	}
	if err := cfg.RemoveDSN("a"); !errors.Is(err, ErrDSNNotFound) {
		t.Errorf("RemoveDSN() twice = %v", err)
	}
}

func TestLoggerConfig(t *testing.T) {
	cfg := Default()
	cfg.LogFile = "/tmp/esdsn.log"
	cfg.LogJSON = true
	cfg.LogMaxSize = 2

	lc := cfg.LoggerConfig(false)
	if lc.Level != logging.LevelInfo || lc.FilePath != "/tmp/esdsn.log" || !lc.JSONMode || lc.MaxSize != 2*1024*1024 {
		t.Errorf("LoggerConfig(false) = %+v", lc)
	}
	if cfg.LoggerConfig(true).Level != logging.LevelDebug {
		t.Error("verbose should force DEBUG")
	}
}
