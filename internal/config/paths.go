// Package config manages the esdsn configuration file and its locations.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

const (
	// AppName names the per-user directories.
	AppName = "esdsn"
	// ConfigFileName is the configuration file inside ConfigDir.
	ConfigFileName = "config.yaml"
	// ConfigDirEnvVar overrides the configuration directory.
	ConfigDirEnvVar = "ESDSN_CONFIG_DIR"
)

// Paths holds the per-user locations esdsn reads and writes.
type Paths struct {
	ConfigDir  string
	ConfigFile string
	// LogDir is the default directory for per-DSN trace files.
	LogDir string
}

// GetPaths resolves the paths for the current platform, following XDG on
// Unix-like systems.
func GetPaths() Paths {
	configDir := getConfigDir()
	return Paths{
		ConfigDir:  configDir,
		ConfigFile: filepath.Join(configDir, ConfigFileName),
		LogDir:     getLogDir(),
	}
}

func getConfigDir() string {
	if dir := os.Getenv(ConfigDirEnvVar); dir != "" {
		return dir
	}

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, AppName)
		}
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			return filepath.Join(userProfile, "AppData", "Roaming", AppName)
		}
	case "darwin":
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, AppName)
		}
		if home := os.Getenv("HOME"); home != "" {
			// An existing ~/.config/esdsn wins over the macOS location.
			xdgPath := filepath.Join(home, ".config", AppName)
			if _, err := os.Stat(xdgPath); err == nil {
				return xdgPath
			}
			return filepath.Join(home, "Library", "Application Support", AppName)
		}
	default:
		if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
			return filepath.Join(xdgConfig, AppName)
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".config", AppName)
		}
	}

	return filepath.Join(".", "."+AppName)
}

func getLogDir() string {
	switch runtime.GOOS {
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, AppName, "logs")
		}
		if userProfile := os.Getenv("USERPROFILE"); userProfile != "" {
			return filepath.Join(userProfile, "AppData", "Local", AppName, "logs")
		}
	case "darwin":
		if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
			return filepath.Join(xdgState, AppName, "logs")
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, "Library", "Logs", AppName)
		}
	default:
		if xdgState := os.Getenv("XDG_STATE_HOME"); xdgState != "" {
			return filepath.Join(xdgState, AppName, "logs")
		}
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".local", "state", AppName, "logs")
		}
	}

	return filepath.Join(".", "."+AppName, "logs")
}

// EnsureDirs creates the configuration and log directories.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.ConfigDir, p.LogDir} {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return err
		}
	}
	return nil
}
