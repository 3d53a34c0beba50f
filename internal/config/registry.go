package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "ecatcheck"
	configFile = "config.yaml"

	// ConfigEnvVar overrides the configuration file location
	ConfigEnvVar = "ECATCHECK_CONFIG"
)

// saveMu serializes writers within one process; the rename keeps readers in
// other processes from seeing a partial file.
var saveMu sync.Mutex

// GetConfigDir returns the configuration directory:
//   - Windows: %LOCALAPPDATA%\ecatcheck
//   - Linux: $XDG_CONFIG_HOME/ecatcheck, else $HOME/.config/ecatcheck
//   - macOS and other Unix: $HOME/.config/ecatcheck
func GetConfigDir() (string, error) {
	if runtime.GOOS == "windows" {
		if dir := os.Getenv("LOCALAPPDATA"); dir != "" {
			return filepath.Join(dir, appName), nil
		}
		profile := os.Getenv("USERPROFILE")
		if profile == "" {
			return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
		}
		return filepath.Join(profile, "AppData", "Local", appName), nil
	}

	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" && runtime.GOOS == "linux" {
		return filepath.Join(xdg, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(home, ".config", appName), nil
}

// GetConfigPath returns $ECATCHECK_CONFIG when set, otherwise config.yaml in
// GetConfigDir.
func GetConfigPath() (string, error) {
	if path := os.Getenv(ConfigEnvVar); path != "" {
		return path, nil
	}
	dir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, configFile), nil
}

// LoadRegistry loads the registry from GetConfigPath. A missing file yields
// a new default registry.
func LoadRegistry() (*Registry, error) {
	path, err := GetConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}
	return LoadFile(path)
}

// LoadFile loads a registry from path. A missing file yields a new default
// registry; an unknown version or invalid preferences are errors.
func LoadFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewRegistry(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var registry Registry
	if err := yaml.Unmarshal(data, &registry); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if registry.Version != CurrentVersion {
		return nil, fmt.Errorf("unsupported config version: %d (expected %d)", registry.Version, CurrentVersion)
	}

	if registry.Gateways == nil {
		registry.Gateways = make(map[string]*Gateway)
	}
	if registry.Preferences == nil {
		registry.Preferences = DefaultPreferences()
	}
	if err := registry.Preferences.Validate(); err != nil {
		return nil, fmt.Errorf("invalid preferences in %s: %w", path, err)
	}
	return &registry, nil
}

// Save writes the registry to GetConfigPath.
func (r *Registry) Save() error {
	path, err := GetConfigPath()
	if err != nil {
		return fmt.Errorf("failed to get config path: %w", err)
	}
	return r.SaveFile(path)
}

// SaveFile writes the registry to path, creating its directory (0700) if
// needed. The file is written to a temporary name and renamed into place.
func (r *Registry) SaveFile(path string) error {
	saveMu.Lock()
	defer saveMu.Unlock()

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	body, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	data := fmt.Appendf(nil, `# ecatcheck configuration file
# Saved gateways and preferences. Command-line flags override these values.
#
# Location: %s

%s`, path, body)

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}
