package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
)

// loadTOML decodes path into cfg when the file exists; on a first run it
// writes template instead and leaves cfg at its defaults.
func loadTOML(path, template string, cfg any) error {
	if !FileExists(path) {
		if err := os.WriteFile(path, []byte(template), 0600); err != nil {
			return fmt.Errorf("failed to write default config: %w", err)
		}
		return nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return fmt.Errorf("failed to parse %s: %w", filepath.Base(path), err)
	}
	return nil
}

func saveTOML(path string, cfg any) error {
	// 0600: config files point at or live in the credential-bearing data dir.
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", filepath.Base(path), err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode %s: %w", filepath.Base(path), err)
	}
	return nil
}

// LoadSystemConfig reads the system settings file, creating a commented
// default on first run.
func LoadSystemConfig() (*SystemConfig, error) {
	if err := EnsureDir(GetConfigDir()); err != nil {
		return nil, fmt.Errorf("failed to create config directory: %w", err)
	}

	cfg := DefaultSystemConfig()
	if err := loadTOML(GetSettingsFilePath(), GenerateSystemConfigTemplate(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadUserConfig reads config.toml from the data directory, creating a
// commented default on first run.
func LoadUserConfig(dataDir string) (*UserConfig, error) {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := DefaultUserConfig()
	if err := loadTOML(userConfigPath(dataDir), GenerateUserConfigTemplate(), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func SaveSystemConfig(cfg *SystemConfig) error {
	if err := EnsureDir(GetConfigDir()); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	return saveTOML(GetSettingsFilePath(), cfg)
}

func SaveUserConfig(cfg *UserConfig, dataDir string) error {
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}
	return saveTOML(userConfigPath(dataDir), cfg)
}

func userConfigPath(dataDir string) string {
	return filepath.Join(dataDir, "config.toml")
}
