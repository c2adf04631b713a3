package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// GetHomeDir resolves the user's home directory on every platform,
// falling back to the filesystem root when the environment is bare.
func GetHomeDir() string {
	if runtime.GOOS == "windows" {
		if home := os.Getenv("USERPROFILE"); home != "" {
			return home
		}
		if home := os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH"); home != "" {
			return home
		}
		return "C:\\"
	}
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	return "/"
}

// GetConfigDir returns ~/.config/gridpilot on every platform. The only
// file here is settings.toml, which points at the data directory.
func GetConfigDir() string {
	return filepath.Join(GetHomeDir(), ".config", "gridpilot")
}

// GetDefaultDataDir returns the default location for sessions, logs and
// credentials: ~/.local/share/gridpilot, or AppData\Local on Windows.
func GetDefaultDataDir() string {
	if runtime.GOOS == "windows" {
		local := os.Getenv("LOCALAPPDATA")
		if local == "" {
			local = filepath.Join(GetHomeDir(), "AppData", "Local")
		}
		return filepath.Join(local, "gridpilot")
	}
	return filepath.Join(GetHomeDir(), ".local", "share", "gridpilot")
}

func GetSettingsFilePath() string {
	return filepath.Join(GetConfigDir(), "settings.toml")
}

// ExpandPath expands a leading ~/ and any environment variables, then
// cleans the result.
func ExpandPath(path string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		path = filepath.Join(GetHomeDir(), path[2:])
	}
	return filepath.Clean(os.ExpandEnv(path))
}

// EnsureDir creates path with user-only access.
func EnsureDir(path string) error {
	return os.MkdirAll(path, 0700)
}

func FileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// EnsureDataDirPermissions tightens the data directory to 0700. The
// directory holds credentials, so group/other access is never correct.
func EnsureDataDirPermissions(dataDir string) error {
	info, err := os.Stat(dataDir)
	if os.IsNotExist(err) {
		return os.MkdirAll(dataDir, 0700)
	}
	if err != nil {
		return err
	}
	if info.Mode().Perm() != 0700 {
		return os.Chmod(dataDir, 0700)
	}
	return nil
}
