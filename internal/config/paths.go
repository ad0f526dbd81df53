package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Platform identifiers.
const (
	platformLinux  = "linux"
	platformDarwin = "darwin"
)

// Application directory name used across all platforms.
const appName = "ftp-mirror"

// File names inside the config and data directories.
const (
	configFileName     = "config.toml"
	credentialFileName = "credentials.json"
	historyFileName    = "history.db"
)

// DefaultConfigDir returns the platform-specific directory for config files.
// On Linux, respects XDG_CONFIG_HOME (defaults to ~/.config/ftp-mirror).
// On macOS, uses ~/Library/Application Support/ftp-mirror.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return xdgDir("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".config", appName)
	}
}

// DefaultDataDir returns the platform-specific directory for application data
// (history database, credentials, lock files).
// On Linux, respects XDG_DATA_HOME (defaults to ~/.local/share/ftp-mirror).
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	switch runtime.GOOS {
	case platformLinux:
		return xdgDir("XDG_DATA_HOME", filepath.Join(home, ".local", "share"))
	case platformDarwin:
		return filepath.Join(home, "Library", "Application Support", appName)
	default:
		return filepath.Join(home, ".local", "share", appName)
	}
}

// xdgDir returns $env/ftp-mirror, or fallback/ftp-mirror when env is unset.
func xdgDir(env, fallback string) string {
	if xdg := os.Getenv(env); xdg != "" {
		return filepath.Join(xdg, appName)
	}

	return filepath.Join(fallback, appName)
}

// DefaultConfigPath returns the full path to the default config file, used
// when neither FTP_MIRROR_CONFIG nor --config is specified.
func DefaultConfigPath() string {
	return inDir(DefaultConfigDir(), configFileName)
}

// DefaultCredentialPath returns where login saves the last-used server and
// account.
func DefaultCredentialPath() string {
	return inDir(DefaultDataDir(), credentialFileName)
}

// DefaultHistoryPath returns the default run history database path.
func DefaultHistoryPath() string {
	return inDir(DefaultDataDir(), historyFileName)
}

func inDir(dir, name string) string {
	if dir == "" {
		return ""
	}

	return filepath.Join(dir, name)
}
