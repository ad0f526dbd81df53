package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// Resolved is the effective configuration after every override layer.
type Resolved struct {
	Config
	ConfigPath string `json:"config_path"`
}

// Load reads and parses a TOML config file, validates it, and returns the
// resulting Config. Unknown keys are fatal, with "did you mean?" suggestions.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := checkUnknownKeys(&md); err != nil {
		return nil, err
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return cfg, nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns
// a Config populated with all default values.
func LoadOrDefault(path string) (*Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return DefaultConfig(), nil
	}

	return Load(path)
}

// Resolve loads configuration and applies the four-layer override chain:
// defaults -> config file -> environment variables -> CLI flags.
func Resolve(env EnvOverrides, cli CLIOverrides) (*Resolved, error) {
	cfgPath := DefaultConfigPath()
	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
	}

	cfg, err := LoadOrDefault(cfgPath)
	if err != nil {
		return nil, err
	}

	resolved := &Resolved{Config: *cfg, ConfigPath: cfgPath}

	applyString(&resolved.Server.Host, env.Host, cli.Host)
	applyString(&resolved.Server.Username, env.Username, cli.Username)
	applyString(&resolved.Mirror.LocalDir, env.LocalDir, cli.LocalDir)
	applyString(&resolved.Server.RemoteRoot, "", cli.RemoteRoot)

	resolved.Mirror.LocalDir = expandTilde(resolved.Mirror.LocalDir)
	resolved.Logging.LogFile = expandTilde(resolved.Logging.LogFile)
	resolved.State.HistoryDB = expandTilde(resolved.State.HistoryDB)
	resolved.State.MetricsFile = expandTilde(resolved.State.MetricsFile)

	if err := ValidateResolved(resolved); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return resolved, nil
}

// applyString sets *dst from env, then from cli. An empty env value and a
// nil cli value leave *dst unchanged.
func applyString(dst *string, env string, cli *string) {
	if env != "" {
		*dst = env
	}

	if cli != nil {
		*dst = *cli
	}
}

// expandTilde replaces a leading "~/" with the user's home directory.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[2:])
}

// DialTimeout returns the parsed connect_timeout.
func (r *Resolved) DialTimeout() time.Duration {
	d, err := time.ParseDuration(r.Network.ConnectTimeout)
	if err != nil {
		return 0
	}

	return d
}

// BandwidthRate returns the parsed bandwidth_limit.
func (r *Resolved) BandwidthRate() (Rate, error) {
	rate, err := ParseRate(r.Mirror.BandwidthLimit)
	if err != nil {
		return 0, fmt.Errorf("config: [mirror] bandwidth_limit: %w", err)
	}

	return rate, nil
}

// DirMode returns the parsed dir_permissions.
func (r *Resolved) DirMode() fs.FileMode {
	return parseMode(r.Mirror.DirPermissions)
}

// FileMode returns the parsed file_permissions.
func (r *Resolved) FileMode() fs.FileMode {
	return parseMode(r.Mirror.FilePermissions)
}

// HistoryPath returns the run history database path, defaulting to the data
// directory.
func (r *Resolved) HistoryPath() string {
	if r.State.HistoryDB != "" {
		return r.State.HistoryDB
	}

	return DefaultHistoryPath()
}

// parseMode converts a validated octal permission string. Invalid input
// yields zero, which selects the filesystem default.
func parseMode(s string) fs.FileMode {
	n, err := strconv.ParseUint(s, octalBase, 32)
	if err != nil {
		return 0
	}

	return fs.FileMode(n)
}
