package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// Validation range constants.
const (
	minPort           = 1
	maxPort           = 65535
	minConnectTimeout = 1 * time.Second
	octalBase         = 8
	minOctalDigits    = 3
	maxOctalDigits    = 4
	maxOctalValue     = 0o777
)

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix all issues in one pass.
func Validate(cfg *Config) error {
	var errs []error

	errs = append(errs, validateServer(&cfg.Server)...)
	errs = append(errs, validateMirror(&cfg.Mirror)...)
	errs = append(errs, validateNetwork(&cfg.Network)...)
	errs = append(errs, validateLogging(&cfg.Logging)...)

	return errors.Join(errs...)
}

// ValidateResolved checks constraints that only make sense after the
// override chain has been applied.
func ValidateResolved(r *Resolved) error {
	var errs []error

	if r.Mirror.LocalDir != "" && !filepath.IsAbs(r.Mirror.LocalDir) {
		errs = append(errs, fmt.Errorf("local_dir: must be absolute after expansion, got %q", r.Mirror.LocalDir))
	}

	if err := Validate(&r.Config); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateServer(s *ServerConfig) []error {
	var errs []error

	if s.Port < minPort || s.Port > maxPort {
		errs = append(errs, fmt.Errorf("port: must be between %d and %d, got %d", minPort, maxPort, s.Port))
	}

	if strings.ContainsAny(s.Host, " /") {
		errs = append(errs, fmt.Errorf("host: must be a host name or address, got %q", s.Host))
	}

	if strings.Contains(s.RemoteRoot, "..") {
		errs = append(errs, fmt.Errorf("remote_root: must not contain \"..\", got %q", s.RemoteRoot))
	}

	return errs
}

func validateMirror(m *MirrorConfig) []error {
	var errs []error

	errs = append(errs, validateOctalPermission("dir_permissions", m.DirPermissions)...)
	errs = append(errs, validateOctalPermission("file_permissions", m.FilePermissions)...)
	errs = append(errs, validateBandwidthLimit(m.BandwidthLimit)...)

	for _, p := range m.SkipFiles {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, errors.New("skip_files: patterns must not be empty"))
		}
	}

	for _, p := range m.SkipDirs {
		if strings.TrimSpace(p) == "" {
			errs = append(errs, errors.New("skip_dirs: patterns must not be empty"))
		}
	}

	return errs
}

func validateBandwidthLimit(s string) []error {
	if _, err := ParseRate(s); err != nil {
		return []error{fmt.Errorf("bandwidth_limit: %w", err)}
	}

	return nil
}

func validateOctalPermission(field, value string) []error {
	if value == "" {
		return []error{fmt.Errorf("%s: must not be empty", field)}
	}

	if len(value) < minOctalDigits || len(value) > maxOctalDigits {
		return []error{fmt.Errorf("%s: must be 3 or 4 octal digits, got %q", field, value)}
	}

	n, err := strconv.ParseInt(value, octalBase, 32)
	if err != nil {
		return []error{fmt.Errorf("%s: invalid octal value %q", field, value)}
	}

	if n < 0 || n > maxOctalValue {
		return []error{fmt.Errorf("%s: octal value out of range %q", field, value)}
	}

	return nil
}

func validateNetwork(n *NetworkConfig) []error {
	d, err := time.ParseDuration(n.ConnectTimeout)
	if err != nil {
		return []error{fmt.Errorf("connect_timeout: invalid duration %q: %w", n.ConnectTimeout, err)}
	}

	if d < minConnectTimeout {
		return []error{fmt.Errorf("connect_timeout: must be >= %s, got %s", minConnectTimeout, d)}
	}

	return nil
}

func validateLogging(l *LoggingConfig) []error {
	var errs []error

	if !validLogLevels[l.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", l.LogLevel))
	}

	if !validLogFormats[l.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json; got %q", l.LogFormat))
	}

	return errs
}

var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

var validLogFormats = map[string]bool{
	"auto": true,
	"text": true,
	"json": true,
}
