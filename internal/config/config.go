// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for ftp-mirror. It supports a four-layer
// override chain (defaults -> config file -> environment -> CLI flags).
package config

// Config is the top-level configuration structure parsed from a TOML file.
type Config struct {
	Server  ServerConfig  `toml:"server" json:"server"`
	Mirror  MirrorConfig  `toml:"mirror" json:"mirror"`
	Network NetworkConfig `toml:"network" json:"network"`
	Logging LoggingConfig `toml:"logging" json:"logging"`
	State   StateConfig   `toml:"state" json:"state"`
}

// ServerConfig names the FTP server and the account used to log in.
// RemoteRoot is the remote directory the mirror starts from; empty means the
// login directory.
type ServerConfig struct {
	Host       string `toml:"host" json:"host"`
	Port       int    `toml:"port" json:"port"`
	Username   string `toml:"username" json:"username"`
	RemoteRoot string `toml:"remote_root" json:"remote_root"`
}

// MirrorConfig controls where the mirror is written and which remote items
// take part. Patterns are gitignore-style and matched against the path
// relative to the remote root.
type MirrorConfig struct {
	LocalDir        string   `toml:"local_dir" json:"local_dir"`
	DirPermissions  string   `toml:"dir_permissions" json:"dir_permissions"`
	FilePermissions string   `toml:"file_permissions" json:"file_permissions"`
	SkipFiles       []string `toml:"skip_files" json:"skip_files"`
	SkipDirs        []string `toml:"skip_dirs" json:"skip_dirs"`
	SkipDotfiles    bool     `toml:"skip_dotfiles" json:"skip_dotfiles"`
	SkipTemporary   bool     `toml:"skip_temporary" json:"skip_temporary"`
	BandwidthLimit  string   `toml:"bandwidth_limit" json:"bandwidth_limit"`
}

// NetworkConfig controls the control connection. disable_epsv is useful for
// servers behind NAT that mishandle extended passive mode.
type NetworkConfig struct {
	ConnectTimeout string `toml:"connect_timeout" json:"connect_timeout"`
	DisableEPSV    bool   `toml:"disable_epsv" json:"disable_epsv"`
}

// LoggingConfig controls log output behavior: level, format and destination.
type LoggingConfig struct {
	LogLevel  string `toml:"log_level" json:"log_level"`
	LogFile   string `toml:"log_file" json:"log_file"`
	LogFormat string `toml:"log_format" json:"log_format"`
}

// StateConfig locates files written by ftp-mirror itself. An empty
// history_db selects the data directory; an empty metrics_file disables the
// metrics textfile.
type StateConfig struct {
	HistoryDB   string `toml:"history_db" json:"history_db"`
	MetricsFile string `toml:"metrics_file" json:"metrics_file"`
}

// CLIOverrides holds values from CLI flags that override config file and
// environment settings. Pointer fields distinguish "not specified" (nil)
// from "explicitly set to the zero value".
type CLIOverrides struct {
	ConfigPath string  // --config flag (empty = use default)
	Host       *string // --host flag
	Username   *string // --user flag
	LocalDir   *string // --local-dir flag
	RemoteRoot *string // --remote-root flag
}
