package config

// DefaultPort is the FTP control port.
const DefaultPort = 21

// Default values for configuration options. These are layer 0 of the
// override chain.
const (
	defaultDirPermissions  = "0755"
	defaultFilePermissions = "0644"
	defaultBandwidthLimit  = "0"
	defaultConnectTimeout  = "30s"
	defaultLogLevel        = "info"
	defaultLogFormat       = "auto"
)

// DefaultConfig returns a Config populated with all default values.
// It is both the starting point for TOML decoding (so unset fields retain
// defaults) and the fallback when no config file exists.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port: DefaultPort,
		},
		Mirror: MirrorConfig{
			DirPermissions:  defaultDirPermissions,
			FilePermissions: defaultFilePermissions,
			SkipTemporary:   true,
			BandwidthLimit:  defaultBandwidthLimit,
		},
		Network: NetworkConfig{
			ConnectTimeout: defaultConnectTimeout,
		},
		Logging: LoggingConfig{
			LogLevel:  defaultLogLevel,
			LogFormat: defaultLogFormat,
		},
	}
}
