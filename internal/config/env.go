package config

import "os"

// Environment variable names for overrides.
const (
	EnvConfig   = "FTP_MIRROR_CONFIG"
	EnvHost     = "FTP_MIRROR_HOST"
	EnvUser     = "FTP_MIRROR_USER"
	EnvLocalDir = "FTP_MIRROR_LOCAL_DIR"
)

// EnvOverrides holds values derived from environment variables.
type EnvOverrides struct {
	ConfigPath string // FTP_MIRROR_CONFIG: override config file path
	Host       string // FTP_MIRROR_HOST: server host
	Username   string // FTP_MIRROR_USER: login name
	LocalDir   string // FTP_MIRROR_LOCAL_DIR: mirror destination
}

// ReadEnvOverrides reads environment variables and returns any overrides found.
// This does not modify the Config; Resolve applies the relevant fields.
func ReadEnvOverrides() EnvOverrides {
	return EnvOverrides{
		ConfigPath: os.Getenv(EnvConfig),
		Host:       os.Getenv(EnvHost),
		Username:   os.Getenv(EnvUser),
		LocalDir:   os.Getenv(EnvLocalDir),
	}
}
