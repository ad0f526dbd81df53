package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestReadEnvOverrides(t *testing.T) {
	t.Setenv(EnvConfig, "/etc/ftp-mirror.toml")
	t.Setenv(EnvHost, "ftp.example.com")
	t.Setenv(EnvUser, "alice")
	t.Setenv(EnvLocalDir, "/srv/mirror")

	env := ReadEnvOverrides()

	assert.Equal(t, "/etc/ftp-mirror.toml", env.ConfigPath)
	assert.Equal(t, "ftp.example.com", env.Host)
	assert.Equal(t, "alice", env.Username)
	assert.Equal(t, "/srv/mirror", env.LocalDir)
}

func TestReadEnvOverrides_Unset(t *testing.T) {
	t.Setenv(EnvConfig, "")
	t.Setenv(EnvHost, "")
	t.Setenv(EnvUser, "")
	t.Setenv(EnvLocalDir, "")

	assert.Equal(t, EnvOverrides{}, ReadEnvOverrides())
}
