package main

import (
	"encoding/json"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/ftp-mirror/internal/config"
	"github.com/tonimelisma/ftp-mirror/internal/credential"
	"github.com/tonimelisma/ftp-mirror/internal/mirror"
)

func TestLogin_SavesVerifiedCredentials(t *testing.T) {
	srv := newFakeServer()
	env := setupCLI(t, srv)
	setPasswordInput(t, "secret\n")

	_, err := execute(t, "login", "-q", "--host", "ftp.test:2121", "--user", "alice",
		"--local-dir", env.localDir, "--password-stdin")
	require.NoError(t, err)

	assert.Equal(t, []string{"ftp.test:2121"}, srv.addrs)

	creds, err := credential.Load(config.DefaultCredentialPath())
	require.NoError(t, err)
	require.NotNil(t, creds)
	assert.Equal(t, "ftp.test:2121", creds.Host)
	assert.Equal(t, "alice", creds.Username)
	assert.Equal(t, env.localDir, creds.LocalDir)
	assert.NotEqual(t, "secret", creds.Password)

	pw, err := creds.PlainPassword()
	require.NoError(t, err)
	assert.Equal(t, "secret", pw)

	info, err := os.Stat(config.DefaultCredentialPath())
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(credential.FilePerms), info.Mode().Perm())
}

func TestLogin_RejectedPasswordSavesNothing(t *testing.T) {
	setupCLI(t, newFakeServer())
	setPasswordInput(t, "wrong\n")

	_, err := execute(t, "login", "-q", "--host", "ftp.test", "--user", "alice", "--password-stdin")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "login failed")

	var authErr *mirror.AuthError
	assert.ErrorAs(t, err, &authErr)

	creds, err := credential.Load(config.DefaultCredentialPath())
	require.NoError(t, err)
	assert.Nil(t, creds)
}

func TestLogin_AnonymousNeedsNoPassword(t *testing.T) {
	srv := newFakeServer()
	srv.user, srv.password = anonymousUser, anonymousPassword
	setupCLI(t, srv)

	_, err := execute(t, "login", "-q", "--host", "ftp.test")
	require.NoError(t, err)
	assert.Equal(t, []string{anonymousUser}, srv.logins)
}

func TestLogin_EmptyPasswordStdin(t *testing.T) {
	setupCLI(t, newFakeServer())
	setPasswordInput(t, "")

	_, err := execute(t, "login", "-q", "--host", "ftp.test", "--user", "alice", "--password-stdin")
	assert.ErrorContains(t, err, "stdin is empty")
}

func TestWhoamiAndLogout(t *testing.T) {
	env := setupCLI(t, newFakeServer())
	loginAs(t, env)

	out, err := execute(t, "whoami", "--json")
	require.NoError(t, err)

	var who whoamiOutput
	require.NoError(t, json.Unmarshal([]byte(out), &who))
	assert.Equal(t, whoamiOutput{Host: "ftp.test", Port: config.DefaultPort, User: "alice", LocalDir: env.localDir}, who)

	out, err = execute(t, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, "ftp.test:21")
	assert.Contains(t, out, "alice")

	_, err = execute(t, "logout", "-q")
	require.NoError(t, err)

	_, err = execute(t, "whoami")
	assert.ErrorContains(t, err, "not logged in")

	// Logging out twice is harmless.
	_, err = execute(t, "logout", "-q")
	require.NoError(t, err)
}

func TestWhoami_IgnoresBrokenConfig(t *testing.T) {
	env := setupCLI(t, newFakeServer())
	loginAs(t, env)
	env.writeConfig(t, "[server]\nhostt = \"x\"\n")

	_, err := execute(t, "whoami")
	require.NoError(t, err)

	_, err = execute(t, "history")
	assert.ErrorContains(t, err, "loading config")
}

func TestReadPassword(t *testing.T) {
	pw, err := readPassword(strings.NewReader("s3cret\r\nignored\n"), true)
	require.NoError(t, err)
	assert.Equal(t, "s3cret", pw)

	pw, err = readPassword(strings.NewReader("no-newline"), true)
	require.NoError(t, err)
	assert.Equal(t, "no-newline", pw)
}
