package credential

import (
	"encoding/base64"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FileNotFound(t *testing.T) {
	c, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Nil(t, c)
	assert.NoError(t, err)
}

func TestSaveLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "credentials.json")

	orig := &Credentials{Host: "ftp.example.com", Port: 2121, Username: "alice", LocalDir: "/srv/mirror"}
	orig.SetPassword("s3cret")

	require.NoError(t, Save(path, orig))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(FilePerms), info.Mode().Perm())

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), "s3cret")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, orig, loaded)

	plain, err := loaded.PlainPassword()
	require.NoError(t, err)
	assert.Equal(t, "s3cret", plain)
}

func TestSave_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "credentials.json")

	require.NoError(t, Save(path, &Credentials{Host: "h", Username: "u"}))
	require.NoError(t, Save(path, &Credentials{Host: "h2", Username: "u"}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "h2", c.Host)
}

func TestLoad_InvalidJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding")
}

func TestLoad_Incomplete(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"host":"h"}`), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestRemove(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, Save(path, &Credentials{Host: "h", Username: "u"}))

	require.NoError(t, Remove(path))
	assert.NoFileExists(t, path)

	// Removing again is fine.
	assert.NoError(t, Remove(path))
}

func TestObfuscate_RoundTrip(t *testing.T) {
	for _, plain := range []string{"", "a", "correct horse battery staple", "pässwörd"} {
		got, err := Reveal(Obfuscate(plain))
		require.NoError(t, err)
		assert.Equal(t, plain, got)
	}
}

func TestObfuscate_KnownValue(t *testing.T) {
	// The key characters XOR together to a single byte; every password byte
	// is XORed with it before base64.
	var k byte
	for i := range len(obfuscationKey) {
		k ^= obfuscationKey[i]
	}

	want := base64.StdEncoding.EncodeToString([]byte{'a' ^ k, 'b' ^ k})
	assert.Equal(t, want, Obfuscate("ab"))
}

func TestReveal_InvalidBase64(t *testing.T) {
	_, err := Reveal("***")
	assert.Error(t, err)
}
