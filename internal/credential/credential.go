// Package credential persists the last-used server, account and local
// directory between runs. The password is stored obfuscated, not encrypted:
// the file is protected by owner-only permissions.
package credential

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// FilePerms restricts credential files to owner-only read/write.
const FilePerms = 0o600

// DirPerms is used when creating the containing directory.
const DirPerms = 0o700

// Credentials is the on-disk record written by login.
type Credentials struct {
	Host     string `json:"host"`
	Port     int    `json:"port,omitempty"`
	Username string `json:"username"`
	Password string `json:"password"` // obfuscated, see Obfuscate
	LocalDir string `json:"local_dir,omitempty"`
}

// SetPassword stores the obfuscated form of plain.
func (c *Credentials) SetPassword(plain string) {
	c.Password = Obfuscate(plain)
}

// PlainPassword reverses the obfuscation applied by SetPassword.
func (c *Credentials) PlainPassword() (string, error) {
	return Reveal(c.Password)
}

// Load reads a credential file. Returns (nil, nil) if the file does not
// exist.
func Load(path string) (*Credentials, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil //nolint:nilnil // sentinel for "not found"
	}

	if err != nil {
		return nil, fmt.Errorf("credential: reading %s: %w", path, err)
	}

	var c Credentials
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("credential: decoding %s: %w", path, err)
	}

	if c.Host == "" || c.Username == "" {
		return nil, fmt.Errorf("credential: %s has no host or username (run login again)", path)
	}

	return &c, nil
}

// Save writes c atomically (temp file in the same directory, then rename)
// with 0600 permissions. Never logs the password.
func Save(path string, c *Credentials) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("credential: encoding: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerms); err != nil {
		return fmt.Errorf("credential: creating directory %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".credentials-*.tmp")
	if err != nil {
		return fmt.Errorf("credential: creating temp file: %w", err)
	}

	tmpPath := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = os.Remove(tmpPath)
		}
	}()

	if err := tmp.Chmod(FilePerms); err != nil {
		tmp.Close()
		return fmt.Errorf("credential: setting permissions: %w", err)
	}

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("credential: writing: %w", err)
	}

	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("credential: syncing: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return fmt.Errorf("credential: closing: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("credential: renaming: %w", err)
	}

	success = true

	return nil
}

// Remove deletes the credential file. A missing file is not an error.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("credential: removing %s: %w", path, err)
	}

	return nil
}
