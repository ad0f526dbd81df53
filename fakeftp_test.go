package main

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/jlaffaye/ftp"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/ftp-mirror/internal/config"
	"github.com/tonimelisma/ftp-mirror/internal/ftpclient"
)

// fakeServer is an in-memory FTP server reached through dialFTP.
type fakeServer struct {
	mu sync.Mutex

	user     string
	password string
	dirs     map[string][]*ftp.Entry
	files    map[string]string
	failRetr map[string]bool

	addrs  []string
	logins []string
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		user:     "alice",
		password: "secret",
		dirs:     make(map[string][]*ftp.Entry),
		files:    make(map[string]string),
		failRetr: make(map[string]bool),
	}
}

// addFile registers a file and its entry in the parent listing.
func (s *fakeServer) addFile(path, content string) {
	dir, name := splitRemote(path)
	s.files[path] = content
	s.dirs[dir] = append(s.dirs[dir], &ftp.Entry{Name: name, Type: ftp.EntryTypeFile, Size: uint64(len(content))})
}

// addDir registers an empty directory listing and its entry in the parent.
func (s *fakeServer) addDir(path string) {
	dir, name := splitRemote(path)
	s.dirs[dir] = append(s.dirs[dir], &ftp.Entry{Name: name, Type: ftp.EntryTypeFolder})

	if _, ok := s.dirs[path]; !ok {
		s.dirs[path] = nil
	}
}

func splitRemote(path string) (string, string) {
	i := strings.LastIndex(path, "/")
	if i < 0 {
		return "", path
	}

	return path[:i], path[i+1:]
}

func (s *fakeServer) dial(*config.Resolved) ftpclient.DialFunc {
	return func(_ context.Context, addr string) (ftpclient.Conn, error) {
		s.mu.Lock()
		defer s.mu.Unlock()

		s.addrs = append(s.addrs, addr)

		return &fakeConn{s: s}, nil
	}
}

type fakeConn struct {
	s        *fakeServer
	loggedIn bool
}

func (c *fakeConn) Login(user, password string) error {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	c.s.logins = append(c.s.logins, user)

	if user != c.s.user || password != c.s.password {
		return errors.New("530 Login incorrect")
	}

	c.loggedIn = true

	return nil
}

func (c *fakeConn) List(path string) ([]*ftp.Entry, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	entries, ok := c.s.dirs[path]
	if !c.loggedIn || !ok {
		return nil, errors.New("550 No such directory")
	}

	return entries, nil
}

func (c *fakeConn) FileSize(path string) (int64, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	data, ok := c.s.files[path]
	if !ok {
		return 0, errors.New("550 No such file")
	}

	return int64(len(data)), nil
}

func (c *fakeConn) Retr(path string) (io.ReadCloser, error) {
	c.s.mu.Lock()
	defer c.s.mu.Unlock()

	data, ok := c.s.files[path]
	if !ok || c.s.failRetr[path] {
		return nil, errors.New("550 Permission denied")
	}

	return io.NopCloser(strings.NewReader(data)), nil
}

func (c *fakeConn) Quit() error { return nil }

// cliEnv isolates a command run: XDG dirs point at temp dirs, FTP_MIRROR_*
// variables are cleared and dialing reaches srv.
type cliEnv struct {
	dataDir   string
	configDir string
	localDir  string
}

func setupCLI(t *testing.T, srv *fakeServer) *cliEnv {
	t.Helper()

	env := &cliEnv{
		dataDir:   t.TempDir(),
		configDir: t.TempDir(),
		localDir:  filepath.Join(t.TempDir(), "mirror"),
	}

	t.Setenv("XDG_DATA_HOME", env.dataDir)
	t.Setenv("XDG_CONFIG_HOME", env.configDir)

	for _, name := range []string{config.EnvConfig, config.EnvHost, config.EnvUser, config.EnvLocalDir} {
		t.Setenv(name, "")
	}

	oldDial := dialFTP
	dialFTP = srv.dial

	t.Cleanup(func() { dialFTP = oldDial })

	return env
}

func setPasswordInput(t *testing.T, input string) {
	t.Helper()

	old := passwordInput
	passwordInput = strings.NewReader(input)

	t.Cleanup(func() { passwordInput = old })
}

// writeConfig writes a config file under the test's config dir.
func (e *cliEnv) writeConfig(t *testing.T, body string) string {
	t.Helper()

	path := filepath.Join(e.configDir, "ftp-mirror", "config.toml")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))

	return path
}

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer

	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)

	err := cmd.ExecuteContext(context.Background())

	return out.String(), err
}

// findCmd returns the subcommand at path.
func findCmd(t *testing.T, root *cobra.Command, path ...string) *cobra.Command {
	t.Helper()

	cmd, _, err := root.Find(path)
	require.NoError(t, err)

	return cmd
}
