//go:build e2e

package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/ftp-mirror/testutil"
)

var (
	binaryPath string
	tempRoot   string

	host, user, password, remoteRoot string
)

func TestMain(m *testing.M) {
	moduleRoot := testutil.FindModuleRoot("..")
	testutil.LoadDotEnv(filepath.Join(moduleRoot, ".env"))
	host, user, password, remoteRoot = testutil.ServerFromEnv()

	var err error

	tempRoot, err = os.MkdirTemp("", "ftp-mirror-e2e-*")
	if err != nil {
		fmt.Fprintf(os.Stderr, "creating temp dir: %v\n", err)
		os.Exit(1)
	}

	binaryPath = filepath.Join(tempRoot, "ftp-mirror")

	build := exec.Command("go", "build", "-o", binaryPath, ".")
	build.Dir = moduleRoot
	build.Stdout = os.Stdout
	build.Stderr = os.Stderr

	if err := build.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "building binary: %v\n", err)
		os.Exit(1)
	}

	isolate()

	code := m.Run()

	os.RemoveAll(tempRoot)
	os.Exit(code)
}

// isolate points HOME and the XDG directories at tempRoot so the suite never
// reads or writes the developer's credentials and history.
func isolate() {
	for _, name := range []string{"FTP_MIRROR_CONFIG", "FTP_MIRROR_HOST", "FTP_MIRROR_USER", "FTP_MIRROR_LOCAL_DIR"} {
		os.Unsetenv(name)
	}

	for env, dir := range map[string]string{
		"HOME":            "home",
		"XDG_CONFIG_HOME": "config",
		"XDG_DATA_HOME":   "data",
	} {
		path := filepath.Join(tempRoot, dir)
		if err := os.MkdirAll(path, 0o755); err != nil {
			fmt.Fprintf(os.Stderr, "FATAL: creating %s: %v\n", path, err)
			os.Exit(1)
		}

		os.Setenv(env, path)
	}
}

func runCLI(t *testing.T, stdin string, args ...string) (string, string) {
	t.Helper()

	cmd := exec.Command(binaryPath, args...)
	cmd.Stdin = strings.NewReader(stdin)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		t.Fatalf("ftp-mirror %v failed: %v\nstdout: %s\nstderr: %s", args, err, stdout.String(), stderr.String())
	}

	return stdout.String(), stderr.String()
}

func TestE2E_LoginMirrorHistory(t *testing.T) {
	localDir := filepath.Join(t.TempDir(), "mirror")

	loginArgs := []string{"login", "--host", host, "--local-dir", localDir}
	stdin := ""

	if user != "" {
		loginArgs = append(loginArgs, "--user", user, "--password-stdin")
		stdin = password + "\n"
	}

	t.Run("login", func(t *testing.T) {
		_, stderr := runCLI(t, stdin, loginArgs...)
		assert.Contains(t, stderr, "Logged in to "+host)
	})

	t.Run("whoami", func(t *testing.T) {
		stdout, _ := runCLI(t, "", "whoami", "--json")

		var out map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &out))
		assert.Equal(t, host, out["host"])
	})

	var runID string

	t.Run("mirror", func(t *testing.T) {
		args := []string{"mirror", "--json"}
		if remoteRoot != "" {
			args = append(args, "--remote-root", remoteRoot)
		}

		stdout, _ := runCLI(t, "", args...)

		var summary map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &summary))
		assert.Positive(t, summary["directories"])
		runID, _ = summary["run_id"].(string)

		entries, err := os.ReadDir(localDir)
		require.NoError(t, err)
		assert.NotEmpty(t, entries, "mirror should populate the local directory")
	})

	t.Run("history", func(t *testing.T) {
		stdout, _ := runCLI(t, "", "history", "--json", "--limit", "1")

		var runs []map[string]any
		require.NoError(t, json.Unmarshal([]byte(stdout), &runs))
		require.Len(t, runs, 1)
		assert.Equal(t, runID, runs[0]["id"])
		assert.Equal(t, "finished", runs[0]["status"])
	})

	t.Run("logout", func(t *testing.T) {
		_, stderr := runCLI(t, "", "logout")
		assert.Contains(t, stderr, "Logged out")
	})
}
