package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/ftp-mirror/internal/config"
)

func TestBuildLogger_Levels(t *testing.T) {
	tests := []struct {
		name    string
		level   string
		flags   CLIFlags
		enabled slog.Level
		hidden  slog.Level
	}{
		{"default info", "", CLIFlags{}, slog.LevelInfo, slog.LevelDebug},
		{"config debug", "debug", CLIFlags{}, slog.LevelDebug, slog.LevelDebug - 1},
		{"config warn", "warn", CLIFlags{}, slog.LevelWarn, slog.LevelInfo},
		{"verbose beats config", "error", CLIFlags{Verbose: true}, slog.LevelDebug, slog.LevelDebug - 1},
		{"quiet beats config", "debug", CLIFlags{Quiet: true}, slog.LevelError, slog.LevelWarn},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logger, closer, err := buildLogger(config.LoggingConfig{LogLevel: tt.level}, tt.flags, os.Stderr)
			require.NoError(t, err)
			assert.Nil(t, closer)

			ctx := context.Background()
			assert.True(t, logger.Handler().Enabled(ctx, tt.enabled))
			assert.False(t, logger.Handler().Enabled(ctx, tt.hidden))
		})
	}
}

func TestBuildLogger_LogFileJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.log")

	logger, closer, err := buildLogger(config.LoggingConfig{LogFile: path, LogFormat: "auto"}, CLIFlags{}, os.Stderr)
	require.NoError(t, err)
	require.NotNil(t, closer)

	logger.Info("hello", slog.String("k", "v"))
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var rec map[string]any
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "hello", rec["msg"])
	assert.Equal(t, "v", rec["k"])
}

func TestBuildLogger_LogFileText(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mirror.log")

	logger, closer, err := buildLogger(config.LoggingConfig{LogFile: path, LogFormat: "text"}, CLIFlags{}, os.Stderr)
	require.NoError(t, err)

	logger.Info("hello")
	require.NoError(t, closer.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "msg=hello")
}

func TestBuildLogger_BadLogFile(t *testing.T) {
	_, _, err := buildLogger(config.LoggingConfig{LogFile: filepath.Join(t.TempDir(), "no", "such", "x.log")},
		CLIFlags{}, os.Stderr)
	assert.ErrorContains(t, err, "opening log file")
}

func TestMustCLIContext_PanicsWithoutContext(t *testing.T) {
	assert.Panics(t, func() { mustCLIContext(context.Background()) })

	cc := &CLIContext{}
	assert.Same(t, cc, mustCLIContext(withCLIContext(context.Background(), cc)))
	assert.Panics(t, func() { cc.mustConfig() })
}

func TestCLIOverrides_OnlyChangedFlags(t *testing.T) {
	root := newRootCmd()
	cmd := findCmd(t, root, "mirror")

	require.NoError(t, cmd.Flags().Parse([]string{"--host", "ftp.example.com", "--local-dir", ""}))

	cli := cliOverrides(cmd, CLIFlags{ConfigPath: "/etc/ftp-mirror.toml"})
	assert.Equal(t, "/etc/ftp-mirror.toml", cli.ConfigPath)
	require.NotNil(t, cli.Host)
	assert.Equal(t, "ftp.example.com", *cli.Host)
	require.NotNil(t, cli.LocalDir, "explicitly empty flag still overrides")
	assert.Empty(t, *cli.LocalDir)
	assert.Nil(t, cli.Username)
	assert.Nil(t, cli.RemoteRoot)

	// Commands without the flag never override.
	assert.Nil(t, cliOverrides(findCmd(t, root, "history"), CLIFlags{}).Host)
}

func TestRootCmd_RegistersCommands(t *testing.T) {
	root := newRootCmd()

	for _, path := range [][]string{
		{"login"}, {"logout"}, {"whoami"}, {"mirror"}, {"history"}, {"history", "files"}, {"config", "show"},
	} {
		cmd := findCmd(t, root, path...)
		assert.Equal(t, path[len(path)-1], cmd.Name())
	}

	assert.Equal(t, "true", findCmd(t, root, "logout").Annotations[skipConfigAnnotation])
	assert.Equal(t, "true", findCmd(t, root, "whoami").Annotations[skipConfigAnnotation])
	assert.Empty(t, findCmd(t, root, "mirror").Annotations[skipConfigAnnotation])
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, 1, exitCode(errNoHost))
	assert.Equal(t, exitIncomplete, exitCode(errIncompleteMirror))
}
