package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/ftp-mirror/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// skipConfigAnnotation marks commands that run without the resolved config
// because they only touch the credential file.
const skipConfigAnnotation = "skip-config"

const logFilePerms = 0o600

// CLIFlags are the global persistent flags.
type CLIFlags struct {
	ConfigPath string
	JSON       bool
	Verbose    bool
	Quiet      bool
}

// CLIContext carries per-invocation state from PersistentPreRunE to the
// command handlers.
type CLIContext struct {
	Flags  CLIFlags
	Logger *slog.Logger
	// Cfg is nil for commands annotated with skipConfigAnnotation.
	Cfg *config.Resolved

	logFile io.Closer
}

type cliContextKey struct{}

func withCLIContext(ctx context.Context, cc *CLIContext) context.Context {
	return context.WithValue(ctx, cliContextKey{}, cc)
}

// mustCLIContext returns the CLIContext stored by the root pre-run. A missing
// context is a programming error.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		panic("ftp-mirror: command run without CLI context")
	}

	return cc
}

// mustConfig returns the resolved config of commands that load it.
func (cc *CLIContext) mustConfig() *config.Resolved {
	if cc.Cfg == nil {
		panic("ftp-mirror: command run without resolved config")
	}

	return cc.Cfg
}

func newRootCmd() *cobra.Command {
	var flags CLIFlags

	cmd := &cobra.Command{
		Use:     "ftp-mirror",
		Short:   "Mirror an FTP server tree to a local directory",
		Long:    "Recursively download a remote FTP directory tree into a local directory.",
		Version: version,
		// Errors are printed once by main.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc, err := newCLIContext(cmd, flags)
			if err != nil {
				return err
			}

			cmd.SetContext(withCLIContext(cmd.Context(), cc))

			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			if cc.logFile != nil {
				return cc.logFile.Close()
			}

			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flags.ConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVar(&flags.JSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newLoginCmd())
	cmd.AddCommand(newLogoutCmd())
	cmd.AddCommand(newWhoamiCmd())
	cmd.AddCommand(newMirrorCmd())
	cmd.AddCommand(newHistoryCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// newCLIContext resolves the configuration for cmd and builds the logger.
func newCLIContext(cmd *cobra.Command, flags CLIFlags) (*CLIContext, error) {
	cc := &CLIContext{Flags: flags}

	if cmd.Annotations[skipConfigAnnotation] != "true" {
		resolved, err := config.Resolve(config.ReadEnvOverrides(), cliOverrides(cmd, flags))
		if err != nil {
			return nil, fmt.Errorf("loading config: %w", err)
		}

		cc.Cfg = resolved
	}

	var logging config.LoggingConfig
	if cc.Cfg != nil {
		logging = cc.Cfg.Logging
	}

	logger, closer, err := buildLogger(logging, flags, os.Stderr)
	if err != nil {
		return nil, err
	}

	cc.Logger = logger
	cc.logFile = closer

	return cc, nil
}

// cliOverrides collects the per-command flags that feed the override chain.
// Only flags the user actually set override lower layers.
func cliOverrides(cmd *cobra.Command, flags CLIFlags) config.CLIOverrides {
	cli := config.CLIOverrides{ConfigPath: flags.ConfigPath}

	cli.Host = changedString(cmd, "host")
	cli.Username = changedString(cmd, "user")
	cli.LocalDir = changedString(cmd, "local-dir")
	cli.RemoteRoot = changedString(cmd, "remote-root")

	return cli
}

func changedString(cmd *cobra.Command, name string) *string {
	f := cmd.Flags().Lookup(name)
	if f == nil || !f.Changed {
		return nil
	}

	v := f.Value.String()

	return &v
}

// buildLogger creates the logger from the [logging] section and the global
// flags. --verbose and --quiet override log_level. With log_file set, logs
// are appended to that file instead of stderr; the returned closer is then
// non-nil.
func buildLogger(cfg config.LoggingConfig, flags CLIFlags, stderr *os.File) (*slog.Logger, io.Closer, error) {
	level := parseLevel(cfg.LogLevel)

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	var (
		w      io.Writer = stderr
		closer io.Closer
		tty    = isatty.IsTerminal(stderr.Fd()) || isatty.IsCygwinTerminal(stderr.Fd())
	)

	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, logFilePerms)
		if err != nil {
			return nil, nil, fmt.Errorf("opening log file: %w", err)
		}

		w, closer, tty = f, f, false
	}

	opts := &slog.HandlerOptions{Level: level}

	var handler slog.Handler

	switch cfg.LogFormat {
	case "json":
		handler = slog.NewJSONHandler(w, opts)
	case "text":
		handler = slog.NewTextHandler(w, opts)
	default:
		// auto: humans get text, pipes and files get JSON.
		if tty {
			handler = slog.NewTextHandler(w, opts)
		} else {
			handler = slog.NewJSONHandler(w, opts)
		}
	}

	return slog.New(handler), closer, nil
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// exitCode maps an error returned by a command to the process exit status.
func exitCode(err error) int {
	if errors.Is(err, errIncompleteMirror) {
		return exitIncomplete
	}

	return 1
}
