package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tonimelisma/ftp-mirror/internal/config"
	"github.com/tonimelisma/ftp-mirror/internal/credential"
	"github.com/tonimelisma/ftp-mirror/internal/filter"
	"github.com/tonimelisma/ftp-mirror/internal/history"
	"github.com/tonimelisma/ftp-mirror/internal/metrics"
	"github.com/tonimelisma/ftp-mirror/internal/mirror"
)

// exitIncomplete is the exit status of a mirror that finished with skipped
// files.
const exitIncomplete = 2

// notificationBuffer decouples the engine from slow observers such as the
// history database.
const notificationBuffer = 64

var errIncompleteMirror = errors.New("mirror incomplete")

var errNoLocalDir = errors.New("no local directory: pass --local-dir, set [mirror] local_dir, or run 'ftp-mirror login --local-dir'")

func newMirrorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "mirror",
		Short: "Download the remote tree into the local directory",
		Long: `Recursively download every file below the remote root into the local
directory, creating directories as needed and overwriting existing files.

A file that fails to download is skipped and reported; a directory that
cannot be listed aborts the run. Press Ctrl-C to close the connection and
stop.`,
		RunE: runMirror,
	}

	cmd.Flags().String("host", "", "FTP server host, optionally with :port")
	cmd.Flags().String("user", "", "login name")
	cmd.Flags().String("local-dir", "", "local directory to mirror into")
	cmd.Flags().String("remote-root", "", "remote directory to start from")

	return cmd
}

// mirrorSummary is the JSON schema for `mirror --json`.
type mirrorSummary struct {
	RunID       string `json:"run_id,omitempty"`
	Host        string `json:"host"`
	RemoteRoot  string `json:"remote_root"`
	LocalDir    string `json:"local_dir"`
	Directories int    `json:"directories"`
	Files       int    `json:"files"`
	Failed      int    `json:"failed"`
	Bytes       int64  `json:"bytes"`
	DurationMS  int64  `json:"duration_ms"`
}

func runMirror(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	cfg := cc.mustConfig()
	logger := cc.Logger

	creds, err := credential.Load(credentialPath())
	if err != nil {
		return err
	}

	s, err := resolveServer(cfg, creds)
	if err != nil {
		return err
	}

	if s.LocalDir == "" {
		return errNoLocalDir
	}

	unlock, err := writePIDFile(lockPathFor(config.DefaultDataDir(), s.LocalDir))
	if err != nil {
		return err
	}
	defer unlock()

	ctx, cancel := shutdownContext(cmd.Context(), logger)
	defer cancel()

	obs := observers{newProgressRenderer(os.Stderr, cc.Flags.Quiet)}

	rec, closeHistory := openRecorder(ctx, cfg, s, logger)
	defer closeHistory()

	if rec != nil {
		obs = append(obs, rec)
	}

	var collector *metrics.Collector
	if cfg.State.MetricsFile != "" {
		collector = metrics.New()
		obs = append(obs, collector)
	}

	stats, err := runEngine(ctx, cfg, s, obs, logger)

	if rec != nil && err != nil {
		rec.Abandon(err)
	}

	if collector != nil {
		if werr := collector.WriteTextfile(cfg.State.MetricsFile); werr != nil {
			logger.Warn("metrics textfile not written", slog.String("error", werr.Error()))
		}
	}

	if err != nil {
		return err
	}

	if cc.Flags.JSON {
		summary := mirrorSummary{
			Host:        s.Host,
			RemoteRoot:  s.RemoteRoot,
			LocalDir:    s.LocalDir,
			Directories: stats.DirectoriesListed,
			Files:       stats.FilesDownloaded,
			Failed:      stats.FilesFailed,
			Bytes:       stats.BytesWritten,
			DurationMS:  stats.Duration().Milliseconds(),
		}

		if rec != nil {
			summary.RunID = rec.RunID()
		}

		if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
	}

	if stats.FilesFailed > 0 {
		return fmt.Errorf("%w: %d of %d files failed",
			errIncompleteMirror, stats.FilesFailed, stats.FilesFailed+stats.FilesDownloaded)
	}

	return nil
}

// openRecorder starts a history run. History is best effort: a database
// that cannot be opened is logged and the mirror runs unrecorded.
func openRecorder(ctx context.Context, cfg *config.Resolved, s serverSettings, logger *slog.Logger) (*history.Recorder, func()) {
	store, err := history.Open(ctx, cfg.HistoryPath(), logger)
	if err != nil {
		logger.Warn("run history unavailable", slog.String("error", err.Error()))
		return nil, func() {}
	}

	rec, err := history.NewRecorder(ctx, store, history.RunInfo{
		Host:       s.Host,
		Username:   s.User,
		RemoteRoot: s.RemoteRoot,
		LocalDir:   s.LocalDir,
	}, logger)
	if err != nil {
		logger.Warn("run history unavailable", slog.String("error", err.Error()))
		store.Close()

		return nil, func() {}
	}

	return rec, func() { store.Close() }
}

// runEngine drives one mirror session. The engine runs on its own goroutine
// and hands every notification to a second goroutine, which fans it out to
// obs. Both have finished when runEngine returns.
func runEngine(
	ctx context.Context, cfg *config.Resolved, s serverSettings, obs mirror.Observer, logger *slog.Logger,
) (mirror.Stats, error) {
	transport, err := newTransport(ctx, cfg, s.Port, logger)
	if err != nil {
		return mirror.Stats{}, err
	}

	notes := make(chan mirror.Notification, notificationBuffer)

	engine, err := mirror.NewEngine(transport, &mirror.Config{
		LocalRoot:  s.LocalDir,
		RemoteRoot: s.RemoteRoot,
		FS:         mirror.NewOSFileSystem(cfg.DirMode(), cfg.FileMode()),
		Filter: filter.New(filter.Config{
			SkipFiles:     cfg.Mirror.SkipFiles,
			SkipDirs:      cfg.Mirror.SkipDirs,
			SkipDotfiles:  cfg.Mirror.SkipDotfiles,
			SkipTemporary: cfg.Mirror.SkipTemporary,
		}, logger),
		Observer: mirror.ObserverFunc(func(n mirror.Notification) { notes <- n }),
		Logger:   logger,
	})
	if err != nil {
		transport.Close()
		return mirror.Stats{}, err
	}

	var g errgroup.Group

	g.Go(func() error {
		defer close(notes)
		defer engine.Close()

		if err := engine.Authenticate(s.Host, s.User, s.Password); err != nil {
			return err
		}

		if err := engine.BeginMirror(); err != nil {
			return err
		}

		return engine.Run(ctx)
	})

	g.Go(func() error {
		for n := range notes {
			obs.Notify(n)
		}

		return nil
	})

	err = g.Wait()

	return engine.Stats(), err
}

// observers fans one notification out to several observers in order.
type observers []mirror.Observer

func (o observers) Notify(n mirror.Notification) {
	for _, obs := range o {
		obs.Notify(n)
	}
}

// Progress lines for the in-flight file are printed every tenth of its size,
// or every MiB when the server did not report one.
const (
	progressPercentStep = 10
	progressUnknownStep = 1 << 20
)

// progressRenderer prints each directory once, the file being retrieved and
// its progress, a line per finished file and a closing summary.
type progressRenderer struct {
	w     io.Writer
	quiet bool
	seen  map[string]bool

	// Last progress step printed for the in-flight file.
	step int64
}

func newProgressRenderer(w io.Writer, quiet bool) *progressRenderer {
	return &progressRenderer{w: w, quiet: quiet, seen: make(map[string]bool)}
}

func (p *progressRenderer) Notify(n mirror.Notification) {
	switch n := n.(type) {
	case mirror.AuthenticationResult:
		if n.OK {
			p.printf("Connected to %s as %s.\n", n.Host, n.User)
		}
	case mirror.DirectoryEntered:
		// Directories are listed again on the way back up.
		if !p.seen[n.RemotePath] {
			p.seen[n.RemotePath] = true
			p.printf("%s/\n", displayPath(n.RemotePath))
		}
	case mirror.DownloadStarted:
		p.step = -1
		p.printf("  downloading %s (%s)\n", displayPath(n.RemotePath), formatSize(n.Size))
	case mirror.DownloadProgress:
		p.progress(n)
	case mirror.DownloadFinished:
		p.printf("  %s (%s)\n", displayPath(n.RemotePath), formatSize(n.Bytes))
	case mirror.DownloadFailed:
		// Failures are shown even with --quiet.
		fmt.Fprintf(p.w, "  %s FAILED: %v\n", displayPath(n.RemotePath), n.Err)
	case mirror.MirrorFinished:
		st := n.Stats
		p.printf("Mirrored %d files (%s) from %d directory listings in %s",
			st.FilesDownloaded, formatSize(st.BytesWritten), st.DirectoriesListed, formatDuration(st.Duration()))

		if st.FilesFailed > 0 {
			p.printf("; %d failed", st.FilesFailed)
		}

		p.printf(".\n")
	}
}

func (p *progressRenderer) progress(n mirror.DownloadProgress) {
	if n.Total < 0 {
		if step := n.Done / progressUnknownStep; step > p.step {
			p.step = step
			p.printf("  %s %s received\n", displayPath(n.RemotePath), formatSize(n.Done))
		}

		return
	}

	pct := int64(100)
	if n.Total > 0 {
		pct = min(n.Done*100/n.Total, 100)
	}

	if step := pct / progressPercentStep; step > p.step {
		p.step = step
		p.printf("  %s %d%% (%s of %s)\n", displayPath(n.RemotePath), pct,
			formatSize(n.Done), formatSize(n.Total))
	}
}

func (p *progressRenderer) printf(format string, args ...any) {
	if !p.quiet {
		fmt.Fprintf(p.w, format, args...)
	}
}

// displayPath names the remote root "." rather than an empty string.
func displayPath(p string) string {
	if p == "" {
		return "."
	}

	return p
}
