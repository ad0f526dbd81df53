// Package mirror implements the recursive remote-to-local mirror engine. The
// engine drives an asynchronous Transport one command at a time: every
// command's completion event decides the next command, walking the remote
// tree depth-first with downloads before descents.
//
// An Engine is not safe for concurrent use. Authenticate, BeginMirror and Run
// must be called from the same goroutine, and all traversal state is mutated
// only while Run dispatches the completion of the single in-flight command.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// EntryFilter decides whether a discovered item takes part in the mirror.
// relPath is relative to the remote root and uses forward slashes.
type EntryFilter interface {
	Include(relPath string, isDir bool) bool
}

// Config holds the engine's collaborators and the root mapping.
type Config struct {
	LocalRoot  string
	RemoteRoot string
	FS         LocalFS
	Filter     EntryFilter
	Observer   Observer
	// SpoolDir holds the temporary file of the in-flight download. Empty
	// selects os.TempDir().
	SpoolDir string
	Logger   *slog.Logger
}

// operation is the single awaited command: the expected token and what to do
// with its completion.
type operation struct {
	token Token
	slot  Slot
	entry Entry
}

// Engine is the mirror facade. It owns the transport handle, the command
// correlator and the traversal.
type Engine struct {
	transport Transport
	localRoot string
	fs        LocalFS
	filter    EntryFilter
	observer  Observer
	logger    *slog.Logger
	nowFunc   func() time.Time

	corr     *correlator
	trav     *traversal
	inFlight *operation
	spool    spool

	state           State
	host            string
	user            string
	mirrorRequested bool
	closed          bool
	stats           Stats
	err             error
}

// NewEngine creates an engine bound to transport. The transport must not be
// connected yet.
func NewEngine(transport Transport, cfg *Config) (*Engine, error) {
	if transport == nil {
		return nil, errors.New("mirror: transport is required")
	}

	if cfg.LocalRoot == "" {
		return nil, errors.New("mirror: local root is required")
	}

	lfs := cfg.FS
	if lfs == nil {
		lfs = NewOSFileSystem(0, 0)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	observer := cfg.Observer
	if observer == nil {
		observer = ObserverFunc(func(Notification) {})
	}

	spoolDir := cfg.SpoolDir
	if spoolDir == "" {
		spoolDir = os.TempDir()
	}

	return &Engine{
		transport: transport,
		localRoot: cfg.LocalRoot,
		fs:        lfs,
		filter:    cfg.Filter,
		observer:  observer,
		logger:    logger,
		nowFunc:   time.Now,
		corr:      newCorrelator(),
		trav:      newTraversal(cfg.RemoteRoot),
		spool:     spool{dir: spoolDir},
	}, nil
}

// CurrentHost returns the host passed to Authenticate.
func (e *Engine) CurrentHost() string { return e.host }

// CurrentUser returns the user passed to Authenticate.
func (e *Engine) CurrentUser() string { return e.user }

// State returns the session state.
func (e *Engine) State() State { return e.state }

// Stats returns the counters of the current or last traversal.
func (e *Engine) Stats() Stats { return e.stats }

// Err returns the error that moved the session to StateFailed.
func (e *Engine) Err() error { return e.err }

// Snapshot returns a copy of the traversal state for display.
func (e *Engine) Snapshot() Snapshot { return e.trav.snapshot(e.state) }

// Authenticate connects to host and logs in. The outcome is reported by an
// AuthenticationResult notification while Run dispatches events. A session
// authenticates once; there is no retry.
func (e *Engine) Authenticate(host, user, password string) error {
	if e.state != StateUnauthenticated {
		return fmt.Errorf("%w: state %s", ErrSessionActive, e.state)
	}

	e.host = host
	e.user = user

	err := e.issue(SlotAuth, Entry{}, func() Token {
		e.transport.Connect(host)
		return e.transport.Authenticate(user, password)
	})
	if err != nil {
		return err
	}

	e.state = StateAuthenticating
	e.logger.Info("authenticating",
		slog.String("host", host),
		slog.String("user", user),
	)

	return nil
}

// BeginMirror starts the recursive download. Called while authentication is
// still in flight, the mirror starts as soon as login succeeds. It is a no-op
// while a mirror is already running.
func (e *Engine) BeginMirror() error {
	switch {
	case e.state.mirroring():
		return nil
	case e.state == StateAuthenticating:
		e.mirrorRequested = true
		return nil
	case e.state == StateAuthenticated:
		return e.startMirror()
	case e.state.terminal():
		return fmt.Errorf("%w: state %s", ErrSessionClosed, e.state)
	default:
		return ErrNotAuthenticated
	}
}

// Run dispatches transport events until no command is in flight: after
// login when no mirror was requested, or when the traversal finishes or
// fails. Canceling ctx closes the transport, which is the only way to abort
// a running mirror. Run returns the error that failed the session, if any.
func (e *Engine) Run(ctx context.Context) error {
	events := e.transport.Events()

	for e.inFlight != nil {
		select {
		case <-ctx.Done():
			e.fail(fmt.Errorf("mirror: aborted: %w", ctx.Err()))
			return e.err
		case ev, ok := <-events:
			if !ok {
				e.fail(ErrTransportClosed)
				break
			}

			e.dispatch(ev)
		}
	}

	return e.err
}

// Close releases the transport. It is safe to call more than once.
func (e *Engine) Close() error {
	return e.closeTransport()
}

func (e *Engine) startMirror() error {
	e.mirrorRequested = false
	e.trav.reset()
	e.stats = Stats{Started: e.nowFunc()}

	e.logger.Info("mirror started",
		slog.String("remote_root", e.trav.current.Path),
		slog.String("local_root", e.localRoot),
	)

	return e.list(e.trav.current)
}

// issue sends one command through send and records it as the in-flight
// operation. The single-in-flight check runs before anything reaches the
// transport.
func (e *Engine) issue(slot Slot, entry Entry, send func() Token) error {
	if e.inFlight != nil {
		return fmt.Errorf("%w: %s awaiting token %d", ErrOperationInFlight, e.inFlight.slot, e.inFlight.token)
	}

	token := send()
	if err := e.corr.track(token, slot); err != nil {
		return err
	}

	e.inFlight = &operation{token: token, slot: slot, entry: entry}

	return nil
}

func (e *Engine) list(dir Entry) error {
	err := e.issue(SlotList, dir, func() Token {
		return e.transport.List(dir.Path)
	})
	if err != nil {
		return err
	}

	e.state = StateListing
	e.logger.Debug("listing directory",
		slog.String("path", dir.Path),
		slog.Int("depth", e.trav.depth),
	)
	e.observer.Notify(DirectoryEntered{RemotePath: dir.Path, Depth: e.trav.depth})

	return nil
}

func (e *Engine) retrieve(file Entry) error {
	err := e.issue(SlotGet, file, func() Token {
		return e.transport.Retrieve(file.Path)
	})
	if err != nil {
		return err
	}

	e.state = StateDownloading
	e.logger.Debug("retrieving file", slog.String("path", file.Path))
	e.observer.Notify(DownloadStarted{RemotePath: file.Path, Size: file.Size})

	return nil
}

// awaiting reports whether token is the in-flight command of the given slot.
func (e *Engine) awaiting(token Token, slot Slot) bool {
	s, ok := e.corr.owns(token)
	return ok && s == slot
}

func (e *Engine) dispatch(ev Event) {
	switch ev := ev.(type) {
	case EntryDiscovered:
		if e.awaiting(ev.Token, SlotList) {
			e.onDiscovered(ev)
		}
	case DataReceived:
		if e.awaiting(ev.Token, SlotGet) {
			e.spool.write(ev.Chunk)
		}
	case Progress:
		if e.awaiting(ev.Token, SlotGet) {
			e.observer.Notify(DownloadProgress{
				RemotePath: e.inFlight.entry.Path,
				Done:       ev.Done,
				Total:      ev.Total,
			})
		}
	case Finished:
		e.onFinished(ev)
	default:
		e.logger.Warn("ignoring unknown transport event", slog.String("type", fmt.Sprintf("%T", ev)))
	}
}

func (e *Engine) onFinished(ev Finished) {
	slot, ok := e.corr.resolve(ev.Token)
	if !ok {
		e.logger.Debug("ignoring completion for unknown token", slog.Uint64("token", uint64(ev.Token)))
		return
	}

	op := e.inFlight
	e.inFlight = nil

	switch slot {
	case SlotAuth:
		e.onAuthenticated(ev.Err)
	case SlotList:
		e.onListed(op.entry, ev.Err)
	case SlotGet:
		e.onRetrieved(op.entry, ev.Err)
	}
}

func (e *Engine) onAuthenticated(err error) {
	if err != nil {
		authErr := classifyAuthFailure(e.host, err)
		e.logger.Warn("authentication failed",
			slog.String("host", e.host),
			slog.String("reason", string(authErr.Reason)),
			slog.String("error", err.Error()),
		)
		e.terminate(authErr)
		e.observer.Notify(AuthenticationResult{
			Host:   e.host,
			User:   e.user,
			Reason: authErr.Reason,
			Err:    authErr,
		})

		return
	}

	e.state = StateAuthenticated
	e.logger.Info("authenticated", slog.String("host", e.host), slog.String("user", e.user))
	e.observer.Notify(AuthenticationResult{Host: e.host, User: e.user, OK: true})

	if e.mirrorRequested {
		if err := e.startMirror(); err != nil {
			e.fail(err)
		}
	}
}

// onDiscovered admits one listed item. Self and parent links, nested names
// and filtered items never reach the listed queue.
func (e *Engine) onDiscovered(ev EntryDiscovered) {
	if ev.Name == "" || ev.Name == "." || ev.Name == ".." || strings.Contains(ev.Name, remoteSeparator) {
		return
	}

	if ev.Kind != KindFile && ev.Kind != KindDirectory {
		return
	}

	rel := e.trav.prefix + ev.Name
	if e.filter != nil && !e.filter.Include(rel, ev.Kind == KindDirectory) {
		e.logger.Debug("entry filtered", slog.String("path", rel))
		return
	}

	e.trav.discover(e.trav.childEntry(ev.Name, ev.Kind, ev.Size))
}

// onListed processes the end of a listing. A failed listing aborts the
// session: the directory's contents are unknown and skipping it would
// silently produce an incomplete mirror.
func (e *Engine) onListed(dir Entry, err error) {
	if err != nil {
		e.fail(&ListError{Path: dir.Path, Err: err})
		return
	}

	dst, err := localPath(e.localRoot, e.trav.prefix, "")
	if err == nil {
		err = ensureDir(e.fs, dst)
	}

	if err != nil {
		e.fail(fmt.Errorf("%w: %w", ErrLocalDir, err))
		return
	}

	e.stats.DirectoriesListed++
	e.trav.listCompleted()
	e.logger.Debug("listing complete",
		slog.String("path", dir.Path),
		slog.Int("entries", len(e.trav.listed)),
		slog.Int("pending", len(e.trav.pending)),
	)

	e.step()
}

// onRetrieved processes the end of a download. The entry is completed
// whatever happened; transport and local write failures both skip the file
// and let the traversal continue.
func (e *Engine) onRetrieved(file Entry, err error) {
	if qerr := e.trav.downloadCompleted(file); qerr != nil {
		e.spool.discard()
		e.fail(qerr)

		return
	}

	if err == nil {
		var n int64
		var dst string

		dst, n, err = e.writeLocal(file)
		if err == nil {
			e.stats.FilesDownloaded++
			e.stats.BytesWritten += n
			e.logger.Info("downloaded", slog.String("path", file.Path), slog.Int64("bytes", n))
			e.observer.Notify(DownloadFinished{RemotePath: file.Path, LocalPath: dst, Bytes: n})
		}
	}

	e.spool.discard()

	if err != nil {
		e.stats.FilesFailed++
		e.logger.Warn("download failed",
			slog.String("path", file.Path),
			slog.String("error", err.Error()),
		)
		e.observer.Notify(DownloadFailed{RemotePath: file.Path, Err: err})
	}

	e.step()
}

// writeLocal copies the spooled data into the local file, truncating any
// previous content.
func (e *Engine) writeLocal(file Entry) (string, int64, error) {
	dst, err := localPath(e.localRoot, e.trav.prefix, file.Name)
	if err != nil {
		return "", 0, err
	}

	if err := ensureDir(e.fs, filepath.Dir(dst)); err != nil {
		return dst, 0, err
	}

	r, err := e.spool.reader()
	if err != nil {
		return dst, 0, err
	}

	n, err := e.fs.WriteFile(dst, r)
	if err != nil {
		return dst, n, fmt.Errorf("writing %s: %w", dst, err)
	}

	return dst, n, nil
}

// step runs the decision step and issues the command it selects.
func (e *Engine) step() {
	act := e.trav.next()

	var err error

	switch act.kind {
	case actionRetrieve:
		err = e.retrieve(act.entry)
	case actionList:
		if act.backtracked {
			e.logger.Debug("backtracking", slog.String("path", act.entry.Path), slog.Int("depth", e.trav.depth))
		}

		err = e.list(act.entry)
	case actionFinish:
		e.finish()
	}

	if err != nil {
		e.fail(err)
	}
}

func (e *Engine) finish() {
	e.state = StateFinished
	e.stats.Ended = e.nowFunc()
	e.closeTransport()

	e.logger.Info("mirror finished",
		slog.Int("directories", e.stats.DirectoriesListed),
		slog.Int("files", e.stats.FilesDownloaded),
		slog.Int("failed", e.stats.FilesFailed),
		slog.Int64("bytes", e.stats.BytesWritten),
	)
	e.observer.Notify(MirrorFinished{Stats: e.stats})
}

// fail ends a running session with err and reports MirrorFailed.
func (e *Engine) fail(err error) {
	if e.state.terminal() {
		return
	}

	e.terminate(err)

	if !e.stats.Started.IsZero() {
		e.stats.Ended = e.nowFunc()
	}

	e.logger.Error("mirror failed", slog.String("error", err.Error()))
	e.observer.Notify(MirrorFailed{Err: err, Stats: e.stats})
}

// terminate moves the session to StateFailed and closes the transport.
func (e *Engine) terminate(err error) {
	e.state = StateFailed
	e.err = err
	e.inFlight = nil
	e.corr.reset()
	e.spool.discard()
	e.closeTransport()
}

func (e *Engine) closeTransport() error {
	if e.closed {
		return nil
	}

	e.closed = true

	if err := e.transport.Close(); err != nil {
		e.logger.Warn("closing transport", slog.String("error", err.Error()))
		return fmt.Errorf("mirror: closing transport: %w", err)
	}

	return nil
}
