package history

import (
	"context"
	"log/slog"

	"github.com/tonimelisma/ftp-mirror/internal/mirror"
)

// Recorder writes engine notifications for one run into the store. Database
// errors are logged and kept; they never interrupt the mirror.
type Recorder struct {
	store  *Store
	runID  string
	logger *slog.Logger
	done   bool
	err    error
}

// NewRecorder starts a run and returns a recorder for it.
func NewRecorder(ctx context.Context, store *Store, info RunInfo, logger *slog.Logger) (*Recorder, error) {
	id, err := store.StartRun(ctx, info)
	if err != nil {
		return nil, err
	}

	return &Recorder{store: store, runID: id, logger: logger}, nil
}

// RunID returns the ID of the recorded run.
func (r *Recorder) RunID() string { return r.runID }

// Err returns the first database error, if any.
func (r *Recorder) Err() error { return r.err }

// Notify implements mirror.Observer.
func (r *Recorder) Notify(n mirror.Notification) {
	ctx := context.Background()

	switch n := n.(type) {
	case mirror.DownloadFinished:
		r.keep(r.store.RecordFile(ctx, r.runID, FileRecord{
			RemotePath: n.RemotePath,
			LocalPath:  n.LocalPath,
			Status:     StatusFinished,
			Bytes:      n.Bytes,
		}))
	case mirror.DownloadFailed:
		r.keep(r.store.RecordFile(ctx, r.runID, FileRecord{
			RemotePath: n.RemotePath,
			Status:     StatusFailed,
			Error:      n.Err.Error(),
		}))
	case mirror.AuthenticationResult:
		if !n.OK {
			r.finish(ctx, StatusFailed, mirror.Stats{}, n.Err)
		}
	case mirror.MirrorFinished:
		r.finish(ctx, StatusFinished, n.Stats, nil)
	case mirror.MirrorFailed:
		r.finish(ctx, StatusFailed, n.Stats, n.Err)
	}
}

// Abandon marks a run that ended without a terminal notification, such as
// a login-only session, as failed with err.
func (r *Recorder) Abandon(err error) {
	r.finish(context.Background(), StatusFailed, mirror.Stats{}, err)
}

func (r *Recorder) finish(ctx context.Context, status Status, stats mirror.Stats, runErr error) {
	if r.done {
		return
	}

	r.done = true
	r.keep(r.store.FinishRun(ctx, r.runID, status, stats, runErr))
}

func (r *Recorder) keep(err error) {
	if err == nil {
		return
	}

	r.logger.Warn("history write failed", slog.String("run_id", r.runID), slog.String("error", err.Error()))

	if r.err == nil {
		r.err = err
	}
}
