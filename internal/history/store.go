// Package history records mirror runs and per-file outcomes in a SQLite
// database so past runs can be listed with "ftp-mirror history".
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // register the pure-Go sqlite driver

	"github.com/tonimelisma/ftp-mirror/internal/mirror"
)

// Status is the outcome of a run or a single file.
type Status string

const (
	StatusRunning  Status = "running"
	StatusFinished Status = "finished"
	StatusFailed   Status = "failed"
)

const dirPerms = 0o700

// ErrRunNotFound is returned when a run ID does not exist.
var ErrRunNotFound = errors.New("history: run not found")

const (
	sqlInsertRun = `INSERT INTO runs (id, host, username, remote_root, local_dir, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?)`

	sqlFinishRun = `UPDATE runs SET finished_at = ?, status = ?, directories = ?, files = ?,
		failures = ?, bytes = ?, error = ? WHERE id = ?`

	sqlUpsertFile = `INSERT INTO run_files (run_id, remote_path, local_path, status, bytes, error, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, remote_path) DO UPDATE SET
		 local_path = excluded.local_path,
		 status = excluded.status,
		 bytes = excluded.bytes,
		 error = excluded.error,
		 recorded_at = excluded.recorded_at`

	sqlRecentRuns = `SELECT id, host, username, remote_root, local_dir, started_at, finished_at,
		status, directories, files, failures, bytes, error
		FROM runs ORDER BY started_at DESC, id LIMIT ?`

	sqlRunFiles = `SELECT remote_path, local_path, status, bytes, error
		FROM run_files WHERE run_id = ? ORDER BY recorded_at, remote_path`
)

// RunInfo describes a run as it starts.
type RunInfo struct {
	Host       string
	Username   string
	RemoteRoot string
	LocalDir   string
}

// Run is a stored run row.
type Run struct {
	RunInfo
	ID          string
	StartedAt   time.Time
	FinishedAt  time.Time // zero while running
	Status      Status
	Directories int
	Files       int
	Failures    int
	Bytes       int64
	Error       string
}

// FileRecord is the outcome of one file within a run.
type FileRecord struct {
	RemotePath string `json:"remote_path"`
	LocalPath  string `json:"local_path,omitempty"`
	Status     Status `json:"status"`
	Bytes      int64  `json:"bytes"`
	Error      string `json:"error,omitempty"`
}

// Store is the sole writer to the history database.
type Store struct {
	db      *sql.DB
	logger  *slog.Logger
	nowFunc func() time.Time
}

// Open opens (creating if needed) the database at dbPath and applies
// migrations.
func Open(ctx context.Context, dbPath string, logger *slog.Logger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), dirPerms); err != nil {
		return nil, fmt.Errorf("history: creating directory for %s: %w", dbPath, err)
	}

	// DSN parameters ensure pragmas apply to every connection from the pool.
	dsn := fmt.Sprintf(
		"file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)",
		dbPath,
	)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: opening database %s: %w", dbPath, err)
	}

	db.SetMaxOpenConns(1)

	if err := runMigrations(ctx, db, logger); err != nil {
		db.Close()
		return nil, err
	}

	logger.Debug("history store opened", slog.String("db_path", dbPath))

	return &Store{db: db, logger: logger, nowFunc: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// StartRun inserts a running row and returns its ID.
func (s *Store) StartRun(ctx context.Context, info RunInfo) (string, error) {
	id := uuid.New().String()

	_, err := s.db.ExecContext(ctx, sqlInsertRun,
		id, info.Host, info.Username, info.RemoteRoot, info.LocalDir,
		s.nowFunc().UnixNano(), string(StatusRunning))
	if err != nil {
		return "", fmt.Errorf("history: starting run: %w", err)
	}

	return id, nil
}

// RecordFile stores the outcome of one file. Recording the same remote path
// twice in a run keeps the latest outcome.
func (s *Store) RecordFile(ctx context.Context, runID string, rec FileRecord) error {
	_, err := s.db.ExecContext(ctx, sqlUpsertFile,
		runID, rec.RemotePath, nullString(rec.LocalPath), string(rec.Status), rec.Bytes,
		nullString(rec.Error), s.nowFunc().UnixNano())
	if err != nil {
		return fmt.Errorf("history: recording %s: %w", rec.RemotePath, err)
	}

	return nil
}

// FinishRun stores the final status and counters of a run.
func (s *Store) FinishRun(ctx context.Context, runID string, status Status, stats mirror.Stats, runErr error) error {
	var errText string
	if runErr != nil {
		errText = runErr.Error()
	}

	res, err := s.db.ExecContext(ctx, sqlFinishRun,
		s.nowFunc().UnixNano(), string(status), stats.DirectoriesListed, stats.FilesDownloaded,
		stats.FilesFailed, stats.BytesWritten, nullString(errText), runID)
	if err != nil {
		return fmt.Errorf("history: finishing run %s: %w", runID, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("history: finishing run %s: %w", runID, err)
	}

	if n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	return nil
}

// RecentRuns returns up to limit runs, newest first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, sqlRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("history: listing runs: %w", err)
	}
	defer rows.Close()

	var runs []Run

	for rows.Next() {
		var (
			r        Run
			started  int64
			finished sql.NullInt64
			status   string
			errText  sql.NullString
		)

		if err := rows.Scan(&r.ID, &r.Host, &r.Username, &r.RemoteRoot, &r.LocalDir,
			&started, &finished, &status, &r.Directories, &r.Files, &r.Failures, &r.Bytes, &errText); err != nil {
			return nil, fmt.Errorf("history: scanning run: %w", err)
		}

		r.StartedAt = time.Unix(0, started)
		if finished.Valid {
			r.FinishedAt = time.Unix(0, finished.Int64)
		}

		r.Status = Status(status)
		r.Error = errText.String
		runs = append(runs, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating runs: %w", err)
	}

	return runs, nil
}

// RunFiles returns the file outcomes of a run in recording order.
func (s *Store) RunFiles(ctx context.Context, runID string) ([]FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, sqlRunFiles, runID)
	if err != nil {
		return nil, fmt.Errorf("history: listing files of %s: %w", runID, err)
	}
	defer rows.Close()

	var out []FileRecord

	for rows.Next() {
		var (
			rec       FileRecord
			localPath sql.NullString
			status    string
			errText   sql.NullString
		)

		if err := rows.Scan(&rec.RemotePath, &localPath, &status, &rec.Bytes, &errText); err != nil {
			return nil, fmt.Errorf("history: scanning file: %w", err)
		}

		rec.LocalPath = localPath.String
		rec.Status = Status(status)
		rec.Error = errText.String
		out = append(out, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: iterating files: %w", err)
	}

	return out, nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
