package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"

	"github.com/google/uuid"
)

const (
	pidFilePermissions = 0o644
	pidDirPermissions  = 0o755
)

// errMirrorRunning is returned when another process holds the lock of the
// same local directory.
var errMirrorRunning = errors.New("another mirror into this directory is already running")

// lockPathFor returns the PID file guarding localDir. The name is derived from
// the cleaned absolute path so every spelling of one directory shares a lock,
// and the file lives outside the mirrored tree.
func lockPathFor(dataDir, localDir string) string {
	abs, err := filepath.Abs(localDir)
	if err != nil {
		abs = filepath.Clean(localDir)
	}

	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte("file://"+abs))

	return filepath.Join(dataDir, "locks", id.String()+".pid")
}

// writePIDFile writes the current process ID to path and holds an exclusive
// flock on it. The returned cleanup removes the file and releases the lock.
func writePIDFile(path string) (cleanup func(), err error) {
	if path == "" {
		return nil, errors.New("PID file path is empty: cannot determine data directory")
	}

	if err := os.MkdirAll(filepath.Dir(path), pidDirPermissions); err != nil {
		return nil, fmt.Errorf("creating PID file directory: %w", err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, pidFilePermissions)
	if err != nil {
		return nil, fmt.Errorf("opening PID file: %w", err)
	}

	if err := syscall.Flock(int(f.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		f.Close()

		if pid, readErr := readPIDFile(path); readErr == nil {
			return nil, fmt.Errorf("%w (PID %d holds %s)", errMirrorRunning, pid, path)
		}

		return nil, fmt.Errorf("%w (could not lock %s)", errMirrorRunning, path)
	}

	if err := f.Truncate(0); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncating PID file: %w", err)
	}

	if _, err := fmt.Fprintf(f, "%d\n", os.Getpid()); err != nil {
		f.Close()
		return nil, fmt.Errorf("writing PID file: %w", err)
	}

	if err := f.Sync(); err != nil {
		f.Close()
		return nil, fmt.Errorf("syncing PID file: %w", err)
	}

	return func() {
		os.Remove(path)
		f.Close()
	}, nil
}

// readPIDFile reads the PID stored at path.
func readPIDFile(path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("reading PID file: %w", err)
	}

	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0, fmt.Errorf("invalid PID in %s: %w", path, err)
	}

	return pid, nil
}
