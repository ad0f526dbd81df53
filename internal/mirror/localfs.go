package mirror

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Default permissions for mirrored directories and files.
const (
	DefaultDirPerms  fs.FileMode = 0o755
	DefaultFilePerms fs.FileMode = 0o644
)

// LocalFS is the local filesystem the mirror writes into.
type LocalFS interface {
	Exists(path string) (bool, error)
	MkdirAll(path string) error
	// WriteFile creates or truncates path and copies r into it.
	WriteFile(path string, r io.Reader) (int64, error)
}

// OSFileSystem implements LocalFS on the host filesystem.
type OSFileSystem struct {
	DirPerms  fs.FileMode
	FilePerms fs.FileMode
}

// NewOSFileSystem returns an OSFileSystem using the given permissions. Zero
// values select the defaults.
func NewOSFileSystem(dirPerms, filePerms fs.FileMode) *OSFileSystem {
	if dirPerms == 0 {
		dirPerms = DefaultDirPerms
	}

	if filePerms == 0 {
		filePerms = DefaultFilePerms
	}

	return &OSFileSystem{DirPerms: dirPerms, FilePerms: filePerms}
}

func (o *OSFileSystem) Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}

	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}

	return false, err
}

func (o *OSFileSystem) MkdirAll(path string) error {
	return os.MkdirAll(path, o.DirPerms)
}

func (o *OSFileSystem) WriteFile(path string, r io.Reader) (int64, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, o.FilePerms)
	if err != nil {
		return 0, err
	}

	n, err := io.Copy(f, r)
	if err != nil {
		f.Close()
		return n, err
	}

	if err := f.Close(); err != nil {
		return n, err
	}

	return n, nil
}

// ensureDir creates path unless it already exists.
func ensureDir(lfs LocalFS, path string) error {
	exists, err := lfs.Exists(path)
	if err != nil {
		return fmt.Errorf("checking %s: %w", path, err)
	}

	if exists {
		return nil
	}

	if err := lfs.MkdirAll(path); err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}

	return nil
}

// localPath maps a remote prefix and entry name onto the local root by plain
// prefix substitution. Segments that would escape the root are rejected.
func localPath(localRoot, prefix, name string) (string, error) {
	rel := prefix + name

	for _, seg := range strings.Split(rel, remoteSeparator) {
		if seg == ".." {
			return "", fmt.Errorf("mirror: remote path %q escapes the local root", rel)
		}
	}

	return filepath.Join(localRoot, filepath.FromSlash(rel)), nil
}

// spool buffers the data of the in-flight retrieve in a temporary file so a
// failed transfer never touches the destination.
type spool struct {
	dir  string
	file *os.File
	size int64
	err  error
}

func (s *spool) write(chunk []byte) {
	if s.err != nil {
		return
	}

	if s.file == nil {
		f, err := os.CreateTemp(s.dir, ".ftp-mirror-*.part")
		if err != nil {
			s.err = fmt.Errorf("creating spool file: %w", err)
			return
		}

		s.file = f
	}

	n, err := s.file.Write(chunk)
	s.size += int64(n)

	if err != nil {
		s.err = fmt.Errorf("writing spool file: %w", err)
	}
}

// reader rewinds the spool for copying into the destination. An empty
// retrieve yields an empty reader.
func (s *spool) reader() (io.Reader, error) {
	if s.err != nil {
		return nil, s.err
	}

	if s.file == nil {
		return strings.NewReader(""), nil
	}

	if _, err := s.file.Seek(0, io.SeekStart); err != nil {
		return nil, fmt.Errorf("rewinding spool file: %w", err)
	}

	return s.file, nil
}

// discard releases the spool file and resets the spool for the next file.
func (s *spool) discard() {
	if s.file != nil {
		name := s.file.Name()
		s.file.Close()
		os.Remove(name)
	}

	s.file = nil
	s.size = 0
	s.err = nil
}
