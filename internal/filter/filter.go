// Package filter decides which remote items take part in a mirror. It
// implements the engine's EntryFilter with config-driven rules: temporary
// editor files, dotfiles, and gitignore-style skip patterns.
package filter

import (
	"log/slog"
	"path"
	"strings"

	ignore "github.com/sabhiram/go-gitignore"
)

// Config selects the active rules.
type Config struct {
	SkipFiles     []string
	SkipDirs      []string
	SkipDotfiles  bool
	SkipTemporary bool
}

// Filter evaluates rules against paths relative to the remote root. The zero
// value includes everything.
type Filter struct {
	cfg    Config
	files  *ignore.GitIgnore
	dirs   *ignore.GitIgnore
	logger *slog.Logger
}

// New compiles the skip patterns. Patterns follow .gitignore syntax; a
// pattern without a slash matches at any depth.
func New(cfg Config, logger *slog.Logger) *Filter {
	f := &Filter{cfg: cfg, logger: logger}

	if len(cfg.SkipFiles) > 0 {
		f.files = ignore.CompileIgnoreLines(cfg.SkipFiles...)
	}

	if len(cfg.SkipDirs) > 0 {
		f.dirs = ignore.CompileIgnoreLines(cfg.SkipDirs...)
	}

	logger.Debug("filter initialized",
		slog.Any("skip_files", cfg.SkipFiles),
		slog.Any("skip_dirs", cfg.SkipDirs),
		slog.Bool("skip_dotfiles", cfg.SkipDotfiles),
		slog.Bool("skip_temporary", cfg.SkipTemporary),
	)

	return f
}

// Include reports whether relPath (forward slashes, no leading slash) should
// be mirrored.
func (f *Filter) Include(relPath string, isDir bool) bool {
	name := path.Base(relPath)

	if reason := f.exclusion(relPath, name, isDir); reason != "" {
		if f.logger != nil {
			f.logger.Debug("excluded", slog.String("path", relPath), slog.String("reason", reason))
		}

		return false
	}

	return true
}

func (f *Filter) exclusion(relPath, name string, isDir bool) string {
	if f.cfg.SkipDotfiles && strings.HasPrefix(name, ".") {
		return "dotfile"
	}

	if isDir {
		if f.dirs != nil && f.dirs.MatchesPath(relPath+"/") {
			return "skip_dirs"
		}

		return ""
	}

	if f.cfg.SkipTemporary && IsTemporary(name) {
		return "temporary file"
	}

	if f.files != nil && f.files.MatchesPath(relPath) {
		return "skip_files"
	}

	return ""
}

// IsTemporary reports whether name looks like an editor lock or scratch file:
// "~$doc.docx", ".~lock.odt#" or "~draft.tmp".
func IsTemporary(name string) bool {
	return strings.HasPrefix(name, "~$") ||
		strings.HasPrefix(name, ".~") ||
		(strings.HasPrefix(name, "~") && strings.HasSuffix(name, ".tmp"))
}
