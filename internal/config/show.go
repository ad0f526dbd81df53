package config

import (
	"fmt"
	"io"
	"strings"
)

// RenderEffective writes the resolved configuration as an annotated TOML-like
// summary. It powers "config show".
func RenderEffective(r *Resolved, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration (file: %s)\n\n", r.ConfigPath)

	ew.printf("[server]\n")
	ew.printf("  host        = %q\n", r.Server.Host)
	ew.printf("  port        = %d\n", r.Server.Port)
	ew.printf("  username    = %q\n", r.Server.Username)
	ew.printf("  remote_root = %q\n\n", r.Server.RemoteRoot)

	ew.printf("[mirror]\n")
	ew.printf("  local_dir        = %q\n", r.Mirror.LocalDir)
	ew.printf("  dir_permissions  = %q\n", r.Mirror.DirPermissions)
	ew.printf("  file_permissions = %q\n", r.Mirror.FilePermissions)
	ew.printf("  skip_files       = [%s]\n", joinQuoted(r.Mirror.SkipFiles))
	ew.printf("  skip_dirs        = [%s]\n", joinQuoted(r.Mirror.SkipDirs))
	ew.printf("  skip_dotfiles    = %t\n", r.Mirror.SkipDotfiles)
	ew.printf("  skip_temporary   = %t\n", r.Mirror.SkipTemporary)
	ew.printf("  bandwidth_limit  = %q\n\n", r.Mirror.BandwidthLimit)

	ew.printf("[network]\n")
	ew.printf("  connect_timeout = %q\n", r.Network.ConnectTimeout)
	ew.printf("  disable_epsv    = %t\n\n", r.Network.DisableEPSV)

	ew.printf("[logging]\n")
	ew.printf("  log_level  = %q\n", r.Logging.LogLevel)
	ew.printf("  log_file   = %q\n", r.Logging.LogFile)
	ew.printf("  log_format = %q\n\n", r.Logging.LogFormat)

	ew.printf("[state]\n")
	ew.printf("  history_db   = %q\n", r.HistoryPath())
	ew.printf("  metrics_file = %q\n", r.State.MetricsFile)

	return ew.err
}

// errWriter captures the first write error so callers can chain printf
// calls without checking each one.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}

func joinQuoted(items []string) string {
	quoted := make([]string, len(items))
	for i, s := range items {
		quoted[i] = fmt.Sprintf("%q", s)
	}

	return strings.Join(quoted, ", ")
}
