package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/ftp-mirror/internal/history"
)

const defaultHistoryLimit = 10

// shortIDLen is enough of a UUID to tell runs apart in a table.
const shortIDLen = 8

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recent mirror runs",
		Args:  cobra.NoArgs,
		RunE:  runHistory,
	}

	cmd.Flags().Int("limit", defaultHistoryLimit, "number of runs to show")
	cmd.AddCommand(newHistoryFilesCmd())

	return cmd
}

func newHistoryFilesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "files <run-id>",
		Short: "List the file outcomes of one run",
		Args:  cobra.ExactArgs(1),
		RunE:  runHistoryFiles,
	}
}

// historyRun is the JSON schema for one row of `history --json`.
type historyRun struct {
	ID          string `json:"id"`
	Host        string `json:"host"`
	User        string `json:"user"`
	RemoteRoot  string `json:"remote_root"`
	LocalDir    string `json:"local_dir"`
	StartedAt   string `json:"started_at"`
	FinishedAt  string `json:"finished_at,omitempty"`
	Status      string `json:"status"`
	Directories int    `json:"directories"`
	Files       int    `json:"files"`
	Failures    int    `json:"failures"`
	Bytes       int64  `json:"bytes"`
	Error       string `json:"error,omitempty"`
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())
	cfg := cc.mustConfig()

	limit, err := cmd.Flags().GetInt("limit")
	if err != nil {
		return err
	}

	if limit <= 0 {
		return fmt.Errorf("--limit must be positive, got %d", limit)
	}

	store, err := history.Open(cmd.Context(), cfg.HistoryPath(), cc.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.RecentRuns(cmd.Context(), limit)
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	if cc.Flags.JSON {
		out := make([]historyRun, 0, len(runs))
		for i := range runs {
			out = append(out, toHistoryRun(&runs[i]))
		}

		return printJSON(w, out)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "No mirror runs recorded.")
		return nil
	}

	rows := make([][]string, 0, len(runs))
	for i := range runs {
		r := &runs[i]
		rows = append(rows, []string{
			shortID(r.ID),
			formatTime(r.StartedAt),
			string(r.Status),
			r.Host,
			strconv.Itoa(r.Files),
			strconv.Itoa(r.Failures),
			formatSize(r.Bytes),
			formatDuration(runDuration(r)),
		})
	}

	printTable(w, []string{"RUN", "STARTED", "STATUS", "HOST", "FILES", "FAILED", "SIZE", "DURATION"}, rows)

	return nil
}

func runHistoryFiles(cmd *cobra.Command, args []string) error {
	cc := mustCLIContext(cmd.Context())
	cfg := cc.mustConfig()

	store, err := history.Open(cmd.Context(), cfg.HistoryPath(), cc.Logger)
	if err != nil {
		return err
	}
	defer store.Close()

	files, err := store.RunFiles(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()

	if cc.Flags.JSON {
		if files == nil {
			files = []history.FileRecord{}
		}

		return printJSON(w, files)
	}

	rows := make([][]string, 0, len(files))
	for _, f := range files {
		rows = append(rows, []string{string(f.Status), formatSize(f.Bytes), f.RemotePath, f.Error})
	}

	printTable(w, []string{"STATUS", "SIZE", "PATH", "ERROR"}, rows)

	return nil
}

func toHistoryRun(r *history.Run) historyRun {
	out := historyRun{
		ID:          r.ID,
		Host:        r.Host,
		User:        r.Username,
		RemoteRoot:  r.RemoteRoot,
		LocalDir:    r.LocalDir,
		StartedAt:   r.StartedAt.UTC().Format(timeFormatJSON),
		Status:      string(r.Status),
		Directories: r.Directories,
		Files:       r.Files,
		Failures:    r.Failures,
		Bytes:       r.Bytes,
		Error:       r.Error,
	}

	if !r.FinishedAt.IsZero() {
		out.FinishedAt = r.FinishedAt.UTC().Format(timeFormatJSON)
	}

	return out
}

const timeFormatJSON = "2006-01-02T15:04:05Z"

func runDuration(r *history.Run) time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}

	return r.FinishedAt.Sub(r.StartedAt)
}

func shortID(id string) string {
	if len(id) <= shortIDLen {
		return id
	}

	return id[:shortIDLen]
}
