package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
)

// maxLevenshteinDistance is the maximum edit distance for "did you mean?"
// suggestions when unknown config keys are detected.
const maxLevenshteinDistance = 3

// knownSectionKeys lists the valid keys of every config section.
var knownSectionKeys = map[string][]string{
	"server":  {"host", "port", "username", "remote_root"},
	"mirror":  {"local_dir", "dir_permissions", "file_permissions", "skip_files", "skip_dirs", "skip_dotfiles", "skip_temporary", "bandwidth_limit"},
	"network": {"connect_timeout", "disable_epsv"},
	"logging": {"log_level", "log_file", "log_format"},
	"state":   {"history_db", "metrics_file"},
}

// knownSectionsList is the sorted list of section names. Sorted for
// deterministic suggestions when two candidates have the same edit distance.
var knownSectionsList = func() []string {
	keys := make([]string, 0, len(knownSectionKeys))
	for k := range knownSectionKeys {
		keys = append(keys, k)
	}

	sort.Strings(keys)

	return keys
}()

// checkUnknownKeys inspects TOML metadata for undecoded keys and returns
// an error with "did you mean?" suggestions for each unknown key.
func checkUnknownKeys(md *toml.MetaData) error {
	var errs []error

	for _, key := range md.Undecoded() {
		if err := buildUnknownKeyError(key); err != nil {
			errs = append(errs, err)
		}
	}

	return errors.Join(errs...)
}

// buildUnknownKeyError describes one undecoded key. A key inside a known
// section is matched against that section's keys; a top-level key against
// the section names. Children of an unknown section return nil because the
// section itself is reported.
func buildUnknownKeyError(key toml.Key) error {
	if len(key) == 0 {
		return nil
	}

	if len(key) >= 2 {
		known, ok := knownSectionKeys[key[0]]
		if !ok {
			return nil
		}

		field := key[1]

		if suggestion := closestMatch(field, known); suggestion != "" {
			return fmt.Errorf("unknown config key %q in [%s]: did you mean %q?", field, key[0], suggestion)
		}

		return fmt.Errorf("unknown config key %q in [%s]", field, key[0])
	}

	name := key[0]

	if suggestion := closestMatch(name, knownSectionsList); suggestion != "" {
		return fmt.Errorf("unknown config key %q: did you mean [%s]?", name, suggestion)
	}

	return fmt.Errorf("unknown config key %q (settings belong in [%s])", name, strings.Join(knownSectionsList, "], ["))
}

// closestMatch finds the closest known key by Levenshtein distance.
// Returns empty string if no match is within maxLevenshteinDistance.
func closestMatch(unknown string, known []string) string {
	best := ""
	bestDist := maxLevenshteinDistance + 1

	for _, k := range known {
		d := levenshtein(unknown, k)
		if d < bestDist {
			bestDist = d
			best = k
		}
	}

	if bestDist <= maxLevenshteinDistance {
		return best
	}

	return ""
}

// levenshtein computes the edit distance between two strings using a single
// pair of rows.
func levenshtein(a, b string) int {
	if a == "" {
		return len(b)
	}

	if b == "" {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)

	for j := range prev {
		prev[j] = j
	}

	for i := range len(a) {
		curr[0] = i + 1

		for j := range len(b) {
			cost := 1
			if a[i] == b[j] {
				cost = 0
			}

			curr[j+1] = min(curr[j]+1, prev[j+1]+1, prev[j]+cost)
		}

		prev, curr = curr, prev
	}

	return prev[len(b)]
}
