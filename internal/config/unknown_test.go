package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_UnknownKey_InSection(t *testing.T) {
	path := writeTestConfig(t, "[server]\nhostt = \"x\"\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.Contains(t, err.Error(), `did you mean "host"`)
}

func TestLoad_UnknownKey_TypoInMirror(t *testing.T) {
	path := writeTestConfig(t, "[mirror]\nskip_file = [\"*.tmp\"]\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "skip_files")
}

func TestLoad_UnknownKey_NoSuggestion(t *testing.T) {
	path := writeTestConfig(t, "[mirror]\ncompletely_unrelated_key = true\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown config key")
	assert.NotContains(t, err.Error(), "did you mean")
}

func TestLoad_UnknownSection(t *testing.T) {
	path := writeTestConfig(t, "[servr]\nhost = \"x\"\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did you mean [server]")
}

func TestLoad_UnknownTopLevelKey(t *testing.T) {
	path := writeTestConfig(t, "host = \"x\"\n")

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `unknown config key "host"`)
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"abc", "", 3},
		{"", "abc", 3},
		{"host", "host", 0},
		{"hostt", "host", 1},
		{"kitten", "sitting", 3},
	}

	for _, tt := range tests {
		t.Run(tt.a+"_"+tt.b, func(t *testing.T) {
			assert.Equal(t, tt.want, levenshtein(tt.a, tt.b))
		})
	}
}

func TestClosestMatch(t *testing.T) {
	assert.Equal(t, "log_level", closestMatch("log_levl", knownSectionKeys["logging"]))
	assert.Empty(t, closestMatch("zzzzzzzzzz", knownSectionKeys["logging"]))
}
