package output

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseVerbosity(t *testing.T) {
	tests := []struct {
		name     string
		expected VerbosityLevel
		wantErr  bool
	}{
		{name: "", expected: VerbosityStandard},
		{name: "quiet", expected: VerbosityQuiet},
		{name: "standard", expected: VerbosityStandard},
		{name: "json", expected: VerbosityJSON},
		{name: "loud", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, err := ParseVerbosity(tt.name)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, level)
		})
	}
}

func TestQuietFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(VerbosityQuiet).Format(sampleSummary(), &buf))
	assert.Equal(t, "4 commits, 2 fixes resolved, 0 without path -> fixes.csv\n", buf.String())
}

func TestStandardFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(VerbosityStandard).Format(sampleSummary(), &buf))
	assert.Contains(t, buf.String(), "** All commits annotated with fixes information")
}

func TestJSONFormatter(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewFormatter(VerbosityJSON).Format(sampleSummary(), &buf))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Equal(t, "run-1", decoded["run_id"])
	assert.Equal(t, float64(1500), decoded["duration_ms"])

	counters, ok := decoded["counters"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(2), counters["resolved"])
}
