package output

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/bicmine/internal/models"
)

func sampleSummary() Summary {
	return Summary{
		RunID:     "run-1",
		Input:     "commits.json",
		Output:    "fixes.csv",
		StartedAt: time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC),
		Duration:  1500 * time.Millisecond,
		Commits:   4,
		Counters: models.Counters{
			Records:         4,
			NoFixesDeclared: 2,
			Declared:        2,
			NoCandidate:     2,
			Resolved:        2,
		},
	}
}

func TestSummaryWriteText(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, sampleSummary().WriteText(&buf))

	out := buf.String()
	assert.Contains(t, out, "** All commits read, fixes found")
	assert.Contains(t, out, "** All commits annotated with fixes information")
	assert.Contains(t, out, "** 4 commits in 1.5s")

	for _, line := range strings.Split(out, "\n") {
		if strings.Contains(line, "Fixes fully resolved") {
			assert.True(t, strings.HasSuffix(strings.TrimSpace(line), "2"), line)
		}
	}
}

func TestSummaryYAMLRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.yaml")
	s := sampleSummary()
	require.NoError(t, s.WriteYAML(path))

	got, err := ReadSummary(path)
	require.NoError(t, err)
	assert.Equal(t, s.RunID, got.RunID)
	assert.Equal(t, s.Counters, got.Counters)
	assert.Equal(t, s.Duration, got.Duration)
	assert.True(t, s.StartedAt.Equal(got.StartedAt))
}

func TestLogProgress(t *testing.T) {
	logger, hook := test.NewNullLogger()
	p := NewLogProgress(logger)

	p.Loading(10)
	p.Annotating(5, 10)
	p.Annotating(0, 0)
	p.Stop()

	require.Len(t, hook.AllEntries(), 3)
	assert.Equal(t, 10, hook.AllEntries()[0].Data["records"])
	assert.Equal(t, "50.0", hook.AllEntries()[1].Data["percent"])
	assert.Equal(t, "100.0", hook.LastEntry().Data["percent"])
	assert.Equal(t, logrus.InfoLevel, hook.LastEntry().Level)
}
