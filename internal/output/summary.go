package output

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rohankatakam/bicmine/internal/errors"
	"github.com/rohankatakam/bicmine/internal/models"
)

// Summary describes a finished run
type Summary struct {
	RunID     string          `json:"run_id" yaml:"run_id"`
	Input     string          `json:"input" yaml:"input"`
	Output    string          `json:"output" yaml:"output"`
	StartedAt time.Time       `json:"started_at" yaml:"started_at"`
	Duration  time.Duration   `json:"-" yaml:"duration"`
	Commits   int             `json:"commits" yaml:"commits"`
	Counters  models.Counters `json:"counters" yaml:"counters"`
}

// WriteText prints the run counters grouped by phase
func (s Summary) WriteText(w io.Writer) error {
	c := s.Counters
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)

	fmt.Fprintln(tw, "** All commits read, fixes found")
	fmt.Fprintf(tw, "   Records read:\t%d\n", c.Records)
	fmt.Fprintf(tw, "   Malformed records skipped:\t%d\n", c.Malformed)
	fmt.Fprintf(tw, "   Duplicate commits:\t%d\n", c.Duplicates)
	fmt.Fprintf(tw, "   Commits with no message:\t%d\n", c.NoMessage)
	fmt.Fprintf(tw, "   Commits with no 'Fixes' string:\t%d\n", c.NoFixesDeclared)
	fmt.Fprintf(tw, "   Commits with well-formed fixes lines:\t%d\n", c.Declared)
	fmt.Fprintf(tw, "   Other cases:\t%d\n", c.Unparsed)
	fmt.Fprintf(tw, "   Commits with short (<%d) hash:\t%d\n", models.CanonicalLength, c.ShortHashes)
	fmt.Fprintf(tw, "   Commits with no new line in message:\t%d\n", c.NoNewline)
	fmt.Fprintf(tw, "   Fixes lines with short (<%d) hash:\t%d\n", models.CanonicalLength, c.ShortFixes)

	fmt.Fprintln(tw, "** All commits annotated with fixes information")
	fmt.Fprintf(tw, "   Commits with no fixes line:\t%d\n", c.NoCandidate)
	fmt.Fprintf(tw, "   Fixes hashes too short:\t%d\n", c.TooShort)
	fmt.Fprintf(tw, "   Fixes hashes not found in previous commits:\t%d\n", c.NotFound)
	fmt.Fprintf(tw, "   Fixes hashes to which no path was found:\t%d\n", c.NoPath)
	fmt.Fprintf(tw, "   Searches stopped by limits:\t%d\n", c.SearchCapped)
	fmt.Fprintf(tw, "   Fixes fully resolved:\t%d\n", c.Resolved)

	if s.Duration > 0 {
		fmt.Fprintf(tw, "** %d commits in %s\n", s.Commits, s.Duration.Round(time.Millisecond))
	}
	return tw.Flush()
}

// WriteYAML stores the summary at path
func (s Summary) WriteYAML(path string) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return errors.InternalErrorf("marshal summary: %v", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.FileSystemErrorf(err, "write summary %s", path)
	}
	return nil
}

// ReadSummary loads a summary written by WriteYAML
func ReadSummary(path string) (Summary, error) {
	var s Summary
	data, err := os.ReadFile(path)
	if err != nil {
		return s, errors.FileSystemErrorf(err, "read summary %s", path)
	}
	if err := yaml.Unmarshal(data, &s); err != nil {
		return s, errors.FileSystemErrorf(err, "parse summary %s", path)
	}
	return s, nil
}
