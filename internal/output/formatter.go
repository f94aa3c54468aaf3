package output

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// Formatter renders a run summary for the terminal
type Formatter interface {
	Format(s Summary, w io.Writer) error
}

// VerbosityLevel determines output detail
type VerbosityLevel int

const (
	VerbosityQuiet    VerbosityLevel = iota // One-line summary
	VerbosityStandard                       // Counters of both phases
	VerbosityJSON                           // Machine-readable summary
)

// ParseVerbosity maps a --format value to a level
func ParseVerbosity(name string) (VerbosityLevel, error) {
	switch name {
	case "quiet":
		return VerbosityQuiet, nil
	case "", "standard":
		return VerbosityStandard, nil
	case "json":
		return VerbosityJSON, nil
	default:
		return VerbosityStandard, fmt.Errorf("unknown format %q (want quiet, standard or json)", name)
	}
}

// NewFormatter creates appropriate formatter based on level
func NewFormatter(level VerbosityLevel) Formatter {
	switch level {
	case VerbosityQuiet:
		return &QuietFormatter{}
	case VerbosityJSON:
		return &JSONFormatter{}
	default:
		return &StandardFormatter{}
	}
}

// GetDefaultVerbosity returns appropriate default based on environment
func GetDefaultVerbosity() VerbosityLevel {
	if os.Getenv("CI") == "true" {
		return VerbosityQuiet
	}
	return VerbosityStandard
}

// QuietFormatter prints a single line
type QuietFormatter struct{}

func (f *QuietFormatter) Format(s Summary, w io.Writer) error {
	_, err := fmt.Fprintf(w, "%d commits, %d fixes resolved, %d without path -> %s\n",
		s.Commits, s.Counters.Resolved, s.Counters.NoPath, s.Output)
	return err
}

// StandardFormatter prints the counters of both phases
type StandardFormatter struct{}

func (f *StandardFormatter) Format(s Summary, w io.Writer) error {
	return s.WriteText(w)
}

// JSONFormatter prints the summary as indented JSON
type JSONFormatter struct{}

func (f *JSONFormatter) Format(s Summary, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(struct {
		Summary
		DurationMS int64 `json:"duration_ms"`
	}{s, s.Duration.Milliseconds()})
}
