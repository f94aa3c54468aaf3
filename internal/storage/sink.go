package storage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/rohankatakam/bicmine/internal/models"
)

// ErrRunNotFound is returned when a run id has no stored metadata
var ErrRunNotFound = errors.New("run not found")

// Sink is an additional destination for annotated rows
type Sink interface {
	WriteRow(ctx context.Context, row models.FixRow) error
	Close(ctx context.Context) error
}

// RunFinisher is implemented by sinks that keep per-run metadata
type RunFinisher interface {
	FinishRun(ctx context.Context, run Run) error
}

// FixCounter is implemented by sinks that can count the fix rows they hold
// for a run. Kind names the store in consistency reports.
type FixCounter interface {
	Kind() string
	CountFixes(ctx context.Context, runID string) (int64, error)
}

// Run describes one mining run as stored by the sinks
type Run struct {
	ID         string          `json:"id"`
	Input      string          `json:"input"`
	StartedAt  time.Time       `json:"started_at"`
	FinishedAt time.Time       `json:"finished_at"`
	Commits    int             `json:"commits"`
	Counters   models.Counters `json:"counters"`
}

// NewRunID returns a fresh run identifier
func NewRunID() string {
	return uuid.NewString()
}

// Multi fans rows out to several sinks
type Multi struct {
	sinks []Sink
}

// NewMulti groups sinks; nil entries are ignored
func NewMulti(sinks ...Sink) *Multi {
	m := &Multi{}
	for _, s := range sinks {
		if s != nil {
			m.sinks = append(m.sinks, s)
		}
	}
	return m
}

// Len returns the number of grouped sinks
func (m *Multi) Len() int {
	return len(m.sinks)
}

// WriteRow writes the row to every sink in order, stopping at the first failure
func (m *Multi) WriteRow(ctx context.Context, row models.FixRow) error {
	for _, s := range m.sinks {
		if err := s.WriteRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

// FinishRun records run metadata in every sink that keeps it
func (m *Multi) FinishRun(ctx context.Context, run Run) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, s := range m.sinks {
		f, ok := s.(RunFinisher)
		if !ok {
			continue
		}
		g.Go(func() error {
			return f.FinishRun(ctx, run)
		})
	}
	return g.Wait()
}

// FixCounters returns the grouped sinks that can count stored fixes
func (m *Multi) FixCounters() []FixCounter {
	var counters []FixCounter
	for _, s := range m.sinks {
		if c, ok := s.(FixCounter); ok {
			counters = append(counters, c)
		}
	}
	return counters
}

// Close closes all sinks concurrently and returns the first error
func (m *Multi) Close(ctx context.Context) error {
	var g errgroup.Group
	for _, s := range m.sinks {
		s := s
		g.Go(func() error {
			return s.Close(ctx)
		})
	}
	return g.Wait()
}
