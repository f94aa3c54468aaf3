package ingestion

import (
	"context"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/bicmine/internal/annotate"
	"github.com/rohankatakam/bicmine/internal/errors"
	"github.com/rohankatakam/bicmine/internal/graph"
	"github.com/rohankatakam/bicmine/internal/models"
	"github.com/rohankatakam/bicmine/internal/output"
	"github.com/rohankatakam/bicmine/internal/storage"
)

// ProgressReporter receives throttled progress of both phases
type ProgressReporter interface {
	Loading(records int)
	Annotating(done, total int)
}

// Options selects the commit source and tunes a run
type Options struct {
	// Input is a JSON Lines commit log; Repo, when set, is read instead.
	// A remote Repo URL is cloned under CloneDir first.
	Input    string
	Repo     string
	CloneDir string
	// Output is the fixes table path
	Output      string
	SummaryFile string
	Limit       int

	Index       graph.IndexOptions
	MaxHops     int
	MaxFrontier int

	// RunID labels sink rows; a fresh one is generated when empty
	RunID string
}

// Orchestrator coordinates a mining run: load, index, annotate, report
type Orchestrator struct {
	logger   *logrus.Logger
	sinks    *storage.Multi
	progress ProgressReporter
}

// NewOrchestrator creates a new mining orchestrator. sinks and progress may be nil.
func NewOrchestrator(logger *logrus.Logger, sinks *storage.Multi, progress ProgressReporter) *Orchestrator {
	if logger == nil {
		logger = discardLogger()
	}
	if sinks == nil {
		sinks = storage.NewMulti()
	}
	return &Orchestrator{
		logger:   logger,
		sinks:    sinks,
		progress: progress,
	}
}

// MiningResult contains the results of a mining run
type MiningResult struct {
	RunID    string
	Commits  int
	Counters models.Counters
	Duration time.Duration
	Summary  output.Summary
}

// Mine runs the full pipeline and writes the fixes table, the sinks and
// the optional summary file
func (o *Orchestrator) Mine(ctx context.Context, opts Options) (*MiningResult, error) {
	startTime := time.Now()
	runID := opts.RunID
	if runID == "" {
		runID = storage.NewRunID()
	}
	o.logger.WithFields(logrus.Fields{
		"run_id": runID,
		"input":  sourceName(opts),
		"output": opts.Output,
	}).Info("Starting mining run")

	var counters models.Counters

	// Phase 1: Load the commit log into the index
	idx, err := o.LoadIndex(ctx, opts, &counters)
	if err != nil {
		return nil, err
	}

	// Phase 2: Annotate and stream rows
	csv, err := output.CreateCSV(opts.Output)
	if err != nil {
		return nil, err
	}
	writer := &teeWriter{csv: csv, sinks: o.sinks}

	annotator := annotate.New(o.logger)
	annotator.MaxHops = opts.MaxHops
	annotator.MaxFrontier = opts.MaxFrontier
	if o.progress != nil {
		annotator.OnProgress = o.progress.Annotating
	}
	if err := annotator.Run(ctx, idx, writer, &counters); err != nil {
		csv.Close(ctx)
		return nil, err
	}
	if err := csv.Close(ctx); err != nil {
		return nil, err
	}
	rows := csv.Rows()

	// Phase 3: Record the run
	result := &MiningResult{
		RunID:    runID,
		Commits:  idx.Len(),
		Counters: counters,
		Duration: time.Since(startTime),
	}
	result.Summary = output.Summary{
		RunID:     runID,
		Input:     sourceName(opts),
		Output:    opts.Output,
		StartedAt: startTime,
		Duration:  result.Duration,
		Commits:   result.Commits,
		Counters:  counters,
	}

	if err := o.sinks.FinishRun(ctx, storage.Run{
		ID:         runID,
		Input:      sourceName(opts),
		StartedAt:  startTime,
		FinishedAt: time.Now(),
		Commits:    result.Commits,
		Counters:   counters,
	}); err != nil {
		return nil, err
	}

	if opts.SummaryFile != "" {
		if err := result.Summary.WriteYAML(opts.SummaryFile); err != nil {
			return nil, err
		}
	}

	o.logger.WithFields(logrus.Fields{
		"duration": result.Duration.String(),
		"commits":  result.Commits,
		"rows":     rows,
		"resolved": counters.Resolved,
		"sinks":    o.sinks.Len(),
	}).Info("Mining run completed")

	return result, nil
}

// LoadIndex reads the configured source into a sealed index
func (o *Orchestrator) LoadIndex(ctx context.Context, opts Options, counters *models.Counters) (*graph.Index, error) {
	src, closeSource, err := OpenSource(ctx, opts)
	if err != nil {
		return nil, err
	}
	defer closeSource()

	idx := graph.NewIndex(opts.Index)
	loader := NewLoader(o.logger)
	loader.Limit = opts.Limit
	if o.progress != nil {
		loader.OnProgress = o.progress.Loading
	}
	if err := loader.Load(ctx, src, idx, counters); err != nil {
		return nil, err
	}

	idx.BuildPrefixTiers()
	return idx, nil
}

// OpenSource opens the git repository or the commit log named by opts
func OpenSource(ctx context.Context, opts Options) (Source, func(), error) {
	if opts.Repo != "" {
		path := opts.Repo
		if IsRemoteRepo(path) {
			var err error
			if path, err = CloneRepository(ctx, opts.Repo, opts.CloneDir); err != nil {
				return nil, nil, err
			}
		}
		src, err := OpenGitSource(path)
		if err != nil {
			return nil, nil, err
		}
		return src, src.Close, nil
	}
	if opts.Input == "" {
		return nil, nil, errors.ConfigError("no commit source configured")
	}

	r, err := Open(opts.Input)
	if err != nil {
		return nil, nil, err
	}
	return NewJSONSource(r), func() { r.Close() }, nil
}

func sourceName(opts Options) string {
	if opts.Repo != "" {
		return opts.Repo
	}
	return opts.Input
}

// teeWriter sends each row to the fixes table, then to the sinks
type teeWriter struct {
	csv   *output.CSVWriter
	sinks *storage.Multi
}

func (t *teeWriter) WriteRow(ctx context.Context, row models.FixRow) error {
	if err := t.csv.WriteRow(ctx, row); err != nil {
		return err
	}
	return t.sinks.WriteRow(ctx, row)
}
