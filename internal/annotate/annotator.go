package annotate

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	apperrors "github.com/rohankatakam/bicmine/internal/errors"
	"github.com/rohankatakam/bicmine/internal/graph"
	"github.com/rohankatakam/bicmine/internal/models"
)

const cancelCheckInterval = 4096

// RowWriter receives one output row per commit, in index order
type RowWriter interface {
	WriteRow(ctx context.Context, row models.FixRow) error
}

// Annotator resolves every fix declaration in an index and streams the
// annotated rows to a writer
type Annotator struct {
	logger *logrus.Logger

	// MaxHops and MaxFrontier bound each ancestor search (0 = unlimited)
	MaxHops     int
	MaxFrontier int

	// OnProgress is called with (done, total), at most once per ProgressInterval
	OnProgress       func(done, total int)
	ProgressInterval time.Duration
}

// New creates an annotator. A nil logger discards output.
func New(logger *logrus.Logger) *Annotator {
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	return &Annotator{
		logger:           logger,
		ProgressInterval: 2 * time.Second,
	}
}

// Run annotates every commit of a sealed index in insertion order, writes one
// row per commit to w and adds annotate-phase counts to counters.
// Only a write failure or cancellation stops the run.
func (a *Annotator) Run(ctx context.Context, idx *graph.Index, w RowWriter, counters *models.Counters) error {
	if !idx.Sealed() {
		return apperrors.InternalErrorf("annotate before prefix tiers are built")
	}

	resolver := a.resolver(idx)
	progress := rate.Sometimes{Interval: a.ProgressInterval}
	total := idx.Len()
	done := 0

	var runErr error
	idx.Each(func(c *models.Commit) bool {
		if done%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				runErr = err
				return false
			}
		}

		outcome, capped := a.annotate(c, idx, resolver)
		counters.AddOutcome(outcome)
		if capped {
			counters.SearchCapped++
		}

		if err := w.WriteRow(ctx, c.Row()); err != nil {
			runErr = err
			return false
		}

		done++
		if a.OnProgress != nil {
			progress.Do(func() { a.OnProgress(done, total) })
		}
		return true
	})
	if runErr != nil {
		return runErr
	}

	if a.OnProgress != nil {
		a.OnProgress(done, total)
	}
	a.logger.WithFields(logrus.Fields{
		"commits":   total,
		"resolved":  counters.Resolved,
		"no_path":   counters.NoPath,
		"not_found": counters.NotFound,
	}).Info("Fix declarations annotated")
	return nil
}

func (a *Annotator) resolver(idx *graph.Index) *graph.PathResolver {
	r := graph.NewPathResolver(idx)
	r.MaxHops = a.MaxHops
	r.MaxFrontier = a.MaxFrontier
	return r
}

func (a *Annotator) annotate(c *models.Commit, idx *graph.Index, resolver *graph.PathResolver) (models.Outcome, bool) {
	if c.FixesCandidate == "" {
		return models.OutcomeNoCandidate, false
	}
	if len(c.FixesCandidate) < idx.MinLength() {
		a.logger.WithFields(logrus.Fields{
			"hash":  c.ID,
			"fixes": c.FixesCandidate,
		}).Debug("Fixes hash too short to look up")
		return models.OutcomeTooShort, false
	}

	fixes, err := idx.Resolve(c.FixesCandidate)
	if err != nil {
		a.logger.WithError(err).WithField("hash", c.ID).Debug("Fixes hash not found")
		return models.OutcomeNotFound, false
	}
	c.Annotate(fixes)

	res, err := resolver.PathLength(c, fixes)
	entry := a.logger.WithFields(logrus.Fields{
		"hash":         c.ID,
		"fixes":        fixes.ID,
		"hops":         res.Length,
		"max_frontier": res.MaxFrontier,
		"max_pruned":   res.MaxPruned,
	})
	if err != nil {
		entry.WithError(err).Debug("No path to fixed commit")
		return models.OutcomeNoPath, errors.Is(err, graph.ErrSearchCapped)
	}

	c.SetPathLength(res.Length)
	entry.Debug("Fix annotated")
	return models.OutcomeResolved, false
}
