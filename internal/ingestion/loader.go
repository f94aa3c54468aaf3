package ingestion

import (
	"context"
	stderrors "errors"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"github.com/rohankatakam/bicmine/internal/errors"
	"github.com/rohankatakam/bicmine/internal/graph"
	"github.com/rohankatakam/bicmine/internal/linking"
	"github.com/rohankatakam/bicmine/internal/models"
)

const cancelCheckInterval = 4096

// Loader turns source records into canonical commits and fills the index
type Loader struct {
	logger *logrus.Logger

	// Limit stops loading after this many records (0 = no limit)
	Limit int
	// OnProgress is called with the number of records read, at most once per ProgressInterval
	OnProgress func(records int)
	// ProgressInterval throttles OnProgress (default 2s)
	ProgressInterval time.Duration
}

// NewLoader creates a loader. A nil logger discards output.
func NewLoader(logger *logrus.Logger) *Loader {
	if logger == nil {
		logger = discardLogger()
	}
	return &Loader{
		logger:           logger,
		ProgressInterval: 2 * time.Second,
	}
}

// Load reads src until EOF (or Limit) and inserts every usable record into
// idx. Load-phase counts are added to counters. Malformed records are counted
// and skipped; only read failures and cancellation stop the load.
func (l *Loader) Load(ctx context.Context, src Source, idx *graph.Index, counters *models.Counters) error {
	progress := rate.Sometimes{Interval: l.ProgressInterval}
	read := 0

	for l.Limit <= 0 || read < l.Limit {
		if read%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		rec, err := src.Next()
		if err == io.EOF {
			break
		}
		read++
		if stderrors.Is(err, ErrMalformedRecord) {
			counters.Malformed++
			l.logger.WithFields(errors.Fields(err)).WithError(err).Debug("Skipping malformed record")
			continue
		}
		if err != nil {
			return err
		}

		counters.Records++
		replaced, err := idx.Insert(Canonicalize(rec, counters))
		if err != nil {
			return err
		}
		if replaced {
			counters.Duplicates++
			l.logger.WithField("hash", rec.Hash).Debug("Duplicate commit replaced earlier record")
		}

		if l.OnProgress != nil {
			progress.Do(func() { l.OnProgress(read) })
		}
	}

	if l.OnProgress != nil {
		l.OnProgress(read)
	}
	l.logger.WithFields(logrus.Fields{
		"records":   counters.Records,
		"malformed": counters.Malformed,
		"commits":   idx.Len(),
	}).Info("Commit log loaded")
	return nil
}

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

// Canonicalize converts a source record into an index commit: ids are cut to
// the canonical length, the fix declaration is extracted and the message is
// reduced to its first line.
func Canonicalize(rec models.Record, counters *models.Counters) *models.Commit {
	if len(rec.Hash) < models.CanonicalLength {
		counters.ShortHashes++
	}

	parents := make([]string, len(rec.Parents))
	for i, p := range rec.Parents {
		parents[i] = canonicalID(p)
	}

	candidate, kind := linking.ExtractFixes(rec.Message)
	counters.AddKind(kind)
	if candidate != "" {
		candidate = truncate(candidate, models.CanonicalLength)
		if len(candidate) < models.CanonicalLength {
			counters.ShortFixes++
		}
	}

	var message string
	if rec.Message != nil {
		message = *rec.Message
	}
	header, ok := linking.Header(message)
	if !ok {
		counters.NoNewline++
	}

	return &models.Commit{
		ID:             canonicalID(rec.Hash),
		Date:           rec.Date,
		Parents:        parents,
		Header:         strings.Clone(header),
		FixesCandidate: strings.Clone(candidate),
	}
}

// canonicalID copies the prefix so the full hash can be collected
func canonicalID(hash string) string {
	return strings.Clone(truncate(hash, models.CanonicalLength))
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
