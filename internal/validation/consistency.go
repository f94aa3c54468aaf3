package validation

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/bicmine/internal/models"
	"github.com/rohankatakam/bicmine/internal/storage"
)

// DefaultThreshold is the share of expected fixes, in percent, every store must hold
const DefaultThreshold = 100.0

// ValidationResult contains the results of a consistency check
type ValidationResult struct {
	Store           string
	Expected        int64
	Stored          int64
	SyncPercent     float64
	PassedThreshold bool
}

// ConsistencyValidator checks that every sink holds all the fixes of a run
type ConsistencyValidator struct {
	stores    []storage.FixCounter
	logger    *logrus.Logger
	Threshold float64
}

// NewConsistencyValidator creates a new consistency validator
func NewConsistencyValidator(logger *logrus.Logger, stores ...storage.FixCounter) *ConsistencyValidator {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &ConsistencyValidator{
		stores:    stores,
		logger:    logger,
		Threshold: DefaultThreshold,
	}
}

// ExpectedFixes returns the number of rows of a run that carry a fix.
// Commits without an ancestor path still name the commit they fix.
func ExpectedFixes(c models.Counters) int64 {
	return int64(c.Resolved + c.NoPath)
}

// ValidateRun compares the fix count of every store with the run counters
func (v *ConsistencyValidator) ValidateRun(ctx context.Context, runID string, counters models.Counters) ([]ValidationResult, error) {
	expected := ExpectedFixes(counters)
	results := make([]ValidationResult, 0, len(v.stores))
	for _, store := range v.stores {
		stored, err := store.CountFixes(ctx, runID)
		if err != nil {
			return nil, fmt.Errorf("failed to validate %s: %w", store.Kind(), err)
		}
		results = append(results, v.result(store.Kind(), expected, stored))
	}
	return results, nil
}

func (v *ConsistencyValidator) result(store string, expected, stored int64) ValidationResult {
	sync := 100.0
	if expected > 0 {
		sync = float64(stored) / float64(expected) * 100.0
	}
	return ValidationResult{
		Store:           store,
		Expected:        expected,
		Stored:          stored,
		SyncPercent:     sync,
		PassedThreshold: sync >= v.Threshold && stored <= expected,
	}
}

// LogResults logs one line per store and reports whether all of them passed
func (v *ConsistencyValidator) LogResults(runID string, results []ValidationResult) bool {
	allPassed := true
	for _, r := range results {
		entry := v.logger.WithFields(logrus.Fields{
			"run_id":   runID,
			"store":    r.Store,
			"expected": r.Expected,
			"stored":   r.Stored,
			"sync":     fmt.Sprintf("%.1f%%", r.SyncPercent),
		})
		if r.PassedThreshold {
			entry.Debug("Store consistent")
			continue
		}
		allPassed = false
		entry.Warn("Store out of sync with run counters")
	}
	if allPassed && len(results) > 0 {
		v.logger.WithField("stores", len(results)).Info("All stores consistent with run counters")
	}
	return allPassed
}
