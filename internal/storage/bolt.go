package storage

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"

	"github.com/rohankatakam/bicmine/internal/errors"
	"github.com/rohankatakam/bicmine/internal/models"
)

const runsBucket = "runs"

// BoltSink stores rows in a bbolt file, one bucket per run keyed by commit id
type BoltSink struct {
	db        *bolt.DB
	logger    *logrus.Logger
	runID     string
	batchSize int
	pending   []models.FixRow
}

// NewBoltSink opens (or creates) path and resets the bucket of runID
func NewBoltSink(path, runID string, batchSize int, logger *logrus.Logger) (*BoltSink, error) {
	if runID == "" {
		return nil, errors.ConfigError("bolt sink needs a run id")
	}
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, errors.FileSystemErrorf(err, "create bolt directory for %s", path)
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.DatabaseError(err, "open bolt "+path)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(runsBucket)); err != nil {
			return err
		}
		if tx.Bucket([]byte(runID)) != nil {
			if err := tx.DeleteBucket([]byte(runID)); err != nil {
				return err
			}
		}
		_, err := tx.CreateBucket([]byte(runID))
		return err
	})
	if err != nil {
		db.Close()
		return nil, errors.DatabaseError(err, "create run bucket")
	}

	return &BoltSink{db: db, logger: logger, runID: runID, batchSize: batchSize}, nil
}

// WriteRow buffers a row and stores a full batch in one update
func (s *BoltSink) WriteRow(ctx context.Context, row models.FixRow) error {
	s.pending = append(s.pending, row)
	if len(s.pending) >= s.batchSize {
		return s.flush()
	}
	return nil
}

func (s *BoltSink) flush() error {
	if len(s.pending) == 0 {
		return nil
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(s.runID))
		if bucket == nil {
			return bolt.ErrBucketNotFound
		}
		for _, row := range s.pending {
			data, err := json.Marshal(row)
			if err != nil {
				return err
			}
			if err := bucket.Put([]byte(row.Hash), data); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return errors.DatabaseError(err, "store bolt batch")
	}
	s.logger.WithFields(logrus.Fields{"run_id": s.runID, "batch": len(s.pending)}).Debug("Stored annotation batch")
	s.pending = s.pending[:0]
	return nil
}

// FinishRun flushes pending rows and stores the run summary
func (s *BoltSink) FinishRun(ctx context.Context, run Run) error {
	if err := s.flush(); err != nil {
		return err
	}
	run.ID = s.runID
	data, err := json.Marshal(run)
	if err != nil {
		return errors.InternalErrorf("marshal run: %v", err)
	}
	err = s.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(runsBucket)).Put([]byte(s.runID), data)
	})
	if err != nil {
		return errors.DatabaseError(err, "store run")
	}

	stored, err := s.Count(s.runID)
	if err != nil {
		return err
	}
	s.logger.WithFields(logrus.Fields{
		"run_id":  s.runID,
		"rows":    stored,
		"commits": run.Commits,
	}).Debug("Stored run in bolt")
	return nil
}

// Count returns the number of rows stored for a run
func (s *BoltSink) Count(runID string) (int, error) {
	n := 0
	err := s.db.View(func(tx *bolt.Tx) error {
		if bucket := tx.Bucket([]byte(runID)); bucket != nil {
			n = bucket.Stats().KeyN
		}
		return nil
	})
	if err != nil {
		return 0, errors.DatabaseError(err, "count bolt rows")
	}
	return n, nil
}

// Kind names the store in consistency reports
func (s *BoltSink) Kind() string { return "bolt" }

// CountFixes decodes the rows of a run and counts the ones carrying a fix
func (s *BoltSink) CountFixes(_ context.Context, runID string) (int64, error) {
	var n int64
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(runID))
		if bucket == nil {
			return nil
		}
		return bucket.ForEach(func(_, data []byte) error {
			var row models.FixRow
			if err := json.Unmarshal(data, &row); err != nil {
				return err
			}
			if row.HasFix() {
				n++
			}
			return nil
		})
	})
	if err != nil {
		return 0, errors.DatabaseError(err, "count bolt fixes")
	}
	return n, nil
}

// GetRun loads the stored summary of a run
func (s *BoltSink) GetRun(runID string) (Run, error) {
	var run Run
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(runsBucket)).Get([]byte(runID))
		if data == nil {
			return ErrRunNotFound
		}
		return json.Unmarshal(data, &run)
	})
	if err == ErrRunNotFound {
		return run, err
	}
	if err != nil {
		return run, errors.DatabaseError(err, "read run")
	}
	return run, nil
}

// Close flushes pending rows and closes the file
func (s *BoltSink) Close(ctx context.Context) error {
	err := s.flush()
	if cerr := s.db.Close(); err == nil && cerr != nil {
		err = errors.DatabaseError(cerr, "close bolt")
	}
	return err
}
