package storage

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"

	"github.com/rohankatakam/bicmine/internal/errors"
	"github.com/rohankatakam/bicmine/internal/models"
)

// mergeFixes links a fixing commit to the commit it declares as fixed.
// commits is null when no ancestor path was found.
const mergeFixes = `
	UNWIND $fixes AS fix
	MERGE (c:Commit {hash: fix.hash})
	SET c.date = fix.date
	MERGE (b:Commit {hash: fix.fixes_hash})
	SET b.date = fix.fixes_date
	MERGE (c)-[r:FIXES {run_id: $run_id}]->(b)
	SET r.commits = fix.commits, r.seconds = fix.seconds
	RETURN count(r) AS linked
`

const countFixes = `
	MATCH (:Commit)-[r:FIXES {run_id: $run_id}]->(:Commit)
	RETURN count(r) AS count
`

// Neo4jOptions configures NewNeo4jSink
type Neo4jOptions struct {
	URI       string
	Username  string
	Password  string
	Database  string
	RunID     string
	BatchSize int
}

// Neo4jSink writes resolved fixes as FIXES edges between Commit nodes
type Neo4jSink struct {
	driver    neo4j.DriverWithContext
	database  string
	runID     string
	batchSize int
	logger    *logrus.Logger
	pending   []map[string]any
	linked    int

	// exec runs one batch and count one aggregate; replaced in tests
	exec  func(ctx context.Context, query string, params map[string]any) error
	count func(ctx context.Context, query string, params map[string]any) (int64, error)
}

// NewNeo4jSink connects and verifies connectivity
func NewNeo4jSink(ctx context.Context, opts Neo4jOptions, logger *logrus.Logger) (*Neo4jSink, error) {
	driver, err := neo4j.NewDriverWithContext(opts.URI, neo4j.BasicAuth(opts.Username, opts.Password, ""))
	if err != nil {
		return nil, errors.ExternalError(err, "create neo4j driver")
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, errors.ExternalError(err, "connect to neo4j at "+opts.URI)
	}

	s := newNeo4jSink(opts, logger)
	s.driver = driver
	s.exec = func(ctx context.Context, query string, params map[string]any) error {
		_, err := neo4j.ExecuteQuery(ctx, driver, query, params,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database))
		return err
	}
	s.count = func(ctx context.Context, query string, params map[string]any) (int64, error) {
		res, err := neo4j.ExecuteQuery(ctx, driver, query, params,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(s.database),
			neo4j.ExecuteQueryWithReadersRouting())
		if err != nil {
			return 0, err
		}
		if len(res.Records) == 0 {
			return 0, nil
		}
		var n int64
		if v, ok := res.Records[0].Get("count"); ok {
			n, _ = v.(int64)
		}
		return n, nil
	}
	return s, nil
}

func newNeo4jSink(opts Neo4jOptions, logger *logrus.Logger) *Neo4jSink {
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Database == "" {
		opts.Database = "neo4j"
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Neo4jSink{
		database:  opts.Database,
		runID:     opts.RunID,
		batchSize: opts.BatchSize,
		logger:    logger,
	}
}

// WriteRow queues rows carrying a fix; other rows are ignored
func (s *Neo4jSink) WriteRow(ctx context.Context, row models.FixRow) error {
	if !row.HasFix() {
		return nil
	}
	s.pending = append(s.pending, fixParams(row))
	if len(s.pending) >= s.batchSize {
		return s.flush(ctx)
	}
	return nil
}

func (s *Neo4jSink) flush(ctx context.Context) error {
	if len(s.pending) == 0 {
		return nil
	}
	params := map[string]any{
		"fixes":  s.pending,
		"run_id": s.runID,
	}
	if err := s.exec(ctx, mergeFixes, params); err != nil {
		return errors.ExternalError(err, fmt.Sprintf("merge %d fixes edges", len(s.pending)))
	}
	s.linked += len(s.pending)
	s.logger.WithFields(logrus.Fields{
		"run_id": s.runID,
		"batch":  len(s.pending),
		"total":  s.linked,
	}).Debug("Linked fixes in graph")
	s.pending = nil
	return nil
}

// FinishRun flushes the pending batch so the run is complete in the graph
func (s *Neo4jSink) FinishRun(ctx context.Context, _ Run) error {
	return s.flush(ctx)
}

// Kind names the store in consistency reports
func (s *Neo4jSink) Kind() string { return "neo4j" }

// CountFixes returns the number of FIXES edges labelled with runID
func (s *Neo4jSink) CountFixes(ctx context.Context, runID string) (int64, error) {
	n, err := s.count(ctx, countFixes, map[string]any{"run_id": runID})
	if err != nil {
		return 0, errors.ExternalError(err, "count fixes edges")
	}
	return n, nil
}

// Close flushes the last batch and closes the driver
func (s *Neo4jSink) Close(ctx context.Context) error {
	err := s.flush(ctx)
	s.logger.WithFields(logrus.Fields{"run_id": s.runID, "linked": s.linked}).Debug("Neo4j sink closed")
	if s.driver != nil {
		if cerr := s.driver.Close(ctx); err == nil && cerr != nil {
			err = errors.ExternalError(cerr, "close neo4j driver")
		}
	}
	return err
}

func fixParams(row models.FixRow) map[string]any {
	p := map[string]any{
		"hash":       row.Hash,
		"date":       row.Date.Unix(),
		"fixes_hash": row.FixesHash,
		"fixes_date": nil,
		"commits":    nil,
		"seconds":    nil,
	}
	if row.FixesDate != nil {
		p["fixes_date"] = row.FixesDate.Unix()
	}
	if row.FixesCommits != nil {
		p["commits"] = int64(*row.FixesCommits)
	}
	if row.FixesSeconds != nil {
		p["seconds"] = *row.FixesSeconds
	}
	return p
}
