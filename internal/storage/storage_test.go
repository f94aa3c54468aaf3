package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	bolt "go.etcd.io/bbolt"

	"github.com/rohankatakam/bicmine/internal/models"
)

func fixture() []models.FixRow {
	base := time.Date(2023, 6, 1, 12, 0, 0, 0, time.FixedZone("", 3600))
	fixesDate := base.Add(-48 * time.Hour)
	commits := 2
	seconds := int64(48 * 3600)
	return []models.FixRow{
		{Hash: "aaaaaaaaaa", Date: fixesDate},
		{
			Hash:         "bbbbbbbbbb",
			Date:         base,
			FixesHash:    "aaaaaaaaaa",
			FixesDate:    &fixesDate,
			FixesCommits: &commits,
			FixesSeconds: &seconds,
		},
		{Hash: "cccccccccc", Date: base, FixesHash: "aaaaaaaaaa", FixesDate: &fixesDate, FixesSeconds: &seconds},
	}
}

func TestSQLSinkStoresRowsAndRun(t *testing.T) {
	ctx := context.Background()
	sink, err := NewSQLSink(ctx, SQLOptions{Driver: DriverSQLite, DSN: ":memory:", RunID: "run-1", BatchSize: 2}, nil)
	require.NoError(t, err)
	defer sink.Close(ctx)

	rows := fixture()
	for _, row := range rows {
		require.NoError(t, sink.WriteRow(ctx, row))
	}

	counters := models.Counters{Records: 3, Resolved: 2}
	started := time.Date(2023, 6, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, sink.FinishRun(ctx, Run{
		Input:      "commits.json",
		StartedAt:  started,
		FinishedAt: started.Add(time.Minute),
		Commits:    3,
		Counters:   counters,
	}))

	got, err := sink.Annotations(ctx, "run-1")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range rows {
		assert.Equal(t, rows[i].Hash, got[i].Hash)
		assert.True(t, rows[i].Date.Equal(got[i].Date))
		assert.Equal(t, rows[i].FixesHash, got[i].FixesHash)
		assert.Equal(t, rows[i].FixesCommits, got[i].FixesCommits)
		assert.Equal(t, rows[i].FixesSeconds, got[i].FixesSeconds)
	}
	assert.Nil(t, got[0].FixesDate)
	require.NotNil(t, got[2].FixesDate)
	assert.True(t, rows[2].FixesDate.Equal(*got[2].FixesDate))

	run, err := sink.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, "commits.json", run.Input)
	assert.Equal(t, 3, run.Commits)
	assert.Equal(t, counters, run.Counters)
	assert.True(t, started.Equal(run.StartedAt))
}

func TestSQLSinkUpsertsRows(t *testing.T) {
	ctx := context.Background()
	sink, err := NewSQLSink(ctx, SQLOptions{DSN: ":memory:", RunID: "run-1"}, nil)
	require.NoError(t, err)
	defer sink.Close(ctx)

	rows := fixture()
	for pass := 0; pass < 2; pass++ {
		for _, row := range rows {
			require.NoError(t, sink.WriteRow(ctx, row))
		}
		require.NoError(t, sink.flush(ctx))
	}

	got, err := sink.Annotations(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestSQLSinkFileDatabase(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "fixes.db")

	sink, err := NewSQLSink(ctx, SQLOptions{DSN: path, RunID: "run-1"}, nil)
	require.NoError(t, err)
	for _, row := range fixture() {
		require.NoError(t, sink.WriteRow(ctx, row))
	}
	require.NoError(t, sink.Close(ctx))

	reopened, err := NewSQLSink(ctx, SQLOptions{DSN: path, RunID: "run-2"}, nil)
	require.NoError(t, err)
	defer reopened.Close(ctx)

	got, err := reopened.Annotations(ctx, "run-1")
	require.NoError(t, err)
	assert.Len(t, got, 3)

	_, err = reopened.GetRun(ctx, "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestSQLSinkRejectsUnknownDriver(t *testing.T) {
	_, err := NewSQLSink(context.Background(), SQLOptions{Driver: "oracle", DSN: "x"}, nil)
	assert.Error(t, err)
}

func storedRow(s *BoltSink, runID, hash string) (models.FixRow, bool, error) {
	var row models.FixRow
	found := false
	err := s.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket([]byte(runID))
		if bucket == nil {
			return nil
		}
		data := bucket.Get([]byte(hash))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &row)
	})
	return row, found, err
}

func TestBoltSink(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fixes.bolt")

	sink, err := NewBoltSink(path, "run-1", 2, nil)
	require.NoError(t, err)

	for _, row := range fixture() {
		require.NoError(t, sink.WriteRow(ctx, row))
	}
	require.NoError(t, sink.FinishRun(ctx, Run{Input: "commits.json", Commits: 3}))

	n, err := sink.Count("run-1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	row, found, err := storedRow(sink, "run-1", "bbbbbbbbbb")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "aaaaaaaaaa", row.FixesHash)
	require.NotNil(t, row.FixesCommits)
	assert.Equal(t, 2, *row.FixesCommits)

	_, found, err = storedRow(sink, "run-1", "ffffffffff")
	require.NoError(t, err)
	assert.False(t, found)

	run, err := sink.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, 3, run.Commits)

	_, err = sink.GetRun("run-2")
	assert.ErrorIs(t, err, ErrRunNotFound)
	require.NoError(t, sink.Close(ctx))
}

func TestBoltSinkResetsRerun(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "fixes.bolt")

	first, err := NewBoltSink(path, "run-1", 10, nil)
	require.NoError(t, err)
	for _, row := range fixture() {
		require.NoError(t, first.WriteRow(ctx, row))
	}
	require.NoError(t, first.Close(ctx))

	second, err := NewBoltSink(path, "run-1", 10, nil)
	require.NoError(t, err)
	defer second.Close(ctx)
	require.NoError(t, second.WriteRow(ctx, fixture()[0]))
	require.NoError(t, second.flush())

	n, err := second.Count("run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestNeo4jSinkBatchesFixes(t *testing.T) {
	ctx := context.Background()
	s := newNeo4jSink(Neo4jOptions{RunID: "run-1", BatchSize: 1}, nil)

	var batches []map[string]any
	s.exec = func(_ context.Context, query string, params map[string]any) error {
		assert.Contains(t, query, "UNWIND $fixes")
		batches = append(batches, params)
		return nil
	}

	for _, row := range fixture() {
		require.NoError(t, s.WriteRow(ctx, row))
	}
	require.NoError(t, s.Close(ctx))

	require.Len(t, batches, 2, "rows without a fix are skipped")
	assert.Equal(t, 2, s.linked)
	assert.Equal(t, "run-1", batches[0]["run_id"])

	first := batches[0]["fixes"].([]map[string]any)[0]
	assert.Equal(t, "bbbbbbbbbb", first["hash"])
	assert.Equal(t, int64(2), first["commits"])

	second := batches[1]["fixes"].([]map[string]any)[0]
	assert.Nil(t, second["commits"])
	assert.Equal(t, int64(48*3600), second["seconds"])
}

func TestNeo4jSinkFlushError(t *testing.T) {
	s := newNeo4jSink(Neo4jOptions{BatchSize: 10}, nil)
	boom := errors.New("unavailable")
	s.exec = func(context.Context, string, map[string]any) error { return boom }

	require.NoError(t, s.WriteRow(context.Background(), fixture()[1]))
	assert.ErrorIs(t, s.Close(context.Background()), boom)
}

type memorySink struct {
	mu       sync.Mutex
	rows     []models.FixRow
	finished bool
	closed   bool
	closeErr error
}

func (m *memorySink) WriteRow(_ context.Context, row models.FixRow) error {
	m.rows = append(m.rows, row)
	return nil
}

func (m *memorySink) FinishRun(context.Context, Run) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.finished = true
	return nil
}

func (m *memorySink) Close(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return m.closeErr
}

type plainSink struct{ closed bool }

func (p *plainSink) WriteRow(context.Context, models.FixRow) error { return nil }
func (p *plainSink) Close(context.Context) error {
	p.closed = true
	return nil
}

func TestMulti(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("close failed")
	a, b := &memorySink{}, &memorySink{closeErr: boom}
	plain := &plainSink{}

	m := NewMulti(a, nil, b, plain)
	assert.Equal(t, 3, m.Len())

	for _, row := range fixture() {
		require.NoError(t, m.WriteRow(ctx, row))
	}
	require.NoError(t, m.FinishRun(ctx, Run{ID: "run-1"}))

	assert.Len(t, a.rows, 3)
	assert.Len(t, b.rows, 3)
	assert.True(t, a.finished)
	assert.True(t, b.finished)

	assert.ErrorIs(t, m.Close(ctx), boom)
	assert.True(t, a.closed)
	assert.True(t, b.closed)
	assert.True(t, plain.closed)
}

func TestNewRunID(t *testing.T) {
	a, b := NewRunID(), NewRunID()
	assert.Len(t, a, 36)
	assert.NotEqual(t, a, b)
}

func TestSinksCountFixes(t *testing.T) {
	ctx := context.Background()
	sqlSink, err := NewSQLSink(ctx, SQLOptions{Driver: DriverSQLite, DSN: ":memory:", RunID: "run-1"}, nil)
	require.NoError(t, err)
	defer sqlSink.Close(ctx)

	boltSink, err := NewBoltSink(filepath.Join(t.TempDir(), "fixes.bolt"), "run-1", 0, nil)
	require.NoError(t, err)
	defer boltSink.Close(ctx)

	multi := NewMulti(sqlSink, boltSink, &plainSink{})
	for _, row := range fixture() {
		require.NoError(t, multi.WriteRow(ctx, row))
	}
	require.NoError(t, multi.FinishRun(ctx, Run{Commits: 3}))

	counters := multi.FixCounters()
	require.Len(t, counters, 2)
	for _, c := range counters {
		n, err := c.CountFixes(ctx, "run-1")
		require.NoError(t, err)
		assert.Equal(t, int64(2), n, c.Kind())

		n, err = c.CountFixes(ctx, "other")
		require.NoError(t, err)
		assert.Zero(t, n, c.Kind())
	}
}

func TestNeo4jSinkCountFixes(t *testing.T) {
	ctx := context.Background()
	s := newNeo4jSink(Neo4jOptions{RunID: "run-1", BatchSize: 10}, nil)
	s.exec = func(context.Context, string, map[string]any) error { return nil }
	s.count = func(_ context.Context, query string, params map[string]any) (int64, error) {
		assert.Contains(t, query, "count(r)")
		assert.Equal(t, "run-1", params["run_id"])
		return 7, nil
	}

	require.NoError(t, s.WriteRow(ctx, fixture()[1]))
	require.NoError(t, s.FinishRun(ctx, Run{}))
	assert.Equal(t, 1, s.linked)
	assert.Equal(t, "neo4j", s.Kind())

	n, err := s.CountFixes(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
}
