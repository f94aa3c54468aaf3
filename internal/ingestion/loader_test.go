package ingestion

import (
	"context"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rohankatakam/bicmine/internal/graph"
	"github.com/rohankatakam/bicmine/internal/models"
)

// sliceSource replays fixed records and errors
type sliceSource struct {
	items []sourceItem
}

type sourceItem struct {
	rec models.Record
	err error
}

func (s *sliceSource) Next() (models.Record, error) {
	if len(s.items) == 0 {
		return models.Record{}, io.EOF
	}
	item := s.items[0]
	s.items = s.items[1:]
	return item.rec, item.err
}

func msg(s string) *string { return &s }

func TestLoaderCountsLoadPhase(t *testing.T) {
	when := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &sliceSource{items: []sourceItem{
		{rec: models.Record{Hash: "aaaaaaaaaa1111", Date: when}},
		{rec: models.Record{Hash: "bbbbbbbbbb2222", Date: when, Parents: []string{"aaaaaaaaaa1111"}, Message: msg("fix\n\nFixes: aaaaaaa")}},
		{rec: models.Record{Hash: "cccccc", Date: when, Parents: []string{"bbbbbbbbbb2222"}, Message: msg("subject only")}},
		{err: malformed(4, "bad")},
		{rec: models.Record{Hash: "dddddddddd4444", Date: when, Message: msg("x\nFixes: see bug")}},
		{rec: models.Record{Hash: "eeeeeeeeee5555", Date: when, Message: msg("x\n\nFixes: 0123456789abcdef (\"y\")")}},
	}}

	idx := graph.NewIndex(graph.IndexOptions{})
	var counters models.Counters
	require.NoError(t, NewLoader(nil).Load(context.Background(), src, idx, &counters))

	assert.Equal(t, 5, counters.Records)
	assert.Equal(t, 1, counters.Malformed)
	assert.Equal(t, 1, counters.ShortHashes)
	assert.Equal(t, 1, counters.ShortFixes)
	assert.Equal(t, 2, counters.NoNewline, "missing message and subject-only message")
	assert.Equal(t, 1, counters.NoMessage)
	assert.Equal(t, 1, counters.NoFixesDeclared)
	assert.Equal(t, 2, counters.Declared)
	assert.Equal(t, 1, counters.Unparsed)
	assert.Equal(t, 5, idx.Len())

	b, ok := idx.Get("bbbbbbbbbb")
	require.True(t, ok)
	assert.Equal(t, []string{"aaaaaaaaaa"}, b.Parents)
	assert.Equal(t, "aaaaaaa", b.FixesCandidate)
	assert.Equal(t, "fix", b.Header)

	e, ok := idx.Get("eeeeeeeeee")
	require.True(t, ok)
	assert.Equal(t, "0123456789", e.FixesCandidate, "candidate truncated to canonical length")

	short, ok := idx.Get("cccccc")
	require.True(t, ok)
	assert.Equal(t, "subject only", short.Header)
}

func TestLoaderLimitAndDuplicates(t *testing.T) {
	when := time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)
	src := &sliceSource{items: []sourceItem{
		{rec: models.Record{Hash: "aaaaaaaaaa1", Date: when, Message: msg("first\n")}},
		{rec: models.Record{Hash: "aaaaaaaaaa2", Date: when, Message: msg("second\n")}},
		{rec: models.Record{Hash: "bbbbbbbbbb", Date: when, Message: msg("third\n")}},
	}}

	idx := graph.NewIndex(graph.IndexOptions{})
	var counters models.Counters
	loader := NewLoader(nil)
	loader.Limit = 2
	require.NoError(t, loader.Load(context.Background(), src, idx, &counters))

	assert.Equal(t, 2, counters.Records)
	assert.Equal(t, 1, counters.Duplicates)
	assert.Equal(t, 1, idx.Len())

	a, _ := idx.Get("aaaaaaaaaa")
	assert.Equal(t, "second", a.Header)
}

func TestLoaderReportsProgress(t *testing.T) {
	idx := graph.NewIndex(graph.IndexOptions{})
	var counters models.Counters
	var seen []int

	loader := NewLoader(nil)
	loader.OnProgress = func(n int) { seen = append(seen, n) }
	require.NoError(t, loader.Load(context.Background(), NewJSONSource(strings.NewReader(sampleLog)), idx, &counters))

	require.NotEmpty(t, seen)
	assert.Equal(t, 3, seen[len(seen)-1])
}

func TestLoaderStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var counters models.Counters
	err := NewLoader(nil).Load(ctx, NewJSONSource(strings.NewReader(sampleLog)), graph.NewIndex(graph.IndexOptions{}), &counters)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLoaderPropagatesReadErrors(t *testing.T) {
	src := &sliceSource{items: []sourceItem{{err: io.ErrUnexpectedEOF}}}

	var counters models.Counters
	err := NewLoader(nil).Load(context.Background(), src, graph.NewIndex(graph.IndexOptions{}), &counters)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}
