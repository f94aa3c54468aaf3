package ingestion

import (
	"bufio"
	"bytes"
	stderrors "errors"
	"io"
	"time"

	"github.com/tidwall/gjson"

	"github.com/rohankatakam/bicmine/internal/errors"
	"github.com/rohankatakam/bicmine/internal/models"
)

// ErrMalformedRecord marks a record that cannot be used. The loader counts
// and skips these; they never stop a run.
var ErrMalformedRecord = stderrors.New("malformed record")

// Source yields commit records one at a time. Next returns io.EOF after the
// last record, and an error wrapping ErrMalformedRecord for a record that
// should be skipped.
type Source interface {
	Next() (models.Record, error)
}

// Commit date layouts accepted in the export, most common first
var dateLayouts = []string{
	"Mon Jan 2 15:04:05 2006 -0700",
	"Mon Jan _2 15:04:05 2006 -0700",
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
}

// Record field paths in the JSON export
const (
	pathHash    = "data.commit"
	pathDate    = "data.CommitDate"
	pathParents = "data.parents"
	pathMessage = "data.message"
)

const (
	initialLineBuffer = 1 << 20
	maxLineLength     = 64 << 20
)

// JSONSource reads newline-delimited JSON commit records
type JSONSource struct {
	scanner *bufio.Scanner
	line    int
}

// NewJSONSource creates a source over an already decompressed stream
func NewJSONSource(r io.Reader) *JSONSource {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), maxLineLength)
	return &JSONSource{scanner: scanner}
}

// Next returns the next record
func (s *JSONSource) Next() (models.Record, error) {
	for s.scanner.Scan() {
		s.line++
		line := s.scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		return parseRecord(line, s.line)
	}
	if err := s.scanner.Err(); err != nil {
		return models.Record{}, errors.FileSystemErrorf(err, "read input line %d", s.line+1)
	}
	return models.Record{}, io.EOF
}

func parseRecord(line []byte, lineNo int) (models.Record, error) {
	if !gjson.ValidBytes(line) {
		return models.Record{}, malformed(lineNo, "invalid json")
	}

	fields := gjson.GetManyBytes(line, pathHash, pathDate, pathParents, pathMessage)
	hash, date, parents, message := fields[0], fields[1], fields[2], fields[3]

	if hash.Type != gjson.String || hash.Str == "" {
		return models.Record{}, malformed(lineNo, "missing commit hash")
	}

	ts, ok := parseDate(date.String())
	if !ok {
		return models.Record{}, malformed(lineNo, "bad commit date %q", date.String())
	}

	rec := models.Record{
		Hash: hash.Str,
		Date: ts,
	}
	for _, p := range parents.Array() {
		if p.Type == gjson.String && p.Str != "" {
			rec.Parents = append(rec.Parents, p.Str)
		}
	}
	if message.Exists() && message.Type != gjson.Null {
		msg := message.String()
		rec.Message = &msg
	}
	return rec, nil
}

func parseDate(s string) (time.Time, bool) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func malformed(lineNo int, format string, args ...interface{}) error {
	err := errors.ValidationErrorf(format, args...).WithField("line", lineNo)
	err.Cause = ErrMalformedRecord
	return err
}
