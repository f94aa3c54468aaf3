package output

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"

	"github.com/rohankatakam/bicmine/internal/errors"
	"github.com/rohankatakam/bicmine/internal/models"
)

// DateLayout is how commit dates are rendered in the fixes table
const DateLayout = "2006-01-02 15:04:05-07:00"

// FixesHeader is the header row of the fixes table
var FixesHeader = []string{"hash", "date", "fixes_hash", "fixes_date", "fixes_commits", "fixes_time"}

const flushEvery = 4096

// CSVWriter streams the fixes table, one row per commit
type CSVWriter struct {
	writer  *csv.Writer
	closer  io.Closer
	pending int
	rows    int
}

// CreateCSV creates (or truncates) path and writes the header row
func CreateCSV(path string) (*CSVWriter, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "create output %s", path)
	}
	w, err := NewCSVWriter(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	w.closer = f
	return w, nil
}

// NewCSVWriter writes the header row to w
func NewCSVWriter(w io.Writer) (*CSVWriter, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(FixesHeader); err != nil {
		return nil, errors.FileSystemError(err, "write header")
	}
	return &CSVWriter{writer: writer}, nil
}

// WriteRow appends one commit
func (c *CSVWriter) WriteRow(_ context.Context, row models.FixRow) error {
	if err := c.writer.Write(FormatRow(row)); err != nil {
		return errors.FileSystemError(err, "write row")
	}
	c.rows++
	c.pending++
	if c.pending >= flushEvery {
		c.pending = 0
		c.writer.Flush()
		if err := c.writer.Error(); err != nil {
			return errors.FileSystemError(err, "flush rows")
		}
	}
	return nil
}

// Rows returns the number of data rows written
func (c *CSVWriter) Rows() int {
	return c.rows
}

// Close flushes buffered rows and closes the file opened by CreateCSV
func (c *CSVWriter) Close(_ context.Context) error {
	c.writer.Flush()
	err := c.writer.Error()
	if c.closer != nil {
		if cerr := c.closer.Close(); err == nil {
			err = cerr
		}
		c.closer = nil
	}
	if err != nil {
		return errors.FileSystemError(err, "close output")
	}
	return nil
}

// FormatRow renders a row as table cells; absent values are empty
func FormatRow(row models.FixRow) []string {
	record := []string{row.Hash, row.Date.Format(DateLayout), row.FixesHash, "", "", ""}
	if row.FixesDate != nil {
		record[3] = row.FixesDate.Format(DateLayout)
	}
	if row.FixesCommits != nil {
		record[4] = strconv.Itoa(*row.FixesCommits)
	}
	if row.FixesSeconds != nil {
		record[5] = strconv.FormatInt(*row.FixesSeconds, 10)
	}
	return record
}
