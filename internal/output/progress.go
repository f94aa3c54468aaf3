package output

import (
	"fmt"
	"io"
	"os"

	"github.com/gosuri/uilive"
	"github.com/sirupsen/logrus"
	"golang.org/x/term"
)

// Progress reports load and annotate progress. On a terminal it redraws a
// single live line; otherwise it emits log entries.
type Progress struct {
	live   *uilive.Writer
	logger *logrus.Logger
}

// NewProgress picks live output when out is a terminal
func NewProgress(out *os.File, logger *logrus.Logger) *Progress {
	p := &Progress{logger: logger}
	if out != nil && term.IsTerminal(int(out.Fd())) {
		p.live = uilive.New()
		p.live.Out = out
		p.live.Start()
	}
	return p
}

// NewLogProgress reports through logger only
func NewLogProgress(logger *logrus.Logger) *Progress {
	return &Progress{logger: logger}
}

// Loading reports the number of records read so far
func (p *Progress) Loading(records int) {
	if p.live != nil {
		fmt.Fprintf(p.live, "Loading commits: %d records\n", records)
		return
	}
	if p.logger != nil {
		p.logger.WithField("records", records).Info("Loading commits")
	}
}

// Annotating reports annotate progress
func (p *Progress) Annotating(done, total int) {
	pct := 100.0
	if total > 0 {
		pct = float64(done) * 100 / float64(total)
	}
	if p.live != nil {
		fmt.Fprintf(p.live, "Annotating fixes: %d/%d (%.1f%%)\n", done, total, pct)
		return
	}
	if p.logger != nil {
		p.logger.WithFields(logrus.Fields{
			"done":    done,
			"total":   total,
			"percent": fmt.Sprintf("%.1f", pct),
		}).Info("Annotating fixes")
	}
}

// Bypass returns a writer that prints above the live line
func (p *Progress) Bypass() io.Writer {
	if p.live != nil {
		return p.live.Bypass()
	}
	return os.Stdout
}

// Stop flushes and releases the live line
func (p *Progress) Stop() {
	if p.live != nil {
		p.live.Stop()
		p.live = nil
	}
}
