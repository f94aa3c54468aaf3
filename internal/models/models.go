package models

import (
	"time"
)

const (
	// CanonicalLength is the number of hex characters of a commit hash used as its identity
	CanonicalLength = 10
	// MinPrefixLength is the shortest identifier that can be looked up
	MinPrefixLength = 5
)

// Record is one commit as read from a source, before canonicalisation
type Record struct {
	Hash    string
	Parents []string
	Date    time.Time
	Message *string // nil when the source record has no message field
}

// Commit represents one historical change held by the commit index
type Commit struct {
	ID      string    `json:"hash" db:"hash"`
	Date    time.Time `json:"date" db:"date"`
	Parents []string  `json:"parents"`
	Header  string    `json:"header"`

	// FixesCandidate is the identifier extracted from the message, truncated
	// to CanonicalLength. Empty when the message declares no fix.
	FixesCandidate string `json:"fixes_candidate,omitempty"`

	FixesID      string     `json:"fixes_hash,omitempty" db:"fixes_hash"`
	FixesDate    *time.Time `json:"fixes_date,omitempty" db:"fixes_date"`
	FixesSeconds *int64     `json:"fixes_time,omitempty" db:"fixes_time"`
	FixesCommits *int       `json:"fixes_commits,omitempty" db:"fixes_commits"`

	annotated bool
}

// Annotate attaches the resolved defect commit and the elapsed time.
// Annotation fields are write-once: a second call leaves the commit
// untouched and returns false.
func (c *Commit) Annotate(fixes *Commit) bool {
	if c.annotated {
		return false
	}
	c.annotated = true

	fixesDate := fixes.Date
	seconds := ElapsedSeconds(c.Date, fixes.Date)
	c.FixesID = fixes.ID
	c.FixesDate = &fixesDate
	c.FixesSeconds = &seconds
	return true
}

// SetPathLength records the number of commits between c and the commit it fixes
func (c *Commit) SetPathLength(n int) {
	if c.FixesCommits != nil {
		return
	}
	c.FixesCommits = &n
}

// Annotated reports whether Annotate has been called
func (c *Commit) Annotated() bool {
	return c.annotated
}

// ElapsedSeconds returns later-earlier rounded to the nearest second
func ElapsedSeconds(later, earlier time.Time) int64 {
	return int64(later.Sub(earlier).Round(time.Second) / time.Second)
}

// Row returns the output row for c
func (c *Commit) Row() FixRow {
	return FixRow{
		Hash:         c.ID,
		Date:         c.Date,
		FixesHash:    c.FixesID,
		FixesDate:    c.FixesDate,
		FixesCommits: c.FixesCommits,
		FixesSeconds: c.FixesSeconds,
	}
}

// FixRow is one line of the annotated table
type FixRow struct {
	Hash         string     `json:"hash" db:"hash"`
	Date         time.Time  `json:"date" db:"date"`
	FixesHash    string     `json:"fixes_hash,omitempty" db:"fixes_hash"`
	FixesDate    *time.Time `json:"fixes_date,omitempty" db:"fixes_date"`
	FixesCommits *int       `json:"fixes_commits,omitempty" db:"fixes_commits"`
	FixesSeconds *int64     `json:"fixes_time,omitempty" db:"fixes_time"`
}

// HasFix reports whether the row carries a resolved defect commit
func (r FixRow) HasFix() bool {
	return r.FixesHash != ""
}

// FixesKind classifies how a commit message was processed by the extractor
type FixesKind int

const (
	FixesNoMessage FixesKind = iota
	FixesNotDeclared
	FixesDeclared
	FixesUnparsed
)

func (k FixesKind) String() string {
	switch k {
	case FixesNoMessage:
		return "no_message"
	case FixesNotDeclared:
		return "not_declared"
	case FixesDeclared:
		return "declared"
	case FixesUnparsed:
		return "unparsed"
	default:
		return "unknown"
	}
}

// Outcome classifies what the annotator did with one commit
type Outcome int

const (
	OutcomeNoCandidate Outcome = iota
	OutcomeTooShort
	OutcomeNotFound
	OutcomeNoPath
	OutcomeResolved
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNoCandidate:
		return "no_candidate"
	case OutcomeTooShort:
		return "too_short"
	case OutcomeNotFound:
		return "not_found"
	case OutcomeNoPath:
		return "no_path"
	case OutcomeResolved:
		return "resolved"
	default:
		return "unknown"
	}
}
