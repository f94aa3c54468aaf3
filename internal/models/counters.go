package models

// Counters holds the exact per-run classification counts.
// Load-phase fields are filled by the loader, annotate-phase fields by the
// annotator; both take the accumulator from the caller.
type Counters struct {
	// Load phase
	Records     int `json:"records" yaml:"records"`
	Malformed   int `json:"malformed" yaml:"malformed"`
	Duplicates  int `json:"duplicates" yaml:"duplicates"`
	ShortHashes int `json:"short_hashes" yaml:"short_hashes"`
	ShortFixes  int `json:"short_fixes" yaml:"short_fixes"`
	NoNewline   int `json:"no_newline" yaml:"no_newline"`

	NoMessage       int `json:"no_message" yaml:"no_message"`
	NoFixesDeclared int `json:"no_fixes_declared" yaml:"no_fixes_declared"`
	Declared        int `json:"declared" yaml:"declared"`
	Unparsed        int `json:"unparsed" yaml:"unparsed"`

	// Annotate phase
	NoCandidate  int `json:"no_candidate" yaml:"no_candidate"`
	TooShort     int `json:"too_short" yaml:"too_short"`
	NotFound     int `json:"not_found" yaml:"not_found"`
	NoPath       int `json:"no_path" yaml:"no_path"`
	Resolved     int `json:"resolved" yaml:"resolved"`
	SearchCapped int `json:"search_capped" yaml:"search_capped"`
}

// AddKind counts one extractor classification
func (c *Counters) AddKind(k FixesKind) {
	switch k {
	case FixesNoMessage:
		c.NoMessage++
	case FixesNotDeclared:
		c.NoFixesDeclared++
	case FixesDeclared:
		c.Declared++
	case FixesUnparsed:
		c.Unparsed++
	}
}

// AddOutcome counts one annotator outcome
func (c *Counters) AddOutcome(o Outcome) {
	switch o {
	case OutcomeNoCandidate:
		c.NoCandidate++
	case OutcomeTooShort:
		c.TooShort++
	case OutcomeNotFound:
		c.NotFound++
	case OutcomeNoPath:
		c.NoPath++
	case OutcomeResolved:
		c.Resolved++
	}
}

// Annotated returns the number of commits that went through the annotator
func (c Counters) Annotated() int {
	return c.NoCandidate + c.TooShort + c.NotFound + c.NoPath + c.Resolved
}
