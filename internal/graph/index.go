package graph

import (
	"fmt"
	"slices"

	"github.com/rohankatakam/bicmine/internal/models"
)

// AmbiguityPolicy decides what a prefix tier does when two canonical ids
// share the same truncated prefix
type AmbiguityPolicy string

const (
	// LastWins keeps the commit inserted last for a shared prefix
	LastWins AmbiguityPolicy = "last-wins"
	// RejectAmbiguous refuses to resolve shared prefixes
	RejectAmbiguous AmbiguityPolicy = "reject"
)

// DefaultTiers are the truncated prefix lengths indexed besides the canonical one
func DefaultTiers() []int {
	return []int{9, 8, 7, 6, 5}
}

// IndexOptions configures the prefix tiers of an Index
type IndexOptions struct {
	Tiers     []int
	Ambiguity AmbiguityPolicy
}

// Index owns every commit of a load, keyed by canonical id, plus one lookup
// table per configured shorter prefix length.
//
// The index has two phases: Insert while loading, then BuildPrefixTiers seals
// it and all further access is read-only.
type Index struct {
	commits map[string]*models.Commit
	order   []*models.Commit

	tierLengths []int
	tiers       map[int]map[string]*models.Commit
	ambiguous   map[int]map[string]struct{}
	ambiguity   AmbiguityPolicy
	sealed      bool
}

// NewIndex creates an empty index
func NewIndex(opts IndexOptions) *Index {
	tiers := slices.Clone(opts.Tiers)
	if len(tiers) == 0 {
		tiers = DefaultTiers()
	}
	slices.Sort(tiers)
	tiers = slices.Compact(tiers)
	slices.Reverse(tiers)

	ambiguity := opts.Ambiguity
	if ambiguity == "" {
		ambiguity = LastWins
	}

	return &Index{
		commits:     make(map[string]*models.Commit),
		tierLengths: tiers,
		tiers:       make(map[int]map[string]*models.Commit, len(tiers)),
		ambiguous:   make(map[int]map[string]struct{}),
		ambiguity:   ambiguity,
	}
}

// Insert adds a commit under its canonical id. Inserting an id that is
// already present replaces the stored record in place, keeping its original
// position in iteration order; replaced reports whether that happened.
func (x *Index) Insert(c *models.Commit) (replaced bool, err error) {
	if x.sealed {
		return false, ErrIndexSealed
	}
	if c == nil || c.ID == "" {
		return false, fmt.Errorf("insert commit without id")
	}

	if existing, ok := x.commits[c.ID]; ok {
		*existing = *c
		return true, nil
	}

	x.commits[c.ID] = c
	x.order = append(x.order, c)
	return false, nil
}

// BuildPrefixTiers builds one mapping per tier length from truncated prefix
// to commit, walking commits in insertion order so that later insertions win
// shared prefixes. Seals the index.
func (x *Index) BuildPrefixTiers() {
	for _, length := range x.tierLengths {
		tier := make(map[string]*models.Commit, len(x.order))
		var ambiguous map[string]struct{}

		for _, c := range x.order {
			if len(c.ID) < length {
				continue
			}
			prefix := c.ID[:length]
			if prev, ok := tier[prefix]; ok && prev != c && x.ambiguity == RejectAmbiguous {
				if ambiguous == nil {
					ambiguous = make(map[string]struct{})
				}
				ambiguous[prefix] = struct{}{}
			}
			tier[prefix] = c
		}

		x.tiers[length] = tier
		if ambiguous != nil {
			x.ambiguous[length] = ambiguous
		}
	}
	x.sealed = true
}

// Resolve maps a possibly truncated identifier to the commit it names.
// Candidates longer than the canonical length are truncated first.
func (x *Index) Resolve(candidate string) (*models.Commit, error) {
	id := candidate
	if len(id) > models.CanonicalLength {
		id = id[:models.CanonicalLength]
	}
	if len(id) < x.MinLength() {
		return nil, fmt.Errorf("%q: %w", candidate, ErrIdentifierTooShort)
	}

	if len(id) == models.CanonicalLength {
		if c, ok := x.commits[id]; ok {
			return c, nil
		}
		return nil, fmt.Errorf("%q: %w", candidate, ErrIdentifierNotFound)
	}

	if _, ok := x.ambiguous[len(id)][id]; ok {
		return nil, fmt.Errorf("%q: %w", candidate, ErrIdentifierAmbiguous)
	}
	if c, ok := x.tiers[len(id)][id]; ok {
		return c, nil
	}
	return nil, fmt.Errorf("%q: %w", candidate, ErrIdentifierNotFound)
}

// MinLength is the shortest identifier the index can resolve
func (x *Index) MinLength() int {
	if len(x.tierLengths) == 0 {
		return models.CanonicalLength
	}
	return x.tierLengths[len(x.tierLengths)-1]
}

// Get returns the commit stored under a canonical id
func (x *Index) Get(id string) (*models.Commit, bool) {
	c, ok := x.commits[id]
	return c, ok
}

// Len returns the number of distinct commits
func (x *Index) Len() int {
	return len(x.order)
}

// Sealed reports whether BuildPrefixTiers has run
func (x *Index) Sealed() bool {
	return x.sealed
}

// Each calls fn for every commit in insertion order until fn returns false
func (x *Index) Each(fn func(c *models.Commit) bool) {
	for _, c := range x.order {
		if !fn(c) {
			return
		}
	}
}
