package graph

import (
	"github.com/rohankatakam/bicmine/internal/models"
)

// PathResult describes one ancestor search
type PathResult struct {
	// Length is the number of parent edges from descendant to ancestor
	Length int
	// MaxFrontier is the largest frontier seen before date pruning
	MaxFrontier int
	// MaxPruned is the largest frontier seen after date pruning
	MaxPruned int
	// Visited counts distinct commits that entered a frontier
	Visited int
}

// PathResolver finds the number of commits separating a fix from the
// commit it fixes by expanding a frontier over parent edges.
//
// Frontier members committed strictly before the ancestor are dropped: this
// assumes parents are never dated after their children. History that breaks
// that assumption can make a reachable ancestor report ErrNoPath.
type PathResolver struct {
	index *Index

	// MaxHops stops the search after this many hops (0 = unlimited)
	MaxHops int
	// MaxFrontier stops the search when a frontier grows past this size (0 = unlimited)
	MaxFrontier int
}

// NewPathResolver creates a resolver over a loaded index
func NewPathResolver(index *Index) *PathResolver {
	return &PathResolver{index: index}
}

// PathLength returns the minimum number of parent hops from descendant to
// ancestor. Returns ErrNoPath (or an error wrapping it) when the ancestor is
// not reached.
func (r *PathResolver) PathLength(descendant, ancestor *models.Commit) (PathResult, error) {
	var res PathResult
	if descendant.ID == ancestor.ID {
		return res, ErrSelfReference
	}

	visited := make(map[string]struct{}, len(descendant.Parents))
	frontier := make([]string, 0, len(descendant.Parents))
	for _, p := range descendant.Parents {
		if _, seen := visited[p]; seen {
			continue
		}
		visited[p] = struct{}{}
		frontier = append(frontier, p)
	}
	res.MaxFrontier = len(frontier)
	res.MaxPruned = len(frontier)

	for len(frontier) > 0 {
		res.Length++
		if r.MaxHops > 0 && res.Length > r.MaxHops {
			res.Visited = len(visited)
			return res, ErrSearchCapped
		}

		for _, id := range frontier {
			if id == ancestor.ID {
				res.Visited = len(visited)
				return res, nil
			}
		}

		var next []string
		for _, id := range frontier {
			c, ok := r.index.Get(id)
			if !ok {
				continue
			}
			for _, p := range c.Parents {
				if _, seen := visited[p]; seen {
					continue
				}
				visited[p] = struct{}{}
				next = append(next, p)
			}
		}
		if len(next) > res.MaxFrontier {
			res.MaxFrontier = len(next)
		}
		if r.MaxFrontier > 0 && len(next) > r.MaxFrontier {
			res.Visited = len(visited)
			return res, ErrSearchCapped
		}

		frontier = r.pruneOlderThan(next, ancestor)
		if len(frontier) > res.MaxPruned {
			res.MaxPruned = len(frontier)
		}
	}

	res.Visited = len(visited)
	return res, ErrNoPath
}

// pruneOlderThan keeps ids whose commit is not dated before the ancestor.
// Ids missing from the index cannot be expanded and are dropped as well.
func (r *PathResolver) pruneOlderThan(ids []string, ancestor *models.Commit) []string {
	kept := ids[:0]
	for _, id := range ids {
		c, ok := r.index.Get(id)
		if !ok || c.Date.Before(ancestor.Date) {
			continue
		}
		kept = append(kept, id)
	}
	return kept
}
