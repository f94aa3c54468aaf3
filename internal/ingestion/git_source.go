package ingestion

import (
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/rohankatakam/bicmine/internal/errors"
	"github.com/rohankatakam/bicmine/internal/models"
)

// GitSource reads commits straight from a repository, newest first by
// committer time, starting at HEAD
type GitSource struct {
	iter object.CommitIter
}

// OpenGitSource opens the repository at path
func OpenGitSource(path string) (*GitSource, error) {
	repo, err := git.PlainOpen(path)
	if err != nil {
		return nil, errors.FileSystemErrorf(err, "open repository %s", path)
	}
	return NewGitSource(repo)
}

// NewGitSource creates a source over an opened repository
func NewGitSource(repo *git.Repository) (*GitSource, error) {
	iter, err := repo.Log(&git.LogOptions{Order: git.LogOrderCommitterTime})
	if err != nil {
		return nil, errors.ExternalError(err, "walk repository log")
	}
	return &GitSource{iter: iter}, nil
}

// Next returns the next commit, or io.EOF when the history is exhausted
func (s *GitSource) Next() (models.Record, error) {
	c, err := s.iter.Next()
	if err != nil {
		return models.Record{}, err
	}

	parents := make([]string, 0, len(c.ParentHashes))
	for _, h := range c.ParentHashes {
		parents = append(parents, h.String())
	}
	message := c.Message

	return models.Record{
		Hash:    c.Hash.String(),
		Parents: parents,
		Date:    c.Committer.When,
		Message: &message,
	}, nil
}

// Close releases the log iterator
func (s *GitSource) Close() {
	s.iter.Close()
}
