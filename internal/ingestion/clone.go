package ingestion

import (
	"context"
	"crypto/sha256"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"

	"github.com/rohankatakam/bicmine/internal/errors"
)

// IsRemoteRepo reports whether repo names a remote URL rather than a local path
func IsRemoteRepo(repo string) bool {
	for _, prefix := range []string{"https://", "http://", "ssh://", "git://", "git@"} {
		if strings.HasPrefix(repo, prefix) {
			return true
		}
	}
	return false
}

// DefaultCloneDir is where remote repositories are cached
func DefaultCloneDir() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".bicmine", "repos")
}

// CloneRepository makes a bare clone of url with full history under
// cloneDir/<repo-hash>/ and returns its path. An existing valid clone is
// reused as is.
func CloneRepository(ctx context.Context, url, cloneDir string) (string, error) {
	if cloneDir == "" {
		cloneDir = DefaultCloneDir()
	}
	repoPath := filepath.Join(cloneDir, generateRepoHash(url))

	if _, err := os.Stat(repoPath); err == nil {
		if isValidGitRepo(repoPath) {
			return repoPath, nil
		}
		// Invalid repo, remove and re-clone
		os.RemoveAll(repoPath)
	}

	if err := os.MkdirAll(cloneDir, 0755); err != nil {
		return "", errors.FileSystemErrorf(err, "create clone directory %s", cloneDir)
	}

	_, err := git.PlainCloneContext(ctx, repoPath, true, &git.CloneOptions{
		URL:  url,
		Tags: git.NoTags,
	})
	if err != nil {
		os.RemoveAll(repoPath)
		return "", errors.ExternalError(err, fmt.Sprintf("clone %s", url))
	}
	return repoPath, nil
}

// generateRepoHash creates a unique hash from repository URL
func generateRepoHash(url string) string {
	url = strings.TrimSuffix(url, "/")
	url = strings.TrimSuffix(url, ".git")

	h := sha256.Sum256([]byte(url))
	return fmt.Sprintf("%x", h)[:16]
}

// isValidGitRepo checks if path opens as a git repository
func isValidGitRepo(path string) bool {
	_, err := git.PlainOpen(path)
	return err == nil
}
