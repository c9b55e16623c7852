package github

import (
	"context"
	"fmt"

	"github.com/macreleaser/xcdeploy/pkg/git"
)

// Ensure MockClient implements ClientInterface
var _ ClientInterface = (*MockClient)(nil)

// MockClient is a mock implementation of the GitHub client for testing
type MockClient struct {
	// Commits holds history per "owner/repo", newest first.
	Commits       map[string][]git.Commit
	ErrorToReturn error
}

// NewMockClient creates a new mock GitHub client
func NewMockClient() *MockClient {
	return &MockClient{Commits: make(map[string][]git.Commit)}
}

// AddCommit prepends a commit to the history of owner/repo.
func (m *MockClient) AddCommit(owner, repo string, c git.Commit) {
	key := owner + "/" + repo
	m.Commits[key] = append([]git.Commit{c}, m.Commits[key]...)
}

func (m *MockClient) history(owner, repo, sha string) ([]git.Commit, error) {
	key := owner + "/" + repo
	for i, c := range m.Commits[key] {
		if c.Hash == sha {
			return m.Commits[key][i:], nil
		}
	}
	return nil, &NotFoundError{Message: fmt.Sprintf("commit %s not found in %s", sha, key)}
}

// ListCommits returns up to n commits starting at sha from mock data
func (m *MockClient) ListCommits(ctx context.Context, owner, repo, sha string, n int) ([]git.Commit, error) {
	if m.ErrorToReturn != nil {
		return nil, m.ErrorToReturn
	}
	h, err := m.history(owner, repo, sha)
	if err != nil {
		return nil, err
	}
	if n > 0 && len(h) > n {
		h = h[:n]
	}
	return h, nil
}
