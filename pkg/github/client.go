// Package github looks up commit metadata through the GitHub API when the
// workspace has no local git history.
package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/go-github/github"
	"github.com/macreleaser/xcdeploy/pkg/git"
	"golang.org/x/oauth2"
)

// NotFoundError represents a resource not found condition.
// Used by the mock client and checked by IsNotFound.
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string { return e.Message }

// IsNotFound returns true if the error represents a GitHub 404 Not Found response.
// It checks for both the real go-github ErrorResponse and the mock NotFoundError.
func IsNotFound(err error) bool {
	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) {
		return ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound
	}
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// ClientInterface defines the GitHub client contract
type ClientInterface interface {
	ListCommits(ctx context.Context, owner, repo, sha string, n int) ([]git.Commit, error)
}

// Ensure Client implements ClientInterface
var _ ClientInterface = (*Client)(nil)

// Client wraps the GitHub client with convenience methods
type Client struct {
	client *github.Client
}

// NewClient creates a new GitHub client with the provided token for authentication.
// If token is empty, an error is returned since GitHub operations require authentication.
func NewClient(token string) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("GitHub token is required")
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	httpClient := oauth2.NewClient(context.Background(), ts)
	// oauth2.NewClient returns a client without timeout, so we set it explicitly
	httpClient.Timeout = 2 * time.Minute

	return &Client{client: github.NewClient(httpClient)}, nil
}

// NewClientForRunner creates a client for the GitHub instance the job runs
// against, honoring GITHUB_API_URL on GitHub Enterprise Server.
func NewClientForRunner(token string) (*Client, error) {
	c, err := NewClient(token)
	if err != nil {
		return nil, err
	}
	if api := os.Getenv("GITHUB_API_URL"); api != "" && api != publicAPI {
		return c.WithBaseURL(api)
	}
	return c, nil
}

const publicAPI = "https://api.github.com"

// WithBaseURL points the client at a different API root, such as a GitHub
// Enterprise server.
func (c *Client) WithBaseURL(raw string) (*Client, error) {
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid GitHub API URL %q: %w", raw, err)
	}
	c.client.BaseURL = u
	return c, nil
}

// GetGitHubToken retrieves GitHub token from environment
func GetGitHubToken() string {
	return os.Getenv("GITHUB_TOKEN")
}

// SplitRepository splits "owner/repo" as found in GITHUB_REPOSITORY.
func SplitRepository(full string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(full, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("invalid repository %q, expected owner/repo", full)
	}
	return owner, repo, nil
}

// ListCommits returns up to n commits reachable from sha, newest first.
func (c *Client) ListCommits(ctx context.Context, owner, repo, sha string, n int) ([]git.Commit, error) {
	if n <= 0 {
		n = 1
	}
	opt := &github.CommitsListOptions{SHA: sha, ListOptions: github.ListOptions{PerPage: n}}
	list, _, err := c.client.Repositories.ListCommits(ctx, owner, repo, opt)
	if err != nil {
		return nil, fmt.Errorf("failed to list commits %s/%s@%s: %w", owner, repo, sha, err)
	}
	out := make([]git.Commit, 0, len(list))
	for _, rc := range list {
		if len(out) == n {
			break
		}
		out = append(out, toCommit(rc))
	}
	return out, nil
}

func toCommit(rc *github.RepositoryCommit) git.Commit {
	author := rc.GetCommit().GetAuthor()
	return git.Commit{
		Hash:    rc.GetSHA(),
		Author:  author.GetName(),
		Message: rc.GetCommit().GetMessage(),
		When:    author.GetDate(),
	}
}
