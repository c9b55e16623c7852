// Package git reads commit metadata from the local repository.
package git

import (
	"errors"
	"fmt"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
)

// ErrNoRepository is returned when dir is not inside a git work tree.
var ErrNoRepository = errors.New("not a git repository")

// Commit is the subset of commit metadata used for release notes.
type Commit struct {
	Hash    string
	Author  string
	Message string
	When    time.Time
}

// ShortHash returns the first seven characters of the hash.
func (c Commit) ShortHash() string {
	if len(c.Hash) > 7 {
		return c.Hash[:7]
	}
	return c.Hash
}

func open(dir string) (*gogit.Repository, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		if errors.Is(err, gogit.ErrRepositoryNotExists) {
			return nil, ErrNoRepository
		}
		return nil, fmt.Errorf("failed to open repository: %w", err)
	}
	return repo, nil
}

// Log returns up to n commits reachable from HEAD, newest first.
func Log(dir string, n int) ([]Commit, error) {
	if n <= 0 {
		n = 1
	}
	repo, err := open(dir)
	if err != nil {
		return nil, err
	}
	head, err := repo.Head()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve HEAD: %w", err)
	}
	iter, err := repo.Log(&gogit.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, fmt.Errorf("failed to read history: %w", err)
	}
	defer iter.Close()

	var commits []Commit
	for len(commits) < n {
		c, err := iter.Next()
		if err != nil {
			break
		}
		commits = append(commits, fromObject(c))
	}
	if len(commits) == 0 {
		return nil, fmt.Errorf("no commits reachable from HEAD")
	}
	return commits, nil
}

func fromObject(c *object.Commit) Commit {
	return Commit{
		Hash:    c.Hash.String(),
		Author:  c.Author.Name,
		Message: c.Message,
		When:    c.Author.When,
	}
}
