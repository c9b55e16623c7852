// Package changelog produces the TestFlight "what's new" text for an
// uploaded build.
package changelog

import (
	"errors"
	"fmt"
	"os"

	"github.com/macreleaser/xcdeploy/pkg/changelog"
	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/git"
	"github.com/macreleaser/xcdeploy/pkg/github"
)

// Pipe sets ctx.WhatsNew from configuration or commit history.
type Pipe struct{}

func (Pipe) String() string { return "generating release notes" }

func (Pipe) Run(ctx *context.Context) error {
	if !ctx.Uploaded {
		return skipError("no build uploaded")
	}
	cfg := ctx.Config.TestFlight

	if cfg.WhatsNew != "" {
		ctx.WhatsNew = changelog.Truncate(cfg.WhatsNew, changelog.MaxWhatsNew)
		return nil
	}

	commits, err := commits(ctx, cfg.Commits)
	if err != nil {
		// The build is already delivered; missing notes are not worth failing for.
		ctx.Logger.WithError(err).Warn("Could not read commit history, publishing without release notes")
		return nil
	}

	notes, err := changelog.WhatsNew(commits, changelog.Filters{Include: cfg.Filters.Include, Exclude: cfg.Filters.Exclude})
	if err != nil {
		return err
	}
	ctx.WhatsNew = notes
	ctx.Logger.Debugf("Release notes:\n%s", notes)
	return nil
}

// commits reads local history, falling back to the GitHub API for shallow
// or missing checkouts.
func commits(ctx *context.Context, n int) ([]git.Commit, error) {
	local, err := git.Log(ctx.Workspace, n)
	if err == nil {
		return local, nil
	}
	if !errors.Is(err, git.ErrNoRepository) {
		return nil, err
	}

	full, sha := os.Getenv("GITHUB_REPOSITORY"), os.Getenv("GITHUB_SHA")
	if full == "" || sha == "" {
		return nil, fmt.Errorf("%s is not a git repository and GITHUB_REPOSITORY/GITHUB_SHA are not set", ctx.Workspace)
	}
	owner, repo, err := github.SplitRepository(full)
	if err != nil {
		return nil, err
	}
	client, err := ctx.NewGitHubClient(github.GetGitHubToken())
	if err != nil {
		return nil, err
	}

	ctx.Logger.Infof("Reading commit history of %s from the GitHub API", full)
	list, err := client.ListCommits(ctx.StdCtx, owner, repo, sha, n)
	if github.IsNotFound(err) {
		return nil, fmt.Errorf("%s@%s is not visible with the configured GITHUB_TOKEN: %w", full, sha, err)
	}
	return list, err
}
