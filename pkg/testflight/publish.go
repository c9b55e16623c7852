package testflight

import (
	"context"
	"fmt"
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/asc"
	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/sirupsen/logrus"
)

// DefaultLocale is used when no locale is configured.
const DefaultLocale = "en-US"

// Publisher writes TestFlight metadata for a processed build.
type Publisher struct {
	Client asc.ClientInterface
	Logger *logrus.Logger
	Locale string
}

func (p *Publisher) locale() string {
	if p.Locale == "" {
		return DefaultLocale
	}
	return p.Locale
}

// PublishNotes sets the build's "what's new" text, updating the existing
// localization when there is one and creating it otherwise.
func (p *Publisher) PublishNotes(ctx context.Context, build *asc.Build, whatsNew string) error {
	loc, err := p.Client.GetBetaBuildLocalization(ctx, build.ID, p.locale())
	switch {
	case err == nil:
		if loc.WhatsNew == whatsNew {
			p.Logger.Info("Release notes are already up to date")
			return nil
		}
		p.Logger.Info("Updating beta build localization...")
		if _, err := p.Client.UpdateBetaBuildLocalization(ctx, loc.ID, whatsNew); err != nil {
			return fmt.Errorf("failed to update release notes: %w", err)
		}
	case asc.IsNotFound(err):
		p.Logger.Info("Creating beta build localization...")
		if _, err := p.Client.CreateBetaBuildLocalization(ctx, build.ID, p.locale(), whatsNew); err != nil {
			return fmt.Errorf("failed to create release notes: %w", err)
		}
	default:
		return fmt.Errorf("failed to look up release notes: %w", err)
	}
	return nil
}

// AddToTestGroups attaches build to every named tester group in one call.
// All names must resolve.
func (p *Publisher) AddToTestGroups(ctx context.Context, appID string, build *asc.Build, names []string) error {
	if len(names) == 0 {
		return nil
	}
	groups, err := p.Client.GetBetaGroups(ctx, appID, names)
	if err != nil {
		return fmt.Errorf("failed to look up test groups: %w", err)
	}

	byName := make(map[string]string, len(groups))
	for _, g := range groups {
		byName[g.Name] = g.ID
	}
	var ids, missing []string
	for _, n := range names {
		id, ok := byName[n]
		if !ok {
			missing = append(missing, n)
			continue
		}
		ids = append(ids, id)
	}
	if len(missing) > 0 {
		return errs.E(errs.CodeNotFound, fmt.Sprintf("test groups not found: %s", strings.Join(missing, ", ")), nil)
	}

	p.Logger.Infof("Adding build %s to test groups: %s", build.Version, strings.Join(names, ", "))
	if err := p.Client.AddBuildToBetaGroups(ctx, build.ID, ids); err != nil {
		return fmt.Errorf("failed to add build to test groups: %w", err)
	}
	return nil
}

// SubmitForReview requests beta app review unless a submission exists.
func (p *Publisher) SubmitForReview(ctx context.Context, build *asc.Build) error {
	existing, err := p.Client.GetBetaAppReviewSubmission(ctx, build.ID)
	if err == nil {
		p.Logger.Infof("Build is already submitted for beta review (%s)", existing.State)
		return nil
	}
	if !asc.IsNotFound(err) {
		return fmt.Errorf("failed to look up beta review submission: %w", err)
	}
	sub, err := p.Client.CreateBetaAppReviewSubmission(ctx, build.ID)
	if err != nil {
		return fmt.Errorf("failed to submit build for beta review: %w", err)
	}
	p.Logger.Infof("Beta build is %s", sub.State)
	return nil
}

// EnableAutoNotify turns on tester notification for build.
func (p *Publisher) EnableAutoNotify(ctx context.Context, build *asc.Build) error {
	detail, err := p.Client.GetBuildBetaDetail(ctx, build.ID)
	if err != nil {
		return fmt.Errorf("failed to fetch beta build details: %w", err)
	}
	if detail.AutoNotifyEnabled {
		p.Logger.Debug("Auto-notify is already enabled")
		return nil
	}
	if _, err := p.Client.UpdateBuildBetaDetail(ctx, detail.ID, true); err != nil {
		return fmt.Errorf("failed to enable auto-notify: %w", err)
	}
	p.Logger.Info("Enabled auto-notify for testers")
	return nil
}
