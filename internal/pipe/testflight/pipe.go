// Package testflight waits for the uploaded build to finish processing and
// publishes its release notes and tester distribution.
package testflight

import (
	"fmt"
	"time"

	"github.com/macreleaser/xcdeploy/pkg/asc"
	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/testflight"
)

// Pipe publishes the uploaded build to TestFlight.
type Pipe struct{}

func (Pipe) String() string { return "publishing to TestFlight" }

func (Pipe) Run(ctx *context.Context) error {
	if !ctx.Uploaded {
		return skipError("no build uploaded")
	}
	if ctx.ASC == nil {
		return fmt.Errorf("no App Store Connect client available")
	}
	cfg := ctx.Config.TestFlight
	p := &ctx.Project

	platform, err := p.Platform.ASC()
	if err != nil {
		return err
	}
	poller := &testflight.Poller{Client: ctx.ASC, Logger: ctx.Logger, Sleep: ctx.Sleep}
	build, err := poller.Poll(ctx.StdCtx, testflight.Query{
		AppID:        p.AppID,
		Platform:     platform,
		ShortVersion: p.Version.ShortVersion,
		BuildNumber:  p.Version.BuildNumber,
	}, cfg.Poll.Attempts, time.Duration(cfg.Poll.IntervalSeconds)*time.Second)
	if err != nil {
		return err
	}
	ctx.Build = build

	pub := &testflight.Publisher{Client: ctx.ASC, Logger: ctx.Logger, Locale: cfg.Locale}
	if ctx.WhatsNew != "" {
		if err := pub.PublishNotes(ctx.StdCtx, build, ctx.WhatsNew); err != nil {
			if asc.IsUnauthorized(err) {
				return err
			}
			// The binary is already delivered.
			ctx.Logger.WithError(err).Warn("Failed to publish release notes")
		}
	}

	if err := pub.AddToTestGroups(ctx.StdCtx, p.AppID, build, cfg.TestGroups); err != nil {
		return err
	}

	if !cfg.SubmitForReview {
		return nil
	}
	if err := pub.SubmitForReview(ctx.StdCtx, build); err != nil {
		return err
	}
	return pub.EnableAutoNotify(ctx.StdCtx, build)
}
