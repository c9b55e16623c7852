// Package version reconciles the project build number with the builds
// already uploaded to App Store Connect.
package version

import (
	"fmt"

	"github.com/macreleaser/xcdeploy/pkg/buildnumber"
	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/testflight"
)

type skipError string

func (e skipError) Error() string { return string(e) }
func (e skipError) IsSkip() bool  { return true }

// Pipe bumps the build number past the latest remote build when
// auto-increment is enabled.
type Pipe struct{}

func (Pipe) String() string { return "reconciling build number" }

func (Pipe) Run(ctx *context.Context) error {
	if !ctx.Config.Version.AutoIncrementBuildNumber {
		return skipError("build number auto-increment disabled")
	}
	if ctx.ASC == nil {
		return fmt.Errorf("no App Store Connect client available")
	}

	meta := ctx.Project.Version
	platform, err := ctx.Project.Platform.ASC()
	if err != nil {
		return err
	}

	remote, err := testflight.LatestBuildNumber(ctx.StdCtx, ctx.ASC, ctx.Logger, testflight.Query{
		AppID:        ctx.Project.AppID,
		Platform:     platform,
		ShortVersion: meta.ShortVersion,
	})
	if err != nil {
		return err
	}

	next, err := buildnumber.Reconcile(meta.BuildNumber, remote)
	if err != nil {
		return err
	}
	if remote == "" {
		ctx.Logger.Infof("No uploaded build for %s, keeping build number %s", meta.ShortVersion, next)
	} else {
		ctx.Logger.Infof("Latest uploaded build is %s, build number %s -> %s", remote, meta.BuildNumber, next)
	}
	return meta.SetBuildNumber(next)
}
