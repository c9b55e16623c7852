// Package archive runs `xcodebuild archive` for the resolved project.
package archive

import (
	"fmt"

	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/xcode"
	"github.com/sirupsen/logrus"
)

// Pipe archives the scheme with the run's signing context.
type Pipe struct{}

func (Pipe) String() string { return "archiving project" }

func (Pipe) Run(ctx *context.Context) error {
	p := &ctx.Project
	if p.Path == "" {
		return fmt.Errorf("no project resolved to archive")
	}

	a := xcode.ArchiveArgs{
		Project:          p.Located,
		Scheme:           p.Scheme,
		Destination:      p.Destination,
		Configuration:    p.Configuration,
		ArchivePath:      p.ArchivePath,
		Platform:         p.Platform,
		ExportMethod:     p.ExportMethod,
		EntitlementsPath: p.EntitlementsPath,
		Quiet:            !ctx.Logger.IsLevelEnabled(logrus.DebugLevel),
	}
	if p.Version != nil {
		a.Settings = p.Version.BuildSettingOverrides()
	}
	if c := ctx.Credential; c != nil {
		a.APIKeyID, a.APIKeyPath, a.IssuerID = c.APIKeyID, c.APIKeyPath, c.IssuerID
		a.TeamID = c.TeamID
		a.SigningIdentity = c.SigningIdentity
		a.KeychainPath = c.KeychainPath
		a.ProvisioningProfileUUID = c.ProvisioningProfileUUID
	}

	ctx.Logger.Infof("Archiving %s to %s", p.Scheme, p.ArchivePath)
	x := &xcode.Xcodebuild{Runner: ctx.Runner, Logger: ctx.Logger, Outputs: ctx.Outputs}
	if _, err := x.Run(ctx.StdCtx, "Archive "+p.Scheme, xcode.BuildArchiveArgs(a)); err != nil {
		return fmt.Errorf("archive failed: %w", err)
	}

	ctx.Logger.Infof("Archived: %s", p.ArchivePath)
	return nil
}
