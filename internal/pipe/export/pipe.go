// Package export exports the archive into the distributable artifact.
package export

import (
	"fmt"
	"path/filepath"

	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/xcode"
	"github.com/sirupsen/logrus"
)

// Pipe writes export options when none were supplied, runs
// `xcodebuild -exportArchive` and locates the exported artifact.
type Pipe struct{}

func (Pipe) String() string { return "exporting archive" }

func (Pipe) Run(ctx *context.Context) error {
	p := &ctx.Project

	if p.ExportOptionsPath == "" {
		path, err := writeExportOptions(ctx)
		if err != nil {
			return err
		}
		p.ExportOptionsPath = path
	}

	a := xcode.ExportArgs{
		ArchivePath:        p.ArchivePath,
		ExportPath:         p.ExportPath,
		ExportOptionsPlist: p.ExportOptionsPath,
		Quiet:              !ctx.Logger.IsLevelEnabled(logrus.DebugLevel),
	}
	if c := ctx.Credential; c != nil {
		a.APIKeyID, a.APIKeyPath, a.IssuerID = c.APIKeyID, c.APIKeyPath, c.IssuerID
	}

	x := &xcode.Xcodebuild{Runner: ctx.Runner, Logger: ctx.Logger, Outputs: ctx.Outputs}
	if _, err := x.Run(ctx.StdCtx, "Export "+p.Scheme, xcode.BuildExportArgs(a)); err != nil {
		return fmt.Errorf("export failed: %w", err)
	}

	artifact, err := xcode.FindArtifact(p.ExportPath, xcode.ArtifactSuffix(p.Platform, p.ExportMethod))
	if err != nil {
		return err
	}
	p.ArtifactPath = artifact
	ctx.Logger.Infof("Exported: %s", artifact)
	return nil
}

func writeExportOptions(ctx *context.Context) (string, error) {
	p := &ctx.Project
	var teamID, identity, profileUUID string
	if c := ctx.Credential; c != nil {
		teamID, identity, profileUUID = c.TeamID, c.SigningIdentity, c.ProvisioningProfileUUID
	}

	path := filepath.Join(p.Dir(), "exportOptions.plist")
	opts := xcode.NewExportOptions(p.ExportMethod, teamID, identity, p.BundleID, profileUUID)
	if err := xcode.WriteExportOptions(path, opts); err != nil {
		return "", fmt.Errorf("failed to write export options: %w", err)
	}
	ctx.Logger.Debugf("Wrote export options (%s, %s signing) to %s", opts.Method, opts.SigningStyle, path)
	return path, nil
}
