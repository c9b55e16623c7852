// Package upload validates exported builds and delivers them to App Store
// Connect.
package upload

import (
	"fmt"

	"github.com/macreleaser/xcdeploy/pkg/altool"
	"github.com/macreleaser/xcdeploy/pkg/context"
)

func tool(ctx *context.Context) (*altool.Tool, altool.Package, error) {
	p := &ctx.Project
	if p.ArtifactPath == "" {
		return nil, altool.Package{}, fmt.Errorf("no artifact found to upload, ensure the export step completed successfully")
	}
	c := ctx.Credential
	if c == nil {
		return nil, altool.Package{}, fmt.Errorf("no API key available for upload")
	}
	kind, err := p.Platform.AltoolType()
	if err != nil {
		return nil, altool.Package{}, err
	}

	pkg := altool.Package{
		Path:     p.ArtifactPath,
		Type:     kind,
		AppID:    p.AppID,
		BundleID: p.BundleID,
	}
	if p.Version != nil {
		pkg.BuildNumber = p.Version.BuildNumber
		pkg.ShortVersion = p.Version.ShortVersion
	}
	t := &altool.Tool{
		Runner:   ctx.Runner,
		Logger:   ctx.Logger,
		KeyID:    c.APIKeyID,
		IssuerID: c.IssuerID,
	}
	return t, pkg, nil
}

// ValidatePipe checks the artifact against App Store requirements before
// it is uploaded.
type ValidatePipe struct{}

func (ValidatePipe) String() string { return "validating package" }

func (ValidatePipe) Run(ctx *context.Context) error {
	if !enabled(ctx) {
		return skipError("upload disabled")
	}
	t, pkg, err := tool(ctx)
	if err != nil {
		return err
	}
	ctx.Logger.Infof("Validating %s", pkg.Path)
	return t.Validate(ctx.StdCtx, pkg)
}

// Pipe uploads the artifact.
type Pipe struct{}

func (Pipe) String() string { return "uploading" }

func (Pipe) Run(ctx *context.Context) error {
	if !enabled(ctx) {
		return skipError("upload disabled")
	}
	t, pkg, err := tool(ctx)
	if err != nil {
		return err
	}
	if pkg.AppID == "" {
		return fmt.Errorf("no App Store Connect app found for bundle id %s, create the app record before uploading", pkg.BundleID)
	}

	ctx.Logger.Infof("Uploading build %s (%s) of %s", pkg.BuildNumber, pkg.ShortVersion, pkg.BundleID)
	if err := t.Upload(ctx.StdCtx, pkg); err != nil {
		return err
	}
	ctx.Uploaded = true
	return nil
}
