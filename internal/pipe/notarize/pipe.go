package notarize

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/archive"
	"github.com/macreleaser/xcdeploy/pkg/config"
	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/notarize"
	"github.com/macreleaser/xcdeploy/pkg/xcode"
)

// Pipe notarizes the signed macOS artifact and staples the ticket to it.
type Pipe struct{}

func (Pipe) String() string { return "notarizing application" }

func (Pipe) Run(ctx *context.Context) error {
	p := &ctx.Project
	if p.Platform != xcode.PlatformMacOS || xcode.IsAppStoreMethod(p.ExportMethod) {
		return skipError("notarization only applies to macOS direct distribution")
	}
	if !config.Bool(ctx.Config.Export.Notarize, p.ExportMethod == xcode.ExportDeveloperID) {
		return skipError("notarization disabled")
	}
	if p.ArtifactPath == "" {
		return fmt.Errorf("no artifact found to notarize, ensure the sign step completed successfully")
	}
	c := ctx.Credential
	if c == nil {
		return fmt.Errorf("no API key available for notarization")
	}

	n := &notarize.Notary{
		Runner:   ctx.Runner,
		Logger:   ctx.Logger,
		KeyPath:  c.APIKeyPath,
		KeyID:    c.APIKeyID,
		IssuerID: c.IssuerID,
	}

	submit := p.ArtifactPath
	if filepath.Ext(submit) == ".app" {
		// notarytool does not accept bundles; submit a zip and staple the app.
		submit = strings.TrimSuffix(p.ArtifactPath, ".app") + "-notarize.zip"
		ctx.Logger.Info("Creating temporary ZIP for notarization submission")
		if err := archive.CreateZip(ctx.StdCtx, ctx.Runner, p.ArtifactPath, submit); err != nil {
			return fmt.Errorf("failed to create temp ZIP for notarization: %w", err)
		}
		defer func() {
			if err := os.Remove(submit); err != nil && !os.IsNotExist(err) {
				ctx.Logger.Warnf("Failed to remove %s: %v", submit, err)
			}
		}()
	}

	ctx.Outputs.Group("Notarizing " + filepath.Base(p.ArtifactPath))
	defer ctx.Outputs.EndGroup()
	return n.Notarize(ctx.StdCtx, submit, p.ArtifactPath)
}
