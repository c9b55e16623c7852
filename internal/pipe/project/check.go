package project

import (
	"os"

	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/macreleaser/xcdeploy/pkg/validate"
	"github.com/macreleaser/xcdeploy/pkg/xcode"
)

// ExportOptions lists the accepted export.option values, including the names
// Xcode 15.3 introduced.
var ExportOptions = []string{
	xcode.ExportAppStore, xcode.ExportAdHoc, xcode.ExportDevelopment, xcode.ExportDeveloperID, xcode.ExportSteam,
	"app-store-connect", "release-testing", "debugging",
}

// CheckPipe validates project and export configuration
type CheckPipe struct{}

func (CheckPipe) String() string { return "validating project configuration" }

func (CheckPipe) Run(ctx *context.Context) error {
	cfg := ctx.Config

	if err := validate.RequiredString(cfg.Project.Path, "project.path"); err != nil {
		return err
	}
	if cfg.Project.Platform != "" {
		if _, err := xcode.ParsePlatform(cfg.Project.Platform); err != nil {
			return err
		}
	}
	if err := validate.OneOf(cfg.Export.Option, ExportOptions, "export.option"); err != nil {
		return err
	}
	if err := validate.OneOf(cfg.Export.ArchiveType, []string{"app", "pkg", "dmg"}, "export.archive_type"); err != nil {
		return err
	}

	for field, path := range map[string]string{
		"export.options_plist":      cfg.Export.OptionsPlist,
		"export.entitlements_plist": cfg.Export.EntitlementsPlist,
	} {
		if path == "" {
			continue
		}
		if _, err := os.Stat(path); err != nil {
			return errs.E(errs.CodeInvalidConfig, field+" is not readable", err)
		}
	}

	ctx.Logger.Debug("Project configuration validated successfully")
	return nil
}
