package upload

import (
	"github.com/macreleaser/xcdeploy/pkg/config"
	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/errs"
	"github.com/macreleaser/xcdeploy/pkg/xcode"
)

// skipError signals an intentional skip. It satisfies the pipe.IsSkip interface
// checked by the pipeline runner, without importing pkg/pipe (which would cause
// an import cycle through pkg/pipe/registry.go).
type skipError string

func (e skipError) Error() string { return string(e) }
func (e skipError) IsSkip() bool  { return true }

// CheckPipe validates upload configuration
type CheckPipe struct{}

func (CheckPipe) String() string { return "validating upload configuration" }

func (CheckPipe) Run(ctx *context.Context) error {
	cfg := ctx.Config
	appStore := xcode.IsAppStoreMethod(cfg.Export.Option)

	if cfg.Upload.Enabled == nil {
		if !appStore {
			return skipError("export option " + cfg.Export.Option + " is not uploaded")
		}
		return nil
	}
	if *cfg.Upload.Enabled && !appStore && cfg.Export.OptionsPlist == "" {
		return errs.Config("upload requires an app-store export, export.option is %s", cfg.Export.Option)
	}

	ctx.Logger.Debug("Upload configuration validated successfully")
	return nil
}

// enabled reports whether the built artifact goes to App Store Connect.
// Unset means upload every App Store export.
func enabled(ctx *context.Context) bool {
	return config.Bool(ctx.Config.Upload.Enabled, xcode.IsAppStoreMethod(ctx.Project.ExportMethod))
}
