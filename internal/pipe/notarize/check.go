package notarize

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

// CheckPipe validates notarization configuration
type CheckPipe struct{}

func (CheckPipe) String() string { return "validating notarization configuration" }

func (CheckPipe) Run(ctx *context.Context) error {
	cfg := ctx.Config

	if !config.Bool(cfg.Export.Notarize, true) {
		return skipError("notarization disabled")
	}
	if cfg.Export.Notarize != nil && cfg.Project.Platform != "" {
		platform, err := xcode.ParsePlatform(cfg.Project.Platform)
		if err != nil {
			return err
		}
		if platform != xcode.PlatformMacOS {
			return errs.Config("export.notarize only applies to macOS, project.platform is %s", platform)
		}
	}

	ctx.Logger.Debug("Notarization configuration validated successfully")
	return nil
}
