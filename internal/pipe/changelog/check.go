package changelog

import (
	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/validate"
)

// skipError signals an intentional skip. It satisfies the pipe.IsSkip interface
// checked by the pipeline runner, without importing pkg/pipe (which would cause
// an import cycle through pkg/pipe/registry.go).
type skipError string

func (e skipError) Error() string { return string(e) }
func (e skipError) IsSkip() bool  { return true }

// CheckPipe validates release notes configuration.
type CheckPipe struct{}

func (CheckPipe) String() string { return "validating release notes configuration" }

func (CheckPipe) Run(ctx *context.Context) error {
	cfg := ctx.Config.TestFlight

	if cfg.WhatsNew != "" {
		if len(cfg.Filters.Include) > 0 || len(cfg.Filters.Exclude) > 0 {
			ctx.Logger.Warn("testflight.filters are ignored when testflight.whats_new is set")
		}
		return nil
	}

	if err := validate.Regexps(cfg.Filters.Exclude, "testflight.filters.exclude"); err != nil {
		return err
	}
	if err := validate.Regexps(cfg.Filters.Include, "testflight.filters.include"); err != nil {
		return err
	}

	ctx.Logger.Debug("Release notes configuration validated successfully")
	return nil
}
