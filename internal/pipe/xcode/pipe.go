package xcode

import (
	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/xcode"
)

// Pipe selects the requested Xcode and records the active version, which
// decides the export method names.
type Pipe struct{}

func (Pipe) String() string { return "selecting Xcode" }

func (Pipe) Run(ctx *context.Context) error {
	if request := ctx.Config.Project.XcodeVersion; request != "" {
		if err := xcode.SelectXcode(ctx.StdCtx, ctx.Runner, ctx.Logger, request); err != nil {
			return err
		}
	}

	v, err := xcode.ActiveXcodeVersion(ctx.StdCtx, ctx.Runner)
	if err != nil {
		return err
	}
	ctx.XcodeVersion = v
	ctx.Logger.Infof("Using Xcode %s", v)
	return nil
}
