// Package pipeline executes all registered pipes in sequence.
//
// A CI job drives two phases, each in its own process:
//   - Run: validation pipes, then execution pipes that establish signing,
//     build, and distribute
//   - Cleanup: tears down whatever the run recorded in the state file,
//     however the run ended
//
// Usage:
//
//	ctx := context.NewContext(context.Background(), cfg, logger)
//	if err := pipeline.RunAll(ctx); err != nil {
//	    // Handle error
//	}
//
// and later, in the post step:
//
//	err := pipeline.Cleanup(ctx)
package pipeline

import (
	"errors"
	"fmt"
	"time"

	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/logging"
	"github.com/macreleaser/xcdeploy/pkg/pipe"
	"github.com/macreleaser/xcdeploy/pkg/state"
)

// RunValidation executes only the validation pipes.
// Used by the check command.
func RunValidation(ctx *context.Context) error {
	return runPipes(ctx, pipe.ValidationPipes)
}

// RunExecution executes only the execution pipes.
// Should be called after RunValidation succeeds.
func RunExecution(ctx *context.Context) error {
	return runPipes(ctx, pipe.ExecutionPipes)
}

// RunAll executes validation pipes first, then execution pipes.
// Used by the run command. Signing resources are left in place on failure
// for Cleanup to remove.
func RunAll(ctx *context.Context) error {
	if err := RunValidation(ctx); err != nil {
		return err
	}
	return RunExecution(ctx)
}

// Cleanup removes the signing context recorded by a previous run. Step
// failures are logged, not returned; only an unreadable state file is an
// error.
func Cleanup(ctx *context.Context) error {
	if ctx.Store == nil {
		store, err := state.NewStore(ctx.Config.State.Path)
		if err != nil {
			return err
		}
		ctx.Store = store
	}
	ctx.Logger.Infof("%scleanup (%s)", logging.Running, ctx.Store.Path)
	return ctx.CredentialManager().Teardown(ctx.StdCtx)
}

// runPipes executes a slice of pipes in sequence.
func runPipes(ctx *context.Context, pipes []Piper) error {
	for _, p := range pipes {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: %w", p.String(), err)
		}
		ctx.Logger.Info(logging.Running + p.String())
		start := time.Now()

		if err := p.Run(ctx); err != nil {
			if isSkip(err) {
				ctx.Logger.Infof("%s%v", logging.Skipping, err)
				continue
			}
			return fmt.Errorf("%s: %w", p.String(), err)
		}

		duration := time.Since(start)
		ctx.Logger.Infof("%s%s (%s)", logging.Completed, p.String(), duration.Round(time.Millisecond))
	}
	return nil
}

func isSkip(err error) bool {
	var s pipe.IsSkip
	return errors.As(err, &s) && s.IsSkip()
}

// Piper is re-exported for convenience within the pipeline package.
type Piper = pipe.Piper
