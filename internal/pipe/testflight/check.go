package testflight

import (
	"strings"

	"github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/errs"
)

// skipError signals an intentional skip. It satisfies the pipe.IsSkip interface
// checked by the pipeline runner, without importing pkg/pipe (which would cause
// an import cycle through pkg/pipe/registry.go).
type skipError string

func (e skipError) Error() string { return string(e) }
func (e skipError) IsSkip() bool  { return true }

// CheckPipe validates TestFlight distribution configuration
type CheckPipe struct{}

func (CheckPipe) String() string { return "validating TestFlight configuration" }

func (CheckPipe) Run(ctx *context.Context) error {
	cfg := ctx.Config.TestFlight

	for i, name := range cfg.TestGroups {
		if strings.TrimSpace(name) == "" {
			return errs.Config("testflight.test_groups[%d] is empty", i)
		}
	}
	if cfg.Poll.Attempts <= 0 {
		return errs.Config("testflight.poll.attempts must be positive")
	}
	if cfg.Poll.IntervalSeconds <= 0 {
		return errs.Config("testflight.poll.interval_seconds must be positive")
	}

	ctx.Logger.Debug("TestFlight configuration validated successfully")
	return nil
}
