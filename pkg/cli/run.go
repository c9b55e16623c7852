package cli

import (
	"time"

	"github.com/macreleaser/xcdeploy/pkg/pipeline"
	"github.com/spf13/cobra"
)

// runCmd represents the run command
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Build, sign, and distribute the project",
	Long: `Run the primary phase of a CI job.
This establishes an ephemeral signing context, resolves the Xcode project,
reconciles the build number, archives and exports, signs and notarizes
macOS output, uploads to App Store Connect, and publishes the build to
TestFlight testers.

Signing resources are left in place when the run fails. Call
"xcdeploy cleanup" afterwards, whatever the outcome.`,
	Run: runRun,
}

func runRun(cmd *cobra.Command, args []string) {
	logger := SetupLogger(GetDebugMode())
	start := time.Now()

	ctx, err := loadContext(cmd, logger)
	if err != nil {
		ExitWithErrorf(logger, "%v", err)
	}

	if err := pipeline.RunAll(ctx); err != nil {
		ExitWithError(logger, "Run failed after "+formatDuration(time.Since(start)), err)
	}

	logger.Infof("Run succeeded after %s", formatDuration(time.Since(start)))
}
