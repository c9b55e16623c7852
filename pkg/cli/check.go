package cli

import (
	"github.com/macreleaser/xcdeploy/pkg/pipeline"
	"github.com/spf13/cobra"
)

// checkCmd represents the check command
var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate configuration",
	Long: `Validate the .xcdeploy.yaml configuration together with any
command line overrides. This checks required credentials, option values,
regular expressions, and referenced plist files without running any build
step.`,
	Run: runCheck,
}

// runCheck executes the check command
func runCheck(cmd *cobra.Command, args []string) {
	logger := SetupLogger(GetDebugMode())

	ctx, err := loadContext(cmd, logger)
	if err != nil {
		ExitWithErrorf(logger, "%v", err)
	}

	logger.Info("Configuration loaded successfully")

	// Run validation pipeline only
	if err := pipeline.RunValidation(ctx); err != nil {
		ExitWithError(logger, "Configuration validation failed", err)
	}

	logger.Info("Configuration is valid")
}
