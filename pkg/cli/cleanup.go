package cli

import (
	"context"
	"time"

	"github.com/macreleaser/xcdeploy/pkg/config"
	macContext "github.com/macreleaser/xcdeploy/pkg/context"
	"github.com/macreleaser/xcdeploy/pkg/pipeline"
	"github.com/macreleaser/xcdeploy/pkg/redact"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// cleanupTimeout bounds the post step so a hung keychain or API call cannot
// hold the job.
const cleanupTimeout = 5 * time.Minute

// cleanupCmd represents the cleanup command
var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Remove the signing context created by run",
	Long: `Run the post phase of a CI job.
This reads the state record written by "xcdeploy run" and removes the
provisioning profile, keychain, signing certificates created during the
run, and the API key file. Every step is attempted even if an earlier
one fails. It succeeds when there is nothing to clean up.`,
	Run: runCleanup,
}

func runCleanup(cmd *cobra.Command, args []string) {
	logger := SetupLogger(GetDebugMode())

	// Cleanup never needs the config file, and runs even when it is broken.
	cfg := &config.Config{State: config.StateConfig{Path: GetStateFile()}}
	if loaded, err := config.LoadOptional(GetConfigPath()); err == nil && cfg.State.Path == "" {
		cfg.State.Path = loaded.State.Path
	}

	ctx, cancel := cleanupContext(cmd.Context(), cfg, logger)
	defer cancel()

	if err := pipeline.Cleanup(ctx); err != nil {
		if strict, _ := cmd.Flags().GetBool("strict"); strict {
			ExitWithError(logger, "Cleanup failed", err)
		}
		logger.WithError(err).Warn("Cleanup could not read the signing state")
	}
}

// cleanupContext detaches from parent's cancellation, since the post step
// must finish even while the job is being torn down, and redacts the
// secrets teardown registers from the state record.
func cleanupContext(parent context.Context, cfg *config.Config, logger *logrus.Logger) (*macContext.Context, context.CancelFunc) {
	stdCtx, cancel := context.WithTimeout(context.WithoutCancel(parent), cleanupTimeout)
	ctx := macContext.NewContext(stdCtx, cfg, logger)
	logger.AddHook(redact.NewHook(ctx.Masker))
	return ctx, cancel
}
