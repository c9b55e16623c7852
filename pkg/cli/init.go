package cli

import (
	"os"

	"github.com/macreleaser/xcdeploy/pkg/config"
	"github.com/spf13/cobra"
)

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate example xcdeploy configuration",
	Long: `Generate an example configuration file at the --config path.
Secrets in the example are env() and awssm() references so the file can be
committed.`,
	Run: runInit,
}

// runInit executes the init command
func runInit(cmd *cobra.Command, args []string) {
	logger := SetupLogger(GetDebugMode())
	configPath := GetConfigPath()

	// Check if config file already exists
	if _, err := os.Stat(configPath); err == nil {
		logger.Infof("Configuration file %s already exists", configPath)
		os.Exit(0)
	}

	// Save the example configuration
	if err := config.SaveConfig(configPath, config.ExampleConfig()); err != nil {
		ExitWithErrorf(logger, "Failed to save configuration: %v", err)
	}

	logger.Infof("Example configuration created: %s", configPath)
	logger.Info("Edit this file to match your project requirements")
}
