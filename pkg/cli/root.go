package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/macreleaser/xcdeploy/pkg/config"
	"github.com/macreleaser/xcdeploy/pkg/version"
	"github.com/spf13/cobra"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:     "xcdeploy",
	Short:   "Apple platform build and TestFlight release automation",
	Version: version.VersionInfo(),
	Long: `xcdeploy archives, signs, and distributes iOS, macOS, tvOS, and visionOS
apps from CI. A job calls "xcdeploy run" to build and upload, then
"xcdeploy cleanup" in an always-run post step to remove the ephemeral
keychain, API key, and signing certificates the run created.`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := cmd.Help(); err != nil {
			fmt.Fprintf(os.Stderr, "Error displaying help: %v\n", err)
			os.Exit(1)
		}
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
// Cancelling ctx stops the run between pipes and kills running commands.
func Execute(ctx context.Context) error {
	registerCommands()
	rootCmd.SetVersionTemplate("{{.Version}}\n")
	return rootCmd.ExecuteContext(ctx)
}

// registerCommands initializes flags and registers all subcommands
func registerCommands() {
	// Set up persistent flags
	rootCmd.PersistentFlags().String("config", config.DefaultPath, "config file path (optional)")
	rootCmd.PersistentFlags().Bool("debug", false, "enable debug mode")
	rootCmd.PersistentFlags().String("state-file", "", "signing state record shared by run and cleanup")

	// Add all subcommands
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(cleanupCmd)
	rootCmd.AddCommand(initCmd)

	addConfigFlags(runCmd.Flags())
	addConfigFlags(checkCmd.Flags())
	cleanupCmd.Flags().Bool("strict", false, "fail when the state file exists but cannot be read")
}

// GetConfigPath returns the config file path from flags
func GetConfigPath() string {
	configPath, _ := rootCmd.PersistentFlags().GetString("config")
	return configPath
}

// GetDebugMode returns debug mode flag value
func GetDebugMode() bool {
	debug, _ := rootCmd.PersistentFlags().GetBool("debug")
	return debug
}

// GetStateFile returns the --state-file value
func GetStateFile() string {
	path, _ := rootCmd.PersistentFlags().GetString("state-file")
	return path
}
