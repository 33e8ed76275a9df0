/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/fulmenhq/pkgsync/pkg/buildinfo"
	"github.com/fulmenhq/pkgsync/pkg/exitcode"
	"github.com/fulmenhq/pkgsync/pkg/logger"
	"github.com/spf13/cobra"
)

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pkgsync",
		Short: "Incremental package updater for launcher content",
		Long: `pkgsync keeps locally installed packages up to date by downloading and
applying binary patch chains from a content origin.

Examples:
   pkgsync download spring/bar          # Update to the latest build
   pkgsync download spring/bar@test:42  # Install build 42 of the test channel
   pkgsync plan spring/bar              # Show what download would do
   pkgsync metadata spring/bar          # Refresh cached metadata only
   pkgsync cache clean --dry-run        # List cached artifacts that would be removed`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			initializeLogger(cmd)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	flags.Bool("json", false, "Output logs in JSON format")
	flags.Bool("no-color", false, "Disable colored output")
	flags.String("config", "", "Config file (default: pkgsync.yaml in ., $HOME or $PKGSYNC_HOME/config)")
	flags.String("write-path", "", "Directory packages and metadata are written to")
	flags.String("butler", "", "Path to the butler binary")
	flags.String("downloader", "", "Artifact downloader (butler|http)")
	flags.Int("max-parallel", 0, "Maximum concurrent artifact downloads (0 = unbounded)")
	flags.String("metrics-textfile", "", "Write Prometheus metrics to this file on exit")

	cmd.Version = buildinfo.Version()
	cmd.SetVersionTemplate("pkgsync {{.Version}}\n")
	return cmd
}

// registerSubcommands adds all subcommands to the root command.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newDownloadCommand())
	cmd.AddCommand(newMetadataCommand())
	cmd.AddCommand(newPlanCommand())
	cmd.AddCommand(newCacheCommand())
	cmd.AddCommand(newConfigCommand())
	cmd.AddCommand(newEnvinfoCommand())
	cmd.AddCommand(newVersionCommand())
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

func init() {
	registerSubcommands(rootCmd)
}

// Execute runs the root command. SIGINT and SIGTERM cancel the command
// context, which aborts any running download.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err == nil {
		return
	}

	code := exitCodeFor(err)
	if code == exitcode.Aborted {
		logger.Warn("Aborted")
	} else {
		logger.Error("Command execution failed", logger.Err(err))
	}
	os.Exit(code)
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")

	config := logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor,
		JSON:      jsonLogs,
		Component: "pkgsync",
	}

	if err := logger.Initialize(config); err != nil {
		// Fallback to stderr
		_, _ = os.Stderr.WriteString("Failed to initialize logger: " + err.Error() + "\n")
		os.Exit(exitcode.ConfigError)
	}
}
