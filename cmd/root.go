// =============================================================================
// GTD Declaration Engine - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands (like 'check', 'process') are
// attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (gtd)
//   ├── checkCmd   (gtd check)
//   ├── exportCmd  (gtd export)
//   ├── mergeCmd   (gtd merge)
//   ├── processCmd (gtd process)
//   ├── serveCmd   (gtd serve)
//   ├── tariffsCmd (gtd tariffs import)
//   └── versionCmd (gtd version)
//
// CONFIGURATION:
//   Before any subcommand runs, the root command:
//   1. Loads the YAML configuration (--config)
//   2. Builds the slog logger (--verbose forces debug level)
//
// =============================================================================

package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/gtd-declaration-engine/internal/config"
	"github.com/ginjaninja78/gtd-declaration-engine/internal/logging"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// cfg and logger are initialized by the root command before a subcommand runs.
var (
	cfg    *config.Config
	logger *slog.Logger
)

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "gtd",
	Short: "GTD customs declaration engine - validate, correct and calculate payments",
	Long: `gtd checks Uzbekistan cargo customs declarations (GTD), fills in safe
corrections, calculates customs payments per item and exports the result as
XML or as a print-form model.

Key Features:
  - Field validation with errors and warnings reported together
  - Auto-correction with a reason code for every change
  - Duty, VAT, excise and customs fee calculation with EAEU/CIS preferences
  - Reference data from configuration, XLSX/CSV files or SQLite
  - Batch processing, HTTP API and Prometheus metrics

Example Usage:
  gtd check --file declaration.json      # Print the validation report
  gtd export --file declaration.json     # Print the XML export
  gtd process                            # Process all forms in the input directory
  gtd serve                              # Start the HTTP API`,

	SilenceUsage: true,

	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},

	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute runs the root command. It is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

func init() {
	rootCmd.SilenceErrors = true

	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file (built-in defaults when absent)",
	)

	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable debug logging",
	)
}

// initConfig loads the configuration and builds the logger. Logs go to
// stderr so that command output on stdout stays machine-readable.
func initConfig() error {
	loaded, err := config.LoadConfig(cfgFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level := loaded.LogLevel
	if verbose {
		level = "debug"
	}

	l, err := logging.New(level, loaded.LogFormat, os.Stderr)
	if err != nil {
		return fmt.Errorf("failed to configure logging: %w", err)
	}

	cfg, logger = loaded, l
	logger.Debug("configuration loaded", "path", cfgFile, "reference_driver", cfg.Reference.Driver)
	return nil
}
