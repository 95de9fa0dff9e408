// =============================================================================
// CFDI Stamp Reconciler - Root Command
// =============================================================================
//
// This file defines the root command for the Cobra CLI. The root command is
// the base command that all other commands (like 'generate', 'verify') are
// attached to.
//
// COBRA CLI STRUCTURE:
//   rootCmd (stamp-reconciler)
//   ├── generateCmd (stamp-reconciler generate)
//   ├── validateCmd (stamp-reconciler validate)
//   ├── verifyCmd   (stamp-reconciler verify)
//   └── versionCmd  (stamp-reconciler version)
//
// CONFIGURATION:
//   The root command is responsible for:
//   1. Setting up global flags (--config, --verbose)
//   2. Loading the configuration file (or the built-in defaults)
//   3. Setting up logging
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/cfdi-tools/stamp-reconciler/internal/config"
)

// =============================================================================
// GLOBAL VARIABLES
// =============================================================================

// cfgFile holds the path to the configuration file.
// This can be overridden using the --config flag.
var cfgFile string

// verbose enables debug logging when set to true.
var verbose bool

// =============================================================================
// ROOT COMMAND DEFINITION
// =============================================================================

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "stamp-reconciler",
	Short: "CFDI Stamp Reconciler - Rebuild database stamp rows from per-company CFDI documents",
	Long: `CFDI Stamp Reconciler correlates per-company CFDI invoice documents with
their database rows and emits ready-to-run UPDATE statements wrapped for the
remote doctrine console.

Each company folder under the root directory holds an XMLS/ subfolder with
the invoice documents. When an information.csv (or .xlsx) ledger is present,
ledger rows are matched to documents by RFC; otherwise each document's own
folio number is the correlation key and a search.sql folio lookup is emitted
alongside querys.sql.

Example Usage:
  stamp-reconciler generate                  # Process all company folders
  stamp-reconciler generate --root ./batch   # Use a different root directory
  stamp-reconciler validate                  # Check inputs without writing
  stamp-reconciler verify                    # Replay generated SQL through SQLite`,

	// If no subcommand is provided, print the help message.
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// =============================================================================
// EXECUTE FUNCTION
// =============================================================================

// Execute adds all child commands to the root command and sets flags
// appropriately. This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// =============================================================================
// INITIALIZATION
// =============================================================================

// init sets up the global flags.
func init() {
	// --config flag: path to the configuration file. The default config.yaml
	// is optional; an explicitly given path must exist.
	rootCmd.PersistentFlags().StringVar(
		&cfgFile,
		"config",
		"config.yaml",
		"Path to the configuration file (default is config.yaml)",
	)

	// --verbose flag: enables debug logging regardless of the configured level.
	rootCmd.PersistentFlags().BoolVarP(
		&verbose,
		"verbose",
		"v",
		false,
		"Enable verbose output for debugging",
	)
}

// =============================================================================
// SHARED RUNTIME SETUP
// =============================================================================

// initRuntime loads the configuration and builds the logger. Every
// subcommand starts here.
func initRuntime() (*config.Config, *logrus.Logger, error) {
	var cfg *config.Config
	var err error

	if rootCmd.PersistentFlags().Changed("config") {
		cfg, err = config.Load(cfgFile)
	} else {
		cfg, err = config.LoadOrDefault(cfgFile)
	}
	if err != nil {
		return nil, nil, err
	}

	log := logrus.New()
	log.SetOutput(os.Stderr)

	if cfg.LogFormat == "json" {
		log.SetFormatter(&logrus.JSONFormatter{})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	if verbose {
		level = logrus.DebugLevel
	}
	log.SetLevel(level)

	return cfg, log, nil
}
