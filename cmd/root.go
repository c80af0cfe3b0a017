/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/fulmenhq/assetneat/pkg/buildinfo"
	"github.com/fulmenhq/assetneat/pkg/exitcode"
	"github.com/fulmenhq/assetneat/pkg/logger"
	"github.com/joho/godotenv"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
)

// newRootCommand creates a fresh root command instance.
// This factory pattern allows tests to create isolated command trees without shared state.
func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assetneat",
		Short: "Minify scripts and styles in place and cache-bust their image references",
		Long: `Assetneat post-processes a built asset tree in place. Every .js, .mjs, .cjs
and .css file is optionally transpiled or lowered, minified, and, with
versioning on, has its image references rewritten to carry a ?v= token.
Style files get the content hash of each image, kept in .image-hashes.json.

Examples:
   assetneat run ./public                  # Minify everything below ./public
   assetneat run ./public --versioning     # ...and version image references
   assetneat plan ./public --format json   # Show what a run would touch
   assetneat ledger verify ./public        # Check stored image hashes`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := loadDotEnv(cmd); err != nil {
				return exitcode.New(exitcode.ConfigError, err)
			}
			return initializeLogger(cmd)
		},
	}

	// Add global flags
	cmd.PersistentFlags().String("log-level", "info", "Set log level (trace|debug|info|warn|error)")
	cmd.PersistentFlags().Bool("json", false, "Output logs in JSON format")
	cmd.PersistentFlags().Bool("no-color", false, "Disable colored output")
	cmd.PersistentFlags().String("env-file", ".env", "Load environment variables from this file when it exists")

	cmd.Version = buildinfo.Version()
	cmd.SetVersionTemplate("assetneat {{.Version}}\n")

	return cmd
}

// registerSubcommands adds all subcommands to the root command.
// This is called from init() for production and can be called explicitly in tests.
func registerSubcommands(cmd *cobra.Command) {
	cmd.AddCommand(newRunCommand())
	cmd.AddCommand(newPlanCommand())
	cmd.AddCommand(newLedgerCommand())
	cmd.AddCommand(newVersionCommand())
}

// rootCmd represents the base command when called without any subcommands
var rootCmd = newRootCommand()

// logConfig is the console logger configuration of the current invocation.
// Commands that open a log file reuse its level and format.
var logConfig = logger.Config{Level: logger.InfoLevel, Component: "assetneat"}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	os.Exit(execute(rootCmd, os.Args[1:]))
}

// execute runs cmd with args and maps the outcome to a process exit code.
func execute(cmd *cobra.Command, args []string) int {
	cmd.SetArgs(args)
	err := cmd.Execute()
	if err == nil {
		return exitcode.Success
	}

	code := exitcode.ConfigError
	var ee *exitcode.Error
	if errors.As(err, &ee) {
		code = ee.Code
	}
	switch code {
	case exitcode.FilesFailed, exitcode.LedgerDrift:
		// The command already printed why.
	default:
		logger.Error("Command execution failed", logger.Err(err))
	}
	return code
}

func init() {
	// Register all subcommands with the production rootCmd
	registerSubcommands(rootCmd)
}

// loadDotEnv loads --env-file without overriding variables already set.
// A missing file is not an error unless the flag was given explicitly.
func loadDotEnv(cmd *cobra.Command) error {
	path, _ := cmd.Flags().GetString("env-file")
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if cmd.Flags().Changed("env-file") {
			return fmt.Errorf("env file: %w", err)
		}
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// initializeLogger sets up the logger based on command flags
func initializeLogger(cmd *cobra.Command) error {
	logLevelStr, _ := cmd.Flags().GetString("log-level")
	jsonLogs, _ := cmd.Flags().GetBool("json")
	noColor, _ := cmd.Flags().GetBool("no-color")

	if noColor {
		color.NoColor = true
	}

	logConfig = logger.Config{
		Level:     logger.ParseLevel(logLevelStr),
		UseColor:  !noColor && logger.StderrIsTerminal(),
		JSON:      jsonLogs,
		Component: "assetneat",
	}
	if err := logger.Initialize(logConfig); err != nil {
		return exitcode.New(exitcode.ConfigError, fmt.Errorf("failed to initialize logger: %w", err))
	}
	return nil
}

// colorEnabled reports whether output written to w may carry ANSI colors.
func colorEnabled(cmd *cobra.Command, w io.Writer) bool {
	if noColor, _ := cmd.Flags().GetBool("no-color"); noColor {
		return false
	}
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
