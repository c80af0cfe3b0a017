/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fulmenhq/assetneat/pkg/config"
	"github.com/fulmenhq/assetneat/pkg/exitcode"
	"github.com/fulmenhq/assetneat/pkg/ledger"
	"github.com/fulmenhq/assetneat/pkg/logger"
	"github.com/fulmenhq/assetneat/pkg/pipeline"
	"github.com/fulmenhq/assetneat/pkg/report"
	"github.com/fulmenhq/assetneat/pkg/transform"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

func newRunCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "run [root]",
		Aliases: []string{"minify"},
		Short:   "Minify every script and style file below root in place",
		Long: `Run walks root (default: the current directory) and rewrites every .js,
.mjs, .cjs and .css file in place. Other files are never modified.

Options come from .assetneat.{yaml,yml,json,jsonc,toml} in root, ASSETNEAT_*
environment variables and the flags below, in increasing precedence.

Exit codes: 0 all files handled, 1 one or more files failed, 2 invalid
configuration, 4 root could not be enumerated, 130 interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runRun,
	}
	addPipelineFlags(cmd.Flags())
	return cmd
}

// addPipelineFlags defines the flags bound through config.FlagKeys and
// config.ToggleFlags, plus the nested overrides applied by applyOverrides.
func addPipelineFlags(fs *pflag.FlagSet) {
	fs.String("config", "", "Config file (default: .assetneat.* in root)")

	fs.String("exclude-folder", "", "Skip files below any folder with this name")
	fs.StringSlice("exclude", nil, "Skip files matching these doublestar globs (relative to root)")
	fs.Bool("no-ignore", false, "Do not honor .gitignore and .assetneatignore")

	fs.Bool("babel", false, "Transpile scripts before minifying")
	fs.String("babel-target", "", "Script language target, e.g. es2017")
	fs.Bool("append-transform", false, "With --babel, rewrite Element.append calls into appendChild calls")
	fs.Bool("postcss", false, "Lower modern CSS for older browsers before minifying")
	fs.StringSlice("browsers", nil, "Browser targets for --postcss, e.g. chrome58,safari12")
	fs.Bool("versioning", false, "Rewrite image references with ?v= tokens")
	fs.String("digest", "", "Ledger digest: md5, sha256 or blake3")
	fs.String("script-token", "", "Pin the ?v= token used in scripts instead of a random one")
	fs.String("minifier", "", "Minifier backend for scripts and styles: tdewolff or esbuild")

	fs.Bool("js-map", false, "Write .map sidecars for scripts")
	fs.Bool("css-map", false, "Write .map sidecars for styles")

	fs.Bool("log", false, "Write dated log files and summary/error logs")
	fs.String("log-dir", "", "Directory for --log output (default: logs)")

	fs.Int("workers", 1, "Files processed concurrently")
	fs.Duration("file-timeout", 0, "Abort transform and minify of a single file after this long (0 = no limit)")
	fs.StringSlice("precompress", nil, "Write precompressed sidecars: gzip, zstd")
	fs.String("metrics-file", "", "Write Prometheus metrics in text format to this file")
	fs.String("report", "", "Write a machine-readable run report to this file")
	fs.String("report-format", "", "Report format: json, yaml or toml (default: from extension)")
}

// loadRunConfig resolves configuration for root from files, env and flags.
func loadRunConfig(cmd *cobra.Command, root string) (*config.Loaded, error) {
	file, _ := cmd.Flags().GetString("config")
	loaded, err := config.Load(config.LoadOptions{Root: root, File: file, Flags: cmd.Flags()})
	if err != nil {
		return nil, err
	}
	if err := applyOverrides(cmd.Flags(), &loaded.Config); err != nil {
		return nil, err
	}
	for _, src := range loaded.Sources {
		logger.Debug("Loaded configuration", logger.String("source", src))
	}
	return loaded, nil
}

// applyOverrides applies flags that set a single option inside a toggle or
// a nested section without replacing the rest of it.
func applyOverrides(fs *pflag.FlagSet, cfg *config.Config) error {
	if fs.Changed("babel-target") {
		cfg.UseBabel.Options.Target, _ = fs.GetString("babel-target")
	}
	if fs.Changed("append-transform") {
		cfg.UseBabel.Options.AppendTransform, _ = fs.GetBool("append-transform")
	}
	if fs.Changed("browsers") {
		cfg.UsePostCSS.Options.Browsers, _ = fs.GetStringSlice("browsers")
	}
	if fs.Changed("digest") {
		name, _ := fs.GetString("digest")
		digest, err := ledger.ParseDigest(name)
		if err != nil {
			return err
		}
		cfg.UseVersioning.Options.Digest = string(digest)
	}
	if fs.Changed("script-token") {
		cfg.UseVersioning.Options.ScriptToken, _ = fs.GetString("script-token")
	}
	if fs.Changed("minifier") {
		name, _ := fs.GetString("minifier")
		backend, err := transform.ParseBackend(name)
		if err != nil {
			return err
		}
		cfg.JSMinifyOptions.Backend = string(backend)
		cfg.CSSMinifyOptions.Backend = string(backend)
	}
	if fs.Changed("log-dir") {
		cfg.UseLog.Options.LogDir, _ = fs.GetString("log-dir")
	}
	return nil
}

func runRun(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}

	loaded, err := loadRunConfig(cmd, root)
	if err != nil {
		return exitcode.New(exitcode.ConfigError, err)
	}
	cfg := loaded.Config
	opts := cfg.PipelineOptions()

	var reportFormat report.Format
	if cfg.Report.File != "" {
		if reportFormat, err = report.ParseFormat(cfg.Report.Format, cfg.Report.File); err != nil {
			return exitcode.New(exitcode.ConfigError, err)
		}
	}

	log := logger.Default()
	if opts.Log != nil {
		fileCfg := logConfig
		fileCfg.File = opts.Log
		if log, err = logger.New(fileCfg); err != nil {
			return exitcode.New(exitcode.ConfigError, err)
		}
		defer func() { _ = log.Close() }()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	summary := pipeline.MinifyAll(ctx, root, opts, pipeline.WithLogger(log))
	if err := publish(cmd, summary, cfg, opts, reportFormat); err != nil {
		log.Warn("Failed to write run report", logger.Err(err))
	}
	return summaryError(summary)
}

// publish prints the console summary and writes the optional report file and
// log blocks.
func publish(cmd *cobra.Command, s *pipeline.Summary, cfg config.Config, opts pipeline.Options, f report.Format) error {
	out := cmd.OutOrStdout()
	if err := report.WriteConsole(out, s, report.ConsoleOptions{
		NoColor:    !colorEnabled(cmd, out),
		Versioning: opts.Versioning != nil,
	}); err != nil {
		return err
	}
	if cfg.Report.File != "" {
		if err := report.WriteFile(cfg.Report.File, f, s); err != nil {
			return err
		}
	}
	if opts.Log != nil {
		dir := filepath.Dir(opts.Log.FilePath(time.Now()))
		if err := report.AppendLogBlocks(dir, s, time.Now()); err != nil {
			return err
		}
	}
	return nil
}

// summaryError maps a run outcome to the command error and exit code.
func summaryError(s *pipeline.Summary) error {
	switch {
	case s.Fatal != "":
		return exitcode.New(exitcode.RunFailed, fmt.Errorf("run failed: %s", s.Fatal))
	case s.Cancelled:
		return exitcode.New(exitcode.Interrupted, context.Canceled)
	case s.Errored > 0:
		return exitcode.New(exitcode.FilesFailed, fmt.Errorf("%d file(s) failed", s.Errored))
	default:
		return nil
	}
}
