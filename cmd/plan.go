/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/fulmenhq/assetneat/pkg/exitcode"
	"github.com/fulmenhq/assetneat/pkg/logger"
	"github.com/fulmenhq/assetneat/pkg/work"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

func newPlanCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plan [root]",
		Short: "List the files a run would process or skip, without changing anything",
		Long: `Plan walks root with the same exclusion rules as run and prints every
discovered file together with its kind and skip reason. Nothing is written.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runPlan,
	}
	cmd.Flags().String("config", "", "Config file (default: .assetneat.* in root)")
	cmd.Flags().String("exclude-folder", "", "Skip files below any folder with this name")
	cmd.Flags().StringSlice("exclude", nil, "Skip files matching these doublestar globs (relative to root)")
	cmd.Flags().Bool("no-ignore", false, "Do not honor .gitignore and .assetneatignore")
	cmd.Flags().String("format", "text", "Output format: text, json or yaml")
	cmd.Flags().Bool("all", false, "Include skipped files in text output")
	return cmd
}

func runPlan(cmd *cobra.Command, args []string) error {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(format)
	switch format {
	case "text", "json", "yaml":
	default:
		return exitcode.New(exitcode.ConfigError, fmt.Errorf("unknown format %q (want text, json or yaml)", format))
	}

	loaded, err := loadRunConfig(cmd, root)
	if err != nil {
		return exitcode.New(exitcode.ConfigError, err)
	}
	cfg := loaded.Config

	planner, err := work.NewPlanner(work.PlannerConfig{
		Root:            root,
		ExcludeFolder:   cfg.ExcludeFolder,
		ExcludePatterns: cfg.ExcludePatterns,
		NoIgnore:        cfg.NoIgnore,
		Log:             logger.Default(),
	})
	if err != nil {
		return exitcode.New(exitcode.ConfigError, err)
	}
	manifest, err := planner.GenerateManifest()
	if err != nil {
		return exitcode.New(exitcode.RunFailed, err)
	}

	out := cmd.OutOrStdout()
	switch format {
	case "json":
		data, err := json.MarshalIndent(manifest, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal plan: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(out)
		defer func() { _ = enc.Close() }()
		return enc.Encode(manifest)
	default:
		all, _ := cmd.Flags().GetBool("all")
		writePlanText(out, manifest, all)
		return nil
	}
}

func writePlanText(w io.Writer, m *work.WorkManifest, all bool) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleRounded)
	t.SetTitle(m.Root)
	t.AppendHeader(table.Row{"Path", "Kind", "Size", "Status"})

	for _, item := range m.WorkItems {
		if !item.Processable() && !all {
			continue
		}
		kind := item.Kind.String()
		size := humanize.Bytes(uint64(item.Size))
		if item.Dir {
			kind, size = "folder", ""
		}
		status := "process"
		if item.Skip != work.SkipNone {
			status = "skip: " + string(item.Skip)
		}
		t.AppendRow(table.Row{item.Rel, kind, size, status})
	}

	stats := m.Statistics
	reasons := make([]string, 0, len(stats.SkipsByReason))
	for reason, n := range stats.SkipsByReason {
		reasons = append(reasons, fmt.Sprintf("%s %d", reason, n))
	}
	sort.Strings(reasons)
	footer := fmt.Sprintf("%d to process (%s of %s)",
		len(m.WorkItems)-sumValues(stats.SkipsByReason),
		humanize.Bytes(uint64(stats.ProcessSize)), humanize.Bytes(uint64(stats.TotalSize)))
	if len(reasons) > 0 {
		footer += ", skipped: " + strings.Join(reasons, ", ")
	}
	t.AppendFooter(table.Row{footer, "", "", ""})
	t.Render()
}

func sumValues(m map[string]int) int {
	n := 0
	for _, v := range m {
		n += v
	}
	return n
}
