/*
Copyright © 2025 3 Leaps <info@3leaps.net>
*/
package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/fatih/color"
	"github.com/fulmenhq/assetneat/pkg/exitcode"
	"github.com/fulmenhq/assetneat/pkg/ledger"
	"github.com/fulmenhq/assetneat/pkg/logger"
	"github.com/fulmenhq/assetneat/pkg/pathutil"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func newLedgerCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the image hash ledger (" + ledger.FileName + ")",
	}

	show := &cobra.Command{
		Use:   "show [root]",
		Short: "List stored image hashes",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runLedgerShow,
	}
	show.Flags().Bool("json", false, "Output the ledger as JSON")

	verify := &cobra.Command{
		Use:   "verify [root]",
		Short: "Re-hash every ledger entry and report images that changed or disappeared",
		Long: `Verify re-hashes every image recorded in the ledger without modifying it.
It exits with code 3 when any entry is stale, so CI can detect a tree whose
style references no longer match the images on disk.`,
		Args: cobra.MaximumNArgs(1),
		RunE: runLedgerVerify,
	}
	verify.Flags().Bool("json", false, "Output drift as JSON")

	for _, c := range []*cobra.Command{show, verify} {
		c.Flags().String("digest", "", "Digest the ledger was written with: md5, sha256 or blake3")
		cmd.AddCommand(c)
	}
	return cmd
}

// openLedger returns the ledger below root, or nil when none has been
// written yet. A missing ledger is not created.
func openLedger(cmd *cobra.Command, args []string) (*ledger.Ledger, string, error) {
	root := "."
	if len(args) == 1 {
		root = args[0]
	}
	abs, err := pathutil.Resolve(root)
	if err != nil {
		return nil, "", exitcode.New(exitcode.ConfigError, fmt.Errorf("resolve root %q: %w", root, err))
	}
	name, _ := cmd.Flags().GetString("digest")
	digest, err := ledger.ParseDigest(name)
	if err != nil {
		return nil, abs, exitcode.New(exitcode.ConfigError, err)
	}

	path := filepath.Join(abs, ledger.FileName)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, abs, nil
		}
		return nil, abs, exitcode.New(exitcode.RunFailed, err)
	}

	l := ledger.New(abs, ledger.WithDigest(digest), ledger.WithLogger(logger.Default()))
	if err := l.Initialize(); err != nil {
		return nil, abs, exitcode.New(exitcode.RunFailed, err)
	}
	return l, abs, nil
}

func runLedgerShow(cmd *cobra.Command, args []string) error {
	l, root, err := openLedger(cmd, args)
	if err != nil {
		return err
	}
	entries := map[string]string{}
	if l != nil {
		entries = l.Entries()
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal ledger: %w", err)
		}
		_, err = fmt.Fprintln(out, string(data))
		return err
	}
	if l == nil {
		_, _ = fmt.Fprintf(out, "No %s in %s\n", ledger.FileName, root)
		return nil
	}

	paths := make([]string, 0, len(entries))
	for p := range entries {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	t := table.NewWriter()
	t.SetOutputMirror(out)
	t.SetStyle(table.StyleRounded)
	t.AppendHeader(table.Row{"Image", "Hash"})
	for _, p := range paths {
		t.AppendRow(table.Row{pathutil.Relative(root, p), entries[p]})
	}
	t.AppendFooter(table.Row{fmt.Sprintf("%d entries", len(paths)), string(l.Digest())})
	t.Render()
	return nil
}

func runLedgerVerify(cmd *cobra.Command, args []string) error {
	l, root, err := openLedger(cmd, args)
	if err != nil {
		return err
	}
	var drift []ledger.Drift
	if l != nil {
		if drift, err = l.Verify(); err != nil {
			return exitcode.New(exitcode.RunFailed, err)
		}
	}

	out := cmd.OutOrStdout()
	if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
		if drift == nil {
			drift = []ledger.Drift{}
		}
		data, err := json.MarshalIndent(drift, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal drift: %w", err)
		}
		_, _ = fmt.Fprintln(out, string(data))
	} else {
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		if len(drift) == 0 {
			n := 0
			if l != nil {
				n = l.Len()
			}
			_, _ = fmt.Fprintf(out, "%s %d ledger entries match %s\n", green("OK"), n, root)
		}
		for _, d := range drift {
			rel := pathutil.Relative(root, d.Path)
			if d.Missing {
				_, _ = fmt.Fprintf(out, "%s %s (stored %s)\n", red("MISSING"), rel, d.Stored)
				continue
			}
			_, _ = fmt.Fprintf(out, "%s %s (stored %s, now %s)\n", red("CHANGED"), rel, d.Stored, d.Current)
		}
	}

	if len(drift) > 0 {
		return exitcode.New(exitcode.LedgerDrift, fmt.Errorf("%d stale ledger entries", len(drift)))
	}
	return nil
}
