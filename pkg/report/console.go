// Package report renders a pipeline Summary for people (console text) and for
// machines (JSON, YAML or TOML files), and appends the summary and error log
// blocks kept next to the dated log files.
package report

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/aymerick/raymond"
	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
	"github.com/fulmenhq/assetneat/pkg/pipeline"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

const consoleTemplate = `{{{status}}} {{{root}}}
  files      {{{discovered}}} discovered, {{{processed}}} processed, {{{skipped}}} skipped{{#if skippedDirs}}, {{{skippedDirs}}} folders pruned{{/if}}
  outcome    {{{written}}} written, {{{unchanged}}} unchanged, {{{errored}}} errored
  size       {{{bytesIn}}} -> {{{bytesOut}}}{{#if saved}} (saved {{{saved}}}){{/if}}
{{#if versioning}}  references {{{rewritten}}} versioned, {{{reverted}}} reverted{{#if token}}, script token {{{token}}}{{/if}}
{{/if}}  duration   {{{duration}}}
`

// Triple-stash output; raymond would otherwise HTML-escape paths.
var summaryTemplate = raymond.MustParse(consoleTemplate)

// ConsoleOptions controls console rendering.
type ConsoleOptions struct {
	// NoColor disables the colored status word.
	NoColor bool
	// Versioning shows the reference counters.
	Versioning bool
}

// WriteConsole renders s for a terminal.
func WriteConsole(w io.Writer, s *pipeline.Summary, opts ConsoleOptions) error {
	ctx := map[string]any{
		"status":      statusWord(s, opts.NoColor),
		"root":        s.Root,
		"discovered":  s.Discovered,
		"processed":   s.Processed,
		"skipped":     s.Skipped,
		"skippedDirs": s.SkippedDirs,
		"written":     s.Written,
		"unchanged":   s.Unchanged,
		"errored":     s.Errored,
		"bytesIn":     humanize.Bytes(uint64(max(s.BytesIn, 0))),
		"bytesOut":    humanize.Bytes(uint64(max(s.BytesOut, 0))),
		"saved":       saved(s),
		"versioning":  opts.Versioning,
		"rewritten":   s.ReferencesRewritten,
		"reverted":    s.ReferencesReverted,
		"token":       s.Token,
		"duration":    s.Duration.Round(time.Millisecond).String(),
	}
	out, err := summaryTemplate.Exec(ctx)
	if err != nil {
		return fmt.Errorf("render summary: %w", err)
	}
	if _, err := io.WriteString(w, out); err != nil {
		return err
	}

	if len(s.ByKind) > 0 {
		if _, err := fmt.Fprintln(w, kindTable(s)); err != nil {
			return err
		}
	}
	if len(s.ErrorFiles) > 0 {
		if _, err := fmt.Fprintln(w, errorTable(s)); err != nil {
			return err
		}
	}
	if len(s.MissingImages) > 0 {
		if _, err := fmt.Fprintf(w, "Missing images (references left unversioned):\n  %s\n",
			strings.Join(s.MissingImages, "\n  ")); err != nil {
			return err
		}
	}
	if s.Fatal != "" {
		if _, err := fmt.Fprintf(w, "Run aborted: %s\n", s.Fatal); err != nil {
			return err
		}
	}
	return nil
}

func statusWord(s *pipeline.Summary, noColor bool) string {
	word, attr := "OK", color.FgGreen
	switch {
	case s.Fatal != "":
		word, attr = "FAILED", color.FgRed
	case s.Cancelled:
		word, attr = "CANCELLED", color.FgYellow
	case s.Errored > 0:
		word, attr = "ERRORS", color.FgRed
	}
	c := color.New(attr, color.Bold)
	if noColor {
		c.DisableColor()
	} else {
		c.EnableColor()
	}
	return c.Sprint(word)
}

// saved is empty unless output is smaller than input.
func saved(s *pipeline.Summary) string {
	if s.BytesIn <= 0 || s.BytesOut >= s.BytesIn {
		return ""
	}
	pct := float64(s.BytesIn-s.BytesOut) / float64(s.BytesIn) * 100
	return fmt.Sprintf("%s, %.1f%%", humanize.Bytes(uint64(s.BytesIn-s.BytesOut)), pct)
}

func kindTable(s *pipeline.Summary) string {
	kinds := make([]string, 0, len(s.ByKind))
	for k := range s.ByKind {
		kinds = append(kinds, k)
	}
	sort.Strings(kinds)

	caser := cases.Title(language.Und)
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Kind", "Written", "Unchanged", "Errored"})
	for _, k := range kinds {
		ks := s.ByKind[k]
		tw.AppendRow(table.Row{caser.String(k), ks.Written, ks.Unchanged, ks.Errored})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
		{Number: 4, Align: text.AlignRight},
	})
	return tw.Render()
}

func errorTable(s *pipeline.Summary) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.SetTitle("Files with errors")
	tw.AppendHeader(table.Row{"#", "File", "Stage", "Reason"})
	for i, fe := range s.ErrorFiles {
		tw.AppendRow(table.Row{i + 1, fe.Path, fe.Stage, fe.Reason})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignRight},
		{Number: 4, WidthMax: 60},
	})
	return tw.Render()
}
