package report

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fulmenhq/assetneat/pkg/pipeline"
	"github.com/pelletier/go-toml/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func sampleSummary() *pipeline.Summary {
	return &pipeline.Summary{
		RunID:       "run-1",
		Root:        "/srv/site",
		Token:       "a1b2c3d4",
		StartedAt:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:    1500 * time.Millisecond,
		Discovered:  7,
		Processed:   4,
		Written:     2,
		Unchanged:   1,
		Skipped:     3,
		SkippedDirs: 1,
		Errored:     1,
		ByKind: map[string]pipeline.KindStats{
			"script": {Written: 1, Errored: 1},
			"style":  {Written: 1, Unchanged: 1},
		},
		ErrorFiles:          []pipeline.FileError{{Path: "/srv/site/js/bad.js", Stage: "minify", Reason: "minify: unexpected token"}},
		BytesIn:             4000,
		BytesOut:            1000,
		ReferencesRewritten: 3,
		ReferencesReverted:  1,
		MissingImages:       []string{"/srv/site/img/gone.png"},
	}
}

func TestWriteConsole(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteConsole(&buf, sampleSummary(), ConsoleOptions{NoColor: true, Versioning: true}))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "ERRORS /srv/site\n"), out)
	assert.Contains(t, out, "7 discovered, 4 processed, 3 skipped, 1 folders pruned")
	assert.Contains(t, out, "2 written, 1 unchanged, 1 errored")
	assert.Contains(t, out, "4.0 kB -> 1.0 kB (saved 3.0 kB, 75.0%)")
	assert.Contains(t, out, "3 versioned, 1 reverted, script token a1b2c3d4")
	assert.Contains(t, out, "1.5s")
	assert.Contains(t, out, "Script")
	assert.Contains(t, out, "Style")
	assert.Contains(t, out, "/srv/site/js/bad.js")
	assert.Contains(t, out, "/srv/site/img/gone.png")
	assert.NotContains(t, out, "\x1b[")
}

func TestWriteConsoleStatus(t *testing.T) {
	tests := []struct {
		name string
		s    pipeline.Summary
		want string
	}{
		{"ok", pipeline.Summary{Root: "/r"}, "OK /r"},
		{"fatal", pipeline.Summary{Root: "/r", Fatal: "open /r: no such file"}, "FAILED /r"},
		{"cancelled", pipeline.Summary{Root: "/r", Cancelled: true}, "CANCELLED /r"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			require.NoError(t, WriteConsole(&buf, &tt.s, ConsoleOptions{NoColor: true}))
			assert.True(t, strings.HasPrefix(buf.String(), tt.want), buf.String())
			assert.NotContains(t, buf.String(), "references")
		})
	}
}

func TestWriteConsoleDoesNotEscapePaths(t *testing.T) {
	var buf bytes.Buffer
	s := &pipeline.Summary{Root: "/srv/a&b's"}
	require.NoError(t, WriteConsole(&buf, s, ConsoleOptions{NoColor: true}))
	assert.Contains(t, buf.String(), "/srv/a&b's")
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		name, path string
		want       Format
	}{
		{"", "report.yaml", FormatYAML},
		{"", "report.toml", FormatTOML},
		{"", "report.out", FormatJSON},
		{"YML", "report.json", FormatYAML},
		{"toml", "", FormatTOML},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.name, tt.path)
		require.NoError(t, err)
		assert.Equal(t, tt.want, got, "ParseFormat(%q, %q)", tt.name, tt.path)
	}

	_, err := ParseFormat("xml", "")
	assert.Error(t, err)
}

func TestWriteFileFormats(t *testing.T) {
	dir := t.TempDir()
	s := sampleSummary()

	for _, f := range []Format{FormatJSON, FormatYAML, FormatTOML} {
		path := filepath.Join(dir, "report."+string(f))
		require.NoError(t, WriteFile(path, f, s))

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		var got map[string]any
		switch f {
		case FormatJSON:
			require.NoError(t, json.Unmarshal(data, &got))
		case FormatYAML:
			require.NoError(t, yaml.Unmarshal(data, &got))
		case FormatTOML:
			require.NoError(t, toml.Unmarshal(data, &got))
		}
		assert.Equal(t, "/srv/site", got["root"], "format %s", f)
		assert.Contains(t, got, "error_files", "format %s", f)
		assert.Contains(t, got, "by_kind", "format %s", f)
	}
}

func TestAppendLogBlocks(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	now := time.Date(2026, 3, 1, 12, 30, 0, 0, time.UTC)
	s := sampleSummary()

	require.NoError(t, AppendLogBlocks(dir, s, now))
	require.NoError(t, AppendLogBlocks(dir, s, now))

	summary, err := os.ReadFile(filepath.Join(dir, SummaryLogName))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(summary), "Processing Summary"))
	assert.Contains(t, string(summary), "Time: 2026-03-01 12:30:00")
	assert.Contains(t, string(summary), "Total files processed: 4")
	assert.Contains(t, string(summary), "  1. /srv/site/js/bad.js\n")

	errs, err := os.ReadFile(filepath.Join(dir, ErrorLogName))
	require.NoError(t, err)
	assert.Equal(t, 2, strings.Count(string(errs), "File Error"))
	assert.Contains(t, string(errs), "Stage: minify")
}

func TestAppendLogBlocksSkipsErrorLogWhenClean(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, AppendLogBlocks(dir, &pipeline.Summary{Root: "/r", Processed: 2}, time.Now()))

	assert.FileExists(t, filepath.Join(dir, SummaryLogName))
	assert.NoFileExists(t, filepath.Join(dir, ErrorLogName))
}
