package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fulmenhq/assetneat/pkg/exitcode"
	"github.com/fulmenhq/assetneat/pkg/ledger"
	"github.com/spf13/cobra"
)

// execRoot runs a fresh command tree and returns its output and exit code.
func execRoot(t *testing.T, args ...string) (string, int) {
	t.Helper()
	t.Setenv("ASSETNEAT_HOME", t.TempDir())

	cmd := newRootCommand()
	registerSubcommands(cmd)
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)

	full := append([]string{"--log-level", "error", "--no-color"}, args...)
	code := execute(cmd, full)
	return buf.String(), code
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	return string(data)
}

func siteTree(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"js/app.js":     "function add(first, second) {\n  return first + second;\n}\nadd(1, 2);\n",
		"css/site.css":  ".logo {\n  background: url(../img/logo.png);\n}\n",
		"img/logo.png":  "hello",
		"index.html":    "<html></html>\n",
		"vendor/lib.js": "var  x  =  1 ;\n",
	})
	return root
}

func TestInitializeLogger(t *testing.T) {
	tests := []struct {
		level string
		json  bool
	}{
		{"info", false},
		{"debug", false},
		{"invalid", false},
		{"warn", true},
	}
	for _, tt := range tests {
		cmd := &cobra.Command{}
		cmd.Flags().String("log-level", tt.level, "")
		cmd.Flags().Bool("json", tt.json, "")
		cmd.Flags().Bool("no-color", true, "")
		if err := initializeLogger(cmd); err != nil {
			t.Errorf("initializeLogger(%q) failed: %v", tt.level, err)
		}
	}
}

func TestExecute_UnknownCommand(t *testing.T) {
	_, code := execRoot(t, "frobnicate")
	if code != exitcode.ConfigError {
		t.Errorf("expected exit %d, got %d", exitcode.ConfigError, code)
	}
}

func TestExecute_MissingEnvFile(t *testing.T) {
	_, code := execRoot(t, "--env-file", filepath.Join(t.TempDir(), "nope.env"), "version")
	if code != exitcode.ConfigError {
		t.Errorf("expected exit %d for explicit missing env file, got %d", exitcode.ConfigError, code)
	}
}

func TestExecute_EnvFileFeedsConfig(t *testing.T) {
	root := siteTree(t)
	envFile := filepath.Join(t.TempDir(), "test.env")
	if err := os.WriteFile(envFile, []byte("ASSETNEAT_EXCLUDEFOLDER=vendor\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Unsetenv("ASSETNEAT_EXCLUDEFOLDER") })

	_, code := execRoot(t, "--env-file", envFile, "run", root)
	if code != exitcode.Success {
		t.Fatalf("run failed with exit %d", code)
	}
	if got := readFile(t, filepath.Join(root, "vendor", "lib.js")); got != "var  x  =  1 ;\n" {
		t.Errorf("vendor file should be untouched, got %q", got)
	}
}

func TestRun_MinifiesTree(t *testing.T) {
	root := siteTree(t)

	out, code := execRoot(t, "run", root)
	if code != exitcode.Success {
		t.Fatalf("run failed with exit %d\n%s", code, out)
	}
	if !strings.HasPrefix(out, "OK ") {
		t.Errorf("expected OK status line, got:\n%s", out)
	}
	if got := readFile(t, filepath.Join(root, "css", "site.css")); got != ".logo{background:url(../img/logo.png)}" {
		t.Errorf("unexpected minified css %q", got)
	}
	if got := readFile(t, filepath.Join(root, "js", "app.js")); strings.Contains(got, "\n  return") {
		t.Errorf("script was not minified: %q", got)
	}
	if got := readFile(t, filepath.Join(root, "index.html")); got != "<html></html>\n" {
		t.Errorf("unsupported file modified: %q", got)
	}
	if _, err := os.Stat(filepath.Join(root, ledger.FileName)); !os.IsNotExist(err) {
		t.Errorf("ledger should not exist without --versioning, stat err = %v", err)
	}
}

func TestRun_Versioning(t *testing.T) {
	root := siteTree(t)

	out, code := execRoot(t, "run", root, "--versioning", "--script-token", "feedc0de")
	if code != exitcode.Success {
		t.Fatalf("run failed with exit %d\n%s", code, out)
	}
	if css := readFile(t, filepath.Join(root, "css", "site.css")); !strings.Contains(css, "logo.png?v=5d41402a") {
		t.Errorf("style reference not versioned: %q", css)
	}
	if _, err := os.Stat(filepath.Join(root, ledger.FileName)); err != nil {
		t.Errorf("ledger not written: %v", err)
	}
	if !strings.Contains(out, "script token feedc0de") {
		t.Errorf("expected script token in summary:\n%s", out)
	}
}

func TestRun_ProjectConfig(t *testing.T) {
	root := siteTree(t)
	writeTree(t, root, map[string]string{".assetneat.yaml": "excludeFolder: vendor\n"})

	if _, code := execRoot(t, "run", root); code != exitcode.Success {
		t.Fatalf("run failed with exit %d", code)
	}
	if got := readFile(t, filepath.Join(root, "vendor", "lib.js")); got != "var  x  =  1 ;\n" {
		t.Errorf("excluded folder was processed: %q", got)
	}
}

func TestRun_ExcludeFolderFlagSpellings(t *testing.T) {
	for _, folder := range []string{"./vendor", "vendor/"} {
		root := siteTree(t)
		if out, code := execRoot(t, "run", root, "--exclude-folder", folder); code != exitcode.Success {
			t.Fatalf("%s: run failed with exit %d\n%s", folder, code, out)
		}
		if got := readFile(t, filepath.Join(root, "vendor", "lib.js")); got != "var  x  =  1 ;\n" {
			t.Errorf("%s: excluded folder was processed: %q", folder, got)
		}
	}
}

func TestRun_AppendTransform(t *testing.T) {
	root := t.TempDir()
	writeTree(t, root, map[string]string{
		"js/list.js": "var list = document.getElementById('list');\nlist.append('first', item);\n",
	})

	if out, code := execRoot(t, "run", root, "--babel", "--append-transform"); code != exitcode.Success {
		t.Fatalf("run failed with exit %d\n%s", code, out)
	}
	js := readFile(t, filepath.Join(root, "js", "list.js"))
	if strings.Contains(js, ".append(") {
		t.Errorf("append call survived: %q", js)
	}
	if !strings.Contains(js, "appendChild(document.createTextNode(") || !strings.Contains(js, "appendChild(item)") {
		t.Errorf("append calls not rewritten: %q", js)
	}
}

func TestRun_ConfigErrors(t *testing.T) {
	root := siteTree(t)
	tests := []struct {
		name string
		args []string
	}{
		{"bad digest", []string{"--versioning", "--digest", "crc32"}},
		{"bad minifier", []string{"--minifier", "uglify"}},
		{"bad report format", []string{"--report", filepath.Join(root, "r.out"), "--report-format", "xml"}},
		{"nested exclude folder", []string{"--exclude-folder", "a/b"}},
		{"missing config file", []string{"--config", filepath.Join(root, "nope.yaml")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"run", root}, tt.args...)
			if _, code := execRoot(t, args...); code != exitcode.ConfigError {
				t.Errorf("expected exit %d, got %d", exitcode.ConfigError, code)
			}
		})
	}
	if got := readFile(t, filepath.Join(root, "css", "site.css")); !strings.Contains(got, "\n") {
		t.Errorf("config errors must not touch files, got %q", got)
	}
}

func TestRun_MissingRoot(t *testing.T) {
	_, code := execRoot(t, "run", filepath.Join(t.TempDir(), "missing"))
	if code != exitcode.RunFailed {
		t.Errorf("expected exit %d, got %d", exitcode.RunFailed, code)
	}
}

func TestRun_ReportAndLogBlocks(t *testing.T) {
	root := siteTree(t)
	outDir := t.TempDir()
	reportPath := filepath.Join(outDir, "report.json")
	logDir := filepath.Join(outDir, "logs")

	_, code := execRoot(t, "run", root, "--report", reportPath, "--log", "--log-dir", logDir)
	if code != exitcode.Success {
		t.Fatalf("run failed with exit %d", code)
	}

	var report map[string]any
	if err := json.Unmarshal([]byte(readFile(t, reportPath)), &report); err != nil {
		t.Fatalf("report is not valid JSON: %v", err)
	}
	if report["errored"] != float64(0) {
		t.Errorf("expected errored 0 in report, got %v", report["errored"])
	}
	if summary := readFile(t, filepath.Join(logDir, "summary.log")); !strings.Contains(summary, "Processing Summary") {
		t.Errorf("summary block missing:\n%s", summary)
	}
	if _, err := os.Stat(filepath.Join(logDir, "error.log")); !os.IsNotExist(err) {
		t.Errorf("error.log should not exist after a clean run, stat err = %v", err)
	}
}

func TestPlan_JSON(t *testing.T) {
	root := siteTree(t)

	out, code := execRoot(t, "plan", root, "--format", "json", "--exclude-folder", "vendor")
	if code != exitcode.Success {
		t.Fatalf("plan failed with exit %d\n%s", code, out)
	}
	var manifest struct {
		WorkItems []struct {
			Rel  string `json:"rel"`
			Kind string `json:"kind"`
			Skip string `json:"skip"`
		} `json:"work_items"`
	}
	if err := json.Unmarshal([]byte(out), &manifest); err != nil {
		t.Fatalf("plan output is not valid JSON: %v\n%s", err, out)
	}
	got := map[string]string{}
	for _, item := range manifest.WorkItems {
		got[item.Rel] = item.Kind + "/" + item.Skip
	}
	want := map[string]string{
		"js/app.js":    "script/",
		"css/site.css": "style/",
		"index.html":   "unsupported/unsupported",
	}
	for rel, w := range want {
		if got[rel] != w {
			t.Errorf("%s: expected %q, got %q", rel, w, got[rel])
		}
	}
	if _, ok := got["vendor/lib.js"]; ok {
		t.Errorf("files below a pruned folder should not be listed")
	}
	if got := readFile(t, filepath.Join(root, "css", "site.css")); !strings.Contains(got, "\n") {
		t.Errorf("plan must not modify files, got %q", got)
	}
}

func TestPlan_Text(t *testing.T) {
	root := siteTree(t)
	out, code := execRoot(t, "plan", root)
	if code != exitcode.Success {
		t.Fatalf("plan failed with exit %d", code)
	}
	if !strings.Contains(out, "css/site.css") || strings.Contains(out, "index.html") {
		t.Errorf("text plan should list processable files only:\n%s", out)
	}
	if _, code := execRoot(t, "plan", root, "--format", "xml"); code != exitcode.ConfigError {
		t.Errorf("expected exit %d for unknown format, got %d", exitcode.ConfigError, code)
	}
}

func TestLedger_ShowWithoutLedger(t *testing.T) {
	root := t.TempDir()
	out, code := execRoot(t, "ledger", "show", root)
	if code != exitcode.Success {
		t.Fatalf("ledger show failed with exit %d", code)
	}
	if !strings.Contains(out, "No "+ledger.FileName) {
		t.Errorf("unexpected output:\n%s", out)
	}
	if _, err := os.Stat(filepath.Join(root, ledger.FileName)); !os.IsNotExist(err) {
		t.Errorf("ledger show must not create a ledger, stat err = %v", err)
	}
}

func TestLedger_ShowAndVerify(t *testing.T) {
	root := siteTree(t)
	if _, code := execRoot(t, "run", root, "--versioning"); code != exitcode.Success {
		t.Fatalf("run failed with exit %d", code)
	}

	out, code := execRoot(t, "ledger", "show", root, "--json")
	if code != exitcode.Success {
		t.Fatalf("ledger show failed with exit %d", code)
	}
	var entries map[string]string
	if err := json.Unmarshal([]byte(out), &entries); err != nil {
		t.Fatalf("ledger show output is not valid JSON: %v\n%s", err, out)
	}
	if len(entries) != 1 {
		t.Errorf("expected 1 ledger entry, got %v", entries)
	}

	if out, code := execRoot(t, "ledger", "verify", root); code != exitcode.Success {
		t.Errorf("verify of a fresh ledger failed with exit %d\n%s", code, out)
	}

	writeTree(t, root, map[string]string{"img/logo.png": "changed"})
	out, code = execRoot(t, "ledger", "verify", root)
	if code != exitcode.LedgerDrift {
		t.Errorf("expected exit %d, got %d", exitcode.LedgerDrift, code)
	}
	if !strings.Contains(out, "CHANGED") || !strings.Contains(out, "logo.png") {
		t.Errorf("drift not reported:\n%s", out)
	}
}

func TestVersion_JSON(t *testing.T) {
	out, code := execRoot(t, "version", "--json")
	if code != exitcode.Success {
		t.Fatalf("version --json failed with exit %d\n%s", code, out)
	}
	var v map[string]any
	if json.Unmarshal([]byte(out), &v) != nil {
		t.Fatalf("version output is not valid JSON: %s", out)
	}
	for _, key := range []string{"version", "goVersion", "platform", "configSchema"} {
		if _, ok := v[key].(string); !ok {
			t.Errorf("expected %s field in JSON", key)
		}
	}
}

func TestVersion_Extended(t *testing.T) {
	out, code := execRoot(t, "version", "--extended")
	if code != exitcode.Success {
		t.Fatalf("version failed with exit %d", code)
	}
	if !strings.HasPrefix(out, "assetneat ") || !strings.Contains(out, "Config schema: v") {
		t.Errorf("unexpected version output:\n%s", out)
	}
}
