package transform

import (
	"errors"
	"strings"
	"testing"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackend(t *testing.T) {
	b, err := ParseBackend("")
	require.NoError(t, err)
	assert.Equal(t, BackendTdewolff, b)

	b, err = ParseBackend(" ESBuild ")
	require.NoError(t, err)
	assert.Equal(t, BackendEsbuild, b)

	_, err = ParseBackend("terser")
	assert.Error(t, err)
}

func TestParseEngine(t *testing.T) {
	tests := []struct {
		in      string
		name    api.EngineName
		version string
	}{
		{"chrome40", api.EngineChrome, "40"},
		{"Safari 11", api.EngineSafari, "11"},
		{"firefox >= 60.5", api.EngineFirefox, "60.5"},
		{"ios12", api.EngineIOS, "12"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			e, err := ParseEngine(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.name, e.Name)
			assert.Equal(t, tt.version, e.Version)
		})
	}

	for _, bad := range []string{"", "40", "netscape4", "chrome"} {
		_, err := ParseEngine(bad)
		assert.Error(t, err, "input %q", bad)
	}
}

func TestParseTarget(t *testing.T) {
	tgt, err := ParseTarget("")
	require.NoError(t, err)
	assert.Equal(t, api.ES2015, tgt)

	tgt, err = ParseTarget("ES2020")
	require.NoError(t, err)
	assert.Equal(t, api.ES2020, tgt)

	_, err = ParseTarget("es1999")
	assert.Error(t, err)
}

func TestTdewolffStyleMinifier(t *testing.T) {
	m, err := NewStyleMinifier(StyleMinifyOptions{})
	require.NoError(t, err)
	assert.IsType(t, &tdewolffStyleMinifier{}, m)

	out, err := m.Minify("a {\n  color : red ;\n}\n", "a.css")
	require.NoError(t, err)
	assert.Equal(t, "a{color:red}", out.CSS)
	assert.Empty(t, out.Map)
}

func TestTdewolffScriptMinifier(t *testing.T) {
	m, err := NewScriptMinifier(ScriptMinifyOptions{})
	require.NoError(t, err)
	assert.IsType(t, &tdewolffScriptMinifier{}, m)

	in := "function add(first, second) {\n  return first + second;\n}\n"
	out, err := m.Minify(in, "a.js")
	require.NoError(t, err)
	assert.Less(t, len(out.Code), len(in))
	assert.Contains(t, out.Code, "return")
}

func TestMinifierBackendSelection(t *testing.T) {
	m, err := NewScriptMinifier(ScriptMinifyOptions{SourceMap: true})
	require.NoError(t, err)
	assert.IsType(t, &esbuildScriptMinifier{}, m)

	m, err = NewScriptMinifier(ScriptMinifyOptions{DropConsole: true})
	require.NoError(t, err)
	assert.IsType(t, &esbuildScriptMinifier{}, m)

	s, err := NewStyleMinifier(StyleMinifyOptions{Backend: "esbuild"})
	require.NoError(t, err)
	assert.IsType(t, &esbuildStyleMinifier{}, s)

	_, err = NewStyleMinifier(StyleMinifyOptions{Backend: "lightning"})
	assert.Error(t, err)
}

func TestEsbuildScriptMinifier_DropsConsoleAndMaps(t *testing.T) {
	m, err := NewScriptMinifier(ScriptMinifyOptions{DropConsole: true, DropDebugger: true, SourceMap: true})
	require.NoError(t, err)

	out, err := m.Minify("console.log('x');\ndebugger;\nvar total = 1 + 2;\nwindow.total = total;\n", "app.js")
	require.NoError(t, err)
	assert.NotContains(t, out.Code, "console")
	assert.NotContains(t, out.Code, "debugger")
	assert.Contains(t, out.Map, "mappings")
}

func TestEsbuildStyleMinifier(t *testing.T) {
	m, err := NewStyleMinifier(StyleMinifyOptions{Backend: "esbuild"})
	require.NoError(t, err)

	out, err := m.Minify("a {\n  color : red ;\n}\n", "a.css")
	require.NoError(t, err)
	assert.Equal(t, "a{color:red}", strings.TrimSpace(out.CSS))
}

func TestScriptTransformer(t *testing.T) {
	tr, err := NewScriptTransformer(ScriptOptions{Target: "es2015"})
	require.NoError(t, err)

	out, err := tr.Transform("const x = a ?? b;\n", "a.js")
	require.NoError(t, err)
	assert.NotContains(t, out.Code, "??")

	_, err = tr.Transform("function (", "broken.js")
	assert.Error(t, err)

	_, err = NewScriptTransformer(ScriptOptions{Engines: []string{"netscape4"}})
	assert.Error(t, err)
}

func TestStyleTransformer_LowersNesting(t *testing.T) {
	tr, err := NewStyleTransformer(StyleOptions{})
	require.NoError(t, err)

	out, err := tr.Transform(".a { .b { color: red } }", "a.css")
	require.NoError(t, err)
	assert.Contains(t, out.CSS, ".a .b")
}

type stubStyle struct {
	out StyleOutput
	err error
}

func (s stubStyle) Transform(string, string) (StyleOutput, error) { return s.out, s.err }

func TestProbeStyleTransform(t *testing.T) {
	assert.False(t, ProbeStyleTransform(nil).Available)
	assert.False(t, ProbeStyleTransform(stubStyle{err: errors.New("boom")}).Available)
	assert.False(t, ProbeStyleTransform(stubStyle{}).Available)
	assert.True(t, ProbeStyleTransform(stubStyle{out: StyleOutput{CSS: "a{}"}}).Available)

	tr, err := NewStyleTransformer(StyleOptions{Browsers: []string{"chrome40"}})
	require.NoError(t, err)
	assert.True(t, ProbeStyleTransform(tr).Available)
}
