package transform

import (
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/evanw/esbuild/pkg/api"
)

var esTargets = map[string]api.Target{
	"es5":    api.ES5,
	"es2015": api.ES2015,
	"es6":    api.ES2015,
	"es2016": api.ES2016,
	"es2017": api.ES2017,
	"es2018": api.ES2018,
	"es2019": api.ES2019,
	"es2020": api.ES2020,
	"es2021": api.ES2021,
	"es2022": api.ES2022,
	"es2023": api.ES2023,
	"esnext": api.ESNext,
}

var engineNames = map[string]api.EngineName{
	"chrome":  api.EngineChrome,
	"deno":    api.EngineDeno,
	"edge":    api.EngineEdge,
	"firefox": api.EngineFirefox,
	"ie":      api.EngineIE,
	"ios":     api.EngineIOS,
	"node":    api.EngineNode,
	"opera":   api.EngineOpera,
	"safari":  api.EngineSafari,
}

// ParseTarget maps an ECMAScript level name to an esbuild target.
func ParseTarget(s string) (api.Target, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return api.ES2015, nil
	}
	t, ok := esTargets[s]
	if !ok {
		return api.DefaultTarget, fmt.Errorf("unknown script target %q", s)
	}
	return t, nil
}

// ParseEngine parses browser targets such as "chrome40", "safari 11" or
// "firefox >= 60".
func ParseEngine(s string) (api.Engine, error) {
	compact := strings.ToLower(strings.NewReplacer(" ", "", ">=", "", "\t", "").Replace(s))
	i := strings.IndexFunc(compact, unicode.IsDigit)
	if i <= 0 {
		return api.Engine{}, fmt.Errorf("invalid engine %q: want <name><version>", s)
	}
	name, ok := engineNames[compact[:i]]
	if !ok {
		return api.Engine{}, fmt.Errorf("unknown engine %q", compact[:i])
	}
	return api.Engine{Name: name, Version: compact[i:]}, nil
}

func parseEngines(list []string) ([]api.Engine, error) {
	engines := make([]api.Engine, 0, len(list))
	for _, s := range list {
		e, err := ParseEngine(s)
		if err != nil {
			return nil, err
		}
		engines = append(engines, e)
	}
	return engines, nil
}

// messagesError folds esbuild diagnostics into one error.
func messagesError(stage string, msgs []api.Message) error {
	parts := make([]string, 0, len(msgs))
	for _, m := range msgs {
		parts = append(parts, formatMessage(m))
	}
	return fmt.Errorf("%s: %s", stage, strings.Join(parts, "; "))
}

func formatMessage(m api.Message) string {
	if m.Location == nil {
		return m.Text
	}
	return fmt.Sprintf("%d:%d: %s", m.Location.Line, m.Location.Column, m.Text)
}

func warnings(msgs []api.Message) []string {
	if len(msgs) == 0 {
		return nil
	}
	out := make([]string, len(msgs))
	for i, m := range msgs {
		out[i] = formatMessage(m)
	}
	return out
}

type esbuildScriptTransformer struct {
	target      api.Target
	engines     []api.Engine
	appendCalls bool
}

// NewScriptTransformer returns an esbuild transpiler for opts.
func NewScriptTransformer(opts ScriptOptions) (ScriptTransformer, error) {
	target, err := ParseTarget(opts.Target)
	if err != nil {
		return nil, err
	}
	engines, err := parseEngines(opts.Engines)
	if err != nil {
		return nil, err
	}
	return &esbuildScriptTransformer{target: target, engines: engines, appendCalls: opts.AppendTransform}, nil
}

func (t *esbuildScriptTransformer) Transform(content, path string) (Output, error) {
	res := api.Transform(content, api.TransformOptions{
		Loader:     api.LoaderJS,
		Target:     t.target,
		Engines:    t.engines,
		Sourcefile: filepath.Base(path),
		LogLevel:   api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return Output{}, messagesError("transpile", res.Errors)
	}
	code := string(res.Code)
	if t.appendCalls {
		rewritten, _, err := RewriteAppendCalls(code, path)
		if err != nil {
			return Output{}, err
		}
		code = rewritten
	}
	return Output{Code: code}, nil
}

type esbuildStyleTransformer struct {
	engines []api.Engine
}

// NewStyleTransformer returns an esbuild CSS lowering pass for opts.
func NewStyleTransformer(opts StyleOptions) (StyleTransformer, error) {
	browsers := opts.Browsers
	if len(browsers) == 0 {
		browsers = DefaultStyleBrowsers
	}
	engines, err := parseEngines(browsers)
	if err != nil {
		return nil, err
	}
	return &esbuildStyleTransformer{engines: engines}, nil
}

func (t *esbuildStyleTransformer) Transform(content, path string) (StyleOutput, error) {
	res := api.Transform(content, api.TransformOptions{
		Loader:     api.LoaderCSS,
		Engines:    t.engines,
		Sourcefile: filepath.Base(path),
		LogLevel:   api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return StyleOutput{}, messagesError("style transform", res.Errors)
	}
	return StyleOutput{CSS: string(res.Code), Warnings: warnings(res.Warnings)}, nil
}

type esbuildScriptMinifier struct {
	opts ScriptMinifyOptions
}

func (m *esbuildScriptMinifier) Minify(content, path string) (Output, error) {
	var drop api.Drop
	if m.opts.DropConsole {
		drop |= api.DropConsole
	}
	if m.opts.DropDebugger {
		drop |= api.DropDebugger
	}
	res := api.Transform(content, api.TransformOptions{
		Loader:            api.LoaderJS,
		MinifyWhitespace:  true,
		MinifyIdentifiers: !m.opts.KeepVarNames,
		MinifySyntax:      true,
		Drop:              drop,
		Sourcemap:         sourceMapMode(m.opts.SourceMap),
		Sourcefile:        filepath.Base(path),
		LogLevel:          api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return Output{}, messagesError("minify", res.Errors)
	}
	return Output{Code: string(res.Code), Map: string(res.Map)}, nil
}

type esbuildStyleMinifier struct {
	opts StyleMinifyOptions
}

func (m *esbuildStyleMinifier) Minify(content, path string) (StyleOutput, error) {
	res := api.Transform(content, api.TransformOptions{
		Loader:           api.LoaderCSS,
		MinifyWhitespace: true,
		MinifySyntax:     true,
		Sourcemap:        sourceMapMode(m.opts.SourceMap),
		Sourcefile:       filepath.Base(path),
		LogLevel:         api.LogLevelSilent,
	})
	if len(res.Errors) > 0 {
		return StyleOutput{}, messagesError("minify", res.Errors)
	}
	return StyleOutput{CSS: string(res.Code), Map: string(res.Map), Warnings: warnings(res.Warnings)}, nil
}

func sourceMapMode(enabled bool) api.SourceMap {
	if enabled {
		return api.SourceMapExternal
	}
	return api.SourceMapNone
}
