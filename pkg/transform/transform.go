// Package transform wraps the external transpile, CSS lowering and
// minification engines behind small interfaces. The pipeline only relies on
// the input/output shapes defined here.
package transform

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyOutput is returned when a stage turns non-empty input into nothing.
var ErrEmptyOutput = errors.New("invalid or empty content")

// Output is the result of a script stage.
type Output struct {
	Code string
	// Map is the external source map, when one was requested.
	Map string
}

// StyleOutput is the result of a style stage.
type StyleOutput struct {
	CSS string
	Map string
	// Warnings are non-fatal diagnostics. They are logged and never block
	// writing the output.
	Warnings []string
}

// ScriptTransformer transpiles a script (the "useBabel" stage).
type ScriptTransformer interface {
	Transform(content, path string) (Output, error)
}

// StyleTransformer post-processes a stylesheet (the "usePostCSS" stage).
type StyleTransformer interface {
	Transform(content, path string) (StyleOutput, error)
}

// ScriptMinifier minifies a script.
type ScriptMinifier interface {
	Minify(content, path string) (Output, error)
}

// StyleMinifier minifies a stylesheet.
type StyleMinifier interface {
	Minify(content, path string) (StyleOutput, error)
}

// Backend names a minification engine.
type Backend string

const (
	BackendTdewolff Backend = "tdewolff"
	BackendEsbuild  Backend = "esbuild"
)

// ParseBackend validates a backend name; the empty string means tdewolff.
func ParseBackend(s string) (Backend, error) {
	switch Backend(strings.ToLower(strings.TrimSpace(s))) {
	case "", BackendTdewolff:
		return BackendTdewolff, nil
	case BackendEsbuild:
		return BackendEsbuild, nil
	default:
		return "", fmt.Errorf("unknown minifier backend %q (want tdewolff or esbuild)", s)
	}
}

// ScriptOptions configures script transpilation.
type ScriptOptions struct {
	// Target is the ECMAScript level, e.g. "es2015". Empty means es2015.
	Target string `json:"target,omitempty" yaml:"target,omitempty" mapstructure:"target"`
	// Engines lists browser targets such as "chrome58" or "safari >= 11".
	Engines []string `json:"targets,omitempty" yaml:"targets,omitempty" mapstructure:"targets"`
	// AppendTransform rewrites Element.append calls into appendChild calls
	// after transpiling.
	AppendTransform bool `json:"useAppendTransform,omitempty" yaml:"useAppendTransform,omitempty" mapstructure:"useAppendTransform"`
}

// StyleOptions configures CSS lowering.
type StyleOptions struct {
	// Browsers lists browser targets. Empty means chrome40.
	Browsers []string `json:"browsers,omitempty" yaml:"browsers,omitempty" mapstructure:"browsers"`
}

// DefaultStyleBrowsers is used when StyleOptions.Browsers is empty.
var DefaultStyleBrowsers = []string{"chrome40"}

// ScriptMinifyOptions configures script minification.
type ScriptMinifyOptions struct {
	Backend      string `json:"backend,omitempty" yaml:"backend,omitempty" mapstructure:"backend"`
	Precision    int    `json:"precision,omitempty" yaml:"precision,omitempty" mapstructure:"precision"`
	KeepVarNames bool   `json:"keepVarNames,omitempty" yaml:"keepVarNames,omitempty" mapstructure:"keepVarNames"`
	// DropConsole and DropDebugger need the esbuild backend.
	DropConsole  bool `json:"dropConsole,omitempty" yaml:"dropConsole,omitempty" mapstructure:"dropConsole"`
	DropDebugger bool `json:"dropDebugger,omitempty" yaml:"dropDebugger,omitempty" mapstructure:"dropDebugger"`
	// SourceMap requests an external map; it needs the esbuild backend.
	SourceMap bool `json:"-" yaml:"-" mapstructure:"-"`
}

// StyleMinifyOptions configures stylesheet minification.
type StyleMinifyOptions struct {
	Backend   string `json:"backend,omitempty" yaml:"backend,omitempty" mapstructure:"backend"`
	Precision int    `json:"precision,omitempty" yaml:"precision,omitempty" mapstructure:"precision"`
	SourceMap bool   `json:"-" yaml:"-" mapstructure:"-"`
}

// NewScriptMinifier picks the engine for opts. Source maps and console or
// debugger dropping force the esbuild backend.
func NewScriptMinifier(opts ScriptMinifyOptions) (ScriptMinifier, error) {
	backend, err := ParseBackend(opts.Backend)
	if err != nil {
		return nil, err
	}
	if opts.SourceMap || opts.DropConsole || opts.DropDebugger {
		backend = BackendEsbuild
	}
	if backend == BackendEsbuild {
		return &esbuildScriptMinifier{opts: opts}, nil
	}
	return newTdewolffScriptMinifier(opts), nil
}

// NewStyleMinifier picks the engine for opts. Source maps force esbuild.
func NewStyleMinifier(opts StyleMinifyOptions) (StyleMinifier, error) {
	backend, err := ParseBackend(opts.Backend)
	if err != nil {
		return nil, err
	}
	if opts.SourceMap {
		backend = BackendEsbuild
	}
	if backend == BackendEsbuild {
		return &esbuildStyleMinifier{opts: opts}, nil
	}
	return newTdewolffStyleMinifier(opts), nil
}
