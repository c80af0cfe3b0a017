package transform

import (
	"fmt"

	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/js"
)

const (
	mediaScript = "application/javascript"
	mediaStyle  = "text/css"
)

type tdewolffScriptMinifier struct {
	m *minify.M
}

func newTdewolffScriptMinifier(opts ScriptMinifyOptions) *tdewolffScriptMinifier {
	m := minify.New()
	m.Add(mediaScript, &js.Minifier{Precision: opts.Precision, KeepVarNames: opts.KeepVarNames})
	return &tdewolffScriptMinifier{m: m}
}

func (t *tdewolffScriptMinifier) Minify(content, path string) (Output, error) {
	out, err := t.m.String(mediaScript, content)
	if err != nil {
		return Output{}, fmt.Errorf("minify %s: %w", path, err)
	}
	return Output{Code: out}, nil
}

type tdewolffStyleMinifier struct {
	m *minify.M
}

func newTdewolffStyleMinifier(opts StyleMinifyOptions) *tdewolffStyleMinifier {
	m := minify.New()
	m.Add(mediaStyle, &css.Minifier{Precision: opts.Precision})
	return &tdewolffStyleMinifier{m: m}
}

func (t *tdewolffStyleMinifier) Minify(content, path string) (StyleOutput, error) {
	out, err := t.m.String(mediaStyle, content)
	if err != nil {
		return StyleOutput{}, fmt.Errorf("minify %s: %w", path, err)
	}
	return StyleOutput{CSS: out}, nil
}
