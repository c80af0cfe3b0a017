package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/fulmenhq/assetneat/pkg/assetref"
	"github.com/fulmenhq/assetneat/pkg/logger"
	"github.com/fulmenhq/assetneat/pkg/metrics"
	"github.com/fulmenhq/assetneat/pkg/precompress"
	"github.com/fulmenhq/assetneat/pkg/safeio"
	"github.com/fulmenhq/assetneat/pkg/transform"
	"github.com/fulmenhq/assetneat/pkg/work"
)

const (
	stageRead        = "read"
	stageTransform   = "transform"
	stageMinify      = "minify"
	stageWrite       = "write"
	stageSourceMap   = "sourcemap"
	stageVersion     = "version"
	stagePrecompress = "precompress"
	stageTimeout     = "timeout"
)

// stageError tags an error with the pipeline stage that produced it.
type stageError struct {
	stage string
	err   error
}

func (e *stageError) Error() string { return e.stage + ": " + e.err.Error() }
func (e *stageError) Unwrap() error { return e.err }

func failAt(stage string, err error) error {
	return &stageError{stage: stage, err: err}
}

type fileResult struct {
	written bool
	in, out int64
}

// converted is the output of the transform and minify stages.
type converted struct {
	code      string
	sourceMap string
}

func (o *Orchestrator) processItem(ctx context.Context, run *runState, item work.WorkItem) {
	run.discovered(item)
	if item.Dir {
		return
	}
	kind := item.Kind.String()
	if !item.Processable() {
		o.log.Trace("Skipping file", logger.Path(item.Rel), logger.String("reason", string(item.Skip)))
		o.recorder.IncFile(kind, metrics.OutcomeSkipped)
		return
	}
	if !run.claim(item.Path) {
		return
	}

	res, err := o.processFile(ctx, run, item)
	if err != nil {
		stage := "process"
		var se *stageError
		if errors.As(err, &se) {
			stage = se.stage
		}
		o.log.Error("Failed to process file", logger.Path(item.Rel), logger.String("stage", stage), logger.Err(err))
		run.fail(item.Kind, item.Path, stage, err)
		o.recorder.IncFile(kind, metrics.OutcomeErrored)
		return
	}

	run.finished(item.Kind, res.written, res.in, res.out)
	o.recorder.AddBytes(res.in, res.out)
	if res.written {
		o.recorder.IncFile(kind, metrics.OutcomeWritten)
	} else {
		o.recorder.IncFile(kind, metrics.OutcomeUnchanged)
	}
}

// processFile moves one file through transform, minify, write, and when
// versioning is on, reference rewriting and a second write if that changed
// anything.
//
// A source map sidecar describes the minified output as it was before
// version tokens were inserted. Each "?v=<hash>" added to a reference shifts
// later columns on that line by its length, so positions after a rewritten
// reference are off by that amount. Lines are never added or removed.
func (o *Orchestrator) processFile(ctx context.Context, run *runState, item work.WorkItem) (fileResult, error) {
	data, err := safeio.ReadFileContained(o.root, item.Path)
	if err != nil {
		return fileResult{}, failAt(stageRead, err)
	}
	original := string(data)
	res := fileResult{in: int64(len(data)), out: int64(len(data))}
	if strings.TrimSpace(original) == "" {
		o.log.Debug("Empty file, nothing to do", logger.Path(item.Rel))
		return res, nil
	}

	out, err := runWithTimeout(ctx, o.opts.FileTimeout, func() (converted, error) {
		return o.convert(item, original)
	})
	if err != nil {
		var se *stageError
		if !errors.As(err, &se) {
			err = failAt(stageTimeout, err)
		}
		return res, err
	}

	content := out.code
	if out.sourceMap != "" {
		mapPath := item.Path + ".map"
		if err := safeio.WriteFileAtomic(mapPath, []byte(out.sourceMap)); err != nil {
			return res, failAt(stageSourceMap, err)
		}
		content = appendSourceMapURL(item.Kind, content, filepath.Base(mapPath))
	}

	if content != original {
		if err := o.write(item, content); err != nil {
			return res, err
		}
		res.written = true
	}

	if o.rewriter != nil {
		rewritten := o.rewriteReferences(run, item, content)
		if rewritten.Modified {
			if err := o.write(item, rewritten.Content); err != nil {
				return res, err
			}
			content = rewritten.Content
			res.written = true
		}
	}
	res.out = int64(len(content))

	if len(o.precompress) > 0 {
		start := time.Now()
		if _, err := precompress.WriteSidecars(item.Path, []byte(content), o.precompress); err != nil {
			return res, failAt(stagePrecompress, err)
		}
		o.recorder.ObserveStageDuration(stagePrecompress, time.Since(start))
	}
	return res, nil
}

// convert runs the optional transform stage followed by minification.
func (o *Orchestrator) convert(item work.WorkItem, content string) (converted, error) {
	switch item.Kind {
	case work.KindScript:
		return o.convertScript(item, content)
	case work.KindStyle:
		return o.convertStyle(item, content)
	default:
		return converted{}, fmt.Errorf("unsupported kind %s", item.Kind)
	}
}

func (o *Orchestrator) convertScript(item work.WorkItem, content string) (converted, error) {
	if o.scriptTransformer != nil {
		start := time.Now()
		out, err := o.scriptTransformer.Transform(content, item.Path)
		o.recorder.ObserveStageDuration(stageTransform, time.Since(start))
		if err != nil {
			return converted{}, failAt(stageTransform, err)
		}
		if out.Code == "" {
			return converted{}, failAt(stageTransform, transform.ErrEmptyOutput)
		}
		content = out.Code
	}

	start := time.Now()
	out, err := o.scriptMinifier.Minify(content, item.Path)
	o.recorder.ObserveStageDuration(stageMinify, time.Since(start))
	if err != nil {
		return converted{}, failAt(stageMinify, err)
	}
	if out.Code == "" {
		return converted{}, failAt(stageMinify, transform.ErrEmptyOutput)
	}
	return converted{code: out.Code, sourceMap: out.Map}, nil
}

func (o *Orchestrator) convertStyle(item work.WorkItem, content string) (converted, error) {
	if o.styleCapability.Available {
		start := time.Now()
		out, err := o.styleTransformer.Transform(content, item.Path)
		o.recorder.ObserveStageDuration(stageTransform, time.Since(start))
		if err != nil {
			return converted{}, failAt(stageTransform, err)
		}
		o.logWarnings(item, stageTransform, out.Warnings)
		if out.CSS == "" {
			return converted{}, failAt(stageTransform, transform.ErrEmptyOutput)
		}
		content = out.CSS
	}

	start := time.Now()
	out, err := o.styleMinifier.Minify(content, item.Path)
	o.recorder.ObserveStageDuration(stageMinify, time.Since(start))
	if err != nil {
		return converted{}, failAt(stageMinify, err)
	}
	o.logWarnings(item, stageMinify, out.Warnings)
	if out.CSS == "" {
		return converted{}, failAt(stageMinify, transform.ErrEmptyOutput)
	}
	return converted{code: out.CSS, sourceMap: out.Map}, nil
}

func (o *Orchestrator) logWarnings(item work.WorkItem, stage string, warnings []string) {
	for _, w := range warnings {
		o.log.Warn("Stage reported a warning", logger.Path(item.Rel), logger.String("stage", stage), logger.String("warning", w))
	}
}

func (o *Orchestrator) write(item work.WorkItem, content string) error {
	start := time.Now()
	if err := safeio.WriteFilePreservePerms(item.Path, []byte(content)); err != nil {
		return failAt(stageWrite, err)
	}
	o.recorder.ObserveStageDuration(stageWrite, time.Since(start))
	o.log.Debug("Wrote file", logger.Path(item.Rel), logger.Int("bytes", len(content)))
	return nil
}

// rewriteReferences applies the versioning policy for the item's kind.
// Missing images are reported but never fail the file.
func (o *Orchestrator) rewriteReferences(run *runState, item work.WorkItem, content string) assetref.Result {
	start := time.Now()
	var res assetref.Result
	switch item.Kind {
	case work.KindScript:
		res = o.rewriter.RewriteScript(content, run.summary.Token)
	case work.KindStyle:
		res = o.rewriter.RewriteStyle(content, item.Path, o.root, o.ledger)
	}
	o.recorder.ObserveStageDuration(stageVersion, time.Since(start))
	o.recorder.AddReferences(item.Kind.String(), res.Rewritten, res.Reverted)
	run.references(res.Rewritten, res.Reverted, res.Missing)

	if len(res.Missing) > 0 {
		o.log.Warn("Image references reverted to unversioned form",
			logger.Path(item.Rel), logger.Strings("missing", res.Missing))
	}
	if res.Modified {
		o.log.Debug("Rewrote image references", logger.Path(item.Rel),
			logger.Int("rewritten", res.Rewritten), logger.Int("reverted", res.Reverted))
	}
	return res
}

func appendSourceMapURL(kind work.Kind, content, mapName string) string {
	content = strings.TrimRight(content, "\n")
	if kind == work.KindStyle {
		return content + "\n/*# sourceMappingURL=" + mapName + " */\n"
	}
	return content + "\n//# sourceMappingURL=" + mapName + "\n"
}

// runWithTimeout bounds fn by d. The engines cannot be interrupted, so on
// timeout fn keeps running in the background and its result is discarded.
func runWithTimeout[T any](ctx context.Context, d time.Duration, fn func() (T, error)) (T, error) {
	if d <= 0 {
		return fn()
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	defer cancel()

	type result struct {
		v   T
		err error
	}
	ch := make(chan result, 1)
	go func() {
		v, err := fn()
		ch <- result{v, err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, fmt.Errorf("timed out after %s: %w", d, ctx.Err())
	}
}
