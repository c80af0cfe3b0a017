// Package pipeline walks a directory tree and post-processes every script and
// style file in place: optional transpile or CSS lowering, minification, and
// optional cache-busting of image references.
//
// A run never returns an error. Per-file failures are logged and collected in
// the Summary; only a failure to enumerate the root ends a run early.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fulmenhq/assetneat/pkg/assetref"
	"github.com/fulmenhq/assetneat/pkg/ledger"
	"github.com/fulmenhq/assetneat/pkg/logger"
	"github.com/fulmenhq/assetneat/pkg/metrics"
	"github.com/fulmenhq/assetneat/pkg/pathutil"
	"github.com/fulmenhq/assetneat/pkg/precompress"
	"github.com/fulmenhq/assetneat/pkg/transform"
	"github.com/fulmenhq/assetneat/pkg/work"
	"github.com/google/uuid"
)

// Orchestrator runs the pipeline for one root.
type Orchestrator struct {
	root    string
	opts    Options
	log     *logger.Logger
	ownsLog bool

	planner  *work.Planner
	ledger   *ledger.Ledger
	rewriter *assetref.Rewriter

	scriptTransformer transform.ScriptTransformer
	styleTransformer  transform.StyleTransformer
	styleCapability   transform.Capability
	scriptMinifier    transform.ScriptMinifier
	styleMinifier     transform.StyleMinifier

	precompress []precompress.Format
	recorder    metrics.Recorder
	prom        *metrics.PrometheusRecorder
}

// Option customizes an Orchestrator. Injected collaborators take precedence
// over the ones built from Options.
type Option func(*Orchestrator)

// WithLogger sets the logger. The caller keeps ownership.
func WithLogger(l *logger.Logger) Option {
	return func(o *Orchestrator) { o.log = l }
}

// WithScriptTransformer replaces the esbuild transpiler.
func WithScriptTransformer(t transform.ScriptTransformer) Option {
	return func(o *Orchestrator) { o.scriptTransformer = t }
}

// WithStyleTransformer replaces the esbuild CSS lowering pass.
func WithStyleTransformer(t transform.StyleTransformer) Option {
	return func(o *Orchestrator) { o.styleTransformer = t }
}

// WithScriptMinifier replaces the script minifier.
func WithScriptMinifier(m transform.ScriptMinifier) Option {
	return func(o *Orchestrator) { o.scriptMinifier = m }
}

// WithStyleMinifier replaces the style minifier.
func WithStyleMinifier(m transform.StyleMinifier) Option {
	return func(o *Orchestrator) { o.styleMinifier = m }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r metrics.Recorder) Option {
	return func(o *Orchestrator) { o.recorder = r }
}

// New validates opts and builds the collaborators for root. Configuration
// errors are returned here; nothing on disk is touched yet.
func New(root string, opts Options, options ...Option) (*Orchestrator, error) {
	abs, err := pathutil.Resolve(root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", root, err)
	}
	o := &Orchestrator{root: abs, opts: opts}
	for _, opt := range options {
		opt(o)
	}

	if o.log == nil {
		if opts.Log != nil {
			l, err := logger.New(logger.Config{
				Level:     logger.InfoLevel,
				UseColor:  logger.StderrIsTerminal(),
				Component: "assetneat",
				File:      opts.Log,
			})
			if err != nil {
				return nil, err
			}
			o.log, o.ownsLog = l, true
		} else {
			o.log = logger.Default()
		}
	}

	if err := o.buildCollaborators(); err != nil {
		_ = o.closeLog()
		return nil, err
	}
	return o, nil
}

func (o *Orchestrator) buildCollaborators() error {
	planner, err := work.NewPlanner(work.PlannerConfig{
		Root:            o.root,
		ExcludeFolder:   o.opts.ExcludeFolder,
		ExcludePatterns: o.opts.ExcludePatterns,
		NoIgnore:        o.opts.NoIgnore,
		Log:             o.log,
	})
	if err != nil {
		return err
	}
	o.planner = planner

	if o.scriptTransformer == nil && o.opts.ScriptTransform != nil {
		if o.scriptTransformer, err = transform.NewScriptTransformer(*o.opts.ScriptTransform); err != nil {
			return fmt.Errorf("script transform: %w", err)
		}
	}
	if o.styleTransformer == nil && o.opts.StyleTransform != nil {
		if o.styleTransformer, err = transform.NewStyleTransformer(*o.opts.StyleTransform); err != nil {
			return fmt.Errorf("style transform: %w", err)
		}
	}
	if o.styleTransformer != nil {
		o.styleCapability = transform.ProbeStyleTransform(o.styleTransformer)
		if !o.styleCapability.Available {
			o.log.Debug("style transform unavailable, stage disabled", logger.String("reason", o.styleCapability.Reason))
		}
	}

	if o.scriptMinifier == nil {
		sm := o.opts.ScriptMinify
		sm.SourceMap = o.opts.ScriptSourceMap
		if o.scriptMinifier, err = transform.NewScriptMinifier(sm); err != nil {
			return fmt.Errorf("script minify: %w", err)
		}
	}
	if o.styleMinifier == nil {
		cm := o.opts.StyleMinify
		cm.SourceMap = o.opts.StyleSourceMap
		if o.styleMinifier, err = transform.NewStyleMinifier(cm); err != nil {
			return fmt.Errorf("style minify: %w", err)
		}
	}

	if v := o.opts.Versioning; v != nil {
		digest, err := ledger.ParseDigest(v.Digest)
		if err != nil {
			return err
		}
		o.ledger = ledger.New(o.root, ledger.WithDigest(digest), ledger.WithLogger(o.log))
		o.rewriter = assetref.New(*v, o.log)
	}

	if o.precompress, err = precompress.ParseFormats(o.opts.Precompress); err != nil {
		return err
	}

	if o.recorder == nil {
		if o.opts.MetricsFile != "" {
			o.prom = metrics.NewPrometheusRecorder(nil)
			o.recorder = o.prom
		} else {
			o.recorder = metrics.NoopRecorder{}
		}
	}
	return nil
}

// Root returns the absolute run root.
func (o *Orchestrator) Root() string { return o.root }

// StyleCapability reports whether the CSS lowering stage will run.
func (o *Orchestrator) StyleCapability() transform.Capability { return o.styleCapability }

// Run processes the tree once. It may be called again; every call starts a
// fresh run context and a fresh script token.
func (o *Orchestrator) Run(ctx context.Context) *Summary {
	started := time.Now()
	token := ""
	if o.rewriter != nil {
		token = o.opts.Versioning.ScriptToken
		if token == "" {
			token = assetref.NewRunToken()
		}
	}
	run := newRunState(uuid.NewString(), o.root, token, started)

	o.log.Info("Starting asset run",
		logger.Path(o.root),
		logger.String("run_id", run.summary.RunID),
		logger.Bool("versioning", o.rewriter != nil),
		logger.Int("workers", max(o.opts.Workers, 1)))

	if o.ledger != nil {
		if err := o.ledger.Initialize(); err != nil {
			o.log.Error("hash ledger could not be persisted", logger.Err(err))
		}
	}

	dispatcher := work.NewDispatcher(work.DispatcherConfig{MaxWorkers: o.opts.Workers, Log: o.log},
		work.ProcessorFunc(func(ctx context.Context, item work.WorkItem) {
			o.processItem(ctx, run, item)
		}))
	_, err := dispatcher.Execute(ctx, o.planner.Items())

	summary := run.snapshot(time.Since(started))
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded):
		summary.Cancelled = true
		o.log.Warn("Run cancelled", logger.Err(err))
	default:
		summary.Fatal = err.Error()
		o.log.Error("Failed to enumerate files", logger.Path(o.root), logger.Err(err))
	}

	o.recorder.ObserveRunDuration(summary.Duration)
	if o.prom != nil {
		if err := o.prom.WriteTextfile(o.opts.MetricsFile); err != nil {
			o.log.Warn("Failed to write metrics", logger.Err(err))
		}
	}

	o.log.Info("Asset run finished",
		logger.Int("processed", summary.Processed),
		logger.Int("written", summary.Written),
		logger.Int("unchanged", summary.Unchanged),
		logger.Int("skipped", summary.Skipped),
		logger.Int("errored", summary.Errored),
		logger.Duration("duration", summary.Duration))
	return summary
}

// Close releases the log file opened for Options.Log.
func (o *Orchestrator) Close() error {
	return o.closeLog()
}

func (o *Orchestrator) closeLog() error {
	if !o.ownsLog || o.log == nil {
		return nil
	}
	o.ownsLog = false
	return o.log.Close()
}

// MinifyAll runs the pipeline once over root. Configuration errors are
// reported through the Summary like any other fatal condition.
func MinifyAll(ctx context.Context, root string, opts Options, options ...Option) *Summary {
	o, err := New(root, opts, options...)
	if err != nil {
		probe := &Orchestrator{}
		for _, opt := range options {
			opt(probe)
		}
		log := probe.log
		if log == nil {
			log = logger.Default()
		}
		log.Error("Failed to start asset run", logger.Path(root), logger.Err(err))
		return &Summary{Root: root, StartedAt: time.Now(), ByKind: map[string]KindStats{}, Fatal: err.Error()}
	}
	defer func() { _ = o.Close() }()
	return o.Run(ctx)
}
