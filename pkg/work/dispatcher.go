package work

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/fulmenhq/assetneat/pkg/logger"
	"golang.org/x/sync/errgroup"
)

// WorkItemProcessor handles one item. Implementations record their own
// outcome; a failing item must not stop the dispatcher.
type WorkItemProcessor interface {
	ProcessWorkItem(ctx context.Context, item WorkItem)
}

// ProcessorFunc adapts a function to WorkItemProcessor.
type ProcessorFunc func(ctx context.Context, item WorkItem)

func (f ProcessorFunc) ProcessWorkItem(ctx context.Context, item WorkItem) { f(ctx, item) }

// DispatcherConfig configures the dispatcher
type DispatcherConfig struct {
	// MaxWorkers above 1 processes items concurrently. Zero or one keeps
	// strict walk order.
	MaxWorkers int
	Log        *logger.Logger
}

// ExecutionSummary describes one dispatch.
type ExecutionSummary struct {
	Dispatched    int           `json:"dispatched"`
	Workers       int           `json:"workers"`
	TotalDuration time.Duration `json:"total_duration"`
}

// Dispatcher feeds a lazy item sequence to a processor.
type Dispatcher struct {
	config    DispatcherConfig
	processor WorkItemProcessor
	log       *logger.Logger
}

// NewDispatcher creates a new work dispatcher
func NewDispatcher(config DispatcherConfig, processor WorkItemProcessor) *Dispatcher {
	if config.MaxWorkers < 1 {
		config.MaxWorkers = 1
	}
	log := config.Log
	if log == nil {
		log = logger.Discard()
	}
	return &Dispatcher{config: config, processor: processor, log: log}
}

// Execute ranges over items and processes each one. It returns the first
// enumeration error, or the context error when ctx ends early; in both cases
// items already dispatched are allowed to finish.
func (d *Dispatcher) Execute(ctx context.Context, items iter.Seq2[WorkItem, error]) (*ExecutionSummary, error) {
	start := time.Now()
	summary := &ExecutionSummary{Workers: d.config.MaxWorkers}
	d.log.Debug(fmt.Sprintf("Starting dispatch with %d workers", d.config.MaxWorkers))

	var g errgroup.Group
	if d.config.MaxWorkers > 1 {
		g.SetLimit(d.config.MaxWorkers)
	}

	var runErr error
	for item, err := range items {
		if err != nil {
			runErr = err
			break
		}
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}
		summary.Dispatched++
		if d.config.MaxWorkers == 1 {
			d.processor.ProcessWorkItem(ctx, item)
			continue
		}
		g.Go(func() error {
			d.processor.ProcessWorkItem(ctx, item)
			return nil
		})
	}
	_ = g.Wait()

	summary.TotalDuration = time.Since(start)
	d.log.Debug(fmt.Sprintf("Dispatch completed: %d items in %v", summary.Dispatched, summary.TotalDuration))
	return summary, runErr
}
