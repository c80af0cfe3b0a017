// Package metrics records per-run pipeline metrics. The default recorder
// does nothing; the Prometheus recorder keeps a private registry per run that
// can be exported in node_exporter textfile format.
package metrics

import "time"

// Outcome is the terminal state of one file.
type Outcome string

const (
	OutcomeWritten   Outcome = "written"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeErrored   Outcome = "errored"
)

// Recorder defines the observability hooks used by the pipeline. All methods
// must be safe for concurrent use.
type Recorder interface {
	IncFile(kind string, outcome Outcome)
	ObserveStageDuration(stage string, d time.Duration)
	AddBytes(in, out int64)
	AddReferences(kind string, rewritten, reverted int)
	ObserveRunDuration(d time.Duration)
}

// NoopRecorder is a Recorder that does nothing (default when metrics are not configured).
type NoopRecorder struct{}

func (NoopRecorder) IncFile(string, Outcome)                   {}
func (NoopRecorder) ObserveStageDuration(string, time.Duration) {}
func (NoopRecorder) AddBytes(int64, int64)                     {}
func (NoopRecorder) AddReferences(string, int, int)            {}
func (NoopRecorder) ObserveRunDuration(time.Duration)          {}
