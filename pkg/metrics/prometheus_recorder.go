package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

const namespace = "assetneat"

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	reg           *prom.Registry
	files         *prom.CounterVec
	stageDuration *prom.HistogramVec
	bytes         *prom.CounterVec
	references    *prom.CounterVec
	runDuration   prom.Gauge
}

// NewPrometheusRecorder constructs and registers the pipeline metrics on reg.
// A nil reg gets a fresh private registry.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		reg: reg,
		files: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "files_total",
			Help:      "Files by kind and terminal outcome",
		}, []string{"kind", "outcome"}),
		stageDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Duration of per-file pipeline stages",
			Buckets:   prom.DefBuckets,
		}, []string{"stage"}),
		bytes: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "bytes_total",
			Help:      "Bytes read from and written to processed files",
		}, []string{"direction"}),
		references: prom.NewCounterVec(prom.CounterOpts{
			Namespace: namespace,
			Name:      "references_total",
			Help:      "Image references rewritten or reverted, by file kind",
		}, []string{"kind", "action"}),
		runDuration: prom.NewGauge(prom.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
	}
	reg.MustRegister(pr.files, pr.stageDuration, pr.bytes, pr.references, pr.runDuration)
	return pr
}

// Registry returns the registry the metrics are registered on.
func (p *PrometheusRecorder) Registry() *prom.Registry { return p.reg }

func (p *PrometheusRecorder) IncFile(kind string, outcome Outcome) {
	p.files.WithLabelValues(kind, string(outcome)).Inc()
}

func (p *PrometheusRecorder) ObserveStageDuration(stage string, d time.Duration) {
	p.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (p *PrometheusRecorder) AddBytes(in, out int64) {
	p.bytes.WithLabelValues("in").Add(float64(in))
	p.bytes.WithLabelValues("out").Add(float64(out))
}

func (p *PrometheusRecorder) AddReferences(kind string, rewritten, reverted int) {
	if rewritten > 0 {
		p.references.WithLabelValues(kind, "rewritten").Add(float64(rewritten))
	}
	if reverted > 0 {
		p.references.WithLabelValues(kind, "reverted").Add(float64(reverted))
	}
}

func (p *PrometheusRecorder) ObserveRunDuration(d time.Duration) {
	p.runDuration.Set(d.Seconds())
}

// WriteTextfile writes the registry to path in the text exposition format.
func (p *PrometheusRecorder) WriteTextfile(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prom.WriteToTextfile(path, p.reg); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
