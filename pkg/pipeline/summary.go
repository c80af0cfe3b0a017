package pipeline

import (
	"sort"
	"sync"
	"time"

	"github.com/fulmenhq/assetneat/pkg/work"
)

// FileError is one failed file and the first reason it failed.
type FileError struct {
	Path   string `json:"path" yaml:"path" toml:"path"`
	Stage  string `json:"stage" yaml:"stage" toml:"stage"`
	Reason string `json:"reason" yaml:"reason" toml:"reason"`
}

// KindStats counts terminal outcomes for one file kind.
type KindStats struct {
	Written   int `json:"written" yaml:"written" toml:"written"`
	Unchanged int `json:"unchanged" yaml:"unchanged" toml:"unchanged"`
	Errored   int `json:"errored" yaml:"errored" toml:"errored"`
}

// Summary is the outcome of a run. It is the only thing a run reports;
// failures never surface as returned errors.
type Summary struct {
	RunID     string        `json:"run_id" yaml:"run_id" toml:"run_id"`
	Root      string        `json:"root" yaml:"root" toml:"root"`
	Token     string        `json:"token,omitempty" yaml:"token,omitempty" toml:"token,omitempty"`
	StartedAt time.Time     `json:"started_at" yaml:"started_at" toml:"started_at"`
	Duration  time.Duration `json:"duration" yaml:"duration" toml:"duration"`

	// Discovered counts files seen during the walk, skipped ones included.
	Discovered int `json:"discovered" yaml:"discovered" toml:"discovered"`
	// Processed counts script and style files that entered the pipeline.
	Processed   int `json:"processed" yaml:"processed" toml:"processed"`
	Written     int `json:"written" yaml:"written" toml:"written"`
	Unchanged   int `json:"unchanged" yaml:"unchanged" toml:"unchanged"`
	Skipped     int `json:"skipped" yaml:"skipped" toml:"skipped"`
	SkippedDirs int `json:"skipped_dirs" yaml:"skipped_dirs" toml:"skipped_dirs"`
	Errored     int `json:"errored" yaml:"errored" toml:"errored"`

	ByKind     map[string]KindStats `json:"by_kind" yaml:"by_kind" toml:"by_kind"`
	ErrorFiles []FileError          `json:"error_files,omitempty" yaml:"error_files,omitempty" toml:"error_files,omitempty"`

	BytesIn  int64 `json:"bytes_in" yaml:"bytes_in" toml:"bytes_in"`
	BytesOut int64 `json:"bytes_out" yaml:"bytes_out" toml:"bytes_out"`

	ReferencesRewritten int      `json:"references_rewritten" yaml:"references_rewritten" toml:"references_rewritten"`
	ReferencesReverted  int      `json:"references_reverted" yaml:"references_reverted" toml:"references_reverted"`
	MissingImages       []string `json:"missing_images,omitempty" yaml:"missing_images,omitempty" toml:"missing_images,omitempty"`

	// Fatal is set when the run could not enumerate the root or could not start.
	Fatal     string `json:"fatal,omitempty" yaml:"fatal,omitempty" toml:"fatal,omitempty"`
	Cancelled bool   `json:"cancelled,omitempty" yaml:"cancelled,omitempty" toml:"cancelled,omitempty"`
}

// OK reports whether every file was handled without error.
func (s *Summary) OK() bool {
	return s.Fatal == "" && !s.Cancelled && s.Errored == 0
}

// runState is the mutable context of one Run call. Nothing in it outlives
// the run.
type runState struct {
	mu        sync.Mutex
	summary   Summary
	processed map[string]bool
	errored   map[string]bool
	missing   map[string]bool
}

func newRunState(id, root, token string, started time.Time) *runState {
	return &runState{
		summary: Summary{
			RunID:     id,
			Root:      root,
			Token:     token,
			StartedAt: started,
			ByKind:    make(map[string]KindStats),
		},
		processed: make(map[string]bool),
		errored:   make(map[string]bool),
		missing:   make(map[string]bool),
	}
}

// claim marks path as processed. It returns false when the path was already
// claimed in this run.
func (r *runState) claim(path string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.processed[path] {
		return false
	}
	r.processed[path] = true
	r.summary.Processed++
	return true
}

func (r *runState) discovered(item work.WorkItem) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if item.Dir {
		r.summary.SkippedDirs++
		return
	}
	r.summary.Discovered++
	if !item.Processable() {
		r.summary.Skipped++
	}
}

func (r *runState) finished(kind work.Kind, written bool, in, out int64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ks := r.summary.ByKind[kind.String()]
	if written {
		r.summary.Written++
		ks.Written++
	} else {
		r.summary.Unchanged++
		ks.Unchanged++
	}
	r.summary.ByKind[kind.String()] = ks
	r.summary.BytesIn += in
	r.summary.BytesOut += out
}

// fail records the first failure of path. Later failures of the same path
// are not counted again.
func (r *runState) fail(kind work.Kind, path, stage string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.errored[path] {
		return
	}
	r.errored[path] = true
	r.summary.Errored++
	ks := r.summary.ByKind[kind.String()]
	ks.Errored++
	r.summary.ByKind[kind.String()] = ks
	r.summary.ErrorFiles = append(r.summary.ErrorFiles, FileError{Path: path, Stage: stage, Reason: err.Error()})
}

func (r *runState) references(rewritten, reverted int, missing []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.summary.ReferencesRewritten += rewritten
	r.summary.ReferencesReverted += reverted
	for _, m := range missing {
		r.missing[m] = true
	}
}

// snapshot returns the final summary with deterministic ordering.
func (r *runState) snapshot(duration time.Duration) *Summary {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.summary
	s.Duration = duration
	s.ErrorFiles = append([]FileError(nil), r.summary.ErrorFiles...)
	sort.Slice(s.ErrorFiles, func(i, j int) bool { return s.ErrorFiles[i].Path < s.ErrorFiles[j].Path })
	s.MissingImages = make([]string, 0, len(r.missing))
	for m := range r.missing {
		s.MissingImages = append(s.MissingImages, m)
	}
	sort.Strings(s.MissingImages)
	if len(s.MissingImages) == 0 {
		s.MissingImages = nil
	}
	byKind := make(map[string]KindStats, len(r.summary.ByKind))
	for k, v := range r.summary.ByKind {
		byKind[k] = v
	}
	s.ByKind = byKind
	return &s
}
