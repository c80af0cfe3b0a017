package pipeline

import (
	"time"

	"github.com/fulmenhq/assetneat/pkg/assetref"
	"github.com/fulmenhq/assetneat/pkg/logger"
	"github.com/fulmenhq/assetneat/pkg/transform"
)

// Options controls one pipeline run. The zero value minifies every script
// and style file below the root with no transpiling, no CSS lowering and no
// reference versioning.
type Options struct {
	// ExcludeFolder skips files that have this folder as a directory segment.
	ExcludeFolder string
	// ExcludePatterns are doublestar globs matched against root-relative paths.
	ExcludePatterns []string
	// NoIgnore disables .gitignore and .assetneatignore matching.
	NoIgnore bool

	// ScriptTransform enables transpiling scripts when non-nil.
	ScriptTransform *transform.ScriptOptions
	// StyleTransform enables CSS lowering when non-nil.
	StyleTransform *transform.StyleOptions

	ScriptMinify transform.ScriptMinifyOptions
	StyleMinify  transform.StyleMinifyOptions

	// Versioning enables image reference rewriting when non-nil.
	Versioning *assetref.Options

	// ScriptSourceMap and StyleSourceMap write <file>.map sidecars.
	ScriptSourceMap bool
	StyleSourceMap  bool

	// Log enables the dated log file. Ignored when a logger is injected.
	Log *logger.FileOptions

	// Workers above 1 processes files concurrently.
	Workers int
	// FileTimeout bounds the transform and minify stages of each file.
	FileTimeout time.Duration
	// Precompress lists sidecar encodings (gzip, zstd) written for each
	// processed file.
	Precompress []string
	// MetricsFile, when set, receives the run metrics in Prometheus text format.
	MetricsFile string
}
