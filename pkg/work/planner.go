package work

import (
	"fmt"
	"io/fs"
	"iter"
	"path/filepath"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fulmenhq/assetneat/pkg/ignore"
	"github.com/fulmenhq/assetneat/pkg/logger"
	"github.com/fulmenhq/assetneat/pkg/pathutil"
)

// Kind is the processing class of a file, decided by extension.
type Kind int

const (
	KindUnsupported Kind = iota
	KindScript
	KindStyle
)

func (k Kind) String() string {
	switch k {
	case KindScript:
		return "script"
	case KindStyle:
		return "style"
	default:
		return "unsupported"
	}
}

// MarshalText renders the kind by name in JSON and YAML output.
func (k Kind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// KindOf classifies path by its lowercased extension.
func KindOf(path string) Kind {
	switch pathutil.Extension(path) {
	case ".js", ".mjs", ".cjs":
		return KindScript
	case ".css":
		return KindStyle
	default:
		return KindUnsupported
	}
}

// SkipReason explains why an item will not be processed.
type SkipReason string

const (
	SkipNone            SkipReason = ""
	SkipExcludedFolder  SkipReason = "excluded-folder"
	SkipExcludedPattern SkipReason = "excluded-pattern"
	SkipIgnored         SkipReason = "ignored"
	SkipUnsupported     SkipReason = "unsupported"
)

// WorkItem is one discovered file, or a pruned directory when Dir is set.
type WorkItem struct {
	Path string     `json:"path" yaml:"path"`
	Rel  string     `json:"rel" yaml:"rel"`
	Kind Kind       `json:"kind" yaml:"kind"`
	Size int64      `json:"size" yaml:"size"`
	Dir  bool       `json:"dir,omitempty" yaml:"dir,omitempty"`
	Skip SkipReason `json:"skip,omitempty" yaml:"skip,omitempty"`
}

// Processable reports whether the item goes through the pipeline.
func (w WorkItem) Processable() bool {
	return !w.Dir && w.Skip == SkipNone
}

// PlannerConfig configures the work planner
type PlannerConfig struct {
	Root string
	// ExcludeFolder skips every file with this folder as a directory segment.
	// It must be a single folder name; "./lib" and "lib/" are accepted as "lib".
	ExcludeFolder string
	// ExcludePatterns are doublestar globs matched against the slash-relative path.
	ExcludePatterns []string
	// NoIgnore disables .gitignore/.assetneatignore matching entirely.
	NoIgnore bool
	Log      *logger.Logger
}

// Planner enumerates the files below a root.
type Planner struct {
	config        PlannerConfig
	root          string
	ignoreMatcher *ignore.Matcher
	log           *logger.Logger
}

// NewPlanner validates config and prepares the ignore matcher. The root is
// not walked until Items is ranged over.
func NewPlanner(config PlannerConfig) (*Planner, error) {
	root, err := pathutil.Resolve(config.Root)
	if err != nil {
		return nil, fmt.Errorf("resolve root %q: %w", config.Root, err)
	}
	folder, err := pathutil.NormalizeFolder(config.ExcludeFolder)
	if err != nil {
		return nil, err
	}
	config.ExcludeFolder = folder
	for _, pat := range config.ExcludePatterns {
		if !doublestar.ValidatePattern(pat) {
			return nil, fmt.Errorf("invalid exclude pattern %q", pat)
		}
	}

	log := config.Log
	if log == nil {
		log = logger.Discard()
	}
	p := &Planner{config: config, root: root, log: log}

	if !config.NoIgnore {
		if matcher, err := ignore.NewMatcher(root); err != nil {
			log.Warn("Failed to initialize ignore matcher", logger.Err(err))
		} else {
			p.ignoreMatcher = matcher
		}
	}
	return p, nil
}

// Root returns the absolute root being planned.
func (p *Planner) Root() string { return p.root }

// Items returns a lazy sequence of discovered items in lexical walk order.
// Every range starts a fresh walk. A walk error is yielded once with a zero
// item and ends the sequence; per-entry errors below the root are logged and
// the entry is skipped.
func (p *Planner) Items() iter.Seq2[WorkItem, error] {
	return func(yield func(WorkItem, error) bool) {
		stopped := false
		err := filepath.WalkDir(p.root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				if path == p.root {
					return err
				}
				p.log.Warn("Skipping unreadable entry", logger.Path(path), logger.Err(err))
				if d != nil && d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if path == p.root {
				return nil
			}

			rel := pathutil.Relative(p.root, path)
			if d.IsDir() {
				reason := p.dirSkipReason(rel)
				if reason == SkipNone {
					return nil
				}
				p.log.Debug(fmt.Sprintf("Skipping directory %s", rel), logger.String("reason", string(reason)))
				if !yield(WorkItem{Path: path, Rel: rel, Dir: true, Skip: reason}, nil) {
					stopped = true
					return filepath.SkipAll
				}
				return filepath.SkipDir
			}
			if !d.Type().IsRegular() {
				return nil
			}

			item := WorkItem{Path: path, Rel: rel, Kind: KindOf(path)}
			if info, err := d.Info(); err == nil {
				item.Size = info.Size()
			}
			item.Skip = p.fileSkipReason(item)
			if !yield(item, nil) {
				stopped = true
				return filepath.SkipAll
			}
			return nil
		})
		if err != nil && !stopped {
			yield(WorkItem{}, fmt.Errorf("failed to enumerate %s: %w", p.root, err))
		}
	}
}

func (p *Planner) dirSkipReason(rel string) SkipReason {
	// A directory is inside the excluded folder when a file directly in it would be.
	if pathutil.ContainsFolder(rel+"/_", p.config.ExcludeFolder) {
		return SkipExcludedFolder
	}
	if p.ignoreMatcher != nil && p.ignoreMatcher.IsIgnoredDir(rel) {
		return SkipIgnored
	}
	return SkipNone
}

func (p *Planner) fileSkipReason(item WorkItem) SkipReason {
	if pathutil.ContainsFolder(item.Rel, p.config.ExcludeFolder) {
		return SkipExcludedFolder
	}
	for _, pat := range p.config.ExcludePatterns {
		if ok, _ := doublestar.Match(filepath.ToSlash(strings.TrimSpace(pat)), item.Rel); ok {
			return SkipExcludedPattern
		}
	}
	if p.ignoreMatcher != nil && p.ignoreMatcher.IsIgnored(item.Rel) {
		return SkipIgnored
	}
	if item.Kind == KindUnsupported {
		return SkipUnsupported
	}
	return SkipNone
}

// Statistics summarizes a manifest.
type Statistics struct {
	FilesByKind   map[string]int `json:"files_by_kind" yaml:"files_by_kind"`
	SkipsByReason map[string]int `json:"skips_by_reason" yaml:"skips_by_reason"`
	TotalSize     int64          `json:"total_size" yaml:"total_size"`
	ProcessSize   int64          `json:"process_size" yaml:"process_size"`
}

// WorkManifest is the materialized plan used by the plan command.
type WorkManifest struct {
	Root       string     `json:"root" yaml:"root"`
	Timestamp  time.Time  `json:"timestamp" yaml:"timestamp"`
	WorkItems  []WorkItem `json:"work_items" yaml:"work_items"`
	Statistics Statistics `json:"statistics" yaml:"statistics"`
}

// GenerateManifest walks the root once and collects every item.
func (p *Planner) GenerateManifest() (*WorkManifest, error) {
	manifest := &WorkManifest{
		Root:      p.root,
		Timestamp: time.Now(),
		Statistics: Statistics{
			FilesByKind:   make(map[string]int),
			SkipsByReason: make(map[string]int),
		},
	}

	for item, err := range p.Items() {
		if err != nil {
			return nil, err
		}
		manifest.WorkItems = append(manifest.WorkItems, item)
		stats := &manifest.Statistics
		if !item.Dir {
			stats.FilesByKind[item.Kind.String()]++
			stats.TotalSize += item.Size
		}
		if item.Skip != SkipNone {
			stats.SkipsByReason[string(item.Skip)]++
		} else {
			stats.ProcessSize += item.Size
		}
	}

	p.log.Info(fmt.Sprintf("Generated work manifest with %d items", len(manifest.WorkItems)))
	return manifest, nil
}
