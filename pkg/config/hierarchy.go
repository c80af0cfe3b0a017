package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/spf13/viper"
)

// Source priorities; higher numbers win.
const (
	PriorityUser     = 10
	PriorityProject  = 20
	PriorityExplicit = 30
)

// ProjectFileNames are searched in the run root, first match wins.
var ProjectFileNames = []string{
	".assetneat.yaml",
	".assetneat.yml",
	".assetneat.json",
	".assetneat.jsonc",
	".assetneat.toml",
}

// Source represents a source of configuration
type Source interface {
	// Load returns the settings of this source as a nested map.
	Load() (map[string]any, error)
	// Priority orders sources; higher number = higher priority.
	Priority() int
	// Name is a human-readable name for this source.
	Name() string
}

// Hierarchy merges configuration sources in priority order.
type Hierarchy struct {
	sources []Source
}

// NewHierarchy creates an empty hierarchy.
func NewHierarchy() *Hierarchy {
	return &Hierarchy{}
}

// AddSource adds a configuration source
func (h *Hierarchy) AddSource(source Source) {
	h.sources = append(h.sources, source)
}

// Merge applies every source to v, lowest priority first, and returns the
// names of the sources applied. Unlike defaults, a source that exists but
// cannot be parsed or validated is an error.
func (h *Hierarchy) Merge(v *viper.Viper) ([]string, error) {
	sorted := make([]Source, len(h.sources))
	copy(sorted, h.sources)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Priority() < sorted[j].Priority() })

	var names []string
	for _, source := range sorted {
		settings, err := source.Load()
		if err != nil {
			return names, fmt.Errorf("load config from %s: %w", source.Name(), err)
		}
		if err := v.MergeConfigMap(settings); err != nil {
			return names, fmt.Errorf("merge config from %s: %w", source.Name(), err)
		}
		names = append(names, source.Name())
	}
	return names, nil
}

// FileSource loads configuration from a local YAML, JSON, JSONC or TOML file.
// The file is validated against the embedded schema before it is merged.
type FileSource struct {
	path     string
	priority int
}

func NewFileSource(path string, priority int) *FileSource {
	return &FileSource{path: path, priority: priority}
}

func (s *FileSource) Load() (map[string]any, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, err
	}
	doc, err := ToJSON(s.path, data)
	if err != nil {
		return nil, err
	}
	if err := ValidateDocument(doc); err != nil {
		return nil, err
	}

	var settings map[string]any
	if err := json.Unmarshal(doc, &settings); err != nil {
		return nil, err
	}
	delete(settings, "$schema")
	return settings, nil
}

func (s *FileSource) Priority() int {
	return s.priority
}

func (s *FileSource) Name() string {
	return "file:" + s.path
}

// ProjectFile returns the project config file in root, if any.
func ProjectFile(root string) (string, bool) {
	for _, name := range ProjectFileNames {
		path := filepath.Join(root, name)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}

// findConfigFile looks for base.{yaml,yml,json,jsonc,toml} in dir.
func findConfigFile(dir, base string) (string, bool) {
	for _, ext := range []string{".yaml", ".yml", ".json", ".jsonc", ".toml"} {
		path := filepath.Join(dir, base+ext)
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			return path, true
		}
	}
	return "", false
}
