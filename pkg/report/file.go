package report

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/fulmenhq/assetneat/pkg/pipeline"
	"github.com/fulmenhq/assetneat/pkg/safeio"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Format is a machine-readable report encoding.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// ParseFormat validates name. An empty name is inferred from the file
// extension of path, falling back to JSON.
func ParseFormat(name, path string) (Format, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		switch strings.ToLower(filepath.Ext(path)) {
		case ".yaml", ".yml":
			return FormatYAML, nil
		case ".toml":
			return FormatTOML, nil
		default:
			return FormatJSON, nil
		}
	}
	switch Format(name) {
	case FormatJSON, FormatYAML, FormatTOML:
		return Format(name), nil
	case "yml":
		return FormatYAML, nil
	default:
		return "", fmt.Errorf("unknown report format %q (want json, yaml or toml)", name)
	}
}

// Marshal encodes s in format f.
func Marshal(s *pipeline.Summary, f Format) ([]byte, error) {
	switch f {
	case FormatJSON:
		data, err := json.MarshalIndent(s, "", "  ")
		if err != nil {
			return nil, err
		}
		return append(data, '\n'), nil
	case FormatYAML:
		return yaml.Marshal(s)
	case FormatTOML:
		return toml.Marshal(s)
	default:
		return nil, fmt.Errorf("unknown report format %q", f)
	}
}

// WriteFile writes s to path atomically.
func WriteFile(path string, f Format, s *pipeline.Summary) error {
	data, err := Marshal(s, f)
	if err != nil {
		return fmt.Errorf("encode %s report: %w", f, err)
	}
	if err := safeio.WriteFileAtomic(path, data); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
