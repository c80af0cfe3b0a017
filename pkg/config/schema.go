package config

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/tidwall/jsonc"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

//go:embed assetneat-config-v1.schema.json
var schemaV1 []byte

// CurrentSchemaVersion is the version config files are validated against
// when they carry no $schema.
const CurrentSchemaVersion = "1.0.0"

// SchemaVersion represents a configuration schema version
type SchemaVersion struct {
	Major int
	Minor int
	Patch int
}

// String returns the string representation of the version
func (v SchemaVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
}

// ParseSchemaVersion parses a version string into SchemaVersion
func ParseSchemaVersion(version string) (SchemaVersion, error) {
	version = strings.TrimPrefix(version, "v")
	if len(strings.Split(version, ".")) != 3 {
		return SchemaVersion{}, fmt.Errorf("invalid version format: %s", version)
	}

	var v SchemaVersion
	if _, err := fmt.Sscanf(version, "%d.%d.%d", &v.Major, &v.Minor, &v.Patch); err != nil {
		return SchemaVersion{}, fmt.Errorf("failed to parse version: %w", err)
	}
	return v, nil
}

// Schema returns the embedded JSON schema for version.
func Schema(version string) ([]byte, error) {
	v, err := ParseSchemaVersion(version)
	if err != nil {
		return nil, err
	}
	if v.Major != 1 {
		return nil, fmt.Errorf("unsupported schema version: %s", version)
	}
	return schemaV1, nil
}

// DetectSchemaVersion reads the version from a $schema URL ending in /vX.Y.Z.
// Documents without $schema use CurrentSchemaVersion.
func DetectSchemaVersion(doc []byte) (string, error) {
	var m map[string]any
	if err := json.Unmarshal(doc, &m); err != nil {
		return "", fmt.Errorf("failed to parse config as JSON: %w", err)
	}
	raw, ok := m["$schema"]
	if !ok {
		return CurrentSchemaVersion, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", fmt.Errorf("$schema must be a string")
	}
	idx := strings.LastIndex(s, "/v")
	if idx < 0 {
		return CurrentSchemaVersion, nil
	}
	version := s[idx+2:]
	if _, err := ParseSchemaVersion(version); err != nil {
		return "", fmt.Errorf("$schema %q: %w", s, err)
	}
	return version, nil
}

// ValidateDocument validates a JSON document against the schema it names.
func ValidateDocument(doc []byte) error {
	version, err := DetectSchemaVersion(doc)
	if err != nil {
		return err
	}
	schema, err := Schema(version)
	if err != nil {
		return err
	}

	result, err := gojsonschema.Validate(gojsonschema.NewBytesLoader(schema), gojsonschema.NewBytesLoader(doc))
	if err != nil {
		return fmt.Errorf("schema validation error: %w", err)
	}
	if !result.Valid() {
		var problems []string
		for _, desc := range result.Errors() {
			problems = append(problems, desc.String())
		}
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// ToJSON normalizes a config file to JSON based on its extension.
func ToJSON(path string, data []byte) ([]byte, error) {
	var doc any
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json", ".jsonc":
		out := jsonc.ToJSON(data)
		if !json.Valid(out) {
			return nil, fmt.Errorf("%s: invalid JSON", path)
		}
		return out, nil
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
	case ".toml":
		var m map[string]any
		if err := toml.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("%s: %w", path, err)
		}
		doc = m
	default:
		return nil, fmt.Errorf("%s: unsupported config format %q", path, ext)
	}
	if doc == nil {
		doc = map[string]any{}
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}
