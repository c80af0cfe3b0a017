package config

import (
	"encoding/json"
	"strings"
	"testing"
)

func TestParseSchemaVersion(t *testing.T) {
	tests := []struct {
		input       string
		expected    SchemaVersion
		expectError bool
	}{
		{"1.0.0", SchemaVersion{1, 0, 0}, false},
		{"v1.2.3", SchemaVersion{1, 2, 3}, false},
		{"1.0", SchemaVersion{}, true},
		{"a.b.c", SchemaVersion{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseSchemaVersion(tt.input)
			if tt.expectError {
				if err == nil {
					t.Errorf("ParseSchemaVersion(%q) expected error", tt.input)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseSchemaVersion(%q) unexpected error: %v", tt.input, err)
			}
			if got != tt.expected {
				t.Errorf("ParseSchemaVersion(%q) = %v, want %v", tt.input, got, tt.expected)
			}
			if !strings.HasSuffix(tt.input, got.String()) {
				t.Errorf("String() = %q does not round-trip %q", got.String(), tt.input)
			}
		})
	}
}

func TestDetectSchemaVersion(t *testing.T) {
	tests := []struct {
		name        string
		configData  []byte
		expected    string
		expectError bool
	}{
		{"with schema field", []byte(`{"$schema": "https://schemas.fulmenhq.dev/assetneat/config/v1.0.0"}`), "1.0.0", false},
		{"without schema field", []byte(`{"workers": 2}`), CurrentSchemaVersion, false},
		{"schema not a string", []byte(`{"$schema": 1}`), "", true},
		{"invalid JSON", []byte(`{invalid json}`), "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, err := DetectSchemaVersion(tt.configData)
			if tt.expectError {
				if err == nil {
					t.Errorf("DetectSchemaVersion() expected error but got none")
				}
				return
			}
			if err != nil {
				t.Fatalf("DetectSchemaVersion() unexpected error: %v", err)
			}
			if version != tt.expected {
				t.Errorf("DetectSchemaVersion() = %q, expected %q", version, tt.expected)
			}
		})
	}
}

func TestSchemaIsValidJSON(t *testing.T) {
	schema, err := Schema(CurrentSchemaVersion)
	if err != nil {
		t.Fatal(err)
	}
	if !json.Valid(schema) {
		t.Fatal("embedded schema is not valid JSON")
	}
	if _, err := Schema("2.0.0"); err == nil {
		t.Error("Schema(2.0.0) should be unsupported")
	}
}

func TestValidateDocument(t *testing.T) {
	valid := []string{
		`{}`,
		`{"useVersioning": true, "useLog": {"logDir": "logs", "retentionDays": 7}}`,
		`{"useBabel": {"target": "es2017", "targets": ["chrome58"]}, "fileTimeout": "1m30s"}`,
		`{"precompress": ["gzip", "zst"], "report": {"file": "out.json", "format": "json"}}`,
	}
	for _, doc := range valid {
		if err := ValidateDocument([]byte(doc)); err != nil {
			t.Errorf("ValidateDocument(%s) unexpected error: %v", doc, err)
		}
	}

	invalid := []string{
		`{"useVersioning": "yes"}`,
		`{"jsMinifyOptions": {"backend": "uglify"}}`,
		`{"precompress": ["brotli"]}`,
		`{"fileTimeout": "soon"}`,
	}
	for _, doc := range invalid {
		if err := ValidateDocument([]byte(doc)); err == nil {
			t.Errorf("ValidateDocument(%s) expected an error", doc)
		}
	}
}

func TestToJSON(t *testing.T) {
	tests := []struct {
		name string
		path string
		data string
		want string
	}{
		{"yaml", "a.yaml", "workers: 2\n", `{"workers":2}`},
		{"empty yaml", "a.yml", "", `{}`},
		{"toml", "a.toml", "workers = 2\n", `{"workers":2}`},
		{"jsonc", "a.jsonc", "{\n  // note\n  \"workers\": 2,\n}", `{"workers":2}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := ToJSON(tt.path, []byte(tt.data))
			if err != nil {
				t.Fatalf("ToJSON() error: %v", err)
			}
			var got, want any
			if err := json.Unmarshal(out, &got); err != nil {
				t.Fatalf("output is not JSON: %s", out)
			}
			_ = json.Unmarshal([]byte(tt.want), &want)
			gotJSON, _ := json.Marshal(got)
			wantJSON, _ := json.Marshal(want)
			if string(gotJSON) != string(wantJSON) {
				t.Errorf("ToJSON() = %s, want %s", gotJSON, wantJSON)
			}
		})
	}

	if _, err := ToJSON("a.ini", []byte("x=1")); err == nil {
		t.Error("expected an error for an unsupported extension")
	}
}
