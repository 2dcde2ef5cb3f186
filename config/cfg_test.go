package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rupor-github/gencfg"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoadConfiguration_NoFile(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() with empty path error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
}

func TestConfig_DefaultValues(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if len(cfg.Processing.Extensions) != 1 || cfg.Processing.Extensions[0] != ".css" {
		t.Errorf("Extensions = %v, want [.css]", cfg.Processing.Extensions)
	}
	if !cfg.Processing.KeepComments {
		t.Error("Expected comments to be kept by default")
	}
	if cfg.Output.Indent != "  " {
		t.Errorf("Indent = %q, want two spaces", cfg.Output.Indent)
	}
	// name template must survive loading unexpanded
	if cfg.Output.NameTemplate != "{{ .Name }}.pruned{{ .Ext }}" {
		t.Errorf("NameTemplate = %q", cfg.Output.NameTemplate)
	}
	if cfg.Logging.FileLogger.Level != "none" || cfg.Logging.ConsoleLogger.Level != "normal" {
		t.Errorf("unexpected logging defaults: %+v", cfg.Logging)
	}
	if filepath.Base(cfg.Reporting.Destination) != "cssprune-report.zip" {
		t.Errorf("Reporting.Destination = %q", cfg.Reporting.Destination)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	dir := t.TempDir()
	configPath := writeConfig(t, `version: 1
processing:
  extensions: [".css", ".scss.out"]
  keep_comments: false
output:
  indent: "\t"
  name_template: "{{ .Name | upper }}{{ .Ext }}"
logging:
  console:
    level: debug
  file:
    level: debug
    destination: `+filepath.Join(dir, "test.log")+`
    mode: append
reporting:
  destination: `+filepath.Join(dir, "test-report.zip")+`
`)

	cfg, err := LoadConfiguration(configPath)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if got := cfg.Processing.Extensions; len(got) != 2 || got[1] != ".scss.out" {
		t.Errorf("Extensions = %v, file list should replace defaults", got)
	}
	if cfg.Processing.KeepComments {
		t.Error("Expected KeepComments to be false")
	}
	if cfg.Output.Indent != "\t" {
		t.Errorf("Indent = %q, want tab", cfg.Output.Indent)
	}
	if cfg.Output.NameTemplate != "{{ .Name | upper }}{{ .Ext }}" {
		t.Errorf("NameTemplate = %q", cfg.Output.NameTemplate)
	}
	if cfg.Logging.FileLogger.Mode != "append" {
		t.Errorf("FileLogger.Mode = %q, want append", cfg.Logging.FileLogger.Mode)
	}
}

func TestLoadConfiguration_MergeWithDefaults(t *testing.T) {
	cfg, err := LoadConfiguration(writeConfig(t, `version: 1
output:
  file_name_transliterate: true
`))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	if !cfg.Output.FileNameTransliterate {
		t.Error("Expected FileNameTransliterate from file")
	}
	// untouched values come from defaults
	if cfg.Output.Indent != "  " {
		t.Errorf("Indent = %q, default expected", cfg.Output.Indent)
	}
	if cfg.Logging.ConsoleLogger.Level != "normal" {
		t.Errorf("ConsoleLogger.Level = %q, default expected", cfg.Logging.ConsoleLogger.Level)
	}
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"invalid yaml", "version: 1\nprocessing:\n  keep_comments: true\n  invalid indent\n"},
		{"unknown field", "version: 1\nunknown_field: value\n"},
		{"bad version", "version: 2\nprocessing:\n  extensions: [\".css\"]\n"},
		{"no extensions", "version: 1\nprocessing:\n  extensions: []\n"},
		{"extension without dot", "version: 1\nprocessing:\n  extensions: [\"css\"]\n"},
		{"indent too long", "version: 1\nprocessing:\n  extensions: [\".css\"]\noutput:\n  indent: \"          \"\n"},
		{"bad log level", "version: 1\nprocessing:\n  extensions: [\".css\"]\nlogging:\n  console:\n    level: verbose\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadConfiguration(writeConfig(t, tt.content)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestLoadConfiguration_NonExistentFile(t *testing.T) {
	if _, err := LoadConfiguration("/nonexistent/config.yaml"); err == nil {
		t.Error("Expected error for nonexistent file")
	}
}

func TestLoadConfiguration_WithOptions(t *testing.T) {
	option := func(opts *gencfg.ProcessingOptions) {
		// Options are opaque, just test that we can pass them
	}
	cfg, err := LoadConfiguration("", option)
	if err != nil {
		t.Fatalf("LoadConfiguration() with options error = %v", err)
	}
	if cfg == nil {
		t.Fatal("LoadConfiguration() returned nil config")
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	if !strings.Contains(string(data), "{{ .Name }}.pruned{{ .Ext }}") {
		t.Error("Prepare() expanded output name template")
	}
	if _, err = unmarshalConfig(data, &Config{}, true); err != nil {
		t.Errorf("Prepared config is not valid: %v", err)
	}
}

func TestDump(t *testing.T) {
	cfg, err := LoadConfiguration("")
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}
	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}

	// dump must load back to the same values
	loaded, err := unmarshalConfig(data, &Config{}, true)
	if err != nil {
		t.Fatalf("unable to load dumped config: %v", err)
	}
	if loaded.Output != cfg.Output || loaded.Processing.KeepComments != cfg.Processing.KeepComments {
		t.Errorf("dumped config differs: %+v vs %+v", loaded, cfg)
	}
}

func TestUnmarshalConfig_WrapsValidationError(t *testing.T) {
	_, err := unmarshalConfig([]byte("version: 99\n"), &Config{}, true)
	if err == nil {
		t.Fatal("expected validation error, got nil")
	}
	if !strings.Contains(err.Error(), "validat") {
		t.Errorf("expected error to mention validation, got: %v", err)
	}
	if errors.Unwrap(err) == nil {
		t.Errorf("expected wrapped error, got bare error: %v", err)
	}
}

func TestProcessingConfig_IsStylesheet(t *testing.T) {
	conf := ProcessingConfig{Extensions: []string{".css", ".min.css"}}
	tests := []struct {
		name string
		want bool
	}{
		{"site.css", true},
		{"SITE.CSS", true},
		{"dir/a.min.css", true},
		{".css", false},
		{"site.scss", false},
		{"style.less", false},
		{"readme", false},
	}
	for _, tt := range tests {
		if got := conf.IsStylesheet(tt.name); got != tt.want {
			t.Errorf("IsStylesheet(%q) = %v, want %v", tt.name, got, tt.want)
		}
	}
}
