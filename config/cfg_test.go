package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	yaml "gopkg.in/yaml.v3"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "scopecss.yaml")
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

	if cfg.Version != 1 {
		t.Errorf("Default config version = %d, want 1", cfg.Version)
	}
	if cfg.Scope.ContentAttr != "_ngcontent-{{ .ID }}" {
		t.Errorf("ContentAttr = %q, template must not be expanded", cfg.Scope.ContentAttr)
	}
	if cfg.Scope.HostAttr != "_nghost-{{ .ID }}" {
		t.Errorf("HostAttr = %q, template must not be expanded", cfg.Scope.HostAttr)
	}
	if cfg.Output.NameTemplate != "{{ .Slug }}.css" {
		t.Errorf("NameTemplate = %q", cfg.Output.NameTemplate)
	}
	if cfg.Scope.IDLength != 8 {
		t.Errorf("IDLength = %d, want 8", cfg.Scope.IDLength)
	}
	if len(cfg.Components) != 0 {
		t.Errorf("expected no components by default, got %d", len(cfg.Components))
	}
	if cfg.BaseDir != "" {
		t.Errorf("BaseDir = %q, want empty without file", cfg.BaseDir)
	}
}

func TestLoadConfiguration_WithFile(t *testing.T) {
	path := writeConfig(t, `version: 1
scope:
  content_attr: "data-c-{{ .Slug }}"
  host_attr: "data-h-{{ .Slug }}"
  id_length: 12
  strict: true
  encoding: windows-1251
components:
  - name: Main Menu
    styles: ["menu/base.css", "menu/theme.css"]
  - name: footer
    id: f00t
    styles: ["footer.css"]
logging:
  console:
    level: quiet
  file:
    level: debug
    mode: append
`)

	cfg, err := LoadConfiguration(path)
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	if cfg.Scope.ContentAttr != "data-c-{{ .Slug }}" || cfg.Scope.HostAttr != "data-h-{{ .Slug }}" {
		t.Errorf("attribute templates = %q, %q", cfg.Scope.ContentAttr, cfg.Scope.HostAttr)
	}
	if cfg.Scope.IDLength != 12 || !cfg.Scope.Strict || cfg.Scope.Encoding != "windows-1251" {
		t.Errorf("scope = %+v", cfg.Scope)
	}
	if len(cfg.Components) != 2 {
		t.Fatalf("expected 2 components, got %d", len(cfg.Components))
	}
	if got := cfg.Components[0].Styles; len(got) != 2 || got[1] != "menu/theme.css" {
		t.Errorf("styles = %v", got)
	}
	if cfg.Logging.ConsoleLogger.Level != "quiet" || cfg.Logging.FileLogger.Mode != "append" {
		t.Errorf("logging = %+v", cfg.Logging)
	}
	// values not present in the file keep template defaults
	if cfg.Output.NameTemplate != "{{ .Slug }}.css" {
		t.Errorf("NameTemplate = %q", cfg.Output.NameTemplate)
	}

	wantDir, _ := filepath.Abs(filepath.Dir(path))
	if cfg.BaseDir != wantDir {
		t.Errorf("BaseDir = %q, want %q", cfg.BaseDir, wantDir)
	}
}

func TestLoadConfiguration_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{
			name:    "invalid yaml",
			content: "version: [1",
			wantErr: "failed to decode configuration data",
		},
		{
			name:    "unknown field",
			content: "version: 1\nunknown_section: true\n",
			wantErr: "field unknown_section not found",
		},
		{
			name:    "wrong version",
			content: "version: 2\n",
			wantErr: "failed to validate configuration",
		},
		{
			name:    "id length out of range",
			content: "version: 1\nscope:\n  id_length: 2\n",
			wantErr: "failed to validate configuration",
		},
		{
			name: "duplicate component",
			content: `version: 1
components:
  - name: a
    styles: [a.css]
  - name: a
    styles: [b.css]
`,
			wantErr: "failed to validate configuration",
		},
		{
			name: "component without styles",
			content: `version: 1
components:
  - name: a
    styles: []
`,
			wantErr: "failed to validate configuration",
		},
		{
			name:    "bad console level",
			content: "version: 1\nlogging:\n  console:\n    level: loud\n",
			wantErr: "failed to validate configuration",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfiguration(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want it to contain %q", err, tt.wantErr)
			}
			if !strings.Contains(err.Error(), "failed to process configuration file") {
				t.Errorf("error = %v, should name configuration file as a culprit", err)
			}
		})
	}
}

func TestLoadConfiguration_NonexistentFile(t *testing.T) {
	_, err := LoadConfiguration(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("LoadConfiguration() error = %v", err)
	}
}

func TestPrepare(t *testing.T) {
	data, err := Prepare()
	if err != nil {
		t.Fatalf("Prepare() error = %v", err)
	}
	text := string(data)
	for _, want := range []string{"version: 1", `content_attr: "_ngcontent-{{ .ID }}"`, `name_template: "{{ .Slug }}.css"`} {
		if !strings.Contains(text, want) {
			t.Errorf("prepared configuration lacks %q", want)
		}
	}
}

func TestDump(t *testing.T) {
	cfg, err := LoadConfiguration(writeConfig(t, `version: 1
components:
  - name: card
    styles: [card.css]
`))
	if err != nil {
		t.Fatalf("LoadConfiguration() error = %v", err)
	}

	data, err := Dump(cfg)
	if err != nil {
		t.Fatalf("Dump() error = %v", err)
	}
	if strings.Contains(string(data), cfg.BaseDir) {
		t.Error("BaseDir must not be dumped")
	}

	var back Config
	if err := yaml.Unmarshal(data, &back); err != nil {
		t.Fatalf("dumped configuration is not valid yaml: %v", err)
	}
	if back.Scope != cfg.Scope || len(back.Components) != 1 || back.Components[0].Name != "card" {
		t.Errorf("dumped configuration differs: %+v", back)
	}
}

func TestConfig_Component(t *testing.T) {
	cfg := &Config{Components: []ComponentConfig{
		{Name: "a", Styles: []string{"a.css"}},
		{Name: "b", ID: "bbbb", Styles: []string{"b.css"}},
	}}

	c, ok := cfg.Component("b")
	if !ok || c.ID != "bbbb" {
		t.Errorf("Component(b) = %+v, %v", c, ok)
	}
	if _, ok := cfg.Component("c"); ok {
		t.Error("Component(c) should not be found")
	}
}
