package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	ScopeConfig struct {
		ContentAttr string `yaml:"content_attr" validate:"required"`
		HostAttr    string `yaml:"host_attr" validate:"required"`
		IDLength    int    `yaml:"id_length" validate:"min=4,max=32"`
		Strict      bool   `yaml:"strict"`
		Encoding    string `yaml:"encoding,omitempty"`
	}

	ComponentConfig struct {
		Name   string   `yaml:"name" validate:"required"`
		ID     string   `yaml:"id,omitempty"`
		Styles []string `yaml:"styles" validate:"required,min=1,dive,required"`
	}

	OutputConfig struct {
		NameTemplate string `yaml:"name_template" validate:"required"`
		Overwrite    bool   `yaml:"overwrite"`
	}

	Config struct {
		Version    int               `yaml:"version" validate:"eq=1"`
		Scope      ScopeConfig       `yaml:"scope"`
		Components []ComponentConfig `yaml:"components" validate:"unique=Name,dive"`
		Output     OutputConfig      `yaml:"output"`
		Logging    LoggingConfig     `yaml:"logging"`
		Reporting  ReporterConfig    `yaml:"reporting"`

		// BaseDir is directory of loaded configuration file, relative
		// component stylesheet paths are resolved against it
		BaseDir string `yaml:"-"`
	}
)

const (
	// NOTE: must match yaml field names above, these fields are our own
	// templates and are expanded per component, not when loading
	ContentAttrFieldName  TemplateFieldName = "content_attr"
	HostAttrFieldName     TemplateFieldName = "host_attr"
	NameTemplateFieldName TemplateFieldName = "name_template"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(ContentAttrFieldName)),
	gencfg.WithDoNotExpandField(string(HostAttrFieldName)),
	gencfg.WithDoNotExpandField(string(NameTemplateFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("failed to sanitize configuration: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("failed to validate configuration: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	if cfg.BaseDir, err = filepath.Abs(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("failed to resolve configuration directory: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}

// Component returns configured component by name.
func (cfg *Config) Component(name string) (ComponentConfig, bool) {
	for _, c := range cfg.Components {
		if c.Name == name {
			return c, true
		}
	}
	return ComponentConfig{}, false
}
