// Package config loads program configuration: an embedded template with
// defaults, optionally overlaid by a user file.
package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"
	"time"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

// AppName names the program in logs and temporary files.
const AppName = "jsonpdf"

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	MarginsConfig struct {
		Top    float64 `yaml:"top" validate:"gte=0"`
		Right  float64 `yaml:"right" validate:"gte=0"`
		Bottom float64 `yaml:"bottom" validate:"gte=0"`
		Left   float64 `yaml:"left" validate:"gte=0"`
	}

	FontConfig struct {
		Family string `yaml:"family" validate:"required"`
		Path   string `yaml:"path" sanitize:"path_clean" validate:"required,file"`
		Bold   bool   `yaml:"bold"`
	}

	FallbackFontsConfig struct {
		Regular string `yaml:"regular" validate:"required_with=Bold,omitempty,file"`
		Bold    string `yaml:"bold" validate:"omitempty,file"`
	}

	DocumentConfig struct {
		PageSize      string              `yaml:"page_size" validate:"required,oneof=A4 Letter Legal A3 A5"`
		Orientation   string              `yaml:"orientation" validate:"omitempty,oneof=portrait landscape"`
		Margins       MarginsConfig       `yaml:"margins"`
		Locale        string              `yaml:"locale" validate:"required,bcp47_language_tag"`
		DatePattern   string              `yaml:"date_pattern" validate:"required"`
		ShowBoxes     bool                `yaml:"show_boxes"`
		Producer      string              `yaml:"producer"`
		Fonts         []FontConfig        `yaml:"fonts" validate:"dive"`
		FallbackFonts FallbackFontsConfig `yaml:"fallback_fonts"`
	}

	ResourcesConfig struct {
		BaseURL      string        `yaml:"base_url" validate:"omitempty,url|dir"`
		SearchPaths  []string      `yaml:"search_paths" validate:"dive,dir"`
		HTTPTimeout  time.Duration `yaml:"http_timeout" validate:"gte=0"`
		MaxImageSize int           `yaml:"max_image_size" validate:"gte=0"`
	}

	WorkerConfig struct {
		Workers int `yaml:"workers" validate:"gte=0"`
	}

	Config struct {
		Version   int             `yaml:"version" validate:"eq=1"`
		Document  DocumentConfig  `yaml:"document"`
		Resources ResourcesConfig `yaml:"resources"`
		Worker    WorkerConfig    `yaml:"worker"`
		Logging   LoggingConfig   `yaml:"logging"`
	}
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// Only fields defined above are accepted
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, err
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of the expanded configuration template and
// validates the result.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, options...)
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

	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare expands the configuration template and returns it.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl)
}

// Dump marshals the active configuration.
func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
