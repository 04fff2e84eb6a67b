package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the CLI and serve mode.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr          string `json:"addr" yaml:"addr" toml:"addr"`
	ModelsDir     string `json:"models_dir" yaml:"models_dir" toml:"models_dir"`
	CatalogURL    string `json:"catalog_url" yaml:"catalog_url" toml:"catalog_url"`
	DefaultModel  string `json:"default_model" yaml:"default_model" toml:"default_model"`
	Device        string `json:"device" yaml:"device" toml:"device"`
	ContextSize   int    `json:"context_size" yaml:"context_size" toml:"context_size"`
	GPULayers     int    `json:"gpu_layers" yaml:"gpu_layers" toml:"gpu_layers"`
	Threads       int    `json:"threads" yaml:"threads" toml:"threads"`
	AllowDownload *bool  `json:"allow_download" yaml:"allow_download" toml:"allow_download"`
}

// DownloadAllowed resolves the AllowDownload tri-state; unset means true.
func (c Config) DownloadAllowed() bool {
	return c.AllowDownload == nil || *c.AllowDownload
}

// Load reads a configuration file based on its extension.
// Supports: .yaml/.yml, .json, .toml
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		return cfg, fmt.Errorf("empty config path")
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".json":
		if err := json.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	case ".toml":
		if err := toml.Unmarshal(b, &cfg); err != nil {
			return cfg, err
		}
	default:
		return cfg, fmt.Errorf("unsupported config extension: %s", ext)
	}
	return cfg, nil
}
