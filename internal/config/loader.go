package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/shlex"
	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Config holds runtime parameters for the daemon.
// Zero values mean "unspecified" and will be replaced by defaults in main.
type Config struct {
	Addr    string `json:"addr" yaml:"addr" toml:"addr"`
	Python  string `json:"python" yaml:"python" toml:"python"`
	WorkDir string `json:"work_dir" yaml:"work_dir" toml:"work_dir"`
	// ExtraConvertArgs is a single shell-style string appended to every
	// conversion invocation, e.g. "--dtype float16".
	ExtraConvertArgs string   `json:"extra_convert_args" yaml:"extra_convert_args" toml:"extra_convert_args"`
	CORSEnabled      bool     `json:"cors_enabled" yaml:"cors_enabled" toml:"cors_enabled"`
	CORSOrigins      []string `json:"cors_origins" yaml:"cors_origins" toml:"cors_origins"`
	LogLevel         string   `json:"log_level" yaml:"log_level" toml:"log_level"`
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

// SplitExtraArgs tokenizes ExtraConvertArgs shell-style.
func (c Config) SplitExtraArgs() ([]string, error) {
	if strings.TrimSpace(c.ExtraConvertArgs) == "" {
		return nil, nil
	}
	args, err := shlex.Split(c.ExtraConvertArgs)
	if err != nil {
		return nil, fmt.Errorf("extra_convert_args: %w", err)
	}
	return args, nil
}
