package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// DefaultTimeout is the API timeout when the file sets none.
const DefaultTimeout = 30 * time.Second

// Load reads, expands, parses, and validates a configuration file. The
// format is chosen by extension: .toml, or .yaml/.yml.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	cfg, err := Parse(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes configuration bytes in the format named by ext. ${VAR}
// references are replaced from the environment before decoding; unset
// variables expand to the empty string.
func Parse(data []byte, ext string) (*Config, error) {
	expanded := os.Expand(string(data), func(key string) string {
		return os.Getenv(key)
	})

	cfg := &Config{}
	switch strings.ToLower(ext) {
	case ".toml":
		if err := toml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse toml: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, fmt.Errorf("parse yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.API.Timeout <= 0 {
		c.API.Timeout = Duration(DefaultTimeout)
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
}

// Collection finds a collection schema by slug.
func (c *Config) Collection(slug string) (*Collection, bool) {
	for i := range c.Collections {
		if c.Collections[i].Slug == slug {
			return &c.Collections[i], true
		}
	}
	return nil, false
}

// Global finds a global schema by slug.
func (c *Config) Global(slug string) (*Global, bool) {
	for i := range c.Globals {
		if c.Globals[i].Slug == slug {
			return &c.Globals[i], true
		}
	}
	return nil, false
}
