// Package config loads the optional spp.yaml configuration file consumed
// by the command-line tool: an XTCE document path, strict-mode toggle, APID
// allowlist, and secondary-header byte count. The command-line tool uses
// the APID allowlist and secondary-header byte count as defaults for its
// flags; the XTCE path and strict toggle are parsed and validated but not
// read by it.
package config

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the parsed contents of spp.yaml.
type Config struct {
	XTCEPath  string `yaml:"xtce_path"`
	Strict    bool   `yaml:"strict"`
	APIDs     []int  `yaml:"apid_allowlist"`
	SecHdrLen int    `yaml:"secondary_header_bytes"`
}

// Default returns the zero-value configuration used when no spp.yaml is
// present.
func Default() *Config {
	return &Config{}
}

// Load reads and validates the YAML configuration file at path.
func Load(path string) (*Config, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	dec := yaml.NewDecoder(bytes.NewReader(content))
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}
	cfg.resolvePaths(path)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the invariants Load depends on: a relative XTCE path
// (once resolved) must not be empty if set, and the secondary-header byte
// count must be non-negative.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.XTCEPath) == "" && c.XTCEPath != "" {
		return fmt.Errorf("config.xtce_path must not be blank when present")
	}
	if c.SecHdrLen < 0 {
		return fmt.Errorf("config.secondary_header_bytes must be >= 0")
	}
	for _, a := range c.APIDs {
		if a < 0 || a > 0x7FF {
			return fmt.Errorf("config.apid_allowlist entry %d out of range [0,2047]", a)
		}
	}
	return nil
}

func (c *Config) resolvePaths(configPath string) {
	if c.XTCEPath == "" || filepath.IsAbs(c.XTCEPath) {
		return
	}
	c.XTCEPath = filepath.Clean(filepath.Join(filepath.Dir(configPath), c.XTCEPath))
}
