// Package config loads longhaul configuration from .longhaul/config.yaml
// with defaults and LONGHAUL_* environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"longhaul/internal/logging"
)

// Config holds all longhaul configuration.
type Config struct {
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Knowledge store
	Knowledge KnowledgeConfig `yaml:"knowledge"`

	// External tool integrations
	Integrations IntegrationsConfig `yaml:"integrations"`

	// Marathon continuity
	Marathon MarathonConfig `yaml:"marathon"`

	// Logging
	Logging logging.Settings `yaml:"logging"`
}

// KnowledgeConfig configures the local knowledge store.
type KnowledgeConfig struct {
	Path         string  `yaml:"path"`          // sqlite database path
	SearchLimit  int     `yaml:"search_limit"`  // default result cap for searches
	MinRelevance float64 `yaml:"min_relevance"` // default relevance threshold
}

// MarathonConfig configures checkpoint behavior.
type MarathonConfig struct {
	AutoCheckpoint bool `yaml:"auto_checkpoint"` // checkpoint after productive commands
	MaxCheckpoints int  `yaml:"max_checkpoints"` // retained per task, 0 = unlimited
}

// Load reads config from <workspace>/.longhaul/config.yaml. A missing file is
// not an error: defaults plus env overrides are returned.
func Load(workspace string) (*Config, error) {
	cfg := DefaultConfig()

	path := filepath.Join(workspace, ".longhaul", "config.yaml")
	data, err := os.ReadFile(path)
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if cfg.Knowledge.Path == "" {
		cfg.Knowledge.Path = filepath.Join(workspace, ".longhaul", "knowledge.db")
	}

	return cfg, nil
}

// DefaultConfig returns the baseline configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "longhaul",
		Version: "0.3.0",
		Knowledge: KnowledgeConfig{
			SearchLimit:  10,
			MinRelevance: 0.3,
		},
		Integrations: DefaultIntegrations(),
		Marathon: MarathonConfig{
			AutoCheckpoint: true,
			MaxCheckpoints: 0,
		},
		Logging: logging.Settings{
			DebugMode: false,
			Level:     "info",
		},
	}
}

// applyEnvOverrides applies LONGHAUL_* environment variables over cfg.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LONGHAUL_KNOWLEDGE_PATH"); v != "" {
		cfg.Knowledge.Path = v
	}
	if v := os.Getenv("LONGHAUL_WORKFLOW_URL"); v != "" {
		cfg.Integrations.Workflow.BaseURL = v
	}
	if v := os.Getenv("LONGHAUL_BUSINESS_URL"); v != "" {
		cfg.Integrations.Business.BaseURL = v
	}
	if v := os.Getenv("LONGHAUL_BUSINESS_TOKEN"); v != "" {
		cfg.Integrations.Business.APIToken = v
	}
	if v := os.Getenv("LONGHAUL_DEBUG"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Logging.DebugMode = b
		}
	}
	if v := os.Getenv("LONGHAUL_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// ParseTimeout parses a string-valued timeout, falling back to def on empty
// or malformed input.
func ParseTimeout(s string, def time.Duration) time.Duration {
	if s == "" {
		return def
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return def
	}
	return d
}
