package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// ProjectConfig holds project-level settings loaded from polyscan.yml.
type ProjectConfig struct {
	RulesPath        string                     `yaml:"rulesPath,omitempty"`
	Languages        []string                   `yaml:"languages,omitempty"`
	Excludes         []string                   `yaml:"excludes,omitempty"`
	NoDelegation     bool                       `yaml:"noDelegation,omitempty"`
	TimeoutSeconds   int                        `yaml:"timeoutSeconds,omitempty"`
	Jobs             int                        `yaml:"jobs,omitempty"`
	MaxSources       int                        `yaml:"maxSources,omitempty"`
	DatabasePath     string                     `yaml:"databasePath,omitempty"`
	DelegateCommands map[string]DelegateCommand `yaml:"delegateCommands,omitempty"`
}

// DelegateCommand configures an external parser process for a language
// the core does not parse natively.
type DelegateCommand struct {
	Command    string   `yaml:"command"`
	Args       []string `yaml:"args,omitempty"`
	Extensions []string `yaml:"extensions,omitempty"`
}

// Timeout returns the configured per-file timeout, or 0 when unset.
func (c *ProjectConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// LanguageEnabled reports whether lang is in the enabled set. An empty
// set enables every language.
func (c *ProjectConfig) LanguageEnabled(lang string) bool {
	if len(c.Languages) == 0 {
		return true
	}
	for _, l := range c.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

// Load attempts to read polyscan.yml or polyscan.yaml from the given
// directory. Returns a zero-value config (not an error) if no config
// file exists.
func Load(dir string) (*ProjectConfig, error) {
	for _, name := range []string{"polyscan.yml", "polyscan.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ProjectConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		return &cfg, nil
	}
	return &ProjectConfig{}, nil
}
