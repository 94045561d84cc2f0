// Package config provides configuration management for overcode.
// It supports multi-layer configuration with precedence:
//  1. Built-in defaults (lowest priority)
//  2. Global user config (~/.config/overcode/config.toml)
//  3. Project config (overcode.toml or .overcode/config.toml)
//  4. Environment variables (OVERCODE_*)
//  5. CLI flags (highest priority)
package config

import (
	"time"

	"github.com/albertocavalcante/overcode/pkg/ignore"
)

// Config is the main configuration struct for overcode.
type Config struct {
	// Ignores lists paths excluded from indexing. Each path is a literal
	// (matched as a path component or substring) or a glob.
	Ignores []IgnoreEntry `toml:"ignores"`

	// IgnoreFiles are extra files in .gitignore syntax, relative to the root.
	IgnoreFiles []string `toml:"ignore_files"`

	// Index configures the indexing pass.
	Index IndexConfig `toml:"index"`

	// Watch configures watch mode.
	Watch WatchConfig `toml:"watch"`
}

// IgnoreEntry is one [[ignores]] table.
type IgnoreEntry struct {
	Path string `toml:"path"`
}

// IndexConfig holds indexing settings.
type IndexConfig struct {
	// ParserBackend is the dependency collection strategy ("heuristic" or "treesitter").
	ParserBackend string `toml:"parser_backend"`

	// Languages limits dependency extraction to these languages.
	// If empty, every supported language is enabled.
	Languages []string `toml:"languages"`

	// RespectGitignore specifies whether .gitignore files in the tree apply.
	RespectGitignore *bool `toml:"respect_gitignore"`
}

// WatchConfig holds watch mode settings.
type WatchConfig struct {
	// DebounceMS is the quiet period before a re-index, in milliseconds.
	DebounceMS int `toml:"debounce_ms"`

	// MaxPending forces a re-index once this many paths are pending.
	MaxPending int `toml:"max_pending"`
}

// Defaults.
const (
	DefaultParserBackend = "heuristic"
	DefaultDebounceMS    = 500
	DefaultMaxPending    = 1000
)

// NewConfig creates a new Config with built-in defaults.
func NewConfig() *Config {
	trueVal := true
	return &Config{
		Index: IndexConfig{
			ParserBackend:    DefaultParserBackend,
			RespectGitignore: &trueVal,
		},
		Watch: WatchConfig{
			DebounceMS: DefaultDebounceMS,
			MaxPending: DefaultMaxPending,
		},
	}
}

// IgnorePatterns returns the configured ignore paths in order.
func (c *Config) IgnorePatterns() []string {
	patterns := make([]string, 0, len(c.Ignores))
	for _, e := range c.Ignores {
		if e.Path != "" {
			patterns = append(patterns, e.Path)
		}
	}
	return patterns
}

// GitignoreEnabled reports whether .gitignore files are honored.
func (c *Config) GitignoreEnabled() bool {
	return c.Index.RespectGitignore == nil || *c.Index.RespectGitignore
}

// IgnoreRules converts the configuration into the scanner's rule set.
func (c *Config) IgnoreRules() ignore.Rules {
	return ignore.Rules{
		Patterns:      c.IgnorePatterns(),
		Files:         c.IgnoreFiles,
		SkipGitignore: !c.GitignoreEnabled(),
	}
}

// DebounceWindow returns the watch debounce window.
func (c *Config) DebounceWindow() time.Duration {
	if c.Watch.DebounceMS <= 0 {
		return DefaultDebounceMS * time.Millisecond
	}
	return time.Duration(c.Watch.DebounceMS) * time.Millisecond
}

// Merge merges another config into this one (other takes precedence).
// Ignore entries and ignore files accumulate across layers.
func (c *Config) Merge(other *Config) {
	if other == nil {
		return
	}

	// Merge ignores
	c.Ignores = append(c.Ignores, other.Ignores...)
	c.IgnoreFiles = append(c.IgnoreFiles, other.IgnoreFiles...)

	// Merge index config
	if other.Index.ParserBackend != "" {
		c.Index.ParserBackend = other.Index.ParserBackend
	}
	if len(other.Index.Languages) > 0 {
		c.Index.Languages = other.Index.Languages
	}
	if other.Index.RespectGitignore != nil {
		c.Index.RespectGitignore = other.Index.RespectGitignore
	}

	// Merge watch config
	if other.Watch.DebounceMS > 0 {
		c.Watch.DebounceMS = other.Watch.DebounceMS
	}
	if other.Watch.MaxPending > 0 {
		c.Watch.MaxPending = other.Watch.MaxPending
	}
}
