package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// ConfigFileName is the name of the project-level config file.
const ConfigFileName = "overcode.toml"

// ConfigDirName is the name of the project-level config directory.
const ConfigDirName = ".overcode"

// GlobalConfigDir is the name of the global config directory inside user's config.
const GlobalConfigDir = "overcode"

// template is written by Init.
const template = `[[ignores]]
path = ".git"
`

// Load loads configuration for the project at root from all layers in order
// of precedence:
//  1. Built-in defaults
//  2. Global user config (~/.config/overcode/config.toml)
//  3. Project config (overcode.toml, else .overcode/config.toml)
//  4. Environment variables (OVERCODE_*)
//
// CLI flags are applied separately after Load() returns. Missing files are
// not errors; a file that exists but cannot be read or decoded is.
func Load(root string) (*Config, error) {
	cfg := NewConfig()

	// Layer 2: Global user config
	if path := GetGlobalConfigPath(); path != "" {
		globalCfg, err := loadConfigFile(path)
		if err != nil {
			return nil, err
		}
		cfg.Merge(globalCfg)
	}

	// Layer 3: Project config
	projectCfg, err := loadProjectConfigFrom(root)
	if err != nil {
		return nil, err
	}
	cfg.Merge(projectCfg)

	// Layer 4: Environment variables
	if err := applyEnvironmentVariables(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadProjectConfigFrom returns the first project config found in dir.
func loadProjectConfigFrom(dir string) (*Config, error) {
	for _, path := range GetProjectConfigPaths(dir) {
		cfg, err := loadConfigFile(path)
		if err != nil {
			return nil, err
		}
		if cfg != nil {
			return cfg, nil
		}
	}
	return nil, nil
}

// loadConfigFile loads a configuration from a TOML file. A missing file
// yields (nil, nil).
func loadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if _, err := toml.Decode(string(data), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return &cfg, nil
}

// applyEnvironmentVariables applies OVERCODE_* environment variables to the config.
func applyEnvironmentVariables(cfg *Config) error {
	// OVERCODE_IGNORES: comma-separated paths, appended to the configured ones
	for _, p := range splitAndTrim(os.Getenv("OVERCODE_IGNORES")) {
		cfg.Ignores = append(cfg.Ignores, IgnoreEntry{Path: p})
	}

	// OVERCODE_IGNORE_FILES: comma-separated extra ignore files
	cfg.IgnoreFiles = append(cfg.IgnoreFiles, splitAndTrim(os.Getenv("OVERCODE_IGNORE_FILES"))...)

	if v := os.Getenv("OVERCODE_PARSER_BACKEND"); v != "" {
		cfg.Index.ParserBackend = v
	}
	if v := os.Getenv("OVERCODE_LANGUAGES"); v != "" {
		cfg.Index.Languages = splitAndTrim(v)
	}
	applyBoolEnv("OVERCODE_RESPECT_GITIGNORE", &cfg.Index.RespectGitignore)

	if v := os.Getenv("OVERCODE_WATCH_DEBOUNCE_MS"); v != "" {
		ms, err := strconv.Atoi(v)
		if err != nil || ms <= 0 {
			return fmt.Errorf("OVERCODE_WATCH_DEBOUNCE_MS: invalid duration %q", v)
		}
		cfg.Watch.DebounceMS = ms
	}
	return nil
}

// splitAndTrim splits a comma-separated string and trims whitespace.
func splitAndTrim(s string) []string {
	parts := strings.Split(s, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			result = append(result, p)
		}
	}
	return result
}

// applyBoolEnv applies a boolean environment variable to a pointer.
func applyBoolEnv(envVar string, target **bool) {
	if v := os.Getenv(envVar); v != "" {
		v = strings.ToLower(v)
		if v == "true" || v == "1" || v == "yes" {
			t := true
			*target = &t
		} else if v == "false" || v == "0" || v == "no" {
			f := false
			*target = &f
		}
	}
}

// Init writes the template project config to root/overcode.toml unless a
// project config already exists. It reports whether a file was created.
func Init(root string) (created bool, path string, err error) {
	path = filepath.Join(root, ConfigFileName)
	for _, p := range GetProjectConfigPaths(root) {
		if _, err := os.Stat(p); err == nil {
			return false, p, nil
		}
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return false, path, nil
	}
	if err != nil {
		return false, path, fmt.Errorf("creating config %s: %w", path, err)
	}
	if _, err := f.WriteString(template); err != nil {
		_ = f.Close()
		return false, path, fmt.Errorf("writing config %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return false, path, fmt.Errorf("writing config %s: %w", path, err)
	}
	return true, path, nil
}

// GetGlobalConfigPath returns the path to the global config file.
func GetGlobalConfigPath() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(configDir, GlobalConfigDir, "config.toml")
}

// GetProjectConfigPaths returns potential project config paths for a given
// directory, in lookup order.
func GetProjectConfigPaths(dir string) []string {
	return []string{
		filepath.Join(dir, ConfigFileName),
		filepath.Join(dir, ConfigDirName, "config.toml"),
	}
}
