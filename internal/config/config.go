// Package config handles configuration loading and vibe home resolution.
package config

import (
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Config types
// ---------------------------------------------------------------------------

// APIConfig holds settings for the backend connection.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	// Token is the bearer token attached to requests; empty means anonymous.
	Token                string `yaml:"token"`
	SubmitTimeoutSeconds int    `yaml:"submit_timeout_seconds"`
}

// FeedConfig controls feed retrieval defaults.
type FeedConfig struct {
	HistoryLimit int `yaml:"history_limit"`
}

// Config is the root per-home configuration.
type Config struct {
	API  APIConfig  `yaml:"api"`
	Feed FeedConfig `yaml:"feed"`
}

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL:              "http://localhost:8000",
			SubmitTimeoutSeconds: 180,
		},
		Feed: FeedConfig{
			HistoryLimit: 20,
		},
	}
}

// Load reads a per-home config.yaml from path.
// If the file does not exist it returns Default() with no error.
// Missing keys retain their default values.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}

	// Unmarshal into a plain map so we can apply only the keys that are present.
	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	if apiSection, ok := raw["api"].(map[string]any); ok {
		if v, ok := apiSection["base_url"].(string); ok && v != "" {
			cfg.API.BaseURL = v
		}
		if v, ok := apiSection["token"].(string); ok {
			cfg.API.Token = v
		}
		if v, ok := apiSection["submit_timeout_seconds"].(int); ok && v > 0 {
			cfg.API.SubmitTimeoutSeconds = v
		}
	}

	if feedSection, ok := raw["feed"].(map[string]any); ok {
		if v, ok := feedSection["history_limit"].(int); ok && v > 0 {
			cfg.Feed.HistoryLimit = v
		}
	}

	return cfg, nil
}

// Save writes cfg as yaml to path, creating the parent directory if needed.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	out, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0o600)
}

// ---------------------------------------------------------------------------
// Vibe home resolution
// ---------------------------------------------------------------------------

// globalConfigPath returns the path to the global vibelog config file.
// This file stores only vibe_home (and future global settings).
func globalConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "vibelog", "config.yaml"), nil
}

// normalizePath expands ~ and makes the path absolute.
func normalizePath(path string) (string, error) {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", err
		}
		path = filepath.Join(home, path[2:])
	}
	return filepath.Abs(os.ExpandEnv(path))
}

// ResolveHome returns the vibe home path and the source of the resolution.
// Priority: VIBE_HOME env → persisted global config → ~/.vibelog
// source is one of "env", "config", or "default".
func ResolveHome() (path, source string) {
	if env := os.Getenv("VIBE_HOME"); env != "" {
		p, err := normalizePath(env)
		if err == nil {
			return p, "env"
		}
	}

	if persisted, ok, _ := GetPersistedHome(); ok {
		return persisted, "config"
	}

	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".vibelog"), "default"
}

// GetHome returns the resolved vibe home path.
func GetHome() string {
	path, _ := ResolveHome()
	return path
}

// GetPersistedHome reads vibe_home from the global config.
// Returns ("", false, nil) if not set.
func GetPersistedHome() (string, bool, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return "", false, err
	}

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return "", false, nil
	}

	val, _ := raw["vibe_home"].(string)
	val = strings.TrimSpace(val)
	if val == "" {
		return "", false, nil
	}

	p, err := normalizePath(val)
	if err != nil {
		return "", false, err
	}
	return p, true, nil
}

// SetPersistedHome normalizes path and persists it in the global config.
// Returns the normalized path.
func SetPersistedHome(path string) (string, error) {
	normalized, err := normalizePath(path)
	if err != nil {
		return "", err
	}

	cfgPath, err := globalConfigPath()
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(cfgPath), 0o755); err != nil {
		return "", err
	}

	// Read existing global config, preserving any other keys.
	var raw map[string]any
	if data, err := os.ReadFile(cfgPath); err == nil {
		_ = yaml.Unmarshal(data, &raw)
	}
	if raw == nil {
		raw = make(map[string]any)
	}
	raw["vibe_home"] = normalized

	out, err := yaml.Marshal(raw)
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(cfgPath, out, 0o600); err != nil {
		return "", err
	}
	return normalized, nil
}

// ClearPersistedHome removes vibe_home from the global config.
// Returns true if the key was present and removed.
// If the file becomes empty after removal it is deleted.
func ClearPersistedHome() (bool, error) {
	cfgPath, err := globalConfigPath()
	if err != nil {
		return false, err
	}

	data, err := os.ReadFile(cfgPath)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	var raw map[string]any
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return false, nil
	}

	if _, ok := raw["vibe_home"]; !ok {
		return false, nil
	}
	delete(raw, "vibe_home")

	if len(raw) == 0 {
		_ = os.Remove(cfgPath)
		return true, nil
	}

	out, err := yaml.Marshal(raw)
	if err != nil {
		return false, err
	}
	return true, os.WriteFile(cfgPath, out, 0o600)
}
