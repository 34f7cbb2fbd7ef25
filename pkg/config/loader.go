// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	// EnvPrefix is the prefix for all environment variables.
	EnvPrefix = "GEMINI_CLI"
	// ProjectConfigFile is the project-level config file name.
	ProjectConfigFile = ".gemini-cli.yaml"
	// GlobalConfigDir is the global config directory name.
	GlobalConfigDir = ".gemini-cli"
	// GlobalConfigFile is the global config file name.
	GlobalConfigFile = "config.yaml"
)

// Loader loads configuration from files and environment.
type Loader struct {
	projectRoot string
	homeDir     string
	configFile  string
	skipGlobal  bool
	sources     []string
}

// NewLoader creates a new config loader.
func NewLoader() *Loader {
	return &Loader{}
}

// WithProjectRoot sets the project root directory.
func (l *Loader) WithProjectRoot(root string) *Loader {
	l.projectRoot = root
	return l
}

// WithHomeDir overrides the directory the global config is read from.
func (l *Loader) WithHomeDir(dir string) *Loader {
	l.homeDir = dir
	return l
}

// WithConfigFile adds an explicit config file, applied after the project
// config. Unlike the other files it must exist.
func (l *Loader) WithConfigFile(path string) *Loader {
	l.configFile = path
	return l
}

// SkipGlobal skips loading global config.
func (l *Loader) SkipGlobal() *Loader {
	l.skipGlobal = true
	return l
}

// Sources returns the config files applied by the last Load, in order.
func (l *Loader) Sources() []string {
	return l.sources
}

// Load loads configuration with full precedence order:
// 1. Defaults
// 2. Global Config ($HOME/.gemini-cli/config.yaml)
// 3. Project Config (./.gemini-cli.yaml)
// 4. Explicit Config (WithConfigFile)
// 5. Environment Variables (GEMINI_CLI_*)
//
// Each file only overrides the keys it sets. Missing global and project
// files are skipped; files that exist but do not parse are errors.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()
	l.sources = nil

	if !l.skipGlobal {
		if path, ok := l.globalConfigPath(); ok {
			if err := l.apply(cfg, path, true); err != nil {
				return nil, err
			}
		}
	}

	if err := l.apply(cfg, GetProjectConfigPath(l.projectRoot), true); err != nil {
		return nil, err
	}

	if l.configFile != "" {
		if err := l.apply(cfg, l.configFile, false); err != nil {
			return nil, err
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFromPath loads configuration from a specific path on top of the
// defaults.
func (l *Loader) LoadFromPath(path string) (*Config, error) {
	cfg := DefaultConfig()
	if err := decodeFile(cfg, path); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (l *Loader) apply(cfg *Config, path string, optional bool) error {
	err := decodeFile(cfg, path)
	if optional && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return err
	}
	l.sources = append(l.sources, path)
	return nil
}

func (l *Loader) globalConfigPath() (string, bool) {
	home := l.homeDir
	if home == "" {
		var err error
		if home, err = os.UserHomeDir(); err != nil {
			return "", false
		}
	}
	return filepath.Join(home, GlobalConfigDir, GlobalConfigFile), true
}

// decodeFile decodes the YAML file at path into cfg. Keys absent from the
// file keep their current values.
func decodeFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return &ConfigError{Path: path, Err: err}
	}
	return nil
}

// applyEnvOverrides applies environment variable overrides.
// Format: GEMINI_CLI_SECTION__KEY=value
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"API__BASE_URL":              &cfg.API.BaseURL,
		"API__MODEL":                 &cfg.API.Model,
		"API__API_KEY_ENV":           &cfg.API.APIKeyEnv,
		"OUTPUT__DIR":                &cfg.Output.Dir,
		"OUTPUT__FALLBACK_EXTENSION": &cfg.Output.FallbackExtension,
		"TRANSCRIPT__PATH":           &cfg.Transcript.Path,
		"GLOBAL__LOG_LEVEL":          &cfg.Global.LogLevel,
		"GLOBAL__LOG_FORMAT":         &cfg.Global.LogFormat,
	}
	for key, dst := range strs {
		if v := os.Getenv(EnvPrefix + "_" + key); v != "" {
			*dst = v
		}
	}

	if v := os.Getenv(EnvPrefix + "_API__TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return &ConfigError{Field: "api.timeout", Err: err}
		}
		cfg.API.Timeout = d
	}
	if v := os.Getenv(EnvPrefix + "_OUTPUT__QUEUE_SIZE"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return &ConfigError{Field: "output.queue_size", Err: err}
		}
		cfg.Output.QueueSize = n
	}

	bools := map[string]*bool{
		"STREAM__SKIP_MALFORMED": &cfg.Stream.SkipMalformed,
		"TRANSCRIPT__ENABLED":    &cfg.Transcript.Enabled,
	}
	for key, dst := range bools {
		v := os.Getenv(EnvPrefix + "_" + key)
		if v == "" {
			continue
		}
		b, err := strconv.ParseBool(v)
		if err != nil {
			return &ConfigError{Field: envField(key), Err: err}
		}
		*dst = b
	}

	return nil
}

// envField maps an environment key such as STREAM__SKIP_MALFORMED to its
// YAML path.
func envField(key string) string {
	return strings.ToLower(strings.ReplaceAll(key, "__", "."))
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Path  string
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	if e.Path != "" {
		return "config error in " + e.Path + ": " + e.Err.Error()
	}
	if e.Field != "" {
		return "config error for " + e.Field + ": " + e.Err.Error()
	}
	return "config error: " + e.Err.Error()
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// DetectProjectRoot finds the project root by looking for the config file
// in the working directory and its parents.
func DetectProjectRoot() (string, error) {
	dir, err := os.Getwd()
	if err != nil {
		return "", err
	}

	for {
		configPath := filepath.Join(dir, ProjectConfigFile)
		if _, err := os.Stat(configPath); err == nil {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached root
			return ".", nil
		}
		dir = parent
	}
}
