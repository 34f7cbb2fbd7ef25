// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package config provides configuration management for gemini-cli.
//
// Configuration Loading Order (later overrides earlier):
// 1. Defaults (hardcoded)
// 2. Global Config: $HOME/.gemini-cli/config.yaml
// 3. Project Config: ./.gemini-cli.yaml
// 4. Explicit Config: --config <path>
// 5. Environment Variables: GEMINI_CLI_*
package config

import (
	"fmt"
	"os"
	"time"
)

// Config represents the complete application configuration.
type Config struct {
	API        APIConfig        `yaml:"api"`
	Output     OutputConfig     `yaml:"output"`
	Stream     StreamConfig     `yaml:"stream"`
	Transcript TranscriptConfig `yaml:"transcript"`
	Global     GlobalConfig     `yaml:"global"`
}

// APIConfig contains Gemini API settings.
type APIConfig struct {
	BaseURL   string        `yaml:"base_url"`
	Model     string        `yaml:"model"`
	APIKeyEnv string        `yaml:"api_key_env"` // e.g., "GEMINI_API_KEY"
	Timeout   time.Duration `yaml:"timeout"`     // non-streaming calls only
	// api_key field is NOT allowed - must use api_key_env
}

// OutputConfig controls where code blocks are written.
type OutputConfig struct {
	Dir               string `yaml:"dir"`
	QueueSize         int    `yaml:"queue_size"`
	FallbackExtension string `yaml:"fallback_extension"`
}

// StreamConfig controls stream decoding.
type StreamConfig struct {
	SkipMalformed bool `yaml:"skip_malformed"` // drop bad frames instead of aborting
}

// TranscriptConfig controls the SQLite transcript store.
type TranscriptConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// GlobalConfig contains global application settings.
type GlobalConfig struct {
	LogLevel  string `yaml:"log_level"`  // debug, info, warn, error
	LogFormat string `yaml:"log_format"` // console, json
}

// APIKey reads the API key from the environment variable named by
// api.api_key_env.
func (c *Config) APIKey() (string, error) {
	key := os.Getenv(c.API.APIKeyEnv)
	if key == "" {
		return "", &ConfigError{
			Field: "api.api_key_env",
			Err:   fmt.Errorf("environment variable %s is not set", c.API.APIKeyEnv),
		}
	}
	return key, nil
}
