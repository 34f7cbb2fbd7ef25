// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/jhideki/gemini-cli/pkg/config"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("Failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("Failed to write test config: %v", err)
	}
}

// TestDefaultConfig tests the default configuration.
func TestDefaultConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	if cfg.API.Model != "gemini-2.0-flash" {
		t.Errorf("Expected default model 'gemini-2.0-flash', got '%s'", cfg.API.Model)
	}
	if cfg.API.APIKeyEnv != "GEMINI_API_KEY" {
		t.Errorf("Expected default api_key_env 'GEMINI_API_KEY', got '%s'", cfg.API.APIKeyEnv)
	}
	if cfg.Output.Dir != "responses" {
		t.Errorf("Expected default output dir 'responses', got '%s'", cfg.Output.Dir)
	}
	if cfg.Output.QueueSize != 32 {
		t.Errorf("Expected default queue size 32, got %d", cfg.Output.QueueSize)
	}
	if cfg.Output.FallbackExtension != "md" {
		t.Errorf("Expected default fallback 'md', got '%s'", cfg.Output.FallbackExtension)
	}
	if cfg.Stream.SkipMalformed {
		t.Error("Expected skip_malformed to default to false")
	}
	if cfg.Transcript.Enabled {
		t.Error("Expected transcript to be disabled by default")
	}

	if err := config.NewValidator().Validate(cfg); err != nil {
		t.Errorf("Default config should be valid: %v", err)
	}
}

// TestLoadFromPath tests loading config from a file.
func TestLoadFromPath(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	writeFile(t, configPath, `
api:
  model: gemini-1.5-pro
  timeout: 45s

output:
  dir: out
  queue_size: 8
  fallback_extension: txt

stream:
  skip_malformed: true

global:
  log_level: debug
  log_format: json
`)

	cfg, err := config.NewLoader().LoadFromPath(configPath)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.API.Model != "gemini-1.5-pro" {
		t.Errorf("Expected model 'gemini-1.5-pro', got '%s'", cfg.API.Model)
	}
	if cfg.API.Timeout != 45*time.Second {
		t.Errorf("Expected timeout 45s, got %v", cfg.API.Timeout)
	}
	if cfg.Output.Dir != "out" || cfg.Output.QueueSize != 8 || cfg.Output.FallbackExtension != "txt" {
		t.Errorf("Unexpected output config: %+v", cfg.Output)
	}
	if !cfg.Stream.SkipMalformed {
		t.Error("Expected skip_malformed true")
	}
	if cfg.Global.LogLevel != "debug" || cfg.Global.LogFormat != "json" {
		t.Errorf("Unexpected global config: %+v", cfg.Global)
	}
	// Keys not in the file keep their defaults.
	if cfg.API.APIKeyEnv != config.DefaultAPIKeyEnv {
		t.Errorf("Expected api_key_env to keep default, got '%s'", cfg.API.APIKeyEnv)
	}
}

// TestLoadFromPathInvalid tests loading an invalid config file.
func TestLoadFromPathInvalid(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "invalid.yaml")
	writeFile(t, configPath, "api: [unclosed")

	_, err := config.NewLoader().LoadFromPath(configPath)
	if err == nil {
		t.Fatal("Expected error for invalid YAML")
	}

	var cfgErr *config.ConfigError
	if !errors.As(err, &cfgErr) || cfgErr.Path != configPath {
		t.Errorf("Expected ConfigError for %s, got %v", configPath, err)
	}
}

// TestLoadWithEnvOverrides tests environment variable overrides.
func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("GEMINI_CLI_API__MODEL", "gemini-env")
	t.Setenv("GEMINI_CLI_API__TIMEOUT", "10s")
	t.Setenv("GEMINI_CLI_OUTPUT__QUEUE_SIZE", "4")
	t.Setenv("GEMINI_CLI_STREAM__SKIP_MALFORMED", "true")
	t.Setenv("GEMINI_CLI_TRANSCRIPT__ENABLED", "1")
	t.Setenv("GEMINI_CLI_GLOBAL__LOG_LEVEL", "error")

	cfg, err := config.NewLoader().WithProjectRoot(t.TempDir()).SkipGlobal().Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.API.Model != "gemini-env" {
		t.Errorf("Expected model 'gemini-env', got '%s'", cfg.API.Model)
	}
	if cfg.API.Timeout != 10*time.Second {
		t.Errorf("Expected timeout 10s, got %v", cfg.API.Timeout)
	}
	if cfg.Output.QueueSize != 4 {
		t.Errorf("Expected queue size 4, got %d", cfg.Output.QueueSize)
	}
	if !cfg.Stream.SkipMalformed || !cfg.Transcript.Enabled {
		t.Errorf("Expected boolean overrides to apply: %+v %+v", cfg.Stream, cfg.Transcript)
	}
	if cfg.Global.LogLevel != "error" {
		t.Errorf("Expected log level 'error', got '%s'", cfg.Global.LogLevel)
	}
}

// TestLoadWithEnvInvalidValues tests invalid environment values.
func TestLoadWithEnvInvalidValues(t *testing.T) {
	tests := []struct {
		key   string
		value string
		field string
	}{
		{"GEMINI_CLI_API__TIMEOUT", "soon", "api.timeout"},
		{"GEMINI_CLI_OUTPUT__QUEUE_SIZE", "many", "output.queue_size"},
		{"GEMINI_CLI_STREAM__SKIP_MALFORMED", "maybe", "stream.skip_malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)

			_, err := config.NewLoader().WithProjectRoot(t.TempDir()).SkipGlobal().Load()
			var cfgErr *config.ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("Expected ConfigError, got %v", err)
			}
			if cfgErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, cfgErr.Field)
			}
		})
	}
}

// TestPrecedenceOrder tests global < project < explicit < env.
func TestPrecedenceOrder(t *testing.T) {
	home := t.TempDir()
	project := t.TempDir()
	explicit := filepath.Join(t.TempDir(), "explicit.yaml")

	writeFile(t, filepath.Join(home, config.GlobalConfigDir, config.GlobalConfigFile), `
api:
  model: from-global
output:
  dir: global-dir
  queue_size: 2
transcript:
  enabled: true
`)
	writeFile(t, filepath.Join(project, config.ProjectConfigFile), `
api:
  model: from-project
output:
  dir: project-dir
transcript:
  enabled: false
`)
	writeFile(t, explicit, `
api:
  model: from-explicit
`)

	loader := config.NewLoader().WithHomeDir(home).WithProjectRoot(project)
	cfg, err := loader.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.API.Model != "from-project" {
		t.Errorf("Expected project to override global, got '%s'", cfg.API.Model)
	}
	if cfg.Output.Dir != "project-dir" || cfg.Output.QueueSize != 2 {
		t.Errorf("Expected merged output config, got %+v", cfg.Output)
	}
	if cfg.Transcript.Enabled {
		t.Error("Expected project to switch transcript off")
	}
	if len(loader.Sources()) != 2 {
		t.Errorf("Expected 2 sources, got %v", loader.Sources())
	}

	cfg, err = loader.WithConfigFile(explicit).Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.API.Model != "from-explicit" {
		t.Errorf("Expected explicit file to win, got '%s'", cfg.API.Model)
	}

	t.Setenv("GEMINI_CLI_API__MODEL", "from-env")
	cfg, err = loader.Load()
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.API.Model != "from-env" {
		t.Errorf("Expected env to win, got '%s'", cfg.API.Model)
	}
}

// TestExplicitConfigMustExist tests that --config files are required.
func TestExplicitConfigMustExist(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.yaml")
	_, err := config.NewLoader().SkipGlobal().WithProjectRoot(t.TempDir()).WithConfigFile(missing).Load()
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Expected not-exist error, got %v", err)
	}
}

// TestValidator tests configuration validation.
func TestValidator(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*config.Config)
		field  string
	}{
		{"valid", func(*config.Config) {}, ""},
		{"bad url", func(c *config.Config) { c.API.BaseURL = "ftp://example.com" }, "api.base_url"},
		{"no model", func(c *config.Config) { c.API.Model = " " }, "api.model"},
		{"no key env", func(c *config.Config) { c.API.APIKeyEnv = "" }, "api.api_key_env"},
		{"negative timeout", func(c *config.Config) { c.API.Timeout = -time.Second }, "api.timeout"},
		{"no dir", func(c *config.Config) { c.Output.Dir = "" }, "output.dir"},
		{"zero queue", func(c *config.Config) { c.Output.QueueSize = 0 }, "output.queue_size"},
		{"bad extension", func(c *config.Config) { c.Output.FallbackExtension = "t/x" }, "output.fallback_extension"},
		{"dotted extension", func(c *config.Config) { c.Output.FallbackExtension = ".txt" }, ""},
		{"transcript without path", func(c *config.Config) {
			c.Transcript.Enabled = true
			c.Transcript.Path = ""
		}, "transcript.path"},
		{"bad level", func(c *config.Config) { c.Global.LogLevel = "verbose" }, "global.log_level"},
		{"bad format", func(c *config.Config) { c.Global.LogFormat = "xml" }, "global.log_format"},
	}

	validator := config.NewValidator()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			tt.modify(cfg)
			err := validator.Validate(cfg)

			if tt.field == "" {
				if err != nil {
					t.Errorf("Expected valid config, got %v", err)
				}
				return
			}
			var vErr *config.ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("Expected ValidationError, got %v", err)
			}
			if vErr.Field != tt.field {
				t.Errorf("Expected field %s, got %s", tt.field, vErr.Field)
			}
		})
	}
}

// TestAPIKey tests reading the key from the configured variable.
func TestAPIKey(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.API.APIKeyEnv = "GEMINI_CLI_TEST_KEY"

	t.Setenv("GEMINI_CLI_TEST_KEY", "")
	if _, err := cfg.APIKey(); err == nil || !strings.Contains(err.Error(), "GEMINI_CLI_TEST_KEY") {
		t.Errorf("Expected missing key error naming the variable, got %v", err)
	}

	t.Setenv("GEMINI_CLI_TEST_KEY", "abc")
	key, err := cfg.APIKey()
	if err != nil || key != "abc" {
		t.Errorf("Expected key 'abc', got '%s' (%v)", key, err)
	}
}

// TestValidationError tests ValidationError formatting.
func TestValidationError(t *testing.T) {
	err := &config.ValidationError{Field: "output.queue_size", Value: -1, Message: "must be positive"}
	expected := "validation error for output.queue_size: must be positive (got: -1)"
	if err.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, err.Error())
	}
}

// TestConfigError tests ConfigError formatting.
func TestConfigError(t *testing.T) {
	err := &config.ConfigError{Field: "api.timeout", Err: errors.New("bad duration")}
	expected := "config error for api.timeout: bad duration"
	if err.Error() != expected {
		t.Errorf("Expected '%s', got '%s'", expected, err.Error())
	}
}

// TestDefaultConfigPaths tests default path helpers.
func TestDefaultConfigPaths(t *testing.T) {
	if got := config.GetProjectConfigPath(""); got != ".gemini-cli.yaml" {
		t.Errorf("Expected '.gemini-cli.yaml', got '%s'", got)
	}
	if !strings.HasSuffix(config.GetDefaultConfigPath(), filepath.Join(".gemini-cli", "config.yaml")) {
		t.Errorf("Unexpected global config path: %s", config.GetDefaultConfigPath())
	}
	if !strings.HasSuffix(config.GetDefaultTranscriptPath(), "transcripts.db") {
		t.Errorf("Unexpected transcript path: %s", config.GetDefaultTranscriptPath())
	}
}
