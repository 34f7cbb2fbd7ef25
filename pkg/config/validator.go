// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"fmt"
	"net/url"
	"strings"
)

// Validator validates configuration.
type Validator struct{}

// NewValidator creates a new validator.
func NewValidator() *Validator {
	return &Validator{}
}

// Validate validates a configuration.
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateAPI(&cfg.API); err != nil {
		return err
	}
	if err := v.ValidateOutput(&cfg.Output); err != nil {
		return err
	}
	if err := v.ValidateTranscript(&cfg.Transcript); err != nil {
		return err
	}
	if err := v.ValidateGlobal(&cfg.Global); err != nil {
		return err
	}
	return nil
}

// ValidateAPI validates API configuration.
func (v *Validator) ValidateAPI(cfg *APIConfig) error {
	u, err := url.Parse(cfg.BaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return &ValidationError{
			Field:   "api.base_url",
			Value:   cfg.BaseURL,
			Message: "must be an http or https URL",
		}
	}

	if strings.TrimSpace(cfg.Model) == "" {
		return &ValidationError{
			Field:   "api.model",
			Message: "must be set",
		}
	}

	if cfg.APIKeyEnv == "" {
		return &ValidationError{
			Field:   "api.api_key_env",
			Message: "must be set (api_key field is not allowed)",
		}
	}

	if cfg.Timeout < 0 {
		return &ValidationError{
			Field:   "api.timeout",
			Value:   cfg.Timeout,
			Message: "must be positive",
		}
	}

	return nil
}

// ValidateOutput validates output configuration.
func (v *Validator) ValidateOutput(cfg *OutputConfig) error {
	if strings.TrimSpace(cfg.Dir) == "" {
		return &ValidationError{
			Field:   "output.dir",
			Message: "must be set",
		}
	}

	if cfg.QueueSize <= 0 {
		return &ValidationError{
			Field:   "output.queue_size",
			Value:   cfg.QueueSize,
			Message: "must be positive",
		}
	}

	ext := strings.TrimPrefix(cfg.FallbackExtension, ".")
	if ext == "" || strings.IndexFunc(ext, func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9')
	}) >= 0 {
		return &ValidationError{
			Field:   "output.fallback_extension",
			Value:   cfg.FallbackExtension,
			Message: "must be alphanumeric",
		}
	}

	return nil
}

// ValidateTranscript validates transcript configuration.
func (v *Validator) ValidateTranscript(cfg *TranscriptConfig) error {
	if cfg.Enabled && strings.TrimSpace(cfg.Path) == "" {
		return &ValidationError{
			Field:   "transcript.path",
			Message: "must be set when transcript.enabled is true",
		}
	}
	return nil
}

// ValidateGlobal validates global configuration.
func (v *Validator) ValidateGlobal(cfg *GlobalConfig) error {
	if err := oneOf("global.log_level", cfg.LogLevel, "debug", "info", "warn", "error"); err != nil {
		return err
	}
	return oneOf("global.log_format", cfg.LogFormat, "console", "json")
}

func oneOf(field, value string, valid ...string) error {
	if value == "" {
		return nil
	}
	for _, s := range valid {
		if strings.EqualFold(value, s) {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(valid, ", ")),
	}
}

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Value   any
	Message string
}

func (e *ValidationError) Error() string {
	if e.Value != nil {
		return fmt.Sprintf("validation error for %s: %s (got: %v)", e.Field, e.Message, e.Value)
	}
	return fmt.Sprintf("validation error for %s: %s", e.Field, e.Message)
}
