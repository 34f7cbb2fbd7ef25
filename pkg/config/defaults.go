// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package config

import (
	"os"
	"path/filepath"

	"github.com/jhideki/gemini-cli/pkg/fence"
	"github.com/jhideki/gemini-cli/pkg/filewriter"
	"github.com/jhideki/gemini-cli/pkg/gemini"
	"github.com/jhideki/gemini-cli/pkg/session"
)

// DefaultAPIKeyEnv names the environment variable holding the API key.
const DefaultAPIKeyEnv = "GEMINI_API_KEY"

// DefaultConfig returns the default configuration.
// These values are used when no config file is present.
func DefaultConfig() *Config {
	return &Config{
		API: DefaultAPIConfig(),
		Output: OutputConfig{
			Dir:               session.DefaultOutputDir,
			QueueSize:         filewriter.DefaultQueueSize,
			FallbackExtension: fence.FallbackExtension,
		},
		Transcript: TranscriptConfig{
			Enabled: false,
			Path:    GetDefaultTranscriptPath(),
		},
		Global: GlobalConfig{
			LogLevel:  "warn",
			LogFormat: "console",
		},
	}
}

// DefaultAPIConfig returns default API configuration.
func DefaultAPIConfig() APIConfig {
	return APIConfig{
		BaseURL:   gemini.DefaultBaseURL,
		Model:     gemini.DefaultModel,
		APIKeyEnv: DefaultAPIKeyEnv,
		Timeout:   gemini.DefaultTimeout,
	}
}

// GetDefaultTranscriptPath returns the default transcript database path.
func GetDefaultTranscriptPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, GlobalConfigDir, "transcripts.db")
}

// GetDefaultConfigPath returns the default global config file path.
func GetDefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, GlobalConfigDir, GlobalConfigFile)
}

// GetProjectConfigPath returns the project config file path.
func GetProjectConfigPath(projectRoot string) string {
	if projectRoot == "" {
		projectRoot = "."
	}
	return filepath.Join(projectRoot, ProjectConfigFile)
}
