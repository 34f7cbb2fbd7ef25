// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package main

import (
	"context"
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/jhideki/gemini-cli/pkg/config"
	gerrors "github.com/jhideki/gemini-cli/pkg/errors"
	"github.com/jhideki/gemini-cli/pkg/observability"
	"github.com/jhideki/gemini-cli/pkg/version"
)

// rootFlags holds the persistent flags shared by every command.
type rootFlags struct {
	config  string
	model   string
	verbose bool
}

var (
	rootOpts rootFlags

	// cfg and logger are populated by loadConfig before any command runs.
	cfg    *config.Config
	logger observability.Logger = observability.NewNop()
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "gemini-cli",
	Short: "Chat with Gemini from the terminal",
	Long: `gemini-cli - a conversational client for the Gemini streaming API.

Replies are printed as they stream in. Fenced code blocks in a reply are
written to files under the output directory while the reply is still
arriving. Type "reset" to start a new conversation and "exit" to quit.

A prompt may reference files as <path>; their contents are appended to the
prompt before it is sent.`,
	Version:           version.FullString(),
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.OutOrStdout())
		if err != nil {
			return err
		}
		runErr := runREPL(cmd.Context(), a.session, cmd.InOrStdin(), cmd.OutOrStdout(), cmd.ErrOrStderr())
		return errors.Join(runErr, a.Close(cmd.ErrOrStderr()))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	defer func() { _ = logger.Sync() }()
	return rootCmd.ExecuteContext(context.Background())
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&rootOpts.config, "config", "c", "", "Path to configuration file")
	rootCmd.PersistentFlags().StringVarP(&rootOpts.model, "model", "m", "", "Model to use (overrides api.model)")
	rootCmd.PersistentFlags().BoolVarP(&rootOpts.verbose, "verbose", "v", false, "Debug logging and pipeline counters on exit")
}

// loadConfig loads .env, the layered configuration and the logger.
func loadConfig(cmd *cobra.Command, args []string) error {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return gerrors.ConfigError("failed to load .env", err)
	}

	root, err := config.DetectProjectRoot()
	if err != nil {
		root = "."
	}
	loader := config.NewLoader().
		WithProjectRoot(root).
		WithConfigFile(rootOpts.config)

	c, err := loader.Load()
	if err != nil {
		return err
	}
	if rootOpts.model != "" {
		c.API.Model = rootOpts.model
	}
	if rootOpts.verbose {
		c.Global.LogLevel = "debug"
	}
	if err := config.NewValidator().Validate(c); err != nil {
		return err
	}

	l, err := observability.NewLogger(c.Global.LogLevel, c.Global.LogFormat)
	if err != nil {
		return gerrors.ConfigError("failed to create logger", err)
	}

	cfg, logger = c, l
	logger.Debug("configuration loaded",
		observability.String("model", c.API.Model),
		observability.Int("sources", len(loader.Sources())))
	return nil
}
