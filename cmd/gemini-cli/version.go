// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jhideki/gemini-cli/pkg/version"
)

// versionCmd represents the version command
var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version information",
	Long:  `Display detailed version information including build date, git commit, and Go version.`,
	// Printing the version needs no configuration.
	PersistentPreRun: func(cmd *cobra.Command, args []string) {},
	Run: func(cmd *cobra.Command, args []string) {
		info := version.Info()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "gemini-cli version: %s\n", info["version"])
		fmt.Fprintf(out, "  build date: %s\n", info["buildDate"])
		fmt.Fprintf(out, "  git commit: %s\n", info["gitCommit"])
		fmt.Fprintf(out, "  go version: %s\n", info["goVersion"])
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
