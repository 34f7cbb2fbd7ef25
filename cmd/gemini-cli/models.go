// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// modelsCmd represents the models command
var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the models available to the API key",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd.OutOrStdout())
		if err != nil {
			return err
		}

		models, listErr := a.session.ListModels(cmd.Context())
		out := cmd.OutOrStdout()
		for _, m := range models {
			name := m.DisplayName
			if name == "" {
				name = strings.TrimPrefix(m.Name, "models/")
			}
			fmt.Fprintf(out, "%s (%s)\n", name, strings.TrimPrefix(m.Name, "models/"))
			if m.Description != "" {
				fmt.Fprintf(out, "  %s\n", m.Description)
			}
		}
		return errors.Join(listErr, a.Close(cmd.ErrOrStderr()))
	},
}

func init() {
	rootCmd.AddCommand(modelsCmd)
}
