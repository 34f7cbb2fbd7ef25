// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	gerrors "github.com/jhideki/gemini-cli/pkg/errors"
	"github.com/jhideki/gemini-cli/pkg/session"
	"github.com/jhideki/gemini-cli/pkg/sigctx"
)

// askFlags holds the flags for the ask command
type askFlags struct {
	prompt string
	files  []string
}

var askOpts askFlags

// askCmd represents the ask command
var askCmd = &cobra.Command{
	Use:   "ask [-p PROMPT] [-f FILE]... [WORDS...]",
	Short: "Send a single prompt without conversation history",
	Long: `Send one prompt, print the reply and exit.

The prompt is the -p value followed by any remaining arguments. Each -f
file is appended to the prompt on its own line. Code blocks in the reply
are written to the output directory as in interactive mode.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		prompt, err := buildPrompt(askOpts.prompt, args, askOpts.files)
		if err != nil {
			return err
		}

		a, err := newApp(cmd.OutOrStdout())
		if err != nil {
			return err
		}

		ctx, cancel := sigctx.WithSignal(cmd.Context(), os.Interrupt)
		defer cancel()

		reply, askErr := a.session.Ask(ctx, prompt)
		if askErr == nil && !strings.HasSuffix(reply, "\n") {
			fmt.Fprintln(cmd.OutOrStdout())
		}
		if sigctx.Interrupted(ctx) {
			askErr = sigctx.ErrInterrupted
		}
		return errors.Join(askErr, a.Close(cmd.ErrOrStderr()))
	},
}

// buildPrompt joins the -p value with the positional words and appends
// each file.
func buildPrompt(flag string, words, files []string) (string, error) {
	prompt := strings.TrimSpace(strings.Join(append([]string{flag}, words...), " "))
	for _, f := range files {
		var err error
		if prompt, err = session.AppendFile(prompt, f); err != nil {
			return "", err
		}
	}
	if strings.TrimSpace(prompt) == "" {
		return "", gerrors.ValidationError("a prompt is required: use -p, -f or positional words", nil)
	}
	return prompt, nil
}

func init() {
	rootCmd.AddCommand(askCmd)

	askCmd.Flags().StringVarP(&askOpts.prompt, "prompt", "p", "", "Prompt to send")
	askCmd.Flags().StringArrayVarP(&askOpts.files, "file", "f", nil, "File whose contents are appended to the prompt")
}
