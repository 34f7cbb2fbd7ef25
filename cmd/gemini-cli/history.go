// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhideki/gemini-cli/pkg/transcript"
)

// previewRunes is how much of a session's first prompt the listing shows.
const previewRunes = 60

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [SESSION]",
	Short: "Show recorded conversations",
	Long: `Without arguments, list the recorded sessions, most recent first.
With a session ID, print that session's turns.

Sessions are recorded when transcript.enabled is set.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := transcript.Open(cfg.Transcript.Path)
		if err != nil {
			return err
		}
		defer store.Close()

		if len(args) == 1 {
			return printTurns(cmd.Context(), store, args[0], cmd.OutOrStdout())
		}
		return printSessions(cmd.Context(), store, cmd.OutOrStdout())
	},
}

func printSessions(ctx context.Context, store *transcript.Store, out io.Writer) error {
	sessions, err := store.Sessions(ctx)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No recorded sessions.")
		return nil
	}
	for _, s := range sessions {
		fmt.Fprintf(out, "%s  %s  %3d turns  %s\n",
			s.ID, s.Updated.Format(time.DateTime), s.Turns, preview(s.FirstPrompt))
	}
	return nil
}

func printTurns(ctx context.Context, store *transcript.Store, id string, out io.Writer) error {
	turns, err := store.Turns(ctx, id)
	if err != nil {
		return err
	}
	if len(turns) == 0 {
		return fmt.Errorf("no recorded session %q", id)
	}
	for _, t := range turns {
		fmt.Fprintf(out, "[%s] %s\n", t.Role, t.CreatedAt.Format(time.DateTime))
		fmt.Fprintln(out, strings.TrimRight(t.Text, "\n"))
		fmt.Fprintln(out)
	}
	return nil
}

// preview returns the first line of text, cut to previewRunes.
func preview(text string) string {
	line, _, _ := strings.Cut(strings.TrimSpace(text), "\n")
	if r := []rune(line); len(r) > previewRunes {
		return string(r[:previewRunes]) + "..."
	}
	return line
}

func init() {
	rootCmd.AddCommand(historyCmd)
}
