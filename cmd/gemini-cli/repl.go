// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/jhideki/gemini-cli/pkg/filewriter"
	"github.com/jhideki/gemini-cli/pkg/session"
	"github.com/jhideki/gemini-cli/pkg/sigctx"
)

const (
	exitCommand  = "exit"
	resetCommand = "reset"

	// maxLineBytes bounds a single line read from the terminal.
	maxLineBytes = 1 << 20
)

// conversation is the part of session.Session the interactive loop drives.
type conversation interface {
	SendPrompt(ctx context.Context, text string) (string, error)
	RemoveFiles(ctx context.Context) (filewriter.RemoveResult, error)
	Reset()
}

// runREPL reads prompts from in until "exit" or end of input. Each prompt
// can be cancelled with Ctrl-C without ending the loop.
func runREPL(ctx context.Context, conv conversation, in io.Reader, out, errOut io.Writer) error {
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	for {
		fmt.Fprintln(out, "Enter a prompt:")
		if !sc.Scan() {
			return sc.Err()
		}

		line := strings.TrimSpace(sc.Text())
		switch line {
		case "":
			continue
		case exitCommand:
			return confirmRemove(ctx, conv, sc, out)
		case resetCommand:
			conv.Reset()
			fmt.Fprintln(out, "Started a new conversation.")
			continue
		}

		prompt, err := session.ExpandFileRefs(line)
		if err != nil {
			fmt.Fprintf(errOut, "error: %v\n", err)
			continue
		}

		pctx, cancel := sigctx.WithSignal(ctx, os.Interrupt)
		reply, err := conv.SendPrompt(pctx, prompt)
		interrupted := sigctx.Interrupted(pctx)
		cancel()

		switch {
		case interrupted:
			fmt.Fprintln(errOut, "\ninterrupted")
		case err != nil:
			fmt.Fprintf(errOut, "\nerror: %v\n", err)
		case !strings.HasSuffix(reply, "\n"):
			fmt.Fprintln(out)
		}
	}
}

// confirmRemove asks whether to delete the files written this session.
func confirmRemove(ctx context.Context, conv conversation, sc *bufio.Scanner, out io.Writer) error {
	fmt.Fprint(out, "Would you like to delete the files written this session? (y/n): ")
	if !sc.Scan() {
		fmt.Fprintln(out)
		return sc.Err()
	}

	answer := strings.ToLower(strings.TrimSpace(sc.Text()))
	if answer != "y" && answer != "yes" {
		fmt.Fprintln(out, "Exiting...")
		return nil
	}

	res, err := conv.RemoveFiles(ctx)
	if err != nil {
		return err
	}
	for _, f := range res.Failed {
		fmt.Fprintf(out, "could not delete %s\n", f)
	}
	fmt.Fprintf(out, "Deleted %d file(s). Exiting...\n", len(res.Removed))
	return nil
}
