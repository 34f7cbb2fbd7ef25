// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package main

import (
	"errors"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/jhideki/gemini-cli/pkg/filewriter"
	"github.com/jhideki/gemini-cli/pkg/gemini"
	"github.com/jhideki/gemini-cli/pkg/observability"
	"github.com/jhideki/gemini-cli/pkg/session"
	"github.com/jhideki/gemini-cli/pkg/transcript"
)

// app wires a session to its client, file writer and transcript store.
type app struct {
	log      observability.Logger
	counters *observability.Counters
	writer   *filewriter.Writer
	group    *errgroup.Group
	store    *transcript.Store
	session  *session.Session
}

// newApp builds the session for the loaded configuration and starts the
// file writer. Reply fragments are printed to out as they arrive.
func newApp(out io.Writer) (*app, error) {
	key, err := cfg.APIKey()
	if err != nil {
		return nil, err
	}

	a := &app{
		log:      logger,
		counters: observability.NewCounters(),
	}

	var store *transcript.Store
	if cfg.Transcript.Enabled {
		if store, err = transcript.Open(cfg.Transcript.Path); err != nil {
			return nil, err
		}
		a.store = store
	}

	a.writer = filewriter.New(cfg.Output.QueueSize,
		filewriter.WithLogger(logger),
		filewriter.WithCounters(a.counters),
		filewriter.WithRoot(cfg.Output.Dir))
	a.group = new(errgroup.Group)
	a.group.Go(a.writer.Run)

	opts := []session.Option{
		session.WithLogger(logger),
		session.WithCounters(a.counters),
		session.WithOutputDir(cfg.Output.Dir),
		session.WithFallbackExtension(cfg.Output.FallbackExtension),
		session.WithFragmentHandler(func(text string) {
			fmt.Fprint(out, text)
		}),
	}
	if store != nil {
		opts = append(opts, session.WithRecorder(store))
	}

	a.session = session.New(newClient(key, a.counters), a.writer, opts...)
	a.log.Debug("session started", observability.String("session_id", a.session.ID()))
	return a, nil
}

// newClient creates the Gemini client for the loaded configuration.
func newClient(key string, counters *observability.Counters) *gemini.Client {
	opts := []gemini.ClientOption{
		gemini.WithTimeout(cfg.API.Timeout),
		gemini.WithLogger(logger),
	}
	if cfg.Stream.SkipMalformed {
		opts = append(opts, gemini.WithDecoderOptions(
			gemini.WithSkipMalformed(logger),
			gemini.WithFrameCounters(counters)))
	}
	return gemini.NewClient(cfg.API.BaseURL, key, cfg.API.Model, opts...)
}

// Close drains the file writer and closes the transcript store. With
// --verbose the pipeline counters are printed to errOut.
func (a *app) Close(errOut io.Writer) error {
	var errs []error
	if err := a.writer.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := a.group.Wait(); err != nil {
		errs = append(errs, err)
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if rootOpts.verbose {
		fmt.Fprintln(errOut, a.counters.Snapshot())
	}
	return errors.Join(errs...)
}
