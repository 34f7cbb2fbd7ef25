// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package session drives a conversation with the Gemini API.
//
// A Session keeps the turn history, sends it with every prompt, and runs
// each reply through the fence extractor so code blocks reach the file
// writer while the reply is still streaming.
package session

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	gerrors "github.com/jhideki/gemini-cli/pkg/errors"
	"github.com/jhideki/gemini-cli/pkg/fence"
	"github.com/jhideki/gemini-cli/pkg/filewriter"
	"github.com/jhideki/gemini-cli/pkg/gemini"
	"github.com/jhideki/gemini-cli/pkg/observability"
)

// DefaultOutputDir is where code blocks are written.
const DefaultOutputDir = "responses"

// Role identifies the author of a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Fragment is the smallest unit of text exchanged with the API.
type Fragment struct {
	Text string
}

// Turn is one message in the conversation.
type Turn struct {
	Role  Role
	Parts []Fragment
}

// Text concatenates the turn's fragments.
func (t Turn) Text() string {
	var sb strings.Builder
	for _, p := range t.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// Generator is the subset of the Gemini client a Session uses.
type Generator interface {
	StreamGenerateContent(ctx context.Context, req *gemini.GenerateContentRequest) (*gemini.Stream, error)
	GenerateContent(ctx context.Context, req *gemini.GenerateContentRequest) (*gemini.GenerateContentResponse, error)
	ListModels(ctx context.Context) ([]gemini.Model, error)
}

// Sink receives file commands. *filewriter.Writer implements it.
type Sink interface {
	Submit(ctx context.Context, cmd filewriter.Command) error
	RemoveAll(ctx context.Context) (filewriter.RemoveResult, error)
}

// Recorder persists turns as they are appended to the history.
type Recorder interface {
	Record(ctx context.Context, sessionID string, seq int, role, text string) error
}

// Session is a conversation. It is not safe for concurrent use.
type Session struct {
	id         string
	client     Generator
	sink       Sink
	log        observability.Logger
	counters   *observability.Counters
	recorder   Recorder
	onFragment func(string)
	outDir     string
	fallback   string

	history []Turn
	blocks  int
}

// Option configures a Session.
type Option func(*Session)

// WithLogger sets the session logger.
func WithLogger(l observability.Logger) Option {
	return func(s *Session) {
		if l != nil {
			s.log = l
		}
	}
}

// WithCounters records fragments and blocks into c.
func WithCounters(c *observability.Counters) Option {
	return func(s *Session) {
		s.counters = c
	}
}

// WithRecorder records every appended turn.
func WithRecorder(r Recorder) Option {
	return func(s *Session) {
		s.recorder = r
	}
}

// WithFragmentHandler calls fn with each reply fragment as it arrives.
func WithFragmentHandler(fn func(string)) Option {
	return func(s *Session) {
		s.onFragment = fn
	}
}

// WithOutputDir sets the directory code blocks are written to.
func WithOutputDir(dir string) Option {
	return func(s *Session) {
		if dir != "" {
			s.outDir = dir
		}
	}
}

// WithFallbackExtension sets the extension for untagged or unknown blocks.
func WithFallbackExtension(ext string) Option {
	return func(s *Session) {
		s.fallback = ext
	}
}

// WithID sets the session ID. A random UUID is used otherwise.
func WithID(id string) Option {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// New creates a session with an empty history.
func New(client Generator, sink Sink, opts ...Option) *Session {
	s := &Session{
		id:     uuid.NewString(),
		client: client,
		sink:   sink,
		log:    observability.NewNop(),
		outDir: DefaultOutputDir,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With(observability.String("session", s.id))
	return s
}

// ID returns the session ID.
func (s *Session) ID() string {
	return s.id
}

// History returns a copy of the turns so far.
func (s *Session) History() []Turn {
	out := make([]Turn, len(s.history))
	copy(out, s.history)
	return out
}

// Reset clears the history. Files already written are kept.
func (s *Session) Reset() {
	s.history = nil
	s.log.Info("session reset")
}

// SendPrompt sends text together with the whole history and streams the
// reply. Code blocks are forwarded to the sink as they arrive. On success
// the reply is appended to the history and returned.
//
// If the stream fails part way, the error is returned and no model turn is
// added. Whatever was already forwarded to the sink stays there, and the
// user turn stays in the history.
func (s *Session) SendPrompt(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", gerrors.ValidationError("empty prompt", nil)
	}
	s.appendTurn(ctx, Turn{Role: RoleUser, Parts: []Fragment{{Text: text}}})

	stream, err := s.client.StreamGenerateContent(ctx, s.request(s.history))
	if err != nil {
		return "", s.fail(err, "stream", "request")
	}
	defer stream.Close()

	p := s.newPipeline(text)
	for resp, err := range stream.Events() {
		if err != nil {
			p.abort(ctx)
			return "", s.fail(err, "stream", failedStage(err, "stream"))
		}
		if err := p.handle(ctx, resp); err != nil {
			p.abort(ctx)
			return "", s.fail(err, "stream", "stream")
		}
	}
	if err := p.finish(ctx); err != nil {
		return "", s.fail(err, "stream", "stream")
	}

	s.appendTurn(ctx, Turn{Role: RoleModel, Parts: p.parts})
	return p.reply.String(), nil
}

// Ask sends text on its own, without history, and waits for the complete
// reply. Code blocks go through the same pipeline as SendPrompt. The history
// is not changed.
func (s *Session) Ask(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", gerrors.ValidationError("empty prompt", nil)
	}
	req := s.request([]Turn{{Role: RoleUser, Parts: []Fragment{{Text: text}}}})
	resp, err := s.client.GenerateContent(ctx, req)
	if err != nil {
		return "", s.fail(err, "single", failedStage(err, "request"))
	}

	p := s.newPipeline(text)
	if err := p.handle(ctx, resp); err != nil {
		p.abort(ctx)
		return "", s.fail(err, "single", "stream")
	}
	if err := p.finish(ctx); err != nil {
		return "", s.fail(err, "single", "stream")
	}
	return p.reply.String(), nil
}

// ListModels returns the models available to the client.
func (s *Session) ListModels(ctx context.Context) ([]gemini.Model, error) {
	models, err := s.client.ListModels(ctx)
	if err != nil {
		return nil, s.fail(err, "models", "request")
	}
	return models, nil
}

// RemoveFiles asks the sink to delete every file written so far.
func (s *Session) RemoveFiles(ctx context.Context) (filewriter.RemoveResult, error) {
	res, err := s.sink.RemoveAll(ctx)
	if err != nil {
		return res, fmt.Errorf("remove files: %w", err)
	}
	s.log.Info("removed session files",
		observability.Int("removed", len(res.Removed)),
		observability.Int("failed", len(res.Failed)))
	return res, nil
}

func (s *Session) request(turns []Turn) *gemini.GenerateContentRequest {
	contents := make([]gemini.Content, 0, len(turns))
	for _, t := range turns {
		parts := make([]gemini.Part, 0, len(t.Parts))
		for _, p := range t.Parts {
			parts = append(parts, gemini.Part{Text: p.Text})
		}
		contents = append(contents, gemini.Content{Role: string(t.Role), Parts: parts})
	}
	return &gemini.GenerateContentRequest{Contents: contents}
}

func (s *Session) appendTurn(ctx context.Context, t Turn) {
	s.history = append(s.history, t)
	if s.recorder == nil {
		return
	}
	seq := len(s.history) - 1
	if err := s.recorder.Record(ctx, s.id, seq, string(t.Role), t.Text()); err != nil {
		s.log.Warn("failed to record turn", observability.Int("seq", seq), observability.Err(err))
	}
}

// failedStage reports "decode" for errors raised while parsing a reply and
// stage otherwise.
func failedStage(err error, stage string) string {
	if gerrors.IsType(err, gerrors.ErrDecode) || gerrors.IsType(err, gerrors.ErrEncoding) {
		return "decode"
	}
	return stage
}

// fail tags err with the call and stage it came from.
func (s *Session) fail(err error, call, stage string) error {
	s.log.Error("prompt failed",
		observability.String("call", call),
		observability.String("stage", stage),
		observability.Err(err))

	var typed *gerrors.Error
	if errors.As(err, &typed) {
		typed.WithContext("call", call).WithContext("stage", stage)
		return err
	}
	return fmt.Errorf("%s call failed at %s stage: %w", call, stage, err)
}

func (s *Session) newPipeline(prompt string) *pipeline {
	var opts []fence.Option
	if s.fallback != "" {
		opts = append(opts, fence.WithFallbackExtension(s.fallback))
	}
	return &pipeline{
		s: s,
		x: fence.NewExtractor(s.namer(prompt), opts...),
	}
}
