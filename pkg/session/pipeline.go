// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package session

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"unicode"

	"github.com/jhideki/gemini-cli/pkg/fence"
	"github.com/jhideki/gemini-cli/pkg/filewriter"
	"github.com/jhideki/gemini-cli/pkg/gemini"
	"github.com/jhideki/gemini-cli/pkg/observability"
)

const (
	prefixLen     = 20
	defaultPrefix = "response"
)

// pipeline carries one reply from frames to file commands.
type pipeline struct {
	s     *Session
	x     *fence.Extractor
	reply strings.Builder
	parts []Fragment
}

// handle takes the first candidate of resp and forwards its text. Frames
// without content are skipped.
func (p *pipeline) handle(ctx context.Context, resp *gemini.GenerateContentResponse) error {
	text, ok := p.fragment(resp)
	if !ok {
		p.s.counters.RecordSkippedFrame()
		return nil
	}

	p.parts = append(p.parts, Fragment{Text: text})
	p.reply.WriteString(text)
	p.s.counters.RecordFragment()
	if p.s.onFragment != nil {
		p.s.onFragment(text)
	}
	return p.apply(ctx, p.x.Feed(text))
}

// finish forwards whatever the extractor still holds.
func (p *pipeline) finish(ctx context.Context) error {
	return p.apply(ctx, p.x.Flush())
}

// abort forwards the held tail of an open block after the reply failed, so
// text that already arrived reaches the sink. It runs even when ctx has been
// cancelled.
func (p *pipeline) abort(ctx context.Context) {
	if !p.x.Active() {
		p.x.Flush()
		return
	}
	if err := p.apply(context.WithoutCancel(ctx), p.x.Flush()); err != nil {
		p.s.log.Warn("failed to forward partial code block", observability.Err(err))
	}
}

func (p *pipeline) fragment(resp *gemini.GenerateContentResponse) (string, bool) {
	log := p.s.log
	if len(resp.Candidates) == 0 {
		if fb := resp.PromptFeedback; fb != nil && fb.BlockReason != "" {
			log.Warn("prompt blocked", observability.String("reason", fb.BlockReason))
		}
		return "", false
	}

	c := resp.Candidates[0]
	text, ok := c.Text()
	if !ok {
		if c.Blocked() {
			log.Warn("candidate blocked", observability.String("finish_reason", c.FinishReason))
		}
		return "", false
	}
	return text, true
}

func (p *pipeline) apply(ctx context.Context, events []fence.Event) error {
	for _, ev := range events {
		switch ev.Kind {
		case fence.EventOpen:
			p.s.counters.RecordBlock()
			p.s.log.Info("code block opened",
				observability.String("path", ev.Path),
				observability.String("tag", ev.Tag))
		case fence.EventWrite:
			cmd := filewriter.Write{Path: ev.Path, Data: []byte(ev.Text)}
			if err := p.s.sink.Submit(ctx, cmd); err != nil {
				return err
			}
		case fence.EventClose:
			p.s.log.Debug("code block closed",
				observability.String("path", ev.Path),
				observability.Int("bytes", ev.BytesWritten))
		}
	}
	return nil
}

// namer returns the fence.NameFunc for a reply to prompt. Block numbers
// keep increasing across the whole session so paths never collide.
func (s *Session) namer(prompt string) fence.NameFunc {
	prefix := FilePrefix(prompt)
	return func(ext string) string {
		s.blocks++
		return filepath.Join(s.outDir, fmt.Sprintf("%s-%d.%s", prefix, s.blocks, ext))
	}
}

// FilePrefix derives a file name prefix from the first 20 non-whitespace
// runes of prompt. Runes outside [A-Za-z0-9._-] become '_'.
func FilePrefix(prompt string) string {
	var sb strings.Builder
	n := 0
	for _, r := range prompt {
		if unicode.IsSpace(r) {
			continue
		}
		if n == prefixLen {
			break
		}
		n++
		if isNameRune(r) {
			sb.WriteRune(r)
		} else {
			sb.WriteByte('_')
		}
	}
	if n == 0 {
		return defaultPrefix
	}
	return sb.String()
}

func isNameRune(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return true
	case r == '.', r == '_', r == '-':
		return true
	}
	return false
}
