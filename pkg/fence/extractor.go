// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package fence detects Markdown fenced code blocks in streamed reply text.
//
// The Extractor is fed reply fragments as they arrive and emits events for
// block open, block content and block close. It never sees the full reply at
// once, so content can be persisted while the reply is still streaming.
package fence

import "strings"

// Marker is the fence delimiter.
const Marker = "```"

// EventKind identifies an extractor event.
type EventKind int

const (
	// EventOpen is emitted when a fence opens a new block.
	EventOpen EventKind = iota
	// EventWrite carries one line of block content.
	EventWrite
	// EventClose is emitted when the open block's fence closes.
	EventClose
)

func (k EventKind) String() string {
	switch k {
	case EventOpen:
		return "open"
	case EventWrite:
		return "write"
	case EventClose:
		return "close"
	default:
		return "unknown"
	}
}

// Event is produced by the Extractor.
type Event struct {
	Kind      EventKind
	Path      string
	Extension string
	// Text is set for EventWrite.
	Text string
	// Tag is the normalized language tag, set for EventOpen.
	Tag string
	// BytesWritten is set for EventClose.
	BytesWritten int
}

// NameFunc returns the target path for a block with the given extension.
// It is called once per opened block.
type NameFunc func(ext string) string

// block is the state of an open fence. A nil *block means no fence is open.
type block struct {
	ext     string
	path    string
	written int
}

// Extractor is a line-oriented fence scanner.
// It is not safe for concurrent use.
type Extractor struct {
	name     NameFunc
	fallback string
	open     *block
	partial  string
}

// Option configures an Extractor.
type Option func(*Extractor)

// WithFallbackExtension overrides FallbackExtension.
func WithFallbackExtension(ext string) Option {
	return func(x *Extractor) {
		ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
		if ext != "" {
			x.fallback = ext
		}
	}
}

// NewExtractor creates an extractor with no open block.
func NewExtractor(name NameFunc, opts ...Option) *Extractor {
	x := &Extractor{
		name:     name,
		fallback: FallbackExtension,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Active reports whether a block is open.
func (x *Extractor) Active() bool {
	return x.open != nil
}

// Target returns the path and extension of the open block.
func (x *Extractor) Target() (path, ext string, ok bool) {
	if x.open == nil {
		return "", "", false
	}
	return x.open.path, x.open.ext, true
}

// Feed scans the complete lines available after appending fragment.
// An unterminated trailing line is held until the next Feed or Flush.
func (x *Extractor) Feed(fragment string) []Event {
	if fragment == "" {
		return nil
	}
	data := x.partial + fragment

	var events []Event
	for {
		i := strings.IndexByte(data, '\n')
		if i < 0 {
			break
		}
		events = x.scanLine(data[:i+1], events)
		data = data[i+1:]
	}
	x.partial = data
	return events
}

// Flush scans any held partial line and resets the extractor. A block that
// is still open is abandoned without a close event.
func (x *Extractor) Flush() []Event {
	var events []Event
	if x.partial != "" {
		events = x.scanLine(x.partial, nil)
		x.partial = ""
	}
	x.open = nil
	return events
}

// Close closes the open block. It reports false, and does nothing, when no
// block is open.
func (x *Extractor) Close() (Event, bool) {
	if x.open == nil {
		return Event{}, false
	}
	return x.closeBlock(), true
}

func (x *Extractor) scanLine(line string, events []Event) []Event {
	idx := strings.Index(line, Marker)
	if idx < 0 {
		if x.open == nil {
			return events
		}
		x.open.written += len(line)
		return append(events, Event{
			Kind:      EventWrite,
			Path:      x.open.path,
			Extension: x.open.ext,
			Text:      line,
		})
	}

	if x.open != nil {
		return append(events, x.closeBlock())
	}

	tag := NormalizeTag(strings.TrimRight(line[idx+len(Marker):], "\r\n"))
	ext, ok := Lookup(tag)
	if !ok {
		ext = x.fallback
	}
	x.open = &block{ext: ext, path: x.name(ext)}
	return append(events, Event{
		Kind:      EventOpen,
		Path:      x.open.path,
		Extension: ext,
		Tag:       tag,
	})
}

func (x *Extractor) closeBlock() Event {
	b := x.open
	x.open = nil
	return Event{
		Kind:         EventClose,
		Path:         b.path,
		Extension:    b.ext,
		BytesWritten: b.written,
	}
}
