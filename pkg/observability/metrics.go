// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package observability

import (
	"fmt"
	"sync/atomic"
)

// Counters tracks pipeline activity for a process.
// A nil *Counters is valid and records nothing.
type Counters struct {
	fragments     atomic.Int64
	skippedFrames atomic.Int64
	blocks        atomic.Int64
	writes        atomic.Int64
	bytesWritten  atomic.Int64
	writeFailures atomic.Int64
	removed       atomic.Int64
}

// NewCounters creates a zeroed counter set.
func NewCounters() *Counters {
	return &Counters{}
}

// RecordFragment records a text fragment received from the stream.
func (c *Counters) RecordFragment() {
	if c != nil {
		c.fragments.Add(1)
	}
}

// RecordSkippedFrame records a frame that carried no usable content.
func (c *Counters) RecordSkippedFrame() {
	if c != nil {
		c.skippedFrames.Add(1)
	}
}

// RecordBlock records a code block being opened.
func (c *Counters) RecordBlock() {
	if c != nil {
		c.blocks.Add(1)
	}
}

// RecordWrite records an append attempt.
func (c *Counters) RecordWrite(bytes int, err error) {
	if c == nil {
		return
	}
	if err != nil {
		c.writeFailures.Add(1)
		return
	}
	c.writes.Add(1)
	c.bytesWritten.Add(int64(bytes))
}

// RecordRemoved records files deleted by a cleanup.
func (c *Counters) RecordRemoved(n int) {
	if c != nil {
		c.removed.Add(int64(n))
	}
}

// Snapshot is a point-in-time copy of Counters.
type Snapshot struct {
	Fragments     int64
	SkippedFrames int64
	Blocks        int64
	Writes        int64
	BytesWritten  int64
	WriteFailures int64
	Removed       int64
}

// Snapshot returns the current values.
func (c *Counters) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	return Snapshot{
		Fragments:     c.fragments.Load(),
		SkippedFrames: c.skippedFrames.Load(),
		Blocks:        c.blocks.Load(),
		Writes:        c.writes.Load(),
		BytesWritten:  c.bytesWritten.Load(),
		WriteFailures: c.writeFailures.Load(),
		Removed:       c.removed.Load(),
	}
}

func (s Snapshot) String() string {
	return fmt.Sprintf("fragments=%d skipped=%d blocks=%d writes=%d bytes=%d failures=%d removed=%d",
		s.Fragments, s.SkippedFrames, s.Blocks, s.Writes, s.BytesWritten, s.WriteFailures, s.Removed)
}
