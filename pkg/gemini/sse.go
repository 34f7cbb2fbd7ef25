// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package gemini

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"strings"
	"unicode/utf8"

	gerrors "github.com/jhideki/gemini-cli/pkg/errors"
	"github.com/jhideki/gemini-cli/pkg/observability"
)

const (
	// readSize is the size of a single read from the response body.
	readSize = 32 * 1024

	// doneSentinel ends a stream early.
	doneSentinel = "[DONE]"

	// maxPayloadContext bounds the payload copied into a DECODE error.
	maxPayloadContext = 256
)

// Decoder turns a server-sent-event byte stream into response frames.
//
// Bytes are read into a residual buffer and only complete lines are
// interpreted, so a frame split across reads is reassembled before it is
// parsed. Data lines are accumulated until a blank line dispatches them as
// one JSON payload.
type Decoder struct {
	r        io.Reader
	residual []byte
	pending  []string
	eof      bool
	err      error

	skipMalformed bool
	log           observability.Logger
	counters      *observability.Counters
}

// DecoderOption configures a Decoder.
type DecoderOption func(*Decoder)

// WithSkipMalformed makes the decoder log and drop frames whose payload is
// not valid JSON instead of ending the stream.
func WithSkipMalformed(log observability.Logger) DecoderOption {
	return func(d *Decoder) {
		d.skipMalformed = true
		if log != nil {
			d.log = log
		}
	}
}

// WithFrameCounters records skipped frames into c.
func WithFrameCounters(c *observability.Counters) DecoderOption {
	return func(d *Decoder) {
		d.counters = c
	}
}

// NewDecoder creates a decoder reading from r.
func NewDecoder(r io.Reader, opts ...DecoderOption) *Decoder {
	d := &Decoder{
		r:   r,
		log: observability.NewNop(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Events returns the remaining frames as a sequence. The sequence stops
// after the first error.
func (d *Decoder) Events() iter.Seq2[*GenerateContentResponse, error] {
	return func(yield func(*GenerateContentResponse, error) bool) {
		for {
			resp, err := d.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(resp, err) || err != nil {
				return
			}
		}
	}
}

// Next returns the next frame, or io.EOF once the stream has ended.
// Errors are sticky: after one is returned every later call returns it too.
func (d *Decoder) Next() (*GenerateContentResponse, error) {
	if d.err != nil {
		return nil, d.err
	}
	for {
		line, ok, err := d.readLine()
		if err != nil {
			d.err = err
			return nil, err
		}
		if !ok {
			// End of input dispatches whatever data is still pending.
			resp, err := d.dispatch()
			if resp != nil || err != nil {
				return d.result(resp, err)
			}
			d.err = io.EOF
			return nil, io.EOF
		}

		if line != "" {
			d.field(line)
			continue
		}
		resp, err := d.dispatch()
		if resp != nil || err != nil {
			return d.result(resp, err)
		}
		if d.err != nil {
			return nil, d.err
		}
	}
}

func (d *Decoder) result(resp *GenerateContentResponse, err error) (*GenerateContentResponse, error) {
	if err != nil {
		d.err = err
		return nil, err
	}
	return resp, nil
}

// readLine returns the next complete line without its terminator. ok is
// false when the input is exhausted.
func (d *Decoder) readLine() (line string, ok bool, err error) {
	for {
		if i := bytes.IndexByte(d.residual, '\n'); i >= 0 {
			raw := d.residual[:i]
			d.residual = d.residual[i+1:]
			return d.checkLine(raw)
		}
		if d.eof {
			if len(d.residual) == 0 {
				return "", false, nil
			}
			raw := d.residual
			d.residual = nil
			return d.checkLine(raw)
		}
		if err := d.fill(); err != nil {
			return "", false, err
		}
	}
}

func (d *Decoder) checkLine(raw []byte) (string, bool, error) {
	raw = bytes.TrimSuffix(raw, []byte{'\r'})
	if !utf8.Valid(raw) {
		return "", false, gerrors.EncodingError("stream contains invalid UTF-8", nil).
			WithContext("payload", truncate(string(raw)))
	}
	return string(raw), true, nil
}

func (d *Decoder) fill() error {
	buf := make([]byte, readSize)
	n, err := d.r.Read(buf)
	if n > 0 {
		d.residual = append(d.residual, buf[:n]...)
	}
	switch {
	case err == nil:
		return nil
	case errors.Is(err, io.EOF):
		d.eof = true
		return nil
	default:
		return gerrors.NetworkError("read stream", err)
	}
}

// field interprets one non-blank SSE line.
func (d *Decoder) field(line string) {
	if strings.HasPrefix(line, ":") {
		return
	}
	name, value, found := strings.Cut(line, ":")
	if name != "data" {
		return
	}
	if found {
		value = strings.TrimPrefix(value, " ")
	}
	d.pending = append(d.pending, value)
}

// dispatch parses the pending data lines. It returns (nil, nil) when there
// was nothing to parse or the frame was skipped.
func (d *Decoder) dispatch() (*GenerateContentResponse, error) {
	if len(d.pending) == 0 {
		return nil, nil
	}
	payload := strings.Join(d.pending, "\n")
	d.pending = d.pending[:0]

	if strings.TrimSpace(payload) == "" {
		return nil, nil
	}
	if strings.TrimSpace(payload) == doneSentinel {
		d.err = io.EOF
		return nil, nil
	}

	var resp GenerateContentResponse
	if err := json.Unmarshal([]byte(payload), &resp); err != nil {
		derr := gerrors.DecodeError("malformed stream frame", err).
			WithContext("payload", truncate(payload))
		if d.skipMalformed {
			d.log.Warn("skipping malformed frame", observability.Err(derr))
			d.counters.RecordSkippedFrame()
			return nil, nil
		}
		return nil, derr
	}
	if resp.Error != nil {
		return nil, gerrors.APIError(resp.Error.Message, nil).
			WithContext("code", resp.Error.Code).
			WithContext("status", resp.Error.Status)
	}
	return &resp, nil
}

func truncate(s string) string {
	if len(s) <= maxPayloadContext {
		return s
	}
	return s[:maxPayloadContext] + "..."
}
