// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package gemini is a client for the Gemini generateContent API.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strings"
	"time"

	gerrors "github.com/jhideki/gemini-cli/pkg/errors"
	"github.com/jhideki/gemini-cli/pkg/observability"
)

const (
	// DefaultBaseURL is the public v1beta endpoint.
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"
	// DefaultModel is used when no model is configured.
	DefaultModel = "gemini-2.0-flash"
	// DefaultTimeout bounds non-streaming calls.
	DefaultTimeout = 2 * time.Minute

	maxErrorBody = 64 * 1024
)

// Client talks to the Gemini API.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	timeout    time.Duration
	httpClient *http.Client
	log        observability.Logger
	decodeOpts []DecoderOption
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithTimeout bounds GenerateContent and ListModels. Streaming calls are
// bounded only by their context.
func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithLogger sets the client logger.
func WithLogger(l observability.Logger) ClientOption {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// WithDecoderOptions passes options to every stream decoder.
func WithDecoderOptions(opts ...DecoderOption) ClientOption {
	return func(c *Client) {
		c.decodeOpts = append(c.decodeOpts, opts...)
	}
}

// NewClient creates a client. Empty baseURL and model select the defaults.
func NewClient(baseURL, apiKey, model string, opts ...ClientOption) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		model:      strings.TrimPrefix(model, "models/"),
		timeout:    DefaultTimeout,
		httpClient: &http.Client{},
		log:        observability.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Model returns the model name used for generation.
func (c *Client) Model() string {
	return c.model
}

// Stream is an open streaming response.
type Stream struct {
	body    io.ReadCloser
	decoder *Decoder
}

// NewStream wraps an SSE body. StreamGenerateContent uses it for live
// responses; it also lets callers replay a recorded stream.
func NewStream(body io.ReadCloser, opts ...DecoderOption) *Stream {
	return &Stream{body: body, decoder: NewDecoder(body, opts...)}
}

// Events returns the decoded frames. See Decoder.Events.
func (s *Stream) Events() iter.Seq2[*GenerateContentResponse, error] {
	return s.decoder.Events()
}

// Close releases the response body.
func (s *Stream) Close() error {
	return s.body.Close()
}

// StreamGenerateContent starts a streaming generation. The caller must
// Close the returned stream.
func (c *Client) StreamGenerateContent(ctx context.Context, req *GenerateContentRequest) (*Stream, error) {
	endpoint := c.endpoint(fmt.Sprintf("models/%s:streamGenerateContent", c.model), url.Values{"alt": {"sse"}})
	resp, err := c.post(ctx, endpoint, req, "text/event-stream")
	if err != nil {
		return nil, err
	}
	c.log.Debug("stream opened", observability.String("model", c.model))
	return NewStream(resp.Body, c.decodeOpts...), nil
}

// GenerateContent performs a single non-streaming generation.
func (c *Client) GenerateContent(ctx context.Context, req *GenerateContentRequest) (*GenerateContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	endpoint := c.endpoint(fmt.Sprintf("models/%s:generateContent", c.model), nil)
	resp, err := c.post(ctx, endpoint, req, "application/json")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, gerrors.NetworkError("read response", err)
	}
	var out GenerateContentResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, gerrors.DecodeError("malformed response", err).
			WithContext("payload", truncate(string(body)))
	}
	if out.Error != nil {
		return nil, gerrors.APIError(out.Error.Message, nil).
			WithContext("code", out.Error.Code).
			WithContext("status", out.Error.Status)
	}
	return &out, nil
}

// ListModels returns every model visible to the API key, following
// pagination.
func (c *Client) ListModels(ctx context.Context) ([]Model, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var models []Model
	pageToken := ""
	for {
		q := url.Values{}
		if pageToken != "" {
			q.Set("pageToken", pageToken)
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint("models", q), nil)
		if err != nil {
			return nil, gerrors.ValidationError("build request", err)
		}
		resp, err := c.do(req)
		if err != nil {
			return nil, err
		}

		var page ModelList
		err = json.NewDecoder(resp.Body).Decode(&page)
		resp.Body.Close()
		if err != nil {
			return nil, gerrors.DecodeError("malformed model list", err)
		}
		models = append(models, page.Models...)
		if page.NextPageToken == "" {
			return models, nil
		}
		pageToken = page.NextPageToken
	}
}

func (c *Client) endpoint(path string, q url.Values) string {
	if q == nil {
		q = url.Values{}
	}
	q.Set("key", c.apiKey)
	return c.baseURL + "/" + path + "?" + q.Encode()
}

func (c *Client) post(ctx context.Context, endpoint string, body *GenerateContentRequest, accept string) (*http.Response, error) {
	data, err := json.Marshal(body)
	if err != nil {
		return nil, gerrors.ValidationError("marshal request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return nil, gerrors.ValidationError("build request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", accept)
	return c.do(req)
}

// do sends req and turns transport failures and non-200 answers into
// typed errors. On success the caller owns the body.
func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) {
			ue.URL = redact(req.URL)
		}
		return nil, gerrors.NetworkError("request failed", err).
			WithContext("url", redact(req.URL))
	}
	c.log.Debug("api response",
		observability.String("url", redact(req.URL)),
		observability.Int("status", resp.StatusCode),
		observability.Duration("elapsed", time.Since(start)))

	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, statusError(resp.StatusCode, body)
	}
	return resp, nil
}

func statusError(status int, body []byte) error {
	msg := strings.TrimSpace(string(body))
	var wrapped GenerateContentResponse
	if json.Unmarshal(body, &wrapped) == nil && wrapped.Error != nil && wrapped.Error.Message != "" {
		msg = wrapped.Error.Message
	}
	if msg == "" {
		msg = http.StatusText(status)
	}
	return gerrors.APIError(fmt.Sprintf("API request failed with status %d: %s", status, msg), nil).
		WithContext("status", status)
}

// redact hides the API key in logged URLs.
func redact(u *url.URL) string {
	c := *u
	q := c.Query()
	if q.Has("key") {
		q.Set("key", "REDACTED")
		c.RawQuery = q.Encode()
	}
	return c.String()
}
