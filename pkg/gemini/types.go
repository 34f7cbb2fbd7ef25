// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package gemini

import "strings"

// Request types for the generativelanguage v1beta API

// Part is one piece of a Content.
type Part struct {
	Text string `json:"text"`
}

// Content is a role-tagged list of parts.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// GenerateContentRequest is the body of generateContent and
// streamGenerateContent.
type GenerateContentRequest struct {
	Contents []Content `json:"contents"`
}

// Response types

// SafetyRating is a per-category safety assessment.
type SafetyRating struct {
	Category    string `json:"category"`
	Probability string `json:"probability"`
}

// Candidate is one generated reply.
type Candidate struct {
	Content       *Content       `json:"content,omitempty"`
	FinishReason  string         `json:"finishReason,omitempty"`
	Index         int            `json:"index"`
	SafetyRatings []SafetyRating `json:"safetyRatings,omitempty"`
}

// PromptFeedback is returned when the prompt itself was blocked.
type PromptFeedback struct {
	BlockReason   string         `json:"blockReason,omitempty"`
	SafetyRatings []SafetyRating `json:"safetyRatings,omitempty"`
}

// APIError is the error object the API returns in place of candidates.
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Status  string `json:"status"`
}

// GenerateContentResponse is a full response or a single stream frame.
type GenerateContentResponse struct {
	Candidates     []Candidate     `json:"candidates"`
	PromptFeedback *PromptFeedback `json:"promptFeedback,omitempty"`
	Error          *APIError       `json:"error,omitempty"`
}

// Finish reasons that mean the candidate was withheld.
var blockedFinishReasons = map[string]bool{
	"SAFETY":             true,
	"RECITATION":         true,
	"BLOCKLIST":          true,
	"PROHIBITED_CONTENT": true,
	"SPII":               true,
}

// Blocked reports whether the finish reason marks a withheld candidate.
func (c Candidate) Blocked() bool {
	return blockedFinishReasons[c.FinishReason]
}

// Text joins the text of every part. The second result is false when the
// candidate carries no content.
func (c Candidate) Text() (string, bool) {
	if c.Content == nil || len(c.Content.Parts) == 0 {
		return "", false
	}
	if len(c.Content.Parts) == 1 {
		return c.Content.Parts[0].Text, true
	}
	var sb strings.Builder
	for _, p := range c.Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String(), true
}

// Model describes an available model.
type Model struct {
	Name                       string   `json:"name"`
	Version                    string   `json:"version"`
	DisplayName                string   `json:"displayName"`
	Description                string   `json:"description"`
	InputTokenLimit            int      `json:"inputTokenLimit"`
	OutputTokenLimit           int      `json:"outputTokenLimit"`
	SupportedGenerationMethods []string `json:"supportedGenerationMethods"`
}

// ModelList is the response of the models endpoint.
type ModelList struct {
	Models        []Model `json:"models"`
	NextPageToken string  `json:"nextPageToken,omitempty"`
}
