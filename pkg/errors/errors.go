// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

// Package errors provides typed errors for gemini-cli
package errors

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrorType represents the category of error
type ErrorType int

const (
	// ErrConfig indicates a configuration error
	ErrConfig ErrorType = iota
	// ErrNetwork indicates a connection or transport failure
	ErrNetwork
	// ErrAPI indicates the API answered with an error status or error object
	ErrAPI
	// ErrEncoding indicates the response stream was not valid UTF-8
	ErrEncoding
	// ErrDecode indicates a frame could not be parsed as JSON
	ErrDecode
	// ErrFileIO indicates a write or delete failure on a code block file
	ErrFileIO
	// ErrValidation indicates an input validation error
	ErrValidation
)

// Error is the base error type for all gemini-cli errors
type Error struct {
	Type    ErrorType
	Message string
	Cause   error
	Context map[string]interface{}
}

// Error returns the error message
func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", errorTypeString(e.Type), e.Message)
	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			if k == "payload" {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Fprintf(&b, " %s=%v", k, e.Context[k])
		}
	}
	if e.Cause != nil {
		fmt.Fprintf(&b, ": %v", e.Cause)
	}
	return b.String()
}

// Unwrap returns the underlying cause
func (e *Error) Unwrap() error {
	return e.Cause
}

// New creates a new Error
func New(errType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errType,
		Message: message,
		Cause:   cause,
		Context: make(map[string]interface{}),
	}
}

// WithContext adds context to the error
func (e *Error) WithContext(key string, value interface{}) *Error {
	e.Context[key] = value
	return e
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	var typed *Error
	if err == nil {
		return false
	}
	if errors.As(err, &typed) {
		return typed.Type == errType
	}
	return false
}

// ContextValue returns a context value from the first typed error in err's chain.
func ContextValue(err error, key string) (interface{}, bool) {
	var typed *Error
	if !errors.As(err, &typed) {
		return nil, false
	}
	v, ok := typed.Context[key]
	return v, ok
}

func errorTypeString(et ErrorType) string {
	switch et {
	case ErrConfig:
		return "CONFIG"
	case ErrNetwork:
		return "NETWORK"
	case ErrAPI:
		return "API"
	case ErrEncoding:
		return "ENCODING"
	case ErrDecode:
		return "DECODE"
	case ErrFileIO:
		return "FILE_IO"
	case ErrValidation:
		return "VALIDATION"
	default:
		return "UNKNOWN"
	}
}

// Convenience functions for common errors

// ConfigError creates a configuration error
func ConfigError(message string, cause error) *Error {
	return New(ErrConfig, message, cause)
}

// NetworkError creates a transport error
func NetworkError(message string, cause error) *Error {
	return New(ErrNetwork, message, cause)
}

// APIError creates an API error
func APIError(message string, cause error) *Error {
	return New(ErrAPI, message, cause)
}

// EncodingError creates a stream encoding error
func EncodingError(message string, cause error) *Error {
	return New(ErrEncoding, message, cause)
}

// DecodeError creates a frame decode error
func DecodeError(message string, cause error) *Error {
	return New(ErrDecode, message, cause)
}

// FileIOError creates a file persistence error
func FileIOError(message string, cause error) *Error {
	return New(ErrFileIO, message, cause)
}

// ValidationError creates a validation error
func ValidationError(message string, cause error) *Error {
	return New(ErrValidation, message, cause)
}
