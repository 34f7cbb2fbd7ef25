// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");

package session

import (
	"os"
	"strings"
	"unicode"

	gerrors "github.com/jhideki/gemini-cli/pkg/errors"
)

// AppendFile appends the contents of the file at path to prompt.
func AppendFile(prompt, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return prompt, gerrors.FileIOError("read prompt file", err).WithContext("path", path)
	}
	if prompt == "" {
		return string(data), nil
	}
	if !strings.HasSuffix(prompt, "\n") {
		prompt += "\n"
	}
	return prompt + string(data), nil
}

// ExpandFileRefs appends the contents of every file referenced as <path>
// in prompt. References containing whitespace are left alone. On error the
// prompt is returned with the files read so far.
func ExpandFileRefs(prompt string) (string, error) {
	out := prompt
	rest := prompt
	for {
		start := strings.IndexByte(rest, '<')
		if start < 0 {
			return out, nil
		}
		end := strings.IndexByte(rest[start+1:], '>')
		if end < 0 {
			return out, nil
		}
		path := rest[start+1 : start+1+end]
		rest = rest[start+1+end+1:]

		if path == "" || strings.ContainsFunc(path, unicode.IsSpace) {
			continue
		}
		expanded, err := AppendFile(out, path)
		if err != nil {
			return out, err
		}
		out = expanded
	}
}

