// Copyright 2026 gemini-cli authors. All rights reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.

package fence

import "strings"

// FallbackExtension is used for empty or unrecognized language tags.
const FallbackExtension = "md"

var extensions = map[string]string{
	"python":     "py",
	"javascript": "js",
	"typescript": "ts",
	"jsx":        "jsx",
	"tsx":        "tsx",
	"java":       "java",
	"c":          "c",
	"c++":        "cpp",
	"c#":         "cs",
	"html":       "html",
	"css":        "css",
	"go":         "go",
	"rust":       "rs",
	"php":        "php",
	"ruby":       "rb",
	"swift":      "swift",
	"kotlin":     "kt",
}

// NormalizeTag trims and lowercases a fence language tag.
func NormalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// Lookup returns the extension registered for tag.
func Lookup(tag string) (string, bool) {
	ext, ok := extensions[NormalizeTag(tag)]
	return ext, ok
}

// ResolveExtension maps a language tag to a file extension, falling back to
// FallbackExtension.
func ResolveExtension(tag string) string {
	if ext, ok := Lookup(tag); ok {
		return ext
	}
	return FallbackExtension
}

// Tags returns the known language tags.
func Tags() []string {
	tags := make([]string, 0, len(extensions))
	for tag := range extensions {
		tags = append(tags, tag)
	}
	return tags
}
