package session

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/jhideki/gemini-cli/pkg/errors"
)

func TestFilePrefix(t *testing.T) {
	tests := []struct {
		prompt string
		want   string
	}{
		{"say hi in python", "sayhiinpython"},
		{"   ", "response"},
		{"", "response"},
		{"write a very long prompt that exceeds the limit", "writeaverylongprompt"},
		{"../../etc/passwd", ".._.._etc_passwd"},
		{"naïve café", "na_vecaf_"},
		{"file_name-v1.2", "file_name-v1.2"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FilePrefix(tt.prompt), "prompt %q", tt.prompt)
	}
}

func TestExpandFileRefs(t *testing.T) {
	dir := t.TempDir()
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")
	require.NoError(t, os.WriteFile(a, []byte("AAA\n"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("BBB"), 0o644))

	got, err := ExpandFileRefs("explain <" + a + "> and <" + b + ">")
	require.NoError(t, err)
	assert.Equal(t, "explain <"+a+"> and <"+b+">\nAAA\nBBB", got)

	got, err = ExpandFileRefs("is 1 < 2 and 3 > 2?")
	require.NoError(t, err)
	assert.Equal(t, "is 1 < 2 and 3 > 2?", got)

	got, err = ExpandFileRefs("no refs <> here")
	require.NoError(t, err)
	assert.Equal(t, "no refs <> here", got)
}

func TestExpandFileRefsMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing.go")
	prompt := "look at <" + missing + ">"

	got, err := ExpandFileRefs(prompt)
	require.Error(t, err)
	assert.True(t, gerrors.IsType(err, gerrors.ErrFileIO))
	assert.Equal(t, prompt, got)
}

func TestAppendFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "main.go")
	require.NoError(t, os.WriteFile(path, []byte("package main\n"), 0o644))

	got, err := AppendFile("", path)
	require.NoError(t, err)
	assert.Equal(t, "package main\n", got)

	got, err = AppendFile("review this", path)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(got, "review this\npackage main"))
}
