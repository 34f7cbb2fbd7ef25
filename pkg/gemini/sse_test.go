package gemini

import (
	"encoding/json"
	"io"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	gerrors "github.com/jhideki/gemini-cli/pkg/errors"
	"github.com/jhideki/gemini-cli/pkg/observability"
)

// chunkReader returns at most n bytes per Read.
type chunkReader struct {
	data []byte
	n    int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, io.EOF
	}
	n := min(r.n, len(p), len(r.data))
	copy(p, r.data[:n])
	r.data = r.data[n:]
	return n, nil
}

func frame(t *testing.T, text string) string {
	t.Helper()
	resp := GenerateContentResponse{Candidates: []Candidate{{
		Content: &Content{Role: "model", Parts: []Part{{Text: text}}},
	}}}
	data, err := json.Marshal(resp)
	require.NoError(t, err)
	return "data: " + string(data) + "\n\n"
}

func collect(d *Decoder) (texts []string, err error) {
	for resp, e := range d.Events() {
		if e != nil {
			return texts, e
		}
		text, _ := resp.Candidates[0].Text()
		texts = append(texts, text)
	}
	return texts, nil
}

func TestDecoderReassemblesSplitFrames(t *testing.T) {
	stream := frame(t, "Hello, ") + frame(t, "wörld ✓\n```go\n") + frame(t, "fmt.Println()\n```")
	want := []string{"Hello, ", "wörld ✓\n```go\n", "fmt.Println()\n```"}

	for size := 1; size <= len(stream); size++ {
		d := NewDecoder(&chunkReader{data: []byte(stream), n: size})
		texts, err := collect(d)
		require.NoError(t, err, "chunk size %d", size)
		require.Equal(t, want, texts, "chunk size %d", size)
	}
}

func TestDecoderIgnoresNonDataLines(t *testing.T) {
	stream := ": keep-alive\n\n" +
		"event: message\nid: 7\nretry: 100\n" + frame(t, "one") +
		"\n\n\n" +
		"data:" + `{"candidates":[{"content":{"parts":[{"text":"two"}]}}]}` + "\n\n"

	texts, err := collect(NewDecoder(strings.NewReader(stream)))
	require.NoError(t, err)
	assert.Equal(t, []string{"one", "two"}, texts)
}

func TestDecoderDispatchesPendingDataAtEOF(t *testing.T) {
	stream := frame(t, "a") + `data: {"candidates":[{"content":{"parts":[{"text":"b"}]}}]}`

	texts, err := collect(NewDecoder(strings.NewReader(stream)))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, texts)
}

func TestDecoderJoinsMultilineData(t *testing.T) {
	stream := "data: {\"candidates\":\ndata: [{\"content\":{\"parts\":[{\"text\":\"x\"}]}}]}\n\n"

	texts, err := collect(NewDecoder(strings.NewReader(stream)))
	require.NoError(t, err)
	assert.Equal(t, []string{"x"}, texts)
}

func TestDecoderCRLF(t *testing.T) {
	stream := strings.ReplaceAll(frame(t, "a")+frame(t, "b"), "\n", "\r\n")

	texts, err := collect(NewDecoder(&chunkReader{data: []byte(stream), n: 3}))
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, texts)
}

func TestDecoderDoneSentinel(t *testing.T) {
	stream := frame(t, "a") + "data: [DONE]\n\n" + frame(t, "never")

	d := NewDecoder(strings.NewReader(stream))
	texts, err := collect(d)
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, texts)

	_, err = d.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestDecoderAbortsOnMalformedFrame(t *testing.T) {
	stream := frame(t, "1") + frame(t, "2") + "data: {not json\n\n" + frame(t, "4") + frame(t, "5")

	d := NewDecoder(strings.NewReader(stream))
	texts, err := collect(d)
	assert.Equal(t, []string{"1", "2"}, texts)
	require.Error(t, err)
	assert.True(t, gerrors.IsType(err, gerrors.ErrDecode))
	payload, ok := gerrors.ContextValue(err, "payload")
	require.True(t, ok)
	assert.Equal(t, "{not json", payload)

	_, again := d.Next()
	assert.Equal(t, err, again, "errors are sticky")
}

func TestDecoderSkipsMalformedFrameWhenConfigured(t *testing.T) {
	stream := frame(t, "1") + "data: {not json\n\n" + frame(t, "3")
	counters := observability.NewCounters()

	d := NewDecoder(strings.NewReader(stream),
		WithSkipMalformed(observability.NewNop()),
		WithFrameCounters(counters))
	texts, err := collect(d)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3"}, texts)
	assert.Equal(t, int64(1), counters.Snapshot().SkippedFrames)
}

func TestDecoderRejectsInvalidUTF8(t *testing.T) {
	stream := frame(t, "ok") + "data: {\"candidates\":[]}\xff\n\n"

	texts, err := collect(NewDecoder(strings.NewReader(stream)))
	assert.Equal(t, []string{"ok"}, texts)
	assert.True(t, gerrors.IsType(err, gerrors.ErrEncoding), "got %v", err)
}

func TestDecoderAPIErrorFrame(t *testing.T) {
	stream := `data: {"error":{"code":429,"message":"quota exceeded","status":"RESOURCE_EXHAUSTED"}}` + "\n\n"

	_, err := collect(NewDecoder(strings.NewReader(stream)))
	require.Error(t, err)
	assert.True(t, gerrors.IsType(err, gerrors.ErrAPI))
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestDecoderReadErrorIsNetworkError(t *testing.T) {
	r := io.MultiReader(strings.NewReader(frame(t, "a")), iotest.ErrReader(io.ErrUnexpectedEOF))

	texts, err := collect(NewDecoder(r))
	assert.Equal(t, []string{"a"}, texts)
	assert.True(t, gerrors.IsType(err, gerrors.ErrNetwork))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestDecoderEmptyStream(t *testing.T) {
	texts, err := collect(NewDecoder(strings.NewReader("")))
	assert.NoError(t, err)
	assert.Empty(t, texts)
}

func TestCandidateText(t *testing.T) {
	tests := []struct {
		name   string
		c      Candidate
		want   string
		wantOK bool
	}{
		{"no content", Candidate{FinishReason: "SAFETY"}, "", false},
		{"no parts", Candidate{Content: &Content{}}, "", false},
		{"one part", Candidate{Content: &Content{Parts: []Part{{Text: "a"}}}}, "a", true},
		{"joined", Candidate{Content: &Content{Parts: []Part{{Text: "a"}, {Text: "b"}}}}, "ab", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.c.Text()
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.wantOK, ok)
		})
	}
	assert.True(t, Candidate{FinishReason: "SAFETY"}.Blocked())
	assert.False(t, Candidate{FinishReason: "STOP"}.Blocked())
}
