package framing

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

// feedChunks delivers chunks in order and collects the lines they produce.
func feedChunks(t *testing.T, b *Buffer, chunks ...string) []string {
	t.Helper()

	var lines []string

	for _, chunk := range chunks {
		for _, f := range b.Feed([]byte(chunk)) {
			require.False(t, f.Oversize, "unexpected oversize frame")

			lines = append(lines, string(f.Line))
		}
	}

	return lines
}

func TestFeed_SingleCompleteLine(t *testing.T) {
	b := NewBuffer(0)

	lines := feedChunks(t, b, `{"reply":"hi"}`+"\n")

	require.Equal(t, []string{`{"reply":"hi"}`}, lines)
	require.Equal(t, 0, b.Len())
}

func TestFeed_MultipleLinesInOneChunk(t *testing.T) {
	b := NewBuffer(0)

	lines := feedChunks(t, b, "{\"n\":1}\n{\"n\":2}\n{\"n\":3}\n")

	require.Equal(t, []string{`{"n":1}`, `{"n":2}`, `{"n":3}`}, lines)
}

func TestFeed_NoCompleteLine(t *testing.T) {
	b := NewBuffer(0)

	frames := b.Feed([]byte(`{"partial":`))

	require.Empty(t, frames)
	require.Equal(t, len(`{"partial":`), b.Len())
}

func TestFeed_SplitAcrossChunks(t *testing.T) {
	obj := map[string]any{
		"type": "reply",
		"text": strings.Repeat("x", 1000),
	}

	data, err := json.Marshal(obj)
	require.NoError(t, err)

	data = append(data, '\n')

	b := NewBuffer(0)
	lines := feedChunks(t, b, string(data[:100]), string(data[100:250]), string(data[250:]))

	require.Len(t, lines, 1)

	var got map[string]any

	require.NoError(t, json.Unmarshal([]byte(lines[0]), &got))
	require.Equal(t, "reply", got["type"])
}

func TestFeed_RetainsTrailingPartial(t *testing.T) {
	b := NewBuffer(0)

	lines := feedChunks(t, b, "{\"n\":1}\n{\"n\":", "2}\n")

	require.Equal(t, []string{`{"n":1}`, `{"n":2}`}, lines)
}

func TestFeed_DiscardsEmptyAndWhitespaceLines(t *testing.T) {
	b := NewBuffer(0)

	lines := feedChunks(t, b, "\n\n  \n{\"n\":1}\r\n\t\n  {\"n\":2}  \n")

	require.Equal(t, []string{`{"n":1}`, `{"n":2}`}, lines)
}

func TestFeed_EmbeddedEscapedNewlines(t *testing.T) {
	data, err := json.Marshal(map[string]any{"content": "Line 1\nLine 2"})
	require.NoError(t, err)

	b := NewBuffer(0)
	lines := feedChunks(t, b, string(data)+"\n")

	require.Len(t, lines, 1)
	require.Contains(t, lines[0], `Line 1\nLine 2`)
}

func TestFeed_ByteAtATime(t *testing.T) {
	input := "{\"a\":1}\n{\"b\":2}\n"
	chunks := make([]string, 0, len(input))

	for i := range len(input) {
		chunks = append(chunks, input[i:i+1])
	}

	b := NewBuffer(0)
	lines := feedChunks(t, b, chunks...)

	require.Equal(t, []string{`{"a":1}`, `{"b":2}`}, lines)
}

func TestFeed_DoesNotAliasInput(t *testing.T) {
	b := NewBuffer(0)
	chunk := []byte("{\"n\":1}\n")

	frames := b.Feed(chunk)
	require.Len(t, frames, 1)

	chunk[1] = 'X'

	require.Equal(t, `{"n":1}`, string(frames[0].Line))
}

func TestFeed_OversizeLineInSingleChunk(t *testing.T) {
	b := NewBuffer(16)

	frames := b.Feed([]byte(strings.Repeat("x", 40) + "\n{\"ok\":true}\n"))

	require.Len(t, frames, 2)
	require.True(t, frames[0].Oversize)
	require.Equal(t, 40, frames[0].Dropped)
	require.Equal(t, strings.Repeat("x", 40), string(frames[0].Prefix))
	require.False(t, frames[1].Oversize)
	require.Equal(t, `{"ok":true}`, string(frames[1].Line))
}

func TestFeed_OversizeLineAcrossChunks(t *testing.T) {
	b := NewBuffer(16)

	require.Empty(t, b.Feed([]byte(strings.Repeat("a", 10))))
	require.Empty(t, b.Feed([]byte(strings.Repeat("b", 10))))
	require.Equal(t, 0, b.Len(), "oversized data must not be retained")
	require.Empty(t, b.Feed([]byte(strings.Repeat("c", 10))))

	frames := b.Feed([]byte("ccc\n{\"n\":1}\n"))

	require.Len(t, frames, 2)
	require.True(t, frames[0].Oversize)
	require.Equal(t, 33, frames[0].Dropped)
	require.Equal(t, strings.Repeat("a", 10)+strings.Repeat("b", 10), string(frames[0].Prefix))
	require.Equal(t, `{"n":1}`, string(frames[1].Line))
}

func TestReset_DropsPartialLine(t *testing.T) {
	b := NewBuffer(0)

	require.Empty(t, b.Feed([]byte(`{"from":"old worker"`)))

	b.Reset()

	lines := feedChunks(t, b, "{\"from\":\"new worker\"}\n")
	require.Equal(t, []string{`{"from":"new worker"}`}, lines)
}
