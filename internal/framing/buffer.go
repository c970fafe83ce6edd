package framing

import "bytes"

const (
	// DefaultMaxLineBytes caps a single record, matching the stdout scanner
	// limit used for CLI transports.
	DefaultMaxLineBytes = 1024 * 1024 // 1MB

	// prefixBytes is how much of an oversized line is kept for diagnostics.
	prefixBytes = 256
)

// Frame is one record discovered in the stream.
type Frame struct {
	// Line is the trimmed record without its delimiter.
	Line []byte

	// Oversize is set when the record exceeded the line limit. Line is nil
	// and Prefix holds the first bytes that were seen.
	Oversize bool
	Prefix   []byte
	Dropped  int
}

// Buffer accumulates stream chunks until a newline delimiter is found.
//
// A Buffer is not safe for concurrent use.
type Buffer struct {
	buf     []byte
	maxLine int

	// discarding is true while skipping the remainder of an oversized line.
	discarding bool
	prefix     []byte
	dropped    int
}

// NewBuffer creates a buffer. A maxLine of zero or less uses DefaultMaxLineBytes.
func NewBuffer(maxLine int) *Buffer {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}

	return &Buffer{maxLine: maxLine}
}

// Feed appends chunk and returns every complete record it closes, in order.
// Any trailing partial line is retained for the next call. Empty lines are
// discarded.
func (b *Buffer) Feed(chunk []byte) []Frame {
	var frames []Frame

	for len(chunk) > 0 {
		idx := bytes.IndexByte(chunk, '\n')
		if idx < 0 {
			b.appendPartial(chunk)

			break
		}

		part := chunk[:idx]
		chunk = chunk[idx+1:]

		if b.discarding {
			b.dropped += len(part)
			frames = append(frames, Frame{Oversize: true, Prefix: b.prefix, Dropped: b.dropped})
			b.resetDiscard()

			continue
		}

		var line []byte
		if len(b.buf) == 0 {
			line = part
		} else {
			b.buf = append(b.buf, part...)
			line = b.buf
		}

		if len(line) > b.maxLine {
			frames = append(frames, Frame{Oversize: true, Prefix: clonePrefix(line), Dropped: len(line)})
			b.buf = b.buf[:0]

			continue
		}

		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			frames = append(frames, Frame{Line: bytes.Clone(line)})
		}

		b.buf = b.buf[:0]
	}

	return frames
}

// appendPartial stores an unterminated tail, switching to discard mode once
// the line limit is exceeded.
func (b *Buffer) appendPartial(chunk []byte) {
	if b.discarding {
		b.dropped += len(chunk)

		return
	}

	if len(b.buf)+len(chunk) > b.maxLine {
		b.buf = append(b.buf, chunk...)
		b.prefix = clonePrefix(b.buf)
		b.dropped = len(b.buf)
		b.discarding = true
		b.buf = nil

		return
	}

	b.buf = append(b.buf, chunk...)
}

func (b *Buffer) resetDiscard() {
	b.discarding = false
	b.prefix = nil
	b.dropped = 0
}

// Len returns the number of bytes currently held for an incomplete line.
func (b *Buffer) Len() int {
	return len(b.buf)
}

// Reset drops any partial line. It is used when the stream is replaced by
// a new worker process.
func (b *Buffer) Reset() {
	b.buf = nil
	b.resetDiscard()
}

func clonePrefix(line []byte) []byte {
	return bytes.Clone(line[:min(len(line), prefixBytes)])
}
