// Package stream normalizes heterogeneous incremental wire formats
// (SSE-framed JSON, newline-delimited JSON, vendor-specific event
// vocabularies) into the canonical llm.StreamEvent sequence.
//
// One Normalizer instance exclusively owns one underlying byte stream and
// is never reused across requests. The package separates line framing
// (LineReader) from event-semantic decoding (Normalizer) so the same
// logical byte stream produces identical output no matter how the
// transport splits it into chunks.
package stream

import "bytes"

// LineReader yields complete lines from a byte sequence fed in arbitrary
// chunks. A line is complete once its trailing '\n' has arrived; carriage
// returns are stripped. Bytes after the last newline stay buffered until
// more input arrives or Flush is called.
type LineReader struct {
	buf []byte
}

// Feed appends a chunk to the internal buffer.
func (r *LineReader) Feed(p []byte) {
	r.buf = append(r.buf, p...)
}

// Next returns the next complete line, without its line ending.
// It returns ok=false when no complete line is buffered.
func (r *LineReader) Next() (line []byte, ok bool) {
	i := bytes.IndexByte(r.buf, '\n')
	if i < 0 {
		return nil, false
	}
	line = bytes.TrimSuffix(r.buf[:i], []byte("\r"))
	r.buf = r.buf[i+1:]
	return line, true
}

// Flush returns any trailing partial line left in the buffer. Call it once
// the underlying stream has closed; some providers omit the final newline.
func (r *LineReader) Flush() (line []byte, ok bool) {
	if len(r.buf) == 0 {
		return nil, false
	}
	line = bytes.TrimSuffix(r.buf, []byte("\r"))
	r.buf = nil
	return line, true
}
