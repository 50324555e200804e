package supervisor

import (
	"github.com/sentinel-dev/sentinel-core/internal/ringlog"
)

// framer turns a raw byte stream from a PTY into complete lines. A line
// ends at '\n'; a standalone '\r' not immediately followed by '\n' also
// ends a line, so carriage-return progress bars collapse to one entry
// instead of never terminating. A line that grows past maxLine before a
// terminator is flushed early with a truncation marker, and the
// remainder up to the next terminator is discarded so the oversized
// input never reappears as a second, garbage line.
type framer struct {
	buf       []byte
	maxLine   int
	pendingCR bool
	skipping  bool
}

func newFramer(maxLine int) *framer {
	if maxLine <= 0 {
		maxLine = ringlog.MaxLineBytes
	}
	return &framer{maxLine: maxLine}
}

// feed processes data and returns zero or more completed, terminator-free
// line contents, in order. The returned slices are only valid until the
// next call to feed.
func (f *framer) feed(data []byte) [][]byte {
	var out [][]byte
	for _, b := range data {
		if f.pendingCR {
			f.pendingCR = false
			if b == '\n' {
				out = append(out, f.takeLine())
				continue
			}
			out = append(out, f.takeLine())
			// b itself still needs processing below; fall through.
		}

		if f.skipping {
			if b == '\n' {
				f.skipping = false
			} else if b == '\r' {
				f.skipping = false
				f.pendingCR = true
			}
			continue
		}

		switch b {
		case '\n':
			out = append(out, f.takeLine())
		case '\r':
			f.pendingCR = true
		default:
			f.buf = append(f.buf, b)
			if len(f.buf) > f.maxLine {
				out = append(out, f.flushEarly())
			}
		}
	}
	return out
}

func (f *framer) takeLine() []byte {
	line := make([]byte, len(f.buf))
	copy(line, f.buf)
	f.buf = f.buf[:0]
	return line
}

func (f *framer) flushEarly() []byte {
	reserve := len(ringlog.TruncationMarker)
	limit := f.maxLine - reserve
	if limit < 0 {
		limit = 0
	}
	content := ringlog.TruncateAtRuneBoundary(string(f.buf), limit)
	f.buf = f.buf[:0]
	f.skipping = true
	return append([]byte(content), ringlog.TruncationMarker...)
}
