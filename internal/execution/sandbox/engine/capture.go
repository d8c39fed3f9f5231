package engine

import (
	"bytes"
	"strings"
)

// cappedBuffer keeps the first max bytes written and silently drops the rest,
// so a chatty child never blocks on a full pipe.
type cappedBuffer struct {
	buf       bytes.Buffer
	max       int64
	truncated bool
}

func newCappedBuffer(max int64) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (b *cappedBuffer) Write(p []byte) (int, error) {
	if b.max < 0 {
		return b.buf.Write(p)
	}
	remaining := b.max - int64(b.buf.Len())
	if remaining <= 0 {
		if len(p) > 0 {
			b.truncated = true
		}
		return len(p), nil
	}
	if int64(len(p)) > remaining {
		b.buf.Write(p[:remaining])
		b.truncated = true
		return len(p), nil
	}
	return b.buf.Write(p)
}

// String returns the captured bytes as text, replacing invalid UTF-8.
func (b *cappedBuffer) String() string {
	return strings.ToValidUTF8(b.buf.String(), "\uFFFD")
}

func (b *cappedBuffer) Truncated() bool {
	return b.truncated
}
