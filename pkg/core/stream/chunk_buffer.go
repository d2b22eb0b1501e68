package stream

import "strings"

// chunkFlushThreshold is the buffered size past which a partial model
// response is published as a thinking event.
const chunkFlushThreshold = 100

// ChunkBuffer accumulates streamed model output and flushes it in readable
// pieces: whenever the buffer exceeds the threshold or a chunk ends in a
// newline. The flush callback receives the buffered text.
type ChunkBuffer struct {
	flush func(text string)
	buf   strings.Builder
}

func NewChunkBuffer(flush func(text string)) *ChunkBuffer {
	return &ChunkBuffer{flush: flush}
}

// Write appends one streamed chunk, flushing when the boundary rules fire.
func (b *ChunkBuffer) Write(chunk string) {
	b.buf.WriteString(chunk)
	if b.buf.Len() > chunkFlushThreshold || strings.HasSuffix(chunk, "\n") {
		b.Flush()
	}
}

// Flush publishes any buffered text and resets the buffer.
func (b *ChunkBuffer) Flush() {
	if b.buf.Len() == 0 {
		return
	}
	b.flush(b.buf.String())
	b.buf.Reset()
}
