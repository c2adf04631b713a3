package provider

import (
	"time"

	"gridpilot/model"
)

const (
	streamChunkSize  = 24
	streamChunkDelay = 15 * time.Millisecond
)

// synthesizeStream chunks final text through the callback with a short
// delay between pieces, imitating incremental output for call paths that
// have none (the relay path). Purely a UX affordance: the caller's final
// content must come from the completion, never from the chunks.
func synthesizeStream(text string, cb model.StreamCallback) {
	if cb == nil || text == "" {
		return
	}
	for start := 0; start < len(text); start += streamChunkSize {
		end := start + streamChunkSize
		if end > len(text) {
			end = len(text)
		}
		cb(text[start:end])
		if end < len(text) {
			time.Sleep(streamChunkDelay)
		}
	}
}
