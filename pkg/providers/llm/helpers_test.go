package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/voxloop-ai/voxloop-orchestrator/pkg/orchestrator"
)

// writeSSE streams each data line with a flush, mimicking a real
// chat-completions/streamGenerateContent response.
func writeSSE(w http.ResponseWriter, lines []string) {
	flusher, _ := w.(http.Flusher)
	w.Header().Set("Content-Type", "text/event-stream")
	for _, l := range lines {
		fmt.Fprintf(w, "data: %s\n\n", l)
		if flusher != nil {
			flusher.Flush()
		}
	}
}

// collectChunks drains an LLMChunk channel with a deadline so a broken
// provider never hangs the test suite.
func collectChunks(ch <-chan orchestrator.LLMChunk) ([]orchestrator.LLMChunk, error) {
	var chunks []orchestrator.LLMChunk
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for {
		select {
		case c, ok := <-ch:
			if !ok {
				return chunks, nil
			}
			if c.Err != nil {
				return chunks, c.Err
			}
			chunks = append(chunks, c)
		case <-ctx.Done():
			return chunks, ctx.Err()
		}
	}
}
