package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/voxloop-ai/voxloop-orchestrator/pkg/orchestrator"
)

func TestAnthropicLLM(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "test-key" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		var req struct {
			System string `json:"system,omitempty"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if req.System != "system instructions" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}

		writeSSE(w, []string{
			`{"type":"content_block_start","index":0,"content_block":{"type":"text"}}`,
			`{"type":"content_block_delta","index":0,"delta":{"type":"text_delta","text":"hello from anthropic"}}`,
			`{"type":"message_stop"}`,
		})
	}))
	defer server.Close()

	l := &AnthropicLLM{
		apiKey: "test-key",
		url:    server.URL,
		model:  "claude-3",
	}

	messages := []orchestrator.LLMMessage{
		{Role: "system", Content: "system instructions"},
		{Role: "user", Content: "hi"},
	}

	ch, err := l.Response(context.Background(), "sess", messages)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	chunks, err := collectChunks(ch)
	if err != nil {
		t.Fatalf("unexpected stream error: %v", err)
	}

	var got string
	for _, c := range chunks {
		got += c.Content
	}
	if got != "hello from anthropic" {
		t.Errorf("expected 'hello from anthropic', got '%s'", got)
	}
}
