package llm

import (
	"context"

	"github.com/voxloop-ai/voxloop-orchestrator/pkg/orchestrator"
)

// GroqLLM speaks the same OpenAI-compatible chat-completions streaming
// format as OpenAILLM, pointed at Groq's endpoint (spec §6 "LLM
// contract" supplement, grounded on the pack's groq_test.go fixture).
type GroqLLM struct {
	apiKey string
	url    string
	model  string
}

func NewGroqLLM(apiKey string, model string) *GroqLLM {
	if model == "" {
		model = "llama3-70b-8192"
	}
	return &GroqLLM{
		apiKey: apiKey,
		url:    "https://api.groq.com/openai/v1/chat/completions",
		model:  model,
	}
}

func (l *GroqLLM) Response(ctx context.Context, sessionID string, messages []orchestrator.LLMMessage) (<-chan orchestrator.LLMChunk, error) {
	return streamOpenAICompat(ctx, l.url, l.apiKey, l.model, messages, nil)
}

func (l *GroqLLM) ResponseWithFunctions(ctx context.Context, sessionID string, messages []orchestrator.LLMMessage, functions []orchestrator.FunctionSpec) (<-chan orchestrator.LLMChunk, error) {
	return streamOpenAICompat(ctx, l.url, l.apiKey, l.model, messages, functions)
}

func (l *GroqLLM) Name() string {
	return "groq-llm"
}
