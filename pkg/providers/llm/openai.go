package llm

import (
	"context"

	"github.com/voxloop-ai/voxloop-orchestrator/pkg/orchestrator"
)

type OpenAILLM struct {
	apiKey string
	url    string
	model  string
}

func NewOpenAILLM(apiKey string, model string) *OpenAILLM {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAILLM{
		apiKey: apiKey,
		url:    "https://api.openai.com/v1/chat/completions",
		model:  model,
	}
}

func (l *OpenAILLM) Response(ctx context.Context, sessionID string, messages []orchestrator.LLMMessage) (<-chan orchestrator.LLMChunk, error) {
	return streamOpenAICompat(ctx, l.url, l.apiKey, l.model, messages, nil)
}

func (l *OpenAILLM) ResponseWithFunctions(ctx context.Context, sessionID string, messages []orchestrator.LLMMessage, functions []orchestrator.FunctionSpec) (<-chan orchestrator.LLMChunk, error) {
	return streamOpenAICompat(ctx, l.url, l.apiKey, l.model, messages, functions)
}

func (l *OpenAILLM) Name() string {
	return "openai-llm"
}
