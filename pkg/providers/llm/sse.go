// Package llm implements the streaming LLM provider adapters (spec
// §4.5, §6 "LLM contract").
package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/voxloop-ai/voxloop-orchestrator/pkg/orchestrator"
)

// openAICompatTool mirrors the OpenAI function-calling tool shape,
// shared by providers speaking the OpenAI chat-completions wire format
// (OpenAI itself, Groq).
type openAICompatTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string          `json:"name"`
		Description string          `json:"description,omitempty"`
		Parameters  json.RawMessage `json:"parameters,omitempty"`
	} `json:"function"`
}

func toolsFromSpecs(functions []orchestrator.FunctionSpec) []openAICompatTool {
	if len(functions) == 0 {
		return nil
	}
	tools := make([]openAICompatTool, len(functions))
	for i, f := range functions {
		tools[i].Type = "function"
		tools[i].Function.Name = f.Name
		tools[i].Function.Description = f.Description
		tools[i].Function.Parameters = f.Parameters
	}
	return tools
}

type openAIStreamDelta struct {
	Content   string `json:"content,omitempty"`
	ToolCalls []struct {
		Index    int    `json:"index"`
		ID       string `json:"id,omitempty"`
		Function struct {
			Name      string `json:"name,omitempty"`
			Arguments string `json:"arguments,omitempty"`
		} `json:"function"`
	} `json:"tool_calls,omitempty"`
}

type openAIStreamChunk struct {
	Choices []struct {
		Delta openAIStreamDelta `json:"delta"`
	} `json:"choices"`
}

// streamOpenAICompat POSTs a streaming chat-completions request and
// translates server-sent-event "data: {...}" lines into LLMChunk
// values, matching the wire format OpenAI and Groq both speak.
func streamOpenAICompat(ctx context.Context, url, apiKey, model string, messages []orchestrator.LLMMessage, functions []orchestrator.FunctionSpec) (<-chan orchestrator.LLMChunk, error) {
	payload := map[string]interface{}{
		"model":    model,
		"messages": messages,
		"stream":   true,
	}
	if tools := toolsFromSpecs(functions); tools != nil {
		payload["tools"] = tools
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("llm error (status %d): %v", resp.StatusCode, errResp)
	}

	out := make(chan orchestrator.LLMChunk)
	go func() {
		defer resp.Body.Close()
		defer close(out)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Text()
			line = strings.TrimPrefix(line, "data: ")
			if line == "" {
				continue
			}
			if line == "[DONE]" {
				return
			}

			var chunk openAIStreamChunk
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				continue
			}
			if len(chunk.Choices) == 0 {
				continue
			}
			delta := chunk.Choices[0].Delta

			var toolDeltas []orchestrator.ToolCallDelta
			for _, tc := range delta.ToolCalls {
				toolDeltas = append(toolDeltas, orchestrator.ToolCallDelta{
					Index:     tc.Index,
					ID:        tc.ID,
					Name:      tc.Function.Name,
					Arguments: tc.Function.Arguments,
				})
			}

			if delta.Content == "" && len(toolDeltas) == 0 {
				continue
			}

			select {
			case out <- orchestrator.LLMChunk{Content: delta.Content, ToolCallDeltas: toolDeltas}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			select {
			case out <- orchestrator.LLMChunk{Err: err}:
			case <-ctx.Done():
			}
		}
	}()

	return out, nil
}
