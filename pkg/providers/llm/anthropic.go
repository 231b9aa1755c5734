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

type AnthropicLLM struct {
	apiKey string
	url    string
	model  string
}

func NewAnthropicLLM(apiKey string, model string) *AnthropicLLM {
	if model == "" {
		model = "claude-3-5-sonnet-20240620"
	}
	return &AnthropicLLM{
		apiKey: apiKey,
		url:    "https://api.anthropic.com/v1/messages",
		model:  model,
	}
}

func (l *AnthropicLLM) Response(ctx context.Context, sessionID string, messages []orchestrator.LLMMessage) (<-chan orchestrator.LLMChunk, error) {
	return l.stream(ctx, messages, nil)
}

func (l *AnthropicLLM) ResponseWithFunctions(ctx context.Context, sessionID string, messages []orchestrator.LLMMessage, functions []orchestrator.FunctionSpec) (<-chan orchestrator.LLMChunk, error) {
	return l.stream(ctx, messages, functions)
}

type anthropicTool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"input_schema,omitempty"`
}

func (l *AnthropicLLM) stream(ctx context.Context, messages []orchestrator.LLMMessage, functions []orchestrator.FunctionSpec) (<-chan orchestrator.LLMChunk, error) {
	var system string
	var anthropicMessages []map[string]string

	for _, msg := range messages {
		if msg.Role == "system" {
			system = msg.Content
			continue
		}
		anthropicMessages = append(anthropicMessages, map[string]string{
			"role":    msg.Role,
			"content": msg.Content,
		})
	}

	payload := map[string]interface{}{
		"model":      l.model,
		"messages":   anthropicMessages,
		"max_tokens": 1024,
		"stream":     true,
	}
	if system != "" {
		payload["system"] = system
	}
	if len(functions) > 0 {
		tools := make([]anthropicTool, len(functions))
		for i, f := range functions {
			tools[i] = anthropicTool{Name: f.Name, Description: f.Description, InputSchema: f.Parameters}
		}
		payload["tools"] = tools
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", l.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("anthropic llm error (status %d): %v", resp.StatusCode, errResp)
	}

	out := make(chan orchestrator.LLMChunk)
	go func() {
		defer resp.Body.Close()
		defer close(out)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		var toolIndex int
		var toolID, toolName string
		for scanner.Scan() {
			line := scanner.Text()
			line = strings.TrimPrefix(line, "data: ")
			if line == "" {
				continue
			}

			var evt struct {
				Type         string `json:"type"`
				Index        int    `json:"index"`
				ContentBlock struct {
					Type string `json:"type"`
					ID   string `json:"id"`
					Name string `json:"name"`
				} `json:"content_block"`
				Delta struct {
					Type        string `json:"type"`
					Text        string `json:"text"`
					PartialJSON string `json:"partial_json"`
				} `json:"delta"`
			}
			if err := json.Unmarshal([]byte(line), &evt); err != nil {
				continue
			}

			switch evt.Type {
			case "content_block_start":
				if evt.ContentBlock.Type == "tool_use" {
					toolIndex = evt.Index
					toolID = evt.ContentBlock.ID
					toolName = evt.ContentBlock.Name
				}
			case "content_block_delta":
				switch evt.Delta.Type {
				case "text_delta":
					if evt.Delta.Text == "" {
						continue
					}
					select {
					case out <- orchestrator.LLMChunk{Content: evt.Delta.Text}:
					case <-ctx.Done():
						return
					}
				case "input_json_delta":
					select {
					case out <- orchestrator.LLMChunk{ToolCallDeltas: []orchestrator.ToolCallDelta{
						{Index: toolIndex, ID: toolID, Name: toolName, Arguments: evt.Delta.PartialJSON},
					}}:
					case <-ctx.Done():
						return
					}
				}
			case "message_stop":
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

func (l *AnthropicLLM) Name() string {
	return "anthropic-llm"
}
