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

type GoogleLLM struct {
	apiKey string
	url    string
	model  string
}

func NewGoogleLLM(apiKey string, model string) *GoogleLLM {
	if model == "" {
		model = "gemini-1.5-flash"
	}
	return &GoogleLLM{
		apiKey: apiKey,
		url:    "https://generativelanguage.googleapis.com/v1beta/models/" + model + ":streamGenerateContent",
		model:  model,
	}
}

type googlePart struct {
	Text             string          `json:"text,omitempty"`
	FunctionCall     json.RawMessage `json:"functionCall,omitempty"`
}

type googleContent struct {
	Role  string       `json:"role"`
	Parts []googlePart `json:"parts"`
}

type googleFunctionDecl struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Parameters  json.RawMessage `json:"parameters,omitempty"`
}

func (l *GoogleLLM) Response(ctx context.Context, sessionID string, messages []orchestrator.LLMMessage) (<-chan orchestrator.LLMChunk, error) {
	return l.stream(ctx, messages, nil)
}

func (l *GoogleLLM) ResponseWithFunctions(ctx context.Context, sessionID string, messages []orchestrator.LLMMessage, functions []orchestrator.FunctionSpec) (<-chan orchestrator.LLMChunk, error) {
	return l.stream(ctx, messages, functions)
}

func (l *GoogleLLM) stream(ctx context.Context, messages []orchestrator.LLMMessage, functions []orchestrator.FunctionSpec) (<-chan orchestrator.LLMChunk, error) {
	var contents []googleContent
	for _, m := range messages {
		role := m.Role
		if role == "system" {
			role = "user"
		}
		if role == "assistant" {
			role = "model"
		}
		contents = append(contents, googleContent{Role: role, Parts: []googlePart{{Text: m.Content}}})
	}

	payload := map[string]interface{}{"contents": contents}
	if len(functions) > 0 {
		decls := make([]googleFunctionDecl, len(functions))
		for i, f := range functions {
			decls[i] = googleFunctionDecl{Name: f.Name, Description: f.Description, Parameters: f.Parameters}
		}
		payload["tools"] = []map[string]interface{}{{"functionDeclarations": decls}}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", l.url+"?alt=sse&key="+l.apiKey, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return nil, fmt.Errorf("google llm error (status %d): %v", resp.StatusCode, errResp)
	}

	out := make(chan orchestrator.LLMChunk)
	go func() {
		defer resp.Body.Close()
		defer close(out)

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		toolIdx := 0
		for scanner.Scan() {
			line := strings.TrimPrefix(scanner.Text(), "data: ")
			if line == "" {
				continue
			}

			var chunk struct {
				Candidates []struct {
					Content struct {
						Parts []struct {
							Text         string `json:"text"`
							FunctionCall *struct {
								Name string          `json:"name"`
								Args json.RawMessage `json:"args"`
							} `json:"functionCall"`
						} `json:"parts"`
					} `json:"content"`
				} `json:"candidates"`
			}
			if err := json.Unmarshal([]byte(line), &chunk); err != nil {
				continue
			}
			if len(chunk.Candidates) == 0 {
				continue
			}
			for _, part := range chunk.Candidates[0].Content.Parts {
				var llmChunk orchestrator.LLMChunk
				if part.Text != "" {
					llmChunk.Content = part.Text
				}
				if part.FunctionCall != nil {
					llmChunk.ToolCallDeltas = []orchestrator.ToolCallDelta{
						{Index: toolIdx, Name: part.FunctionCall.Name, Arguments: string(part.FunctionCall.Args)},
					}
					toolIdx++
				}
				if llmChunk.Content == "" && llmChunk.ToolCallDeltas == nil {
					continue
				}
				select {
				case out <- llmChunk:
				case <-ctx.Done():
					return
				}
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

func (l *GoogleLLM) Name() string {
	return "google-llm"
}
