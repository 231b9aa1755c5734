package orchestrator

import "github.com/google/uuid"

// Role enumerates the four message roles a Dialogue can hold.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is an assistant-issued function-call descriptor, attached to
// an assistant Message when the LLM requested a tool instead of text.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is an immutable dialogue entry. Content may be empty when the
// message is purely a tool-call carrier (role=assistant, ToolCalls set)
// or a tool result (role=tool, ToolCallID set).
type Message struct {
	ID         string
	Role       Role
	Content    string
	ToolCalls  []ToolCall
	ToolCallID string
	Metadata   map[string]any
}

// NewMessage builds a Message with a fresh id.
func NewMessage(role Role, content string, metadata map[string]any) Message {
	return Message{
		ID:       uuid.NewString(),
		Role:     role,
		Content:  content,
		Metadata: metadata,
	}
}

// isToolCarrying reports whether the message is an assistant message
// whose payload is a tool-call request rather than text.
func (m Message) isToolCarrying() bool {
	return m.Role == RoleAssistant && len(m.ToolCalls) > 0
}

// toLLMMessage renders m into the wire shape handed to LLM providers.
func (m Message) toLLMMessage() LLMMessage {
	switch {
	case len(m.ToolCalls) > 0:
		return LLMMessage{Role: string(m.Role), ToolCalls: m.ToolCalls}
	case m.Role == RoleTool:
		return LLMMessage{Role: string(m.Role), ToolCallID: m.ToolCallID, Content: m.Content}
	default:
		return LLMMessage{Role: string(m.Role), Content: m.Content}
	}
}
