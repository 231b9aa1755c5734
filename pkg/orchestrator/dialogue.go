package orchestrator

import "sync"

// Dialogue is an append-only, ordered message history plus a rolling
// metadata map (spec §3 "Dialogue"). The system message, if present, is
// always at index 0 and is updated in place rather than appended again.
//
// Single-writer invariant: only the owning Session's goroutine appends.
// Reads (LLMView, Messages) may be called concurrently by the Audio
// Sink / proactive loop and take the read lock.
type Dialogue struct {
	mu       sync.RWMutex
	messages []Message
	metadata map[string]any
	maxLen   int
}

// NewDialogue creates an empty dialogue that keeps at most maxLen
// non-system messages (0 means unbounded).
func NewDialogue(maxLen int) *Dialogue {
	return &Dialogue{
		messages: make([]Message, 0, 8),
		metadata: make(map[string]any),
		maxLen:   maxLen,
	}
}

// Put appends a message, merging its metadata into the dialogue's
// rolling metadata map (mirrors the original's `dialogue.put`).
func (d *Dialogue) Put(m Message) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.messages = append(d.messages, m)
	for k, v := range m.Metadata {
		d.metadata[k] = v
	}
	d.trimLocked()
}

// trimLocked drops the oldest non-system messages once the dialogue
// exceeds maxLen, always preserving a system message at index 0.
func (d *Dialogue) trimLocked() {
	if d.maxLen <= 0 {
		return
	}
	nonSystem := 0
	for _, m := range d.messages {
		if m.Role != RoleSystem {
			nonSystem++
		}
	}
	for nonSystem > d.maxLen {
		for i, m := range d.messages {
			if m.Role != RoleSystem {
				d.messages = append(d.messages[:i], d.messages[i+1:]...)
				nonSystem--
				break
			}
		}
	}
}

// UpdateSystemMessage sets the dialogue's system prompt, mutating the
// existing system message in place if one exists at index 0, otherwise
// inserting one there (spec §3 Dialogue invariant).
func (d *Dialogue) UpdateSystemMessage(content string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for i := range d.messages {
		if d.messages[i].Role == RoleSystem {
			d.messages[i].Content = content
			return
		}
	}
	sys := NewMessage(RoleSystem, content, nil)
	d.messages = append([]Message{sys}, d.messages...)
}

// Messages returns a defensive copy of the full history in insertion
// order.
func (d *Dialogue) Messages() []Message {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Message, len(d.messages))
	copy(out, d.messages)
	return out
}

// Metadata returns a copy of the rolling metadata map.
func (d *Dialogue) Metadata() map[string]any {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make(map[string]any, len(d.metadata))
	for k, v := range d.metadata {
		out[k] = v
	}
	return out
}

// LLMView renders the dialogue for the LLM call (spec §3 "derived
// view"). With no memory context it is simply every message translated
// to its wire shape. With a memory context string, the system message is
// replaced by an enriched copy and every tool-carrying/tool message is
// dropped, matching
// `dialogue.py:get_llm_dialogue_with_memory`.
func (d *Dialogue) LLMView(memoryContext string) []LLMMessage {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if memoryContext == "" {
		out := make([]LLMMessage, 0, len(d.messages))
		for _, m := range d.messages {
			out = append(out, m.toLLMMessage())
		}
		return out
	}

	var systemContent string
	hasSystem := false
	for _, m := range d.messages {
		if m.Role == RoleSystem {
			systemContent = m.Content
			hasSystem = true
			break
		}
	}

	out := make([]LLMMessage, 0, len(d.messages)+1)
	if hasSystem {
		enriched := systemContent + "\n\nRelevant memory:\n" + memoryContext
		out = append(out, LLMMessage{Role: string(RoleSystem), Content: enriched})
	}
	for _, m := range d.messages {
		if m.Role == RoleSystem || m.Role == RoleTool || m.isToolCarrying() {
			continue
		}
		out = append(out, m.toLLMMessage())
	}
	return out
}

// Len reports the number of messages currently held.
func (d *Dialogue) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.messages)
}
