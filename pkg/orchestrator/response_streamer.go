package orchestrator

import (
	"context"
	"encoding/json"
	"time"
)

// responseStreamer drives one spoken turn over a dialogue that already
// holds the user message: it optionally enriches with memory, streams
// the model's reply, segments
// it at sentence boundaries for low-latency TTS dispatch, and resolves
// any tool calls before a final answer is reached (spec §4.5).
//
// text_index is a single monotonically increasing counter for the
// whole turn, including every tool-call round trip, since the Audio
// Sink orders and paces segments across the entire spoken reply, not
// per LLM call.
type responseStreamer struct {
	s *Session

	textIndex      int
	firstTextIndex int
	lastTextIndex  int
}

func newResponseStreamer(s *Session) *responseStreamer {
	return &responseStreamer{s: s, firstTextIndex: -1, lastTextIndex: -1}
}

// toolCallAcc accumulates the streamed tool calls' id/name/arguments
// fragments, keyed by call index and listed in first-arrival order.
type toolCallAcc struct {
	order []int
	calls map[int]*ToolCall
}

func newToolCallAcc() *toolCallAcc {
	return &toolCallAcc{calls: make(map[int]*ToolCall)}
}

func (a *toolCallAcc) add(d ToolCallDelta) {
	tc, ok := a.calls[d.Index]
	if !ok {
		tc = &ToolCall{}
		a.calls[d.Index] = tc
		a.order = append(a.order, d.Index)
	}
	if d.ID != "" {
		tc.ID = d.ID
	}
	if d.Name != "" {
		tc.Name = d.Name
	}
	tc.Arguments += d.Arguments
}

func (a *toolCallAcc) list() []ToolCall {
	out := make([]ToolCall, 0, len(a.order))
	for _, idx := range a.order {
		out = append(out, *a.calls[idx])
	}
	return out
}

// handleUserTurn is the entry point from the Utterance Pipeline: text
// is a fresh, non-empty ASR transcript already appended to the
// dialogue by the caller.
func (r *responseStreamer) handleUserTurn(ctx context.Context, text string) error {
	s := r.s
	_ = s.sink.out.SendControl(ControlMessage{Type: "llm", Emotion: "😊", SessionID: s.id})
	s.sink.beginTurn()
	return r.runLLMRound(ctx, r.queryMemory(ctx, text))
}

func (r *responseStreamer) queryMemory(ctx context.Context, text string) string {
	s := r.s
	if s.memory == nil {
		return ""
	}
	mctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	v, err := s.memory.QueryMemory(mctx, text, s.SpeakerID())
	if err != nil {
		s.logger.Warn("response streamer: memory query failed", "error", err, "session", s.id)
		return ""
	}
	return v
}

// runLLMRound opens one LLM stream and segments it into dispatched TTS
// chunks (spec §4.5 steps 3-5). A round that ends with tool calls
// resolves them and recurses into another round (step 6); the round
// that ends with no tool calls is the turn's true end and signals the
// Audio Sink accordingly (step 7).
func (r *responseStreamer) runLLMRound(ctx context.Context, memCtx string) error {
	s := r.s
	messages := s.dialogue.LLMView(memCtx)

	var chunks <-chan LLMChunk
	var err error
	if s.functions != nil && len(s.functions.Specs()) > 0 {
		chunks, err = s.llm.ResponseWithFunctions(ctx, s.id, messages, s.functions.Specs())
	} else {
		chunks, err = s.llm.Response(ctx, s.id, messages)
	}
	if err != nil {
		return NewError(KindLLM, s.id, err)
	}

	var runes []rune
	processedChars := 0
	acc := newToolCallAcc()
	var streamErr error
	roundStart := time.Now()
	firstByteSeen := false

	for chunk := range chunks {
		if ctx.Err() != nil {
			break
		}
		if chunk.Err != nil {
			streamErr = chunk.Err
			break
		}
		if chunk.Content != "" {
			if !firstByteSeen {
				firstByteSeen = true
				if s.metrics != nil {
					s.metrics.LLMFirstByteLatency.Observe(time.Since(roundStart).Seconds())
				}
			}
			runes = append(runes, []rune(chunk.Content)...)
			var drainErr error
			processedChars, drainErr = r.drain(ctx, runes, processedChars)
			if drainErr != nil {
				return drainErr
			}
		}
		for _, d := range chunk.ToolCallDeltas {
			acc.add(d)
		}
	}

	if streamErr != nil {
		return NewError(KindLLM, s.id, streamErr)
	}
	if ctx.Err() != nil {
		// Barge-in mid-stream: the partial reply still goes into
		// history so the model has continuity next turn.
		s.dialogue.Put(NewMessage(RoleAssistant, string(runes), nil))
		return nil
	}

	processedChars, err = r.flushTail(ctx, runes, processedChars)
	if err != nil {
		return err
	}

	toolCalls := acc.list()
	if len(toolCalls) == 0 {
		s.dialogue.Put(NewMessage(RoleAssistant, string(runes), nil))
		s.sink.finish()
		return nil
	}

	s.dialogue.Put(Message{ID: NewMessage(RoleAssistant, "", nil).ID, Role: RoleAssistant, ToolCalls: toolCalls})
	return r.resolveToolCalls(ctx, toolCalls)
}

// resolveToolCalls dispatches each accumulated tool call through the
// registry and, when any call signals follow-up is warranted, re-enters
// the LLM with the tool results appended (spec §4.5 step 6).
func (r *responseStreamer) resolveToolCalls(ctx context.Context, calls []ToolCall) error {
	s := r.s
	if s.functions == nil {
		return NewError(KindToolCall, s.id, ErrToolNotFound)
	}
	anyFollowUp := false
	for _, tc := range calls {
		result, followUp, err := s.functions.Call(ctx, s, tc.Name, json.RawMessage(tc.Arguments))
		if err != nil {
			result = err.Error()
		}
		s.dialogue.Put(Message{ID: tc.ID, Role: RoleTool, Content: result, ToolCallID: tc.ID})
		anyFollowUp = anyFollowUp || followUp
	}
	if !anyFollowUp {
		s.sink.finish()
		return nil
	}
	return r.runLLMRound(ctx, "")
}

// drain dispatches every complete sentence currently available in
// runes[processedChars:], applying the first-segment fast path exactly
// once per turn, and returns the advanced processedChars (spec §4.5
// steps 4-5).
func (r *responseStreamer) drain(ctx context.Context, runes []rune, processedChars int) (int, error) {
	for {
		unprocessed := runes[processedChars:]
		idx, ok := findRightmostBoundary(unprocessed)
		if !ok {
			return processedChars, nil
		}
		raw := unprocessed[:idx+1]
		processedChars += idx + 1
		segment := stripPunctuationAndEmoji(string(raw))
		if segment == "" {
			continue
		}
		r.textIndex++
		segRunes := []rune(segment)

		if r.firstTextIndex == -1 {
			cut := firstSegmentCut(segRunes, idx)
			if err := r.dispatch(ctx, string(segRunes[:cut]), r.textIndex); err != nil {
				return processedChars, err
			}
			r.firstTextIndex = r.textIndex
			r.lastTextIndex = r.textIndex
			if rest := segRunes[cut:]; len(rest) > 0 {
				r.textIndex++
				if err := r.dispatch(ctx, string(rest), r.textIndex); err != nil {
					return processedChars, err
				}
				r.lastTextIndex = r.textIndex
			}
			continue
		}

		if err := r.dispatch(ctx, segment, r.textIndex); err != nil {
			return processedChars, err
		}
		r.lastTextIndex = r.textIndex
	}
}

// flushTail dispatches whatever remains unprocessed once one LLM
// stream has ended (spec §4.5 step 7).
func (r *responseStreamer) flushTail(ctx context.Context, runes []rune, processedChars int) (int, error) {
	tail := stripPunctuationAndEmoji(string(runes[processedChars:]))
	if tail == "" {
		return len(runes), nil
	}
	r.textIndex++
	if err := r.dispatch(ctx, tail, r.textIndex); err != nil {
		return len(runes), err
	}
	r.lastTextIndex = r.textIndex
	return len(runes), nil
}

// dispatch synthesizes one segment through the session's pooled TTS
// slot, falling back to the non-pooled provider when the pool is
// unavailable (spec §4.6 degrade path).
func (r *responseStreamer) dispatch(ctx context.Context, text string, textIndex int) error {
	s := r.s
	if text == "" {
		return nil
	}
	if slot, err := s.ttsSlot(ctx); err == nil {
		start := time.Now()
		synErr := slot.Synthesize(ctx, text, textIndex)
		if s.metrics != nil {
			s.metrics.TTSSegmentLatency.Observe(time.Since(start).Seconds())
		}
		if synErr == nil {
			return nil
		}
		s.logger.Warn("response streamer: pooled synthesize failed", "error", synErr, "session", s.id)
	}
	if s.fallbackTTS == nil {
		return NewError(KindTTS, s.id, ErrTTSFailed)
	}
	return s.fallbackTTS.StreamSynthesize(ctx, text, s.voice, s.lang, func(chunk []byte) error {
		return s.sink.Enqueue(AudioSegment{OpusFrames: [][]byte{chunk}, Text: text, TextIndex: textIndex})
	})
}
