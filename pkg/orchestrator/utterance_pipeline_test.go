package orchestrator

import (
	"context"
	"errors"
	"testing"
	"time"
)

type scriptedASR struct {
	text string
	err  error
}

func (a scriptedASR) SpeechToText(ctx context.Context, frames [][]byte, sessionID string) (string, string, error) {
	return a.text, "", a.err
}

type emptyStreamLLM struct{}

func (emptyStreamLLM) Response(ctx context.Context, sessionID string, messages []LLMMessage) (<-chan LLMChunk, error) {
	ch := make(chan LLMChunk)
	close(ch)
	return ch, nil
}

func (emptyStreamLLM) ResponseWithFunctions(ctx context.Context, sessionID string, messages []LLMMessage, functions []FunctionSpec) (<-chan LLMChunk, error) {
	ch := make(chan LLMChunk)
	close(ch)
	return ch, nil
}

func newPipelineSession(t *testing.T, asr ASR) *Session {
	t.Helper()
	cfg := DefaultConfig()
	deps := SessionDeps{
		VADProvider: NewRMSVAD(cfg.VADThreshold),
		OpusDecoder: silentDecoder{},
		ASR:         asr,
		LLM:         emptyStreamLLM{},
	}
	return NewSession(context.Background(), "device-1", cfg, deps, &recordingOutbound{})
}

func TestRunUtterancePipelineEmptyTranscriptStops(t *testing.T) {
	s := newPipelineSession(t, scriptedASR{text: ""})
	defer s.Close()

	s.receiving.Store(true)
	s.runUtterancePipeline([][]byte{{0x00}})

	if s.interactionCount.Load() != 0 {
		t.Error("expected no interaction recorded for an empty transcript")
	}
	if s.receiving.Load() {
		t.Error("expected endTurn to clear the receiving flag")
	}
}

func TestRunUtterancePipelineASRFailureStops(t *testing.T) {
	s := newPipelineSession(t, scriptedASR{err: errors.New("asr down")})
	defer s.Close()

	s.receiving.Store(true)
	s.runUtterancePipeline([][]byte{{0x00}})

	if s.interactionCount.Load() != 0 {
		t.Error("expected no interaction recorded when ASR fails")
	}
	if s.receiving.Load() {
		t.Error("expected endTurn to clear the receiving flag")
	}
}

func TestRunUtterancePipelineRecordsInteractionOnText(t *testing.T) {
	out := &recordingOutbound{}
	s := newPipelineSession(t, scriptedASR{text: "hello there"})
	s.sink.out = out
	defer s.Close()

	s.receiving.Store(true)
	s.runUtterancePipeline([][]byte{{0x00}})

	deadline := time.Now().Add(time.Second)
	for s.interactionCount.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if s.interactionCount.Load() != 1 {
		t.Errorf("interactionCount = %d, want 1", s.interactionCount.Load())
	}

	out.mu.Lock()
	defer out.mu.Unlock()
	var sawSTT bool
	for _, c := range out.controls {
		if msg, ok := c.(ControlMessage); ok && msg.Type == "stt" && msg.Text == "hello there" {
			sawSTT = true
		}
	}
	if !sawSTT {
		t.Errorf("expected an stt control message carrying the transcript, got %+v", out.controls)
	}
}
