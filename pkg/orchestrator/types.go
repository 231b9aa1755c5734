// Package orchestrator implements the per-connection voice-dialogue state
// machine: frame routing, VAD gating, the utterance pipeline, dialogue
// history, response streaming, audio pacing, proactive follow-ups and
// session lifecycle.
package orchestrator

import (
	"context"
	"encoding/json"
)

type Logger interface {
	Debug(msg string, args ...interface{})
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
}

// NoOpLogger discards everything. Useful for tests and embedders that
// don't want orchestrator logs.
type NoOpLogger struct{}

func (n *NoOpLogger) Debug(msg string, args ...interface{}) {}
func (n *NoOpLogger) Info(msg string, args ...interface{})  {}
func (n *NoOpLogger) Warn(msg string, args ...interface{})  {}
func (n *NoOpLogger) Error(msg string, args ...interface{}) {}

// Language is understood by providers as an opaque tag.
type Language string

const (
	LanguageEn Language = "en"
	LanguageEs Language = "es"
	LanguageFr Language = "fr"
	LanguageDe Language = "de"
	LanguageZh Language = "zh"
	LanguageJa Language = "ja"
)

// Voice names a TTS voice id. The set is provider-defined; VoiceF1 is
// the package default used when no role/config overrides it.
type Voice string

const VoiceF1 Voice = "f1"

// ASR is the speech-to-text provider contract (spec §6).
type ASR interface {
	SpeechToText(ctx context.Context, frames [][]byte, sessionID string) (text string, artifactPath string, err error)
	Name() string
}

// Voiceprint identifies the speaker behind an utterance. Identify
// returns "" with a nil error when no profile matches.
type Voiceprint interface {
	IdentifySpeaker(ctx context.Context, frames [][]byte, deviceID string) (speakerID string, err error)
	Name() string
}

// LLMChunk is one element of a streamed LLM response: a content delta
// and/or in-progress tool-call deltas. One call to Response/
// ResponseWithFunctions produces a finite, non-restartable sequence.
type LLMChunk struct {
	Content        string
	ToolCallDeltas []ToolCallDelta
	Err            error
}

// ToolCallDelta is an incremental tool-call fragment as streamed by the
// LLM (id/name typically arrive once, arguments accumulate).
type ToolCallDelta struct {
	Index     int
	ID        string
	Name      string
	Arguments string
}

// LLM is the language-model provider contract (spec §6).
type LLM interface {
	Response(ctx context.Context, sessionID string, messages []LLMMessage) (<-chan LLMChunk, error)
	ResponseWithFunctions(ctx context.Context, sessionID string, messages []LLMMessage, functions []FunctionSpec) (<-chan LLMChunk, error)
	Name() string
}

// LLMMessage is the wire shape handed to the LLM provider.
type LLMMessage struct {
	Role       string     `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// FunctionSpec describes one callable tool exposed to the LLM.
type FunctionSpec struct {
	Name        string
	Description string
	Parameters  json.RawMessage
}

// TTS is the text-to-speech provider contract for simple, non-pooled
// synthesis; used as the degrade path when the pool is exhausted.
type TTS interface {
	Synthesize(ctx context.Context, text string, voice Voice, lang Language) ([]byte, error)
	StreamSynthesize(ctx context.Context, text string, voice Voice, lang Language, onChunk func([]byte) error) error
	Name() string
}

// VADProvider turns one opus-decoded PCM chunk into a speech/silence
// verdict. Implementations must buffer short chunks rather than feed
// partial tensors to an underlying model (spec §4.2 edge case).
type VADProvider interface {
	Process(chunk []byte) (speechProbability float64, err error)
	Name() string
}

// VADEventType enumerates the state transitions the VAD gate emits.
type VADEventType string

const (
	VADSpeechStart VADEventType = "speech_start"
	VADSpeechEnd   VADEventType = "speech_end"
)

// VADEvent is a timestamped speech-state transition.
type VADEvent struct {
	Type     VADEventType
	TimeMs   int64
}

// Memory is the long-term/short-term memory provider contract (spec §6).
type Memory interface {
	Init(ctx context.Context, deviceID, roleID string, llm LLM) error
	QueryMemory(ctx context.Context, query string, speakerID string) (string, error)
	AddMemory(ctx context.Context, messages []Message, metadata map[string]any, speakerID string) error
	SaveMemory(ctx context.Context, messages []Message) error
	GetLastSeenSpeakerID(ctx context.Context) (string, error)
}

// Intent inspects user text for an out-of-band command before it reaches
// the LLM (spec §4.3 "Intent handling").
type Intent interface {
	SetLLM(llm LLM)
	HandleUserIntent(ctx context.Context, conn *Session, text string) (handled bool, err error)
}

// RoleProvider resolves the active role (system prompt + default voice)
// for a device and supports the change_role tool call.
type RoleProvider interface {
	CurrentRole(ctx context.Context, deviceID string) (roleID, systemPrompt string, voice Voice, err error)
	SetRole(ctx context.Context, deviceID, roleID string) (systemPrompt string, voice Voice, err error)
}

// FunctionRegistry dispatches LLM tool calls by name (spec §4.5 step 6,
// §7 ToolCallError).
type FunctionRegistry interface {
	Specs() []FunctionSpec
	Call(ctx context.Context, conn *Session, name string, args json.RawMessage) (result string, followUp bool, err error)
}

// Config holds the already-resolved, in-process settings the
// orchestrator consumes. Loading it from the environment/files is out
// of scope (spec §1 Non-goals) — see cmd/agent for the .env loader.
type Config struct {
	SampleRateHz    int
	FrameDurationMs int
	MinFrames       int // min_frames: shortest utterance worth transcribing
	PreRollFrames   int // N: pre-roll frames retained while no speech seen
	MinSilenceDurMs int64
	VADThreshold    float64

	MaxContextMessages int
	DefaultVoice       Voice
	DefaultLanguage    Language

	ASRTimeoutSec      uint
	LLMTimeoutSec      uint
	TTSTimeoutSec      uint
	SpeakerIDTimeoutMs int64

	TTSPoolCapacity    int
	TTSPoolIdleTimeout int64 // seconds; spec §4.6 default 3
	TTSReapIntervalSec int64

	AudioPreBufferFrames int // P
	AudioBatchFrames     int // B

	SilenceThresholdSec  int64
	MinInteractionCount  int
	ProactiveCooldownSec int64

	MinWordsToInterrupt int
}

// DefaultConfig returns the production defaults named throughout spec.md.
func DefaultConfig() Config {
	return Config{
		SampleRateHz:       16000,
		FrameDurationMs:    20,
		MinFrames:          8,
		PreRollFrames:      4,
		MinSilenceDurMs:    500,
		VADThreshold:       0.5,
		MaxContextMessages: 40,
		DefaultVoice:       VoiceF1,
		DefaultLanguage:    LanguageEn,

		ASRTimeoutSec:      10,
		LLMTimeoutSec:      30,
		TTSTimeoutSec:      10,
		SpeakerIDTimeoutMs: 800,

		TTSPoolCapacity:    8,
		TTSPoolIdleTimeout: 3,
		TTSReapIntervalSec: 1,

		AudioPreBufferFrames: 8,
		AudioBatchFrames:     3,

		SilenceThresholdSec:  60,
		MinInteractionCount:  3,
		ProactiveCooldownSec: 300,

		MinWordsToInterrupt: 1,
	}
}
