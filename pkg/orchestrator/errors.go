package orchestrator

import (
	"errors"
	"fmt"
)

// Kind identifies one member of the error taxonomy (spec §7).
type Kind string

const (
	KindAuthentication Kind = "authentication_error"
	KindProtocol       Kind = "protocol_error"
	KindASR            Kind = "asr_error"
	KindLLM            Kind = "llm_error"
	KindTTS            Kind = "tts_error"
	KindPoolExhausted  Kind = "pool_exhausted"
	KindTimeout        Kind = "timeout"
	KindUpstreamClosed Kind = "upstream_closed"
	KindToolCall       Kind = "tool_call_error"
	KindInternal       Kind = "internal"
)

var (
	ErrTranscriptionFailed = errors.New("speech-to-text transcription failed")
	ErrLLMFailed           = errors.New("language model generation failed")
	ErrTTSFailed           = errors.New("text-to-speech synthesis failed")
	ErrNilProvider         = errors.New("required provider is nil")
	ErrContextCancelled    = errors.New("operation cancelled by context")

	ErrProtocolKind    = errors.New("frame is neither text nor binary")
	ErrPoolUnavailable = errors.New("tts pool has no idle slot")
	ErrSlotNotAcquired = errors.New("no tts slot acquired for session")
	ErrToolNotFound    = errors.New("no function registered with that name")
)

// Error is a taxonomy-tagged error carrying the connection/session id it
// occurred on, so log lines and metrics can attribute failures without
// string-matching messages.
type Error struct {
	Kind      Kind
	SessionID string
	Err       error
}

func (e *Error) Error() string {
	if e.SessionID == "" {
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("%s[session=%s]: %v", e.Kind, e.SessionID, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError wraps err with a Kind and session id.
func NewError(kind Kind, sessionID string, err error) *Error {
	return &Error{Kind: kind, SessionID: sessionID, Err: err}
}

// IsKind reports whether err (or something it wraps) carries kind.
func IsKind(err error, kind Kind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}
