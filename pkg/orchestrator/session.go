package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/voxloop-ai/voxloop-orchestrator/pkg/ttspool"
)

// Session is one full-duplex voice-dialogue connection: the VAD gate,
// utterance buffer, dialogue history, acquired TTS pool slot and all
// per-turn flags live here, mirroring the teacher's ManagedStream /
// ConversationSession pair collapsed into a single owner (spec §4.9).
type Session struct {
	id       string
	deviceID string
	cfg      Config
	logger   Logger

	dialogue *Dialogue
	vadGate  *VADGate
	buffer   *UtteranceBuffer

	asr        ASR
	voiceprint Voiceprint
	llm        LLM
	memory     Memory
	intent     Intent
	role       RoleProvider
	functions  FunctionRegistry

	pool        *ttspool.Pool
	fallbackTTS TTS
	sink        *AudioSink
	metrics     *Metrics
	echo        *EchoSuppressor

	voice  Voice
	lang   Language
	roleID string

	ctx    context.Context
	cancel context.CancelFunc

	receiving atomic.Bool
	speakerID atomic.Value // string

	interactionCount atomic.Int64
	lastActivityMs   atomic.Int64
	lastProactiveMs  atomic.Int64

	mu         sync.Mutex
	turnCancel context.CancelFunc
	closed     bool

	slotOnce sync.Once
	slot     ttspool.Slot
	slotErr  error
}

// SessionDeps bundles a Session's provider wiring. Nil-able fields
// (Voiceprint, Memory, Intent, Role, Functions, Pool, FallbackTTS) are
// optional collaborators (spec §6 "external interfaces").
type SessionDeps struct {
	ASR         ASR
	Voiceprint  Voiceprint
	LLM         LLM
	Memory      Memory
	Intent      Intent
	Role        RoleProvider
	Functions   FunctionRegistry
	Pool        *ttspool.Pool
	FallbackTTS TTS
	VADProvider VADProvider
	OpusDecoder OpusDecoder
	Logger      Logger
	Metrics     *Metrics
}

// NewSession starts one connection's lifecycle: assigns an id, builds
// the dialogue/VAD gate/utterance buffer, resolves the device's role
// and default voice, and wires the Audio Sink (spec §4.9 "accept").
func NewSession(ctx context.Context, deviceID string, cfg Config, deps SessionDeps, out Outbound) *Session {
	logger := deps.Logger
	if logger == nil {
		logger = &NoOpLogger{}
	}
	sctx, cancel := context.WithCancel(ctx)
	s := &Session{
		id:         uuid.NewString(),
		deviceID:   deviceID,
		cfg:        cfg,
		logger:     logger,
		dialogue:   NewDialogue(cfg.MaxContextMessages),
		vadGate:    NewVADGate(deps.VADProvider, deps.OpusDecoder, cfg.VADThreshold, cfg.MinSilenceDurMs, logger),
		buffer:     NewUtteranceBuffer(cfg.PreRollFrames),
		asr:        deps.ASR,
		voiceprint: deps.Voiceprint,
		llm:        deps.LLM,
		memory:     deps.Memory,
		intent:     deps.Intent,
		role:       deps.Role,
		functions:  deps.Functions,
		pool:        deps.Pool,
		fallbackTTS: deps.FallbackTTS,
		metrics:     deps.Metrics,
		voice:      cfg.DefaultVoice,
		lang:       cfg.DefaultLanguage,
		ctx:        sctx,
		cancel:     cancel,
	}
	s.speakerID.Store("")
	s.sink = NewAudioSink(s, out, cfg, logger)
	s.echo = NewEchoSuppressor()
	s.markActivity()

	if s.intent != nil && s.llm != nil {
		s.intent.SetLLM(s.llm)
	}
	if s.role != nil {
		if roleID, prompt, voice, err := s.role.CurrentRole(sctx, deviceID); err == nil {
			s.roleID = roleID
			s.voice = voice
			s.dialogue.UpdateSystemMessage(prompt)
		} else {
			s.logger.Warn("session: role lookup failed, using defaults", "error", err, "session", s.id)
		}
	}
	if s.memory != nil {
		if err := s.memory.Init(sctx, deviceID, s.roleID, s.llm); err != nil {
			s.logger.Warn("session: memory init failed", "error", err, "session", s.id)
		}
		if sp, err := s.memory.GetLastSeenSpeakerID(sctx); err == nil && sp != "" {
			s.speakerID.Store(sp)
		}
	}

	if s.metrics != nil {
		s.metrics.ActiveSessions.Inc()
	}

	go s.sink.Run(sctx)
	return s
}

func (s *Session) ID() string         { return s.id }
func (s *Session) DeviceID() string   { return s.deviceID }
func (s *Session) Dialogue() *Dialogue { return s.dialogue }
func (s *Session) Voice() Voice       { return s.voice }
func (s *Session) Language() Language { return s.lang }
func (s *Session) SpeakerID() string  { return s.speakerID.Load().(string) }
func (s *Session) Logger() Logger     { return s.logger }
func (s *Session) Context() context.Context { return s.ctx }

// SetRole switches the active role and default voice, rewriting the
// dialogue's system message (spec §4.5 "role switching" supplement).
func (s *Session) SetRole(ctx context.Context, roleID string) error {
	if s.role == nil {
		return NewError(KindInternal, s.id, ErrNilProvider)
	}
	prompt, voice, err := s.role.SetRole(ctx, s.deviceID, roleID)
	if err != nil {
		return err
	}
	s.roleID = roleID
	s.voice = voice
	s.dialogue.UpdateSystemMessage(prompt)
	return nil
}

func (s *Session) markActivity() {
	s.lastActivityMs.Store(time.Now().UnixMilli())
}

// Write feeds one inbound opus packet through the VAD gate (spec §4.1
// AudioHandler, §4.2). Detecting fresh speech while the sink is still
// speaking triggers barge-in; reaching voice_stop with enough buffered
// frames hands the utterance off to the pipeline.
func (s *Session) Write(packet []byte) error {
	nowMs := time.Now().UnixMilli()
	s.markActivity()

	speechPresent, voiceStop := s.vadGate.Process(packet, nowMs)

	if speechPresent && s.sink.Speaking() {
		echoed := false
		if s.echo != nil {
			if pcm, err := s.vadGate.DecodePCM(packet); err == nil {
				echoed = s.echo.IsEcho(pcm)
			}
		}
		if !echoed {
			s.bargeIn()
		}
	}

	s.buffer.Append(packet, speechPresent, s.vadGate.HadVoiceInSegment())

	if !voiceStop {
		return nil
	}

	hadVoice := s.vadGate.HadVoiceInSegment()
	frames := s.buffer.TakeAndClear()
	s.vadGate.ResetSegment()

	if !hadVoice || len(frames) < s.cfg.MinFrames {
		return nil
	}
	if s.receiving.Swap(true) {
		// Already processing a prior utterance; drop this one rather
		// than overlap pipelines on one session.
		return nil
	}
	go s.runUtterancePipeline(frames)
	return nil
}

// HandleText accepts a client control frame. The core does not
// interpret most control payloads (spec §4.1) beyond recognizing an
// explicit abort signal used for text-initiated barge-in (e.g. a
// physical stop button on the device).
func (s *Session) HandleText(text string) error {
	if text == `{"type":"abort"}` {
		s.bargeIn()
	}
	return nil
}

// bargeIn cancels the in-flight response turn, if any, and tells the
// sink to stop and discard queued audio immediately (spec §4.7
// client_abort).
func (s *Session) bargeIn() {
	s.mu.Lock()
	cancel := s.turnCancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	s.sink.Stop()
	if s.echo != nil {
		s.echo.ClearEchoBuffer()
	}
	if s.metrics != nil {
		s.metrics.BargeInsTotal.Inc()
	}
}

// beginTurn creates a fresh cancellable context for one response turn,
// replacing any previous one.
func (s *Session) beginTurn() context.Context {
	tctx, cancel := context.WithCancel(s.ctx)
	s.mu.Lock()
	s.turnCancel = cancel
	s.mu.Unlock()
	return tctx
}

func (s *Session) endTurn() {
	s.mu.Lock()
	s.turnCancel = nil
	s.mu.Unlock()
	s.receiving.Store(false)
}

// ttsSlot acquires the session's pooled TTS slot on every call. The
// pool hands back the slot this session already holds (refreshing its
// idle timer), so the Proactive Loop reuses the slot a user turn
// acquired; once the idle reaper has released it, or an earlier
// acquire found the pool exhausted, the next call claims a fresh one
// (spec §4.6, §4.8 open question).
func (s *Session) ttsSlot(ctx context.Context) (ttspool.Slot, error) {
	if s.pool == nil {
		return nil, NewError(KindPoolExhausted, s.id, ErrPoolUnavailable)
	}
	return s.pool.Acquire(ctx, s.id, string(s.voice), func(frames [][]byte, text string, textIndex int, failed bool) error {
		return s.sink.Enqueue(AudioSegment{OpusFrames: frames, Text: text, TextIndex: textIndex, Failed: failed})
	})
}

// Close tears the session down: cancels all in-flight work, releases
// the TTS pool slot if one is held, and best-effort flushes memory
// (spec §4.9 "close").
func (s *Session) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.cancel()
	if s.metrics != nil {
		s.metrics.ActiveSessions.Dec()
	}
	if s.pool != nil {
		s.pool.Release(s.id)
	}
	if s.memory != nil {
		if err := s.memory.SaveMemory(context.Background(), s.dialogue.Messages()); err != nil {
			s.logger.Warn("session: memory flush on close failed", "error", err, "session", s.id)
		}
	}
	return s.sink.out.Close()
}
