package orchestrator

import "sync"

// samplesPerChunk is the fixed tensor width the VAD model expects
// (spec §4.2 step 2). Inputs that don't divide evenly are buffered.
const samplesPerChunk = 512

// UtteranceBuffer is the bounded, ordered sequence of inbound opus
// frames for the utterance currently being accumulated (spec §3). While
// the gate has never seen speech in the current segment, the buffer is
// truncated to the most recent preRoll frames so the first syllable of
// the next utterance isn't lost.
type UtteranceBuffer struct {
	mu      sync.Mutex
	frames  [][]byte
	preRoll int
}

// NewUtteranceBuffer creates a buffer retaining preRoll frames of
// pre-speech lead-in.
func NewUtteranceBuffer(preRoll int) *UtteranceBuffer {
	return &UtteranceBuffer{preRoll: preRoll}
}

// Append adds one opus frame. hadVoiceInSegment is the gate's running
// "ever had speech since the last reset" flag; when false and this
// packet itself carries no speech, the buffer is pre-roll-truncated.
func (b *UtteranceBuffer) Append(frame []byte, speechPresent, hadVoiceInSegment bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = append(b.frames, frame)
	if !speechPresent && !hadVoiceInSegment && len(b.frames) > b.preRoll {
		b.frames = b.frames[len(b.frames)-b.preRoll:]
	}
}

// Len reports the current frame count.
func (b *UtteranceBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.frames)
}

// TakeAndClear atomically hands off the accumulated frames to the
// Utterance Pipeline and empties the buffer.
func (b *UtteranceBuffer) TakeAndClear() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.frames
	b.frames = nil
	return out
}

// Reset discards any buffered frames without returning them.
func (b *UtteranceBuffer) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.frames = nil
}

// OpusDecoder decodes one opus packet into 16-bit PCM samples.
type OpusDecoder interface {
	Decode(packet []byte) (pcm []byte, err error)
}

// VADGate converts an inbound opus-frame stream into utterance
// boundaries (spec §4.2). It owns no audio buffer itself — callers pass
// the gate's verdict to an UtteranceBuffer — but it does own the
// running speech-segment state (hadVoiceInSegment / lastVoiceTimeMs)
// and the leftover-sample carry needed to always feed the detector
// exactly samplesPerChunk samples.
type VADGate struct {
	provider  VADProvider
	decoder   OpusDecoder
	threshold float64
	minSilMs  int64
	logger    Logger

	carry             []int16
	hadVoiceInSegment bool
	lastVoiceTimeMs   int64
}

// NewVADGate builds a gate around provider/decoder.
func NewVADGate(provider VADProvider, decoder OpusDecoder, threshold float64, minSilenceDurMs int64, logger Logger) *VADGate {
	if logger == nil {
		logger = &NoOpLogger{}
	}
	return &VADGate{
		provider:  provider,
		decoder:   decoder,
		threshold: threshold,
		minSilMs:  minSilenceDurMs,
		logger:    logger,
	}
}

// Process runs one opus packet through the gate (spec §4.2 algorithm).
// It reports whether the packet contains speech and whether end-of-speech
// (voice_stop) was just detected. Malformed opus is logged and ignored
// without touching gate state.
func (g *VADGate) Process(packet []byte, nowMs int64) (speechPresent bool, voiceStop bool) {
	pcm, err := g.decoder.Decode(packet)
	if err != nil {
		g.logger.Warn("vad gate: malformed opus packet, ignoring", "error", err)
		return false, false
	}

	samples := bytesToInt16(pcm)
	g.carry = append(g.carry, samples...)

	for len(g.carry) >= samplesPerChunk {
		chunk := g.carry[:samplesPerChunk]
		g.carry = g.carry[samplesPerChunk:]

		prob, err := g.provider.Process(int16ToBytes(chunk))
		if err != nil {
			g.logger.Warn("vad gate: detector error, treating chunk as silence", "error", err)
			continue
		}

		if prob >= g.threshold {
			speechPresent = true
			g.hadVoiceInSegment = true
			g.lastVoiceTimeMs = nowMs
			continue
		}

		if g.hadVoiceInSegment && nowMs-g.lastVoiceTimeMs >= g.minSilMs {
			voiceStop = true
			break
		}
	}

	return speechPresent, voiceStop
}

// DecodePCM decodes one opus packet without touching gate state, for
// callers (e.g. echo suppression) that need the raw samples alongside
// the gate's own verdict.
func (g *VADGate) DecodePCM(packet []byte) ([]byte, error) {
	return g.decoder.Decode(packet)
}

// HadVoiceInSegment reports whether any chunk in the current segment
// has crossed the speech threshold.
func (g *VADGate) HadVoiceInSegment() bool { return g.hadVoiceInSegment }

// ResetSegment clears the running speech-segment state (called once the
// Utterance Pipeline has taken ownership of the buffered frames, or on
// pipeline abort).
func (g *VADGate) ResetSegment() {
	g.hadVoiceInSegment = false
	g.lastVoiceTimeMs = 0
	g.carry = nil
}

// Clone returns a gate with the same configuration and fresh segment
// state — used when a new connection needs its own VAD state (mirrors
// the teacher's per-stream VAD cloning). The provider and decoder
// instances are shared with the original gate, not copied.
func (g *VADGate) Clone() *VADGate {
	return NewVADGate(g.provider, g.decoder, g.threshold, g.minSilMs, g.logger)
}

func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(b[2*i]) | int16(b[2*i+1])<<8
	}
	return out
}

func int16ToBytes(s []int16) []byte {
	out := make([]byte, len(s)*2)
	for i, v := range s {
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}
