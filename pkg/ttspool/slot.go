package ttspool

import (
	"context"
	"sync"
	"time"

	"github.com/voxloop-ai/voxloop-orchestrator/pkg/audio"
)

// Push delivers one synthesized segment's decoded opus frames (or
// failed=true with no frames) to the caller's Audio Sink (spec §4.6
// edge case: synthesis failure still emits sentence markers).
type Push func(frames [][]byte, text string, textIndex int, failed bool) error

// slot is one session's claim on the pool's bounded capacity. It holds
// no live upstream connection between calls — each Synthesize dials a
// fresh connection, matching the original's per-request socket
// (`tts_pool.py`/`bytedance.py`) — only the voice, push target and
// idle bookkeeping.
type slot struct {
	pool    *Pool
	session string
	voice   string
	push    Push

	mu       sync.Mutex
	lastUsed time.Time
}

func (s *slot) touch() {
	s.mu.Lock()
	s.lastUsed = time.Now()
	s.mu.Unlock()
}

func (s *slot) idleFor() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastUsed)
}

// Synthesize implements orchestrator.TTSSlot: it drives one full
// upstream exchange for text, decodes the returned MP3 to opus frames,
// and pushes them to the sink. A synthesis failure still pushes a
// Failed marker so the Audio Sink's sentence_start/sentence_end
// framing stays consistent (spec §4.6).
func (s *slot) Synthesize(ctx context.Context, text string, textIndex int) error {
	s.touch()

	mp3Data, err := synthesizeOnce(ctx, s.pool.cfg, s.voice, text, s.session)
	if err != nil {
		_ = s.push(nil, text, textIndex, true)
		return err
	}

	pcm, err := audio.DecodeMP3ToPCM16Mono16k(mp3Data)
	if err != nil {
		_ = s.push(nil, text, textIndex, true)
		return err
	}

	enc, err := audio.NewEncoder()
	if err != nil {
		_ = s.push(nil, text, textIndex, true)
		return err
	}

	var opusFrames [][]byte
	for _, pcmFrame := range audio.FramePCM(pcm) {
		f, err := enc.EncodeFrame(pcmFrame)
		if err != nil {
			_ = s.push(nil, text, textIndex, true)
			return err
		}
		opusFrames = append(opusFrames, f)
	}

	return s.push(opusFrames, text, textIndex, false)
}
