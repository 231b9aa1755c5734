package orchestrator

import (
	"context"
	"sync"
	"time"
)

// AudioSegment is one synthesized TTS segment queued for playback, or
// (Final=true) the end-of-turn marker that tells the sink to emit
// `stop` (spec §4.7). Queuing the marker through the same ordered
// channel as real segments avoids a race between the last segment's
// playback and the "this was the last one" flag.
type AudioSegment struct {
	OpusFrames [][]byte
	Text       string
	TextIndex  int
	Failed     bool
	Final      bool
}

const nominalFrameDuration = 60 * time.Millisecond

// AudioSink is the per-session ordered audio-out pump (spec §4.7): it
// consumes synthesized segments in text_index order, paces frame
// delivery against the client's consumption rate, and emits the
// sentence_start/sentence_end/stop control frames framing each
// segment. client_abort (via Stop) drops whatever is queued and mid-
// flight immediately.
type AudioSink struct {
	s      *Session
	out    Outbound
	cfg    Config
	logger Logger

	queue chan AudioSegment

	mu       sync.Mutex
	speaking bool
	abortCh  chan struct{}
}

// NewAudioSink builds a sink writing to out.
func NewAudioSink(s *Session, out Outbound, cfg Config, logger Logger) *AudioSink {
	return &AudioSink{
		s:      s,
		out:    out,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan AudioSegment, 32),
	}
}

// Run drains the queue until ctx is cancelled.
func (a *AudioSink) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case seg, ok := <-a.queue:
			if !ok {
				return
			}
			a.play(seg)
		}
	}
}

// beginTurn arms a fresh abort signal for the turn about to start
// producing audio (spec §4.5/§4.7 turn boundary) and announces it to
// the client (spec §6 `tts` state `start`).
func (a *AudioSink) beginTurn() {
	a.mu.Lock()
	a.abortCh = make(chan struct{})
	a.speaking = true
	a.mu.Unlock()
	_ = a.out.SendControl(ControlMessage{Type: "tts", State: "start", SessionID: a.s.id})
}

// finish enqueues the end-of-turn marker (spec §4.5 step 7 / §4.7
// `stop`). Safe to call once per LLM round that ends with no further
// tool calls.
func (a *AudioSink) finish() {
	_ = a.Enqueue(AudioSegment{Final: true})
}

// Enqueue appends one segment to the ordered playback queue.
func (a *AudioSink) Enqueue(seg AudioSegment) error {
	select {
	case a.queue <- seg:
		return nil
	case <-a.s.ctx.Done():
		return a.s.ctx.Err()
	}
}

// Speaking reports whether the sink is mid-turn (used by Session.Write
// to detect barge-in).
func (a *AudioSink) Speaking() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.speaking
}

// Stop implements client_abort: it invalidates the current turn's
// frames-in-flight signal and drains anything already queued, without
// touching the underlying transport (spec §4.7).
func (a *AudioSink) Stop() {
	a.mu.Lock()
	if a.abortCh != nil {
		close(a.abortCh)
		a.abortCh = nil
	}
	a.speaking = false
	a.mu.Unlock()

	for {
		select {
		case <-a.queue:
		default:
			return
		}
	}
}

func (a *AudioSink) snapshotAbortCh() chan struct{} {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.abortCh
}

// play emits one segment's control/audio frame sequence, pacing real
// audio delivery against nominalFrameDuration with a pre-buffer burst
// followed by batched, dynamically-delayed sends (spec §4.7).
func (a *AudioSink) play(seg AudioSegment) {
	if seg.Final {
		a.mu.Lock()
		a.speaking = false
		a.mu.Unlock()
		_ = a.out.SendControl(ControlMessage{Type: "tts", State: "stop", SessionID: a.s.id})
		return
	}

	abortCh := a.snapshotAbortCh()
	if abortCh == nil {
		return
	}

	_ = a.out.SendControl(ControlMessage{
		Type: "tts", State: "sentence_start", SessionID: a.s.id,
		Text: seg.Text, TextIndex: seg.TextIndex,
	})

	if !seg.Failed {
		a.sendFrames(seg.OpusFrames, abortCh)
	}

	_ = a.out.SendControl(ControlMessage{
		Type: "tts", State: "sentence_end", SessionID: a.s.id, TextIndex: seg.TextIndex,
	})
}

// sendFrames bursts the first AudioPreBufferFrames frames, then sends
// in AudioBatchFrames-sized batches with a delay clamped to
// [0.7, 1.1] x nominal per frame sent, so a slow consumer doesn't get
// flooded and a fast one doesn't starve (spec §4.7 pacing).
func (a *AudioSink) sendFrames(frames [][]byte, abortCh chan struct{}) {
	pre := a.cfg.AudioPreBufferFrames
	if pre > len(frames) {
		pre = len(frames)
	}
	i := 0
	for ; i < pre; i++ {
		if aborted(abortCh) {
			return
		}
		_ = a.out.SendAudio(frames[i])
		if a.s.echo != nil {
			if pcm, err := a.s.vadGate.DecodePCM(frames[i]); err == nil {
				a.s.echo.RecordPlayedAudio(pcm)
			}
		}
	}

	batch := a.cfg.AudioBatchFrames
	if batch <= 0 {
		batch = 1
	}
	for i < len(frames) {
		if aborted(abortCh) {
			return
		}
		n := batch
		if i+n > len(frames) {
			n = len(frames) - i
		}
		start := time.Now()
		for j := 0; j < n; j++ {
			frame := frames[i+j]
			_ = a.out.SendAudio(frame)
			if a.s.echo != nil {
				if pcm, err := a.s.vadGate.DecodePCM(frame); err == nil {
					a.s.echo.RecordPlayedAudio(pcm)
				}
			}
		}
		i += n

		target := nominalFrameDuration * time.Duration(n)
		elapsed := time.Since(start)
		delay := target - elapsed
		lo := time.Duration(float64(nominalFrameDuration)*0.7) * time.Duration(n)
		hi := time.Duration(float64(nominalFrameDuration)*1.1) * time.Duration(n)
		if delay < lo {
			delay = lo
		}
		if delay > hi {
			delay = hi
		}
		select {
		case <-time.After(delay):
		case <-abortCh:
			return
		}
	}
}

func aborted(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}
