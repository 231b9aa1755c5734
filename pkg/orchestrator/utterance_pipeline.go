package orchestrator

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// runUtterancePipeline takes ownership of one buffered utterance: ASR
// and speaker identification run concurrently (spec §4.3), then, for a
// non-empty transcript, intent handling runs before the turn is handed
// to the Response Streamer. Any failure here resets pipeline state
// without tearing down the session (spec §4.3 edge cases).
func (s *Session) runUtterancePipeline(frames [][]byte) {
	defer s.endTurn()

	ctx, cancel := context.WithTimeout(s.ctx, time.Duration(s.cfg.ASRTimeoutSec)*time.Second)
	defer cancel()

	var text, artifactPath string
	var speakerID string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		start := time.Now()
		var err error
		text, artifactPath, err = s.asr.SpeechToText(gctx, frames, s.id)
		if s.metrics != nil {
			s.metrics.ASRLatency.Observe(time.Since(start).Seconds())
		}
		return err
	})
	if s.voiceprint != nil {
		g.Go(func() error {
			spctx, spcancel := context.WithTimeout(gctx, time.Duration(s.cfg.SpeakerIDTimeoutMs)*time.Millisecond)
			defer spcancel()
			id, err := s.voiceprint.IdentifySpeaker(spctx, frames, s.deviceID)
			if err != nil {
				// Speaker ID is best-effort: log and continue with no
				// speaker rather than failing the whole utterance.
				s.logger.Warn("utterance pipeline: speaker id failed", "error", err, "session", s.id)
				return nil
			}
			speakerID = id
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.logger.Warn("utterance pipeline: asr failed", "error", err, "session", s.id, "artifact", artifactPath)
		return
	}
	if text == "" {
		return
	}
	if speakerID != "" {
		s.speakerID.Store(speakerID)
	}
	if s.metrics != nil {
		s.metrics.UtterancesTotal.Inc()
	}

	s.interactionCount.Add(1)
	_ = s.sink.out.SendControl(ControlMessage{Type: "stt", Text: text, SessionID: s.id})

	if s.intent != nil {
		handled, err := s.intent.HandleUserIntent(s.ctx, s, text)
		if err != nil {
			s.logger.Warn("utterance pipeline: intent handling failed", "error", err, "session", s.id)
		}
		if handled {
			return
		}
	}

	s.dialogue.Put(NewMessage(RoleUser, text, nil))

	if s.memory != nil {
		go func() {
			if err := s.memory.AddMemory(context.Background(), s.dialogue.Messages(), s.dialogue.Metadata(), s.SpeakerID()); err != nil {
				s.logger.Warn("utterance pipeline: memory append failed", "error", err, "session", s.id)
			}
		}()
	}

	tctx := s.beginTurn()
	streamer := newResponseStreamer(s)
	if err := streamer.handleUserTurn(tctx, text); err != nil {
		s.logger.Warn("utterance pipeline: response streamer failed", "error", err, "session", s.id)
	}
}
