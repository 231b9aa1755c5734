package orchestrator

import (
	"context"
	"time"
)

// RunProactiveLoop periodically checks whether the session has gone
// silent long enough to warrant a proactive follow-up (spec §4.8): the
// device must have been idle for SilenceThresholdSec, the conversation
// must have had at least MinInteractionCount user turns, and the last
// proactive nudge (if any) must be older than ProactiveCooldownSec. The
// synthetic turn reuses the session's already-acquired TTS pool slot
// (spec §4.8 open question) and is driven through the same Response
// Streamer as a real user turn.
func (s *Session) RunProactiveLoop(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.maybeProact(ctx)
		}
	}
}

func (s *Session) maybeProact(ctx context.Context) {
	if s.receiving.Load() || s.sink.Speaking() {
		return
	}
	if s.interactionCount.Load() < int64(s.cfg.MinInteractionCount) {
		return
	}

	nowMs := time.Now().UnixMilli()
	idleMs := nowMs - s.lastActivityMs.Load()
	if idleMs < s.cfg.SilenceThresholdSec*1000 {
		return
	}

	last := s.lastProactiveMs.Load()
	if last != 0 && nowMs-last < s.cfg.ProactiveCooldownSec*1000 {
		return
	}

	if !s.receiving.CompareAndSwap(false, true) {
		return
	}
	defer s.endTurn()

	s.lastProactiveMs.Store(nowMs)
	s.markActivity()

	tctx := s.beginTurn()
	s.sink.beginTurn()
	streamer := newResponseStreamer(s)
	prompt := "The user has been quiet for a while. Offer a brief, relevant follow-up or check-in, without being pushy."
	s.dialogue.Put(NewMessage(RoleUser, prompt, map[string]any{"proactive": true}))
	if err := streamer.runLLMRound(tctx, ""); err != nil {
		s.logger.Warn("proactive loop: follow-up failed", "error", err, "session", s.id)
	}
}
