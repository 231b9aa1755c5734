package ttspool

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrExhausted is returned by Acquire when every pool slot is already
// assigned to a session (spec §4.6/§8 "bounded capacity").
var ErrExhausted = errors.New("ttspool: no available slot")

// Slot is one acquired pooled TTS connection (spec §4.6). Synthesize
// drives the full start_session/send_text/finish_session exchange for
// one response segment and pushes decoded audio to the Push callback
// supplied at Acquire time.
type Slot interface {
	Synthesize(ctx context.Context, text string, textIndex int) error
}

// Logger is the minimal logging surface the pool needs; orchestrator.Logger
// satisfies it structurally.
type Logger interface {
	Warn(msg string, args ...interface{})
	Info(msg string, args ...interface{})
}

type noopLogger struct{}

func (noopLogger) Warn(string, ...interface{}) {}
func (noopLogger) Info(string, ...interface{}) {}

// Pool is the shared, capacity-bounded set of upstream TTS slots (spec
// §4.6), grounded on `tts_pool.py`'s `TTSProvider`: a fixed-size idle
// counter, a session-keyed in-use map behind one lock, and a
// background loop releasing slots idle longer than IdleTimeout.
type Pool struct {
	cfg         Config
	capacity    int
	idleTimeout time.Duration
	logger      Logger

	mu        sync.Mutex
	available int
	inUse     map[string]*slot
}

// NewPool builds a pool with the given upstream credentials, capacity
// and idle timeout.
func NewPool(cfg Config, capacity int, idleTimeout time.Duration, logger Logger) *Pool {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Pool{
		cfg:         cfg,
		capacity:    capacity,
		available:   capacity,
		idleTimeout: idleTimeout,
		logger:      logger,
		inUse:       make(map[string]*slot),
	}
}

// Acquire returns the session's existing slot if it already holds one,
// otherwise claims one of the pool's remaining slots. It returns
// ErrExhausted rather than blocking, matching the original's
// non-blocking `queue.get_nowait`.
func (p *Pool) Acquire(ctx context.Context, sessionID string, voice string, push Push) (Slot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if s, ok := p.inUse[sessionID]; ok {
		s.touch()
		return s, nil
	}
	if p.available <= 0 {
		p.logger.Warn("ttspool: pool exhausted", "session", sessionID)
		return nil, ErrExhausted
	}

	p.available--
	s := &slot{pool: p, session: sessionID, voice: voice, push: push, lastUsed: time.Now()}
	p.inUse[sessionID] = s
	p.logger.Info("ttspool: slot acquired", "session", sessionID)
	return s, nil
}

// Release returns sessionID's slot, if any, to the idle pool.
func (p *Pool) Release(sessionID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.inUse[sessionID]; !ok {
		return
	}
	delete(p.inUse, sessionID)
	p.available++
	p.logger.Info("ttspool: slot released", "session", sessionID)
}

// RunIdleReaper releases any slot idle longer than IdleTimeout every
// tick, until ctx is cancelled (spec §4.6 default 3s timeout).
func (p *Pool) RunIdleReaper(ctx context.Context, tick time.Duration) {
	ticker := time.NewTicker(tick)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.reapIdle()
		}
	}
}

func (p *Pool) reapIdle() {
	p.mu.Lock()
	var toRelease []string
	for sessionID, s := range p.inUse {
		if s.idleFor() > p.idleTimeout {
			toRelease = append(toRelease, sessionID)
		}
	}
	p.mu.Unlock()

	for _, sessionID := range toRelease {
		p.logger.Info("ttspool: releasing idle slot", "session", sessionID)
		p.Release(sessionID)
	}
}

// InUse reports the current number of assigned slots, for metrics.
func (p *Pool) InUse() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.inUse)
}

// Capacity reports the pool's total slot count.
func (p *Pool) Capacity() int { return p.capacity }
