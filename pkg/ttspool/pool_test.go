package ttspool

import (
	"context"
	"errors"
	"testing"
	"time"
)

func noopPush(frames [][]byte, text string, textIndex int, failed bool) error { return nil }

func TestPoolAcquireReleaseCapacity(t *testing.T) {
	p := NewPool(Config{}, 2, time.Second, nil)

	s1, err := p.Acquire(context.Background(), "session-1", "voice", noopPush)
	if err != nil {
		t.Fatal(err)
	}
	if s1 == nil {
		t.Fatal("expected a slot")
	}
	if p.InUse() != 1 {
		t.Errorf("InUse() = %d, want 1", p.InUse())
	}

	if _, err := p.Acquire(context.Background(), "session-2", "voice", noopPush); err != nil {
		t.Fatal(err)
	}
	if p.InUse() != 2 {
		t.Errorf("InUse() = %d, want 2", p.InUse())
	}

	if _, err := p.Acquire(context.Background(), "session-3", "voice", noopPush); !errors.Is(err, ErrExhausted) {
		t.Errorf("expected ErrExhausted, got %v", err)
	}

	p.Release("session-1")
	if p.InUse() != 1 {
		t.Errorf("InUse() after release = %d, want 1", p.InUse())
	}

	if _, err := p.Acquire(context.Background(), "session-3", "voice", noopPush); err != nil {
		t.Fatal(err)
	}
}

func TestPoolAcquireReturnsExistingSlotForSameSession(t *testing.T) {
	p := NewPool(Config{}, 1, time.Second, nil)

	s1, err := p.Acquire(context.Background(), "session-1", "voice", noopPush)
	if err != nil {
		t.Fatal(err)
	}
	s2, err := p.Acquire(context.Background(), "session-1", "voice", noopPush)
	if err != nil {
		t.Fatal(err)
	}
	if s1 != s2 {
		t.Error("expected the same slot for repeated acquires by one session")
	}
}

func TestPoolReleaseUnknownSessionIsNoop(t *testing.T) {
	p := NewPool(Config{}, 1, time.Second, nil)
	p.Release("never-acquired")
	if p.InUse() != 0 {
		t.Errorf("InUse() = %d, want 0", p.InUse())
	}
}

func TestPoolCapacity(t *testing.T) {
	p := NewPool(Config{}, 5, time.Second, nil)
	if p.Capacity() != 5 {
		t.Errorf("Capacity() = %d, want 5", p.Capacity())
	}
}

func TestPoolReapIdleReleasesStaleSlots(t *testing.T) {
	p := NewPool(Config{}, 1, time.Millisecond, nil)
	if _, err := p.Acquire(context.Background(), "session-1", "voice", noopPush); err != nil {
		t.Fatal(err)
	}

	time.Sleep(5 * time.Millisecond)
	p.reapIdle()

	if p.InUse() != 0 {
		t.Errorf("InUse() after reap = %d, want 0", p.InUse())
	}
}

func TestPoolRunIdleReaperStopsOnContextCancel(t *testing.T) {
	p := NewPool(Config{}, 1, time.Millisecond, nil)
	if _, err := p.Acquire(context.Background(), "session-1", "voice", noopPush); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.RunIdleReaper(ctx, time.Millisecond)
		close(done)
	}()

	time.Sleep(5 * time.Millisecond)
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("expected RunIdleReaper to return after context cancellation")
	}
}
