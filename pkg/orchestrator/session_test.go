package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"
)

type recordingOutbound struct {
	mu       sync.Mutex
	controls []any
	audio    [][]byte
	closed   bool
}

func (o *recordingOutbound) SendControl(v any) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.controls = append(o.controls, v)
	return nil
}

func (o *recordingOutbound) SendAudio(packet []byte) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.audio = append(o.audio, packet)
	return nil
}

func (o *recordingOutbound) Close() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed = true
	return nil
}

type silentDecoder struct{}

func (silentDecoder) Decode(packet []byte) ([]byte, error) { return make([]byte, 640), nil }

func newTestSession(t *testing.T, out Outbound) *Session {
	t.Helper()
	cfg := DefaultConfig()
	deps := SessionDeps{
		VADProvider: NewRMSVAD(cfg.VADThreshold),
		OpusDecoder: silentDecoder{},
	}
	return NewSession(context.Background(), "device-1", cfg, deps, out)
}

func TestNewSessionAssignsIDAndVoice(t *testing.T) {
	s := newTestSession(t, &recordingOutbound{})
	defer s.Close()

	if s.ID() == "" {
		t.Error("expected non-empty session id")
	}
	if s.DeviceID() != "device-1" {
		t.Errorf("device id = %q", s.DeviceID())
	}
	if s.Voice() != DefaultConfig().DefaultVoice {
		t.Errorf("voice = %q, want default", s.Voice())
	}
}

func TestSessionHandleTextAbortTriggersBargeIn(t *testing.T) {
	s := newTestSession(t, &recordingOutbound{})
	defer s.Close()

	tctx := s.beginTurn()
	if err := s.HandleText(`{"type":"abort"}`); err != nil {
		t.Fatal(err)
	}
	select {
	case <-tctx.Done():
	case <-time.After(time.Second):
		t.Error("expected turn context to be cancelled on abort")
	}
}

func TestSessionHandleTextIgnoresOtherPayloads(t *testing.T) {
	s := newTestSession(t, &recordingOutbound{})
	defer s.Close()

	tctx := s.beginTurn()
	if err := s.HandleText(`{"type":"ping"}`); err != nil {
		t.Fatal(err)
	}
	select {
	case <-tctx.Done():
		t.Error("did not expect turn context cancelled")
	default:
	}
}

func TestSessionCloseIsIdempotent(t *testing.T) {
	out := &recordingOutbound{}
	s := newTestSession(t, out)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	if !out.closed {
		t.Error("expected outbound Close to be called")
	}
}

func TestSessionTtsSlotNoPoolFails(t *testing.T) {
	s := newTestSession(t, &recordingOutbound{})
	defer s.Close()

	_, err := s.ttsSlot(context.Background())
	if err == nil {
		t.Fatal("expected error acquiring slot with no pool configured")
	}
	if !IsKind(err, KindPoolExhausted) {
		t.Errorf("expected KindPoolExhausted, got %v", err)
	}
}

func TestSessionSetRoleWithoutProviderFails(t *testing.T) {
	s := newTestSession(t, &recordingOutbound{})
	defer s.Close()

	if err := s.SetRole(context.Background(), "some-role"); err == nil {
		t.Fatal("expected error with no role provider configured")
	}
}
