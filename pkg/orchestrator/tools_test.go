package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
)

type fakeOutboundTools struct{}

func (fakeOutboundTools) SendControl(v any) error       { return nil }
func (fakeOutboundTools) SendAudio(packet []byte) error { return nil }
func (fakeOutboundTools) Close() error                  { return nil }

type fakeDecoderTools struct{}

func (fakeDecoderTools) Decode(packet []byte) ([]byte, error) { return make([]byte, 640), nil }

func newTestSessionForTools(t *testing.T) *Session {
	t.Helper()
	cfg := DefaultConfig()
	deps := SessionDeps{
		VADProvider: NewRMSVAD(cfg.VADThreshold),
		OpusDecoder: fakeDecoderTools{},
	}
	return NewSession(context.Background(), "device-1", cfg, deps, fakeOutboundTools{})
}

func TestDefaultFunctionRegistrySpecsIncludesGetTime(t *testing.T) {
	r := NewDefaultFunctionRegistry()
	specs := r.Specs()
	found := false
	for _, s := range specs {
		if s.Name == "get_time" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected get_time in specs, got %+v", specs)
	}
}

func TestDefaultFunctionRegistryCallGetTime(t *testing.T) {
	r := NewDefaultFunctionRegistry()
	s := newTestSessionForTools(t)
	defer s.Close()

	result, followUp, err := r.Call(context.Background(), s, "get_time", nil)
	if err != nil {
		t.Fatal(err)
	}
	if !followUp {
		t.Error("expected followUp=true")
	}
	if result == "" {
		t.Error("expected non-empty time string")
	}
}

func TestDefaultFunctionRegistryCallUnknown(t *testing.T) {
	r := NewDefaultFunctionRegistry()
	s := newTestSessionForTools(t)
	defer s.Close()

	_, _, err := r.Call(context.Background(), s, "no_such_function", nil)
	if !errors.Is(err, ErrToolNotFound) {
		t.Errorf("got %v, want ErrToolNotFound", err)
	}
}

func TestDefaultFunctionRegistryRegisterOverride(t *testing.T) {
	r := NewDefaultFunctionRegistry()
	r.Register(FunctionSpec{Name: "echo"}, func(ctx context.Context, conn *Session, args json.RawMessage) (string, bool, error) {
		return string(args), false, nil
	})
	s := newTestSessionForTools(t)
	defer s.Close()

	result, followUp, err := r.Call(context.Background(), s, "echo", json.RawMessage(`"hi"`))
	if err != nil {
		t.Fatal(err)
	}
	if followUp {
		t.Error("expected followUp=false")
	}
	if result != `"hi"` {
		t.Errorf("result = %q", result)
	}
}

func TestDefaultFunctionRegistryCallWrapsError(t *testing.T) {
	r := NewDefaultFunctionRegistry()
	r.Register(FunctionSpec{Name: "fail"}, func(ctx context.Context, conn *Session, args json.RawMessage) (string, bool, error) {
		return "", false, errors.New("boom")
	})
	s := newTestSessionForTools(t)
	defer s.Close()

	_, _, err := r.Call(context.Background(), s, "fail", nil)
	if !IsKind(err, KindToolCall) {
		t.Errorf("expected KindToolCall error, got %v", err)
	}
}
