package orchestrator

import (
	"errors"
	"testing"
)

func TestFrameRouterRoutesText(t *testing.T) {
	var got string
	r := NewFrameRouter(
		func(text string) error { got = text; return nil },
		func(packet []byte) error { t.Fatal("unexpected audio call"); return nil },
	)
	if err := r.Route(Frame{Kind: FrameText, Text: "hello"}); err != nil {
		t.Fatal(err)
	}
	if got != "hello" {
		t.Errorf("got %q, want %q", got, "hello")
	}
}

func TestFrameRouterRoutesBinary(t *testing.T) {
	var got []byte
	r := NewFrameRouter(
		func(text string) error { t.Fatal("unexpected text call"); return nil },
		func(packet []byte) error { got = packet; return nil },
	)
	data := []byte{1, 2, 3}
	if err := r.Route(Frame{Kind: FrameBinary, Data: data}); err != nil {
		t.Fatal(err)
	}
	if string(got) != string(data) {
		t.Errorf("got %v, want %v", got, data)
	}
}

func TestFrameRouterUnknownKind(t *testing.T) {
	r := NewFrameRouter(
		func(text string) error { t.Fatal("unexpected text call"); return nil },
		func(packet []byte) error { t.Fatal("unexpected audio call"); return nil },
	)
	err := r.Route(Frame{Kind: FrameUnknown})
	if !errors.Is(err, ErrProtocolKind) {
		t.Errorf("got %v, want ErrProtocolKind", err)
	}
}

func TestFrameRouterPropagatesHandlerError(t *testing.T) {
	wantErr := errors.New("boom")
	r := NewFrameRouter(
		func(text string) error { return wantErr },
		func(packet []byte) error { return nil },
	)
	if err := r.Route(Frame{Kind: FrameText}); !errors.Is(err, wantErr) {
		t.Errorf("got %v, want %v", err, wantErr)
	}
}
