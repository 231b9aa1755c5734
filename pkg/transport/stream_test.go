package transport

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/voxloop-ai/voxloop-orchestrator/pkg/orchestrator"
)

func TestStreamRoundTrip(t *testing.T) {
	var gotText string
	var gotAudio []byte
	done := make(chan struct{})

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			t.Errorf("accept: %v", err)
			return
		}
		s := New(conn)
		router := orchestrator.NewFrameRouter(
			func(text string) error { gotText = text; return nil },
			func(packet []byte) error { gotAudio = packet; close(done); return nil },
		)
		_ = s.Run(context.Background(), router)
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.Dial(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := conn.Write(context.Background(), websocket.MessageText, []byte(`{"type":"abort"}`)); err != nil {
		t.Fatalf("write text: %v", err)
	}
	if err := conn.Write(context.Background(), websocket.MessageBinary, []byte{1, 2, 3}); err != nil {
		t.Fatalf("write binary: %v", err)
	}

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for audio frame")
	}

	if gotText != `{"type":"abort"}` {
		t.Errorf("text = %q", gotText)
	}
	if string(gotAudio) != "\x01\x02\x03" {
		t.Errorf("audio = %v", gotAudio)
	}
}

func TestStreamSendControlAndAudio(t *testing.T) {
	msgs := make(chan websocket.MessageType, 2)
	payloads := make(chan []byte, 2)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "")
		s := New(conn)
		_ = s.SendControl(orchestrator.ControlMessage{Type: "tts", State: "stop"})
		_ = s.SendAudio([]byte{9, 9})
		<-r.Context().Done()
	}))
	defer srv.Close()

	wsURL := "ws" + srv.URL[len("http"):]
	conn, _, err := websocket.Dial(context.Background(), wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	go func() {
		for i := 0; i < 2; i++ {
			kind, data, err := conn.Read(context.Background())
			if err != nil {
				return
			}
			msgs <- kind
			payloads <- data
		}
	}()

	for i := 0; i < 2; i++ {
		select {
		case kind := <-msgs:
			data := <-payloads
			switch kind {
			case websocket.MessageText:
				if string(data) != `{"type":"tts","state":"stop"}` {
					t.Errorf("control payload = %s", data)
				}
			case websocket.MessageBinary:
				if string(data) != "\x09\x09" {
					t.Errorf("audio payload = %v", data)
				}
			}
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for message")
		}
	}
}
