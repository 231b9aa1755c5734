package ttspool

import (
	"context"
	"fmt"
	"net/http"

	"github.com/coder/websocket"
)

// Config is the upstream TTS endpoint's connection credentials (spec
// §4.6 "upstream TTS backend"), grounded on
// `ByteDanceTTSProvider.__init__`.
type Config struct {
	URL        string
	AppID      string
	Token      string
	ResourceID string
}

func (c Config) headers() http.Header {
	h := http.Header{}
	h.Set("X-Api-App-Key", c.AppID)
	h.Set("X-Api-Access-Key", c.Token)
	h.Set("X-Api-Resource-Id", c.ResourceID)
	return h
}

// synthesizeOnce opens a fresh upstream connection, runs the full
// start_connection/start_session/send_text/finish_session exchange for
// one segment, and returns the accumulated MP3 payload (spec §4.6,
// grounded on `bytedance.py:text_to_speak`). Each call is a standalone
// connection, matching the original's per-request connect/close rather
// than a kept-alive upstream socket.
func synthesizeOnce(ctx context.Context, cfg Config, voice, text, sessionID string) ([]byte, error) {
	conn, _, err := websocket.Dial(ctx, cfg.URL, &websocket.DialOptions{HTTPHeader: cfg.headers()})
	if err != nil {
		return nil, fmt.Errorf("ttspool: dial upstream: %w", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	if err := conn.Write(ctx, websocket.MessageBinary, encodeStartConnection()); err != nil {
		return nil, fmt.Errorf("ttspool: send start_connection: %w", err)
	}
	if err := expectEvent(ctx, conn, EventConnectionStarted); err != nil {
		return nil, err
	}

	if err := conn.Write(ctx, websocket.MessageBinary, encodeStartSession(voice, sessionID)); err != nil {
		return nil, fmt.Errorf("ttspool: send start_session: %w", err)
	}
	if err := expectEvent(ctx, conn, EventSessionStarted); err != nil {
		return nil, err
	}

	if err := conn.Write(ctx, websocket.MessageBinary, encodeSendText(voice, text, sessionID)); err != nil {
		return nil, fmt.Errorf("ttspool: send text: %w", err)
	}
	if err := conn.Write(ctx, websocket.MessageBinary, encodeFinishSession(sessionID)); err != nil {
		return nil, fmt.Errorf("ttspool: send finish_session: %w", err)
	}

	var audio []byte
	for {
		_, raw, err := conn.Read(ctx)
		if err != nil {
			return nil, fmt.Errorf("ttspool: read response: %w", err)
		}
		frame, err := decodeServerFrame(raw)
		if err != nil {
			return nil, err
		}
		switch frame.event {
		case EventTTSResponse:
			audio = append(audio, frame.payload...)
		case EventTTSSentenceStart, EventTTSSentenceEnd:
			continue
		case EventSessionFinished:
			goto done
		case EventSessionFailed:
			return nil, fmt.Errorf("ttspool: upstream reported session failed")
		default:
			goto done
		}
	}
done:

	if err := conn.Write(ctx, websocket.MessageBinary, encodeFinishConnection()); err != nil {
		return audio, fmt.Errorf("ttspool: send finish_connection: %w", err)
	}
	return audio, nil
}

func expectEvent(ctx context.Context, conn *websocket.Conn, want int32) error {
	_, raw, err := conn.Read(ctx)
	if err != nil {
		return fmt.Errorf("ttspool: read handshake response: %w", err)
	}
	frame, err := decodeServerFrame(raw)
	if err != nil {
		return err
	}
	if frame.event != want {
		return fmt.Errorf("ttspool: expected event %d, got %d", want, frame.event)
	}
	return nil
}
