package ttspool

import "testing"

func TestClientFrameStartConnection(t *testing.T) {
	frame := encodeStartConnection()
	if len(frame) < 4 {
		t.Fatal("frame too short")
	}
	if frame[0] != (protocolVersion<<4)|defaultHeaderSize {
		t.Errorf("unexpected first header byte: %08b", frame[0])
	}
	msgType := (frame[1] >> 4) & 0x0f
	if msgType != msgTypeFullClientRequest {
		t.Errorf("message type = %d, want %d", msgType, msgTypeFullClientRequest)
	}
}

func TestClientFrameIncludesSessionID(t *testing.T) {
	frame := encodeStartSession("voice-1", "session-123")
	if len(frame) <= 4 {
		t.Fatal("frame too short to carry a session id")
	}
}

func TestDecodeServerFrameTooShort(t *testing.T) {
	_, err := decodeServerFrame([]byte{1, 2})
	if err == nil {
		t.Fatal("expected error for a too-short frame")
	}
}

func TestEncodeDecodeSessionStartedRoundTrip(t *testing.T) {
	payload := payloadBytes(EventSessionStarted, "", "voice-1")
	raw := clientFrame(EventSessionStarted, "session-1", payload)

	// Flip message type + flags to mimic a server response frame using
	// the same header/event/sessionID/payload layout the client side
	// writes, since encodeStartSession's shape is what the server
	// mirrors back for session-scoped events.
	raw[1] = (msgTypeFullServerResponse << 4) | flagWithEvent

	frame, err := decodeServerFrame(raw)
	if err != nil {
		t.Fatal(err)
	}
	if frame.event != EventSessionStarted {
		t.Errorf("event = %d, want %d", frame.event, EventSessionStarted)
	}
	if frame.sessionID != "session-1" {
		t.Errorf("sessionID = %q, want %q", frame.sessionID, "session-1")
	}
}

func TestDecodeServerFrameErrorInformation(t *testing.T) {
	raw := []byte{
		(protocolVersion << 4) | defaultHeaderSize,
		(msgTypeErrorInformation << 4) | 0,
		(serialJSON << 4) | compressionNone,
		0,
	}
	raw = appendInt32(raw, 42)         // error code
	raw = appendInt32(raw, 2)          // payload length
	raw = append(raw, []byte("{}")...) // payload

	frame, err := decodeServerFrame(raw)
	if err != nil {
		t.Fatal(err)
	}
	if frame.errorCode != 42 {
		t.Errorf("errorCode = %d, want 42", frame.errorCode)
	}
	if string(frame.payload) != "{}" {
		t.Errorf("payload = %q, want %q", frame.payload, "{}")
	}
}
