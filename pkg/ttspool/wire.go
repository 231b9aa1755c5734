// Package ttspool implements a capacity-bounded pool of slots for
// upstream bidirectional TTS exchanges speaking the ByteDance-style binary
// wire protocol (spec §4.6), grounded bit-for-bit on
// `core/providers/tts/bytedance.py` and `core/providers/tts/tts_pool.py`.
package ttspool

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
)

// Protocol constants (bytedance.py header/flag/event layout).
const (
	protocolVersion   = 0b0001
	defaultHeaderSize = 0b0001

	msgTypeFullClientRequest = 0b0001
	msgTypeAudioOnlyResponse = 0b1011
	msgTypeFullServerResponse = 0b1001
	msgTypeErrorInformation  = 0b1111

	flagWithEvent = 0b0100

	serialNone = 0b0000
	serialJSON = 0b0001

	compressionNone = 0b0000
)

// Event numbers (bytedance.py EVENT_*).
const (
	EventNone = 0

	EventStartConnection  = 1
	EventFinishConnection = 2
	EventConnectionStarted = 50
	EventConnectionFailed  = 51
	EventConnectionFinished = 52

	EventStartSession  = 100
	EventFinishSession = 102

	EventSessionStarted = 150
	EventSessionFinished = 152
	EventSessionFailed   = 153

	EventTaskRequest = 200

	EventTTSSentenceStart = 350
	EventTTSSentenceEnd   = 351
	EventTTSResponse      = 352
)

// header is the fixed 4-byte frame header: two nibble-packed bytes of
// protocol_version/header_size and message_type/flags, one
// nibble-packed byte of serial_method/compression, and one reserved
// byte.
type header struct {
	messageType     byte
	specificFlags   byte
	serialMethod    byte
	compressionType byte
}

func (h header) bytes() []byte {
	return []byte{
		(protocolVersion << 4) | defaultHeaderSize,
		(h.messageType << 4) | h.specificFlags,
		(h.serialMethod << 4) | h.compressionType,
		0,
	}
}

// clientFrame builds one outbound frame: header + optional(event,
// sessionId) + length-prefixed payload (bytedance.py `send_event`).
func clientFrame(event int32, sessionID string, payload []byte) []byte {
	h := header{
		messageType:   msgTypeFullClientRequest,
		specificFlags: flagWithEvent,
		serialMethod:  serialJSON,
	}
	buf := append([]byte{}, h.bytes()...)
	buf = appendInt32(buf, event)
	if sessionID != "" {
		buf = appendInt32(buf, int32(len(sessionID)))
		buf = append(buf, sessionID...)
	}
	buf = appendInt32(buf, int32(len(payload)))
	buf = append(buf, payload...)
	return buf
}

func appendInt32(buf []byte, v int32) []byte {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(v))
	return append(buf, b[:]...)
}

type jsonPayload struct {
	User struct {
		UID string `json:"uid"`
	} `json:"user"`
	Event      int32  `json:"event"`
	Namespace  string `json:"namespace"`
	ReqParams  struct {
		Text        string `json:"text"`
		Speaker     string `json:"speaker"`
		AudioParams struct {
			Format     string `json:"format"`
			SampleRate int    `json:"sample_rate"`
		} `json:"audio_params"`
	} `json:"req_params"`
}

func payloadBytes(event int32, text, speaker string) []byte {
	p := jsonPayload{Event: event, Namespace: "BidirectionalTTS"}
	p.User.UID = "1"
	p.ReqParams.Text = text
	p.ReqParams.Speaker = speaker
	p.ReqParams.AudioParams.Format = "mp3"
	p.ReqParams.AudioParams.SampleRate = 24000
	b, _ := json.Marshal(p)
	return b
}

// encodeStartConnection builds the connection-open frame.
func encodeStartConnection() []byte {
	return clientFrame(EventStartConnection, "", []byte("{}"))
}

// encodeStartSession builds the session-open frame for one voice.
func encodeStartSession(voice, sessionID string) []byte {
	return clientFrame(EventStartSession, sessionID, payloadBytes(EventStartSession, "", voice))
}

// encodeSendText builds the synthesize-this-text frame.
func encodeSendText(voice, text, sessionID string) []byte {
	return clientFrame(EventTaskRequest, sessionID, payloadBytes(EventTaskRequest, text, voice))
}

// encodeFinishSession builds the session-close frame.
func encodeFinishSession(sessionID string) []byte {
	return clientFrame(EventFinishSession, sessionID, []byte("{}"))
}

// encodeFinishConnection builds the connection-close frame.
func encodeFinishConnection() []byte {
	return clientFrame(EventFinishConnection, "", []byte("{}"))
}

// serverFrame is one parsed inbound frame (bytedance.py `Response`).
type serverFrame struct {
	messageType byte
	event       int32
	sessionID   string
	errorCode   int32
	payload     []byte
}

// decodeServerFrame parses one inbound wire frame.
func decodeServerFrame(raw []byte) (serverFrame, error) {
	if len(raw) < 4 {
		return serverFrame{}, fmt.Errorf("ttspool: frame shorter than header (%d bytes)", len(raw))
	}
	f := serverFrame{
		messageType: (raw[1] >> 4) & 0x0f,
	}
	specificFlags := raw[1] & 0x0f
	offset := 4

	switch f.messageType {
	case msgTypeFullServerResponse, msgTypeAudioOnlyResponse:
		if specificFlags != flagWithEvent {
			return f, nil
		}
		if offset+4 > len(raw) {
			return serverFrame{}, fmt.Errorf("ttspool: truncated event field")
		}
		f.event = int32(binary.BigEndian.Uint32(raw[offset : offset+4]))
		offset += 4
		switch f.event {
		case EventNone:
			return f, nil
		case EventConnectionStarted, EventConnectionFailed:
			_, offset = readContent(raw, offset)
		case EventSessionStarted, EventSessionFailed, EventSessionFinished:
			f.sessionID, offset = readContent(raw, offset)
			_, offset = readContent(raw, offset)
		default:
			f.sessionID, offset = readContent(raw, offset)
			f.payload, offset = readPayload(raw, offset)
		}
	case msgTypeErrorInformation:
		if offset+4 > len(raw) {
			return serverFrame{}, fmt.Errorf("ttspool: truncated error code")
		}
		f.errorCode = int32(binary.BigEndian.Uint32(raw[offset : offset+4]))
		offset += 4
		f.payload, offset = readPayload(raw, offset)
	}
	_ = offset
	return f, nil
}

func readContent(raw []byte, offset int) (string, int) {
	if offset+4 > len(raw) {
		return "", offset
	}
	size := int(binary.BigEndian.Uint32(raw[offset : offset+4]))
	offset += 4
	if offset+size > len(raw) {
		size = len(raw) - offset
	}
	s := string(raw[offset : offset+size])
	return s, offset + size
}

func readPayload(raw []byte, offset int) ([]byte, int) {
	if offset+4 > len(raw) {
		return nil, offset
	}
	size := int(binary.BigEndian.Uint32(raw[offset : offset+4]))
	offset += 4
	if offset+size > len(raw) {
		size = len(raw) - offset
	}
	return raw[offset : offset+size], offset + size
}
