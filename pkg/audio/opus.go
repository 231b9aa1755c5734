package audio

import (
	"fmt"

	"layeh.com/gopus"
)

// The orchestrator's wire format is 16 kHz mono opus: 20 ms frames
// (320 samples) inbound from the client/VAD gate, 60 ms frames
// (960 samples) outbound from the TTS pool, grounded on the same
// gopus encoder/decoder pairing `MrWong99-glyphoxa` uses for Discord's
// 48 kHz stereo stream.
const (
	SampleRateHz  = 16000
	Channels      = 1
	InFrameMs     = 20
	InFrameSamples = SampleRateHz * InFrameMs / 1000  // 320
	OutFrameMs    = 60
	OutFrameSamples = SampleRateHz * OutFrameMs / 1000 // 960
)

// Decoder decodes 16 kHz mono opus packets into little-endian int16 PCM
// bytes. frameSamples is the expected sample count per packet; gopus
// needs it to size its internal decode buffer.
type Decoder struct {
	dec          *gopus.Decoder
	frameSamples int
}

// NewDecoder builds a decoder sized for frameSamples-sample packets
// (InFrameSamples for inbound VAD-gate audio).
func NewDecoder(frameSamples int) (*Decoder, error) {
	dec, err := gopus.NewDecoder(SampleRateHz, Channels)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus decoder: %w", err)
	}
	return &Decoder{dec: dec, frameSamples: frameSamples}, nil
}

// Decode implements orchestrator.OpusDecoder.
func (d *Decoder) Decode(packet []byte) ([]byte, error) {
	pcm, err := d.dec.Decode(packet, d.frameSamples, false)
	if err != nil {
		return nil, fmt.Errorf("audio: opus decode: %w", err)
	}
	return int16ToBytes(pcm), nil
}

// Encoder encodes 16 kHz mono PCM into OutFrameSamples-sample opus
// packets for TTS pool playback.
type Encoder struct {
	enc *gopus.Encoder
}

// NewEncoder builds an encoder for TTS pool output framing.
func NewEncoder() (*Encoder, error) {
	enc, err := gopus.NewEncoder(SampleRateHz, Channels, gopus.Audio)
	if err != nil {
		return nil, fmt.Errorf("audio: create opus encoder: %w", err)
	}
	return &Encoder{enc: enc}, nil
}

// EncodeFrame encodes exactly OutFrameSamples int16 PCM samples into
// one opus packet.
func (e *Encoder) EncodeFrame(pcm []int16) ([]byte, error) {
	if len(pcm) != OutFrameSamples {
		return nil, fmt.Errorf("audio: encode frame: want %d samples, got %d", OutFrameSamples, len(pcm))
	}
	opus, err := e.enc.Encode(pcm, OutFrameSamples, len(pcm)*2)
	if err != nil {
		return nil, fmt.Errorf("audio: opus encode: %w", err)
	}
	return opus, nil
}

// EncodeFrameN encodes exactly frameSamples int16 PCM samples into one
// opus packet. Used where the fixed OutFrameSamples framing of
// EncodeFrame doesn't apply, e.g. building InFrameSamples-framed test
// fixtures for the inbound (client-to-server) direction.
func (e *Encoder) EncodeFrameN(pcm []int16, frameSamples int) ([]byte, error) {
	if len(pcm) != frameSamples {
		return nil, fmt.Errorf("audio: encode frame: want %d samples, got %d", frameSamples, len(pcm))
	}
	opus, err := e.enc.Encode(pcm, frameSamples, len(pcm)*2)
	if err != nil {
		return nil, fmt.Errorf("audio: opus encode: %w", err)
	}
	return opus, nil
}

// FramePCM splits pcm into OutFrameSamples-sized frames for the
// encoder, zero-padding the final partial frame.
func FramePCM(pcm []int16) [][]int16 {
	var frames [][]int16
	for i := 0; i < len(pcm); i += OutFrameSamples {
		end := i + OutFrameSamples
		if end > len(pcm) {
			frame := make([]int16, OutFrameSamples)
			copy(frame, pcm[i:])
			frames = append(frames, frame)
			break
		}
		frames = append(frames, pcm[i:end])
	}
	return frames
}

func int16ToBytes(pcm []int16) []byte {
	b := make([]byte, len(pcm)*2)
	for i, s := range pcm {
		b[i*2] = byte(s)
		b[i*2+1] = byte(s >> 8)
	}
	return b
}

func bytesToInt16(b []byte) []int16 {
	pcm := make([]int16, len(b)/2)
	for i := range pcm {
		pcm[i] = int16(b[i*2]) | int16(b[i*2+1])<<8
	}
	return pcm
}
