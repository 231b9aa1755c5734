package orchestrator

import (
	"errors"
	"testing"
)

type constDecoder struct {
	pcm []byte
	err error
}

func (d constDecoder) Decode(packet []byte) ([]byte, error) { return d.pcm, d.err }

type scriptedVAD struct {
	probs []float64
	i     int
}

func (v *scriptedVAD) Process(chunk []byte) (float64, error) {
	if v.i >= len(v.probs) {
		return 0, nil
	}
	p := v.probs[v.i]
	v.i++
	return p, nil
}

func (v *scriptedVAD) Name() string { return "scripted" }

func speechPCM() []byte {
	samples := make([]int16, samplesPerChunk)
	for i := range samples {
		samples[i] = 10000
	}
	return int16ToBytes(samples)
}

func TestUtteranceBufferPreRollTruncation(t *testing.T) {
	b := NewUtteranceBuffer(2)
	for i := 0; i < 5; i++ {
		b.Append([]byte{byte(i)}, false, false)
	}
	if b.Len() != 2 {
		t.Errorf("Len() = %d, want 2 (pre-roll truncated)", b.Len())
	}
}

func TestUtteranceBufferKeepsAllFramesOnceSpeechSeen(t *testing.T) {
	b := NewUtteranceBuffer(2)
	b.Append([]byte{1}, true, true)
	for i := 0; i < 5; i++ {
		b.Append([]byte{byte(i)}, false, true)
	}
	if b.Len() != 6 {
		t.Errorf("Len() = %d, want 6", b.Len())
	}
}

func TestUtteranceBufferTakeAndClear(t *testing.T) {
	b := NewUtteranceBuffer(0)
	b.Append([]byte{1}, true, true)
	b.Append([]byte{2}, true, true)
	frames := b.TakeAndClear()
	if len(frames) != 2 {
		t.Fatalf("len(frames) = %d, want 2", len(frames))
	}
	if b.Len() != 0 {
		t.Errorf("Len() after TakeAndClear = %d, want 0", b.Len())
	}
}

func TestUtteranceBufferReset(t *testing.T) {
	b := NewUtteranceBuffer(0)
	b.Append([]byte{1}, true, true)
	b.Reset()
	if b.Len() != 0 {
		t.Errorf("Len() after Reset = %d, want 0", b.Len())
	}
}

func TestVADGateDetectsSpeechAndVoiceStop(t *testing.T) {
	vad := &scriptedVAD{probs: []float64{1.0, 0.0}}
	decoder := constDecoder{pcm: speechPCM()}
	g := NewVADGate(vad, decoder, 0.5, 0, nil)

	speech, stop := g.Process([]byte{0}, 1000)
	if !speech {
		t.Error("expected speech to be detected on first chunk")
	}
	if stop {
		t.Error("did not expect voice_stop on the speech chunk itself")
	}

	speech2, stop2 := g.Process([]byte{0}, 2000)
	_ = speech2
	if !stop2 {
		t.Error("expected voice_stop once silence follows detected speech")
	}
}

func TestVADGateRequiresMinSilenceDuration(t *testing.T) {
	vad := &scriptedVAD{probs: []float64{1.0, 0.0}}
	decoder := constDecoder{pcm: speechPCM()}
	g := NewVADGate(vad, decoder, 0.5, 5000, nil)

	g.Process([]byte{0}, 1000)
	_, stop := g.Process([]byte{0}, 1100)
	if stop {
		t.Error("did not expect voice_stop before minSilenceDurMs elapses")
	}
}

func TestVADGateMalformedOpusIgnored(t *testing.T) {
	vad := &scriptedVAD{}
	decoder := constDecoder{err: errBadOpus}
	g := NewVADGate(vad, decoder, 0.5, 0, nil)

	speech, stop := g.Process([]byte{0}, 1000)
	if speech || stop {
		t.Error("expected malformed packet to be silently ignored")
	}
}

func TestVADGateResetSegmentClearsState(t *testing.T) {
	vad := &scriptedVAD{probs: []float64{1.0}}
	decoder := constDecoder{pcm: speechPCM()}
	g := NewVADGate(vad, decoder, 0.5, 0, nil)

	g.Process([]byte{0}, 1000)
	if !g.HadVoiceInSegment() {
		t.Fatal("expected hadVoiceInSegment to be true before reset")
	}
	g.ResetSegment()
	if g.HadVoiceInSegment() {
		t.Error("expected hadVoiceInSegment to be false after reset")
	}
}

var errBadOpus = errors.New("bad opus packet")
