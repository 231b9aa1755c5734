package audio

import "testing"

func TestDownmixStereo(t *testing.T) {
	stereo := []int16{100, 200, -100, -200}
	mono := downmixStereo(stereo)
	if len(mono) != 2 {
		t.Fatalf("len = %d, want 2", len(mono))
	}
	if mono[0] != 150 {
		t.Errorf("mono[0] = %d, want 150", mono[0])
	}
	if mono[1] != -150 {
		t.Errorf("mono[1] = %d, want -150", mono[1])
	}
}

func TestResampleLinearSameRate(t *testing.T) {
	pcm := []int16{1, 2, 3, 4}
	out := resampleLinear(pcm, 16000, 16000)
	if len(out) != len(pcm) {
		t.Fatalf("len = %d, want %d", len(out), len(pcm))
	}
}

func TestResampleLinearDownsamples(t *testing.T) {
	pcm := make([]int16, 480) // 24kHz worth of a 20ms-ish frame
	for i := range pcm {
		pcm[i] = int16(i)
	}
	out := resampleLinear(pcm, 24000, 16000)
	wantLen := int(float64(len(pcm)) / (24000.0 / 16000.0))
	if len(out) != wantLen {
		t.Errorf("len = %d, want %d", len(out), wantLen)
	}
}

func TestResampleLinearEmpty(t *testing.T) {
	out := resampleLinear(nil, 24000, 16000)
	if len(out) != 0 {
		t.Errorf("expected empty output, got %d samples", len(out))
	}
}
