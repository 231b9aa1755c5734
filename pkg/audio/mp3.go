package audio

import (
	"bytes"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"
)

// DecodeMP3ToPCM16Mono16k decodes a complete MP3 payload (as returned
// by the upstream TTS wire protocol's AUDIO_ONLY_RESPONSE frames,
// spec §4.6) into 16-bit PCM samples at 16 kHz mono, downmixing stereo
// and resampling as needed. No retrieved example or manifest pulls in
// a resampling library, so this uses a small linear-interpolation
// resampler rather than reach for one (see DESIGN.md).
func DecodeMP3ToPCM16Mono16k(mp3Data []byte) ([]int16, error) {
	dec, err := mp3.NewDecoder(bytes.NewReader(mp3Data))
	if err != nil {
		return nil, fmt.Errorf("audio: open mp3 stream: %w", err)
	}

	raw, err := io.ReadAll(dec)
	if err != nil && err != io.EOF {
		return nil, fmt.Errorf("audio: read mp3 stream: %w", err)
	}

	stereo := bytesToInt16(raw)
	mono := downmixStereo(stereo)
	return resampleLinear(mono, dec.SampleRate(), SampleRateHz), nil
}

func downmixStereo(samples []int16) []int16 {
	mono := make([]int16, len(samples)/2)
	for i := range mono {
		l, r := int32(samples[2*i]), int32(samples[2*i+1])
		mono[i] = int16((l + r) / 2)
	}
	return mono
}

func resampleLinear(pcm []int16, fromHz, toHz int) []int16 {
	if fromHz == toHz || len(pcm) == 0 {
		return pcm
	}
	ratio := float64(fromHz) / float64(toHz)
	outLen := int(float64(len(pcm)) / ratio)
	out := make([]int16, outLen)
	for i := range out {
		srcPos := float64(i) * ratio
		idx := int(srcPos)
		frac := srcPos - float64(idx)
		if idx+1 >= len(pcm) {
			out[i] = pcm[len(pcm)-1]
			continue
		}
		a, b := float64(pcm[idx]), float64(pcm[idx+1])
		out[i] = int16(a + (b-a)*frac)
	}
	return out
}
