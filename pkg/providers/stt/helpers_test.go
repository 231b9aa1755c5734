package stt

import "github.com/voxloop-ai/voxloop-orchestrator/pkg/audio"

// silentFrames builds n valid opus-encoded silent frames so tests can
// exercise the decodeToWav path without a real recording.
func silentFrames(n int) [][]byte {
	enc, err := audio.NewEncoder()
	if err != nil {
		panic(err)
	}
	silence := make([]int16, audio.InFrameSamples)
	frames := make([][]byte, 0, n)
	for i := 0; i < n; i++ {
		f, err := enc.EncodeFrameN(silence, audio.InFrameSamples)
		if err != nil {
			panic(err)
		}
		frames = append(frames, f)
	}
	return frames
}
