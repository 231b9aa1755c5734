// Package stt implements ASR provider adapters over the opus frames an
// utterance pipeline hands to SpeechToText (spec §4.3).
package stt

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/voxloop-ai/voxloop-orchestrator/pkg/audio"
)

// decodeToWav turns one utterance's opus frames into a 16kHz mono WAV
// buffer, matching what the teacher's providers expected as audioPCM
// before it was pulled from the network directly.
func decodeToWav(frames [][]byte) ([]byte, error) {
	dec, err := audio.NewDecoder(audio.InFrameSamples)
	if err != nil {
		return nil, fmt.Errorf("stt: new opus decoder: %w", err)
	}

	pcm := make([]byte, 0, len(frames)*audio.InFrameSamples*2)
	for _, f := range frames {
		samples, err := dec.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("stt: decode frame: %w", err)
		}
		pcm = append(pcm, samples...)
	}
	return audio.NewWavBuffer(pcm, audio.SampleRateHz), nil
}

// dumpArtifact best-effort writes the WAV to a temp dir for later
// inspection, returning its path. Failure is non-fatal; ASR providers
// keep working without an artifact path (spec §4.3 edge case).
func dumpArtifact(sessionID string, wavData []byte) string {
	dir := filepath.Join(os.TempDir(), "voxloop-asr")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return ""
	}
	name := fmt.Sprintf("%s-%d.wav", sessionID, time.Now().UnixNano())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, wavData, 0o644); err != nil {
		return ""
	}
	return path
}
