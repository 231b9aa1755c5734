// Package voiceprint implements a lightweight, no-ML-model default
// Voiceprint provider: a coarse FFT-magnitude + pitch/volume/speed
// feature vector compared by cosine similarity, grounded on
// xiaozhi-server/core/providers/voiceprint/lightweight.py's
// _extract_voice_features/compare_voiceprints/identify_speaker. Profiles
// persist to one YAML file per device.
package voiceprint

import (
	"context"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/voxloop-ai/voxloop-orchestrator/pkg/audio"
	"gopkg.in/yaml.v3"
)

const (
	spectrumBins    = 32
	featureDim      = spectrumBins + 3 // spectrum + pitch/volume/speed
	defaultThreshold = 0.92
)

// Provider identifies speakers from a per-device set of stored feature
// vectors, registering a new speaker id the first time a voice doesn't
// match any stored profile closely enough.
type Provider struct {
	dir       string
	threshold float64

	mu       sync.Mutex
	profiles map[string]map[string][]float64 // deviceID -> speakerID -> features
	counter  map[string]int
}

// New builds a Provider persisting profiles under dir. threshold <= 0
// uses the lightweight.py default of 0.8 scaled up for the cosine
// metric used here (0.92).
func New(dir string, threshold float64) *Provider {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Provider{
		dir:       dir,
		threshold: threshold,
		profiles:  map[string]map[string][]float64{},
		counter:   map[string]int{},
	}
}

func (p *Provider) Name() string { return "lightweight-voiceprint" }

func (p *Provider) profilePath(deviceID string) string {
	return filepath.Join(p.dir, deviceID+".voiceprints.yaml")
}

func (p *Provider) loadLocked(deviceID string) map[string][]float64 {
	if m, ok := p.profiles[deviceID]; ok {
		return m
	}
	m := map[string][]float64{}
	if data, err := os.ReadFile(p.profilePath(deviceID)); err == nil {
		_ = yaml.Unmarshal(data, &m)
	}
	p.profiles[deviceID] = m
	for id := range m {
		_ = id
		p.counter[deviceID]++
	}
	return m
}

func (p *Provider) saveLocked(deviceID string) {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return
	}
	data, err := yaml.Marshal(p.profiles[deviceID])
	if err != nil {
		return
	}
	_ = os.WriteFile(p.profilePath(deviceID), data, 0o644)
}

// IdentifySpeaker implements orchestrator.Voiceprint: decodes the
// utterance's opus frames, extracts a feature vector, and returns the
// closest stored speaker above threshold, registering a new one
// otherwise.
func (p *Provider) IdentifySpeaker(ctx context.Context, frames [][]byte, deviceID string) (string, error) {
	pcm, err := decodePCM(frames)
	if err != nil {
		return "", fmt.Errorf("voiceprint: decode: %w", err)
	}
	if len(pcm) == 0 {
		return "", nil
	}
	features := extractFeatures(pcm)

	p.mu.Lock()
	defer p.mu.Unlock()

	profiles := p.loadLocked(deviceID)

	var bestID string
	bestSim := 0.0
	for id, stored := range profiles {
		sim := cosineSimilarity(features, stored)
		if sim > bestSim {
			bestSim = sim
			bestID = id
		}
	}
	if bestID != "" && bestSim >= p.threshold {
		return bestID, nil
	}

	newID := fmt.Sprintf("speaker_%d", p.counter[deviceID])
	p.counter[deviceID]++
	profiles[newID] = features
	p.saveLocked(deviceID)
	return newID, nil
}

func decodePCM(frames [][]byte) ([]int16, error) {
	dec, err := audio.NewDecoder(audio.InFrameSamples)
	if err != nil {
		return nil, err
	}
	var samples []int16
	for _, f := range frames {
		pcm, err := dec.Decode(f)
		if err != nil {
			continue
		}
		for i := 0; i+1 < len(pcm); i += 2 {
			samples = append(samples, int16(pcm[i])|int16(pcm[i+1])<<8)
		}
	}
	return samples, nil
}

// extractFeatures builds a featureDim vector: a coarse magnitude
// spectrum (naive DFT over a power-of-two window, spectrumBins
// lowest bins kept) plus pitch (autocorrelation lag of the first
// strong peak), volume (mean absolute amplitude) and speed
// (zero-crossing rate), mirroring lightweight.py's feature tuple.
func extractFeatures(samples []int16) []float64 {
	f := make([]float64, len(samples))
	for i, s := range samples {
		f[i] = float64(s) / 32768.0
	}

	n := 1
	for n < len(f) {
		n *= 2
	}
	if n == 0 {
		n = 1
	}
	padded := make([]float64, n)
	copy(padded, f)

	spectrum := naiveDFTMagnitude(padded, spectrumBins)
	maxMag := 0.0
	for _, m := range spectrum {
		if m > maxMag {
			maxMag = m
		}
	}
	if maxMag > 0 {
		for i := range spectrum {
			spectrum[i] /= maxMag
		}
	}

	pitch := estimatePitch(f)
	volume := meanAbs(f)
	speed := zeroCrossingRate(f)

	out := make([]float64, 0, featureDim)
	out = append(out, spectrum...)
	out = append(out, pitch, volume, speed)
	return out
}

// naiveDFTMagnitude computes the magnitude of the first k frequency
// bins of x's discrete Fourier transform directly (O(n*k)) — adequate
// for the small low-frequency feature slice this provider needs,
// avoiding a third-party FFT dependency for a handful of bins.
func naiveDFTMagnitude(x []float64, k int) []float64 {
	n := len(x)
	if k > n {
		k = n
	}
	out := make([]float64, k)
	for bin := 0; bin < k; bin++ {
		var re, im float64
		for t, v := range x {
			angle := -2 * math.Pi * float64(bin) * float64(t) / float64(n)
			re += v * math.Cos(angle)
			im += v * math.Sin(angle)
		}
		out[bin] = math.Hypot(re, im)
	}
	return out
}

func estimatePitch(x []float64) float64 {
	n := len(x)
	if n < 2 {
		return 0
	}
	var energy float64
	for _, v := range x {
		energy += v * v
	}
	if energy == 0 {
		return 0
	}
	for lag := 1; lag < n; lag++ {
		var corr float64
		for i := 0; i+lag < n; i++ {
			corr += x[i] * x[i+lag]
		}
		if corr > 0.9*energy {
			return float64(lag)
		}
	}
	return 0
}

func meanAbs(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += math.Abs(v)
	}
	return sum / float64(len(x))
}

func zeroCrossingRate(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(x); i++ {
		if (x[i-1] < 0) != (x[i] < 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(x))
}

func cosineSimilarity(a, b []float64) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	if n == 0 {
		return 0
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += a[i] * b[i]
		na += a[i] * a[i]
		nb += b[i] * b[i]
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
