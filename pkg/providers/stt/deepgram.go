package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"github.com/voxloop-ai/voxloop-orchestrator/pkg/audio"
)

type DeepgramSTT struct {
	apiKey string
	url    string
}

func NewDeepgramSTT(apiKey string) *DeepgramSTT {
	return &DeepgramSTT{
		apiKey: apiKey,
		url:    "https://api.deepgram.com/v1/listen",
	}
}

func (s *DeepgramSTT) Name() string {
	return "deepgram-stt"
}

func (s *DeepgramSTT) SpeechToText(ctx context.Context, frames [][]byte, sessionID string) (string, string, error) {
	wavData, err := decodeToWav(frames)
	if err != nil {
		return "", "", err
	}
	artifactPath := dumpArtifact(sessionID, wavData)

	u, err := url.Parse(s.url)
	if err != nil {
		return "", artifactPath, err
	}

	params := u.Query()
	params.Set("model", "nova-2")
	params.Set("smart_format", "true")
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, "POST", u.String(), bytes.NewReader(wavData))
	if err != nil {
		return "", artifactPath, err
	}

	req.Header.Set("Authorization", "Token "+s.apiKey)
	req.Header.Set("Content-Type", fmt.Sprintf("audio/l16; rate=%d; channels=%d", audio.SampleRateHz, audio.Channels))

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", artifactPath, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return "", artifactPath, fmt.Errorf("deepgram error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var result struct {
		Results struct {
			Channels []struct {
				Alternatives []struct {
					Transcript string `json:"transcript"`
				} `json:"alternatives"`
			} `json:"channels"`
		} `json:"results"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", artifactPath, err
	}

	if len(result.Results.Channels) == 0 || len(result.Results.Channels[0].Alternatives) == 0 {
		return "", artifactPath, nil
	}

	return result.Results.Channels[0].Alternatives[0].Transcript, artifactPath, nil
}
