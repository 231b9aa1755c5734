package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
)

type GroqSTT struct {
	apiKey string
	url    string
	model  string
}

func NewGroqSTT(apiKey string, model string) *GroqSTT {
	if model == "" {
		model = "whisper-large-v3-turbo"
	}
	return &GroqSTT{
		apiKey: apiKey,
		url:    "https://api.groq.com/openai/v1/audio/transcriptions",
		model:  model,
	}
}

func (s *GroqSTT) SpeechToText(ctx context.Context, frames [][]byte, sessionID string) (string, string, error) {
	wavData, err := decodeToWav(frames)
	if err != nil {
		return "", "", err
	}
	artifactPath := dumpArtifact(sessionID, wavData)

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	if err := writer.WriteField("model", s.model); err != nil {
		return "", artifactPath, err
	}

	part, err := writer.CreateFormFile("file", "audio.wav")
	if err != nil {
		return "", artifactPath, err
	}
	if _, err := io.Copy(part, bytes.NewReader(wavData)); err != nil {
		return "", artifactPath, err
	}

	if err := writer.Close(); err != nil {
		return "", artifactPath, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", s.url, body)
	if err != nil {
		return "", artifactPath, err
	}

	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+s.apiKey)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", artifactPath, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var errResp interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		return "", artifactPath, fmt.Errorf("groq stt error (status %d): %v", resp.StatusCode, errResp)
	}

	var result struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", artifactPath, err
	}

	return result.Text, artifactPath, nil
}

func (s *GroqSTT) Name() string {
	return "groq-stt"
}
