package tts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultEndpoint is the hosted speech endpoint the demo targets.
// Override with SPEECH_API_URL for other providers with the same shape.
const defaultEndpoint = "https://api.a4f.co/v1/audio/speech"

// SpeechClient calls a speech-synthesis endpoint that answers with a
// JSON body carrying the hosted audio URL rather than raw audio bytes.
type SpeechClient struct {
	HTTPClient *http.Client
	Endpoint   string
	APIKey     string
	Model      string
	Voice      string
}

type speechRequest struct {
	Model string `json:"model"`
	Text  string `json:"text"`
	Voice string `json:"voice,omitempty"`
}

type speechResponse struct {
	Audio struct {
		URL string `json:"url"`
	} `json:"audio"`
}

func NewSpeechClient(apiKey, model, voice string) *SpeechClient {
	return &SpeechClient{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		Endpoint:   defaultEndpoint,
		APIKey:     apiKey,
		Model:      model,
		Voice:      voice,
	}
}

// Synthesize converts plain text to speech and returns the URL of the
// hosted audio resource.
func (c *SpeechClient) Synthesize(ctx context.Context, text string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("speech api key missing")
	}
	endpoint := c.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}

	reqBody, _ := json.Marshal(speechRequest{Model: c.Model, Text: text, Voice: c.Voice})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(reqBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+c.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("speech error: status=%d body=%s", resp.StatusCode, string(b))
	}
	var sr speechResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", err
	}
	if sr.Audio.URL == "" {
		return "", fmt.Errorf("speech: response missing audio url")
	}
	return sr.Audio.URL, nil
}
