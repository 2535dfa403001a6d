package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// completionsURL is the Cerebras chat-completions endpoint.
const completionsURL = "https://api.cerebras.ai/v1/chat/completions"

// debateInstruction is the fixed system prompt for every turn.
const debateInstruction = "You are a sharp but friendly debate partner. Take a clear position on whatever the user says, argue it concisely in two or three sentences, and end with a question that pushes the debate forward."

// CerebrasClient generates debate replies through the Cerebras
// chat-completions API.
type CerebrasClient struct {
	HTTPClient *http.Client
	APIKey     string
	Model      string
}

func NewCerebrasClient(apiKey, model string) *CerebrasClient {
	return &CerebrasClient{
		HTTPClient: &http.Client{Timeout: 15 * time.Second},
		APIKey:     apiKey,
		Model:      model,
	}
}

type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type completionPayload struct {
	Model    string    `json:"model"`
	Messages []message `json:"messages"`
}

type completionResult struct {
	Choices []struct {
		Message message `json:"message"`
	} `json:"choices"`
}

// Generate produces one debate reply for the given user text.
func (c *CerebrasClient) Generate(ctx context.Context, userText string) (string, error) {
	if c.APIKey == "" {
		return "", fmt.Errorf("cerebras: api key missing")
	}

	payload, err := json.Marshal(completionPayload{
		Model: c.Model,
		Messages: []message{
			{Role: "system", Content: debateInstruction},
			{Role: "user", Content: userText},
		},
	})
	if err != nil {
		return "", fmt.Errorf("cerebras: encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, completionsURL, bytes.NewReader(payload))
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
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("cerebras: status %d: %s", resp.StatusCode, detail)
	}

	var result completionResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("cerebras: decode response: %w", err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("cerebras: response has no choices")
	}
	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
