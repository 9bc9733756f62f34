// internal/chat/assistant.go
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

const assistantPrompt = `You are Pawsight's AI assistant. You help dog owners understand a behavioral and health analysis report that was generated for their dog.

Ground every answer in the report JSON the user provides. Be warm, concrete, and brief. Remind the user to consult a veterinarian for anything medical you are not sure about.`

// ErrAssistantUnavailable indicates the chat exchange could not complete.
// Recoverable: the session stays usable for a retry.
var ErrAssistantUnavailable = errors.New("assistant unavailable")

// Endpoint represents a single assistant provider (OpenAI-compatible).
type Endpoint struct {
	URL    string
	Model  string
	APIKey string
}

// Assistant performs one grounded question/answer exchange per call.
// It is stateless between calls; the report is resent every time.
type Assistant struct {
	endpoints []Endpoint
	client    *http.Client
}

// NewAssistant creates an assistant client with a fallback chain.
func NewAssistant(endpoints []Endpoint) *Assistant {
	return &Assistant{
		endpoints: endpoints,
		client: &http.Client{
			Timeout: 60 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
	}
}

// Ask sends the question with the serialized report as grounding context
// and returns the answer. Only the latest question is sent, not prior
// turns. Any failure maps to ErrAssistantUnavailable.
func (a *Assistant) Ask(ctx context.Context, question, grounding string) (string, error) {
	if len(a.endpoints) == 0 {
		return "", fmt.Errorf("%w: no endpoints configured", ErrAssistantUnavailable)
	}

	var lastErr error
	for _, ep := range a.endpoints {
		answer, err := a.tryEndpoint(ctx, ep, question, grounding)
		if err == nil {
			return answer, nil
		}
		lastErr = err
	}
	return "", fmt.Errorf("%w: %v", ErrAssistantUnavailable, lastErr)
}

func (a *Assistant) tryEndpoint(ctx context.Context, ep Endpoint, question, grounding string) (string, error) {
	userContent := fmt.Sprintf("Previous analysis report:\n%s\n\nQuestion: %s", grounding, question)

	reqBody := map[string]interface{}{
		"model": ep.Model,
		"messages": []map[string]string{
			{"role": "system", "content": assistantPrompt},
			{"role": "user", "content": userContent},
		},
		"max_tokens": 512,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	url := strings.TrimSuffix(ep.URL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return "", err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ep.APIKey)

	resp, err := a.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("API error %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return "", err
	}

	if len(apiResp.Choices) == 0 {
		return "", errors.New("empty response")
	}

	answer := strings.TrimSpace(apiResp.Choices[0].Message.Content)
	if answer == "" {
		return "", errors.New("blank answer")
	}
	return answer, nil
}
