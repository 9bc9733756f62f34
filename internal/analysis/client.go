// internal/analysis/client.go
package analysis

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

	"github.com/Shlok909/pawsitiveAI/internal/media"
	"github.com/Shlok909/pawsitiveAI/internal/report"
)

const systemPrompt = `You are a veterinary behaviorist analyzing a video or image of a dog.

Assess emotion, body language, and visible health indicators. Be specific and practical; the reader is the dog's owner, not a clinician.

Respond with JSON only, exactly this shape:
{
  "emotion": "happy|anxious|fear|aggressive|pain|neutral",
  "confidence": 87,
  "translation": "Human readable message",
  "bodyLanguage": {
    "tail": "high_wag|low|still|tucked",
    "ears": "forward|flat|back|perked",
    "posture": "relaxed|tense|crouched|play_bow",
    "eyes": "soft|hard|whale_eye",
    "mouth": "relaxed|pant|lip_lick|snarl"
  },
  "health": {
    "gait": "normal|limping|stiff",
    "eyes": "clear|red|cloudy",
    "breathing": "normal|heavy|labored",
    "skin": "healthy|irritated",
    "urgency": "green|yellow|red"
  },
  "tips": ["Walk now", "Monitor ears", "Try calming treats"]
}`

// ErrServiceUnavailable indicates the analysis call could not complete:
// every endpoint was down, timed out, or declined to respond.
var ErrServiceUnavailable = errors.New("analysis service unavailable")

// Endpoint represents a single model provider (OpenAI-compatible format).
type Endpoint struct {
	URL    string
	Model  string
	APIKey string
}

// Client calls generative vision endpoints with fallback support.
type Client struct {
	endpoints []Endpoint
	client    *http.Client
}

// NewClient creates an analysis client with a fallback chain.
func NewClient(endpoints []Endpoint) *Client {
	return &Client{
		endpoints: endpoints,
		client: &http.Client{
			Timeout: 120 * time.Second,
			Transport: &http.Transport{
				DialContext: (&net.Dialer{
					Timeout: 5 * time.Second,
				}).DialContext,
			},
		},
	}
}

// Chat-completions wire types with multimodal content parts.
type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *imageURL `json:"image_url,omitempty"`
}

type imageURL struct {
	URL string `json:"url"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

// Analyze sends the dog metadata and media reference to the model and
// returns the schema-validated report. The call is one request/response
// exchange; a fresh call with the same input may legitimately differ.
// Returns *report.ValidationError when the model output does not match
// the schema, ErrServiceUnavailable when no endpoint could answer.
func (c *Client) Analyze(ctx context.Context, sub report.Subject, ref media.Reference) (*report.Report, int64, error) {
	if len(c.endpoints) == 0 {
		return nil, 0, fmt.Errorf("%w: no endpoints configured", ErrServiceUnavailable)
	}
	if ref.IsZero() {
		return nil, 0, errors.New("empty media reference")
	}

	var lastErr error
	var totalLatency int64

	for _, ep := range c.endpoints {
		result, latency, err := c.tryEndpoint(ctx, ep, sub, ref)
		totalLatency += latency

		if err == nil {
			return result, totalLatency, nil
		}

		lastErr = err
		if isUnavailableErr(err) {
			continue
		}

		// Schema violations and other hard errors don't try the fallback;
		// a different model won't fix a contract the first one broke.
		return nil, totalLatency, err
	}

	return nil, totalLatency, fmt.Errorf("%w: %v", ErrServiceUnavailable, lastErr)
}

func (c *Client) tryEndpoint(ctx context.Context, ep Endpoint, sub report.Subject, ref media.Reference) (*report.Report, int64, error) {
	start := time.Now()

	userPrompt := fmt.Sprintf("Analyze this dog video/image. Dog details: BREED: %s, AGE: %g years.", sub.Breed, sub.AgeYears)

	reqBody := map[string]interface{}{
		"model": ep.Model,
		"messages": []message{
			{Role: "system", Content: []contentPart{{Type: "text", Text: systemPrompt}}},
			{Role: "user", Content: []contentPart{
				{Type: "text", Text: userPrompt},
				{Type: "image_url", ImageURL: &imageURL{URL: ref.Value()}},
			}},
		},
		"max_tokens": 1024,
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, 0, err
	}

	url := strings.TrimSuffix(ep.URL, "/") + "/chat/completions"
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, 0, err
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+ep.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		latency := time.Since(start).Milliseconds()
		var netErr net.Error
		if errors.As(err, &netErr) || errors.Is(err, context.DeadlineExceeded) {
			return nil, latency, fmt.Errorf("connection failed: %w", err)
		}
		return nil, latency, err
	}
	defer resp.Body.Close()

	latency := time.Since(start).Milliseconds()

	// Gateway-class failures move on to the next endpoint.
	if resp.StatusCode == http.StatusBadGateway ||
		resp.StatusCode == http.StatusServiceUnavailable ||
		resp.StatusCode == http.StatusGatewayTimeout ||
		resp.StatusCode == http.StatusTooManyRequests {
		return nil, latency, fmt.Errorf("HTTP %d", resp.StatusCode)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, latency, fmt.Errorf("%w: API error %d: %s", ErrServiceUnavailable, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var apiResp struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, latency, fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}

	if len(apiResp.Choices) == 0 {
		return nil, latency, fmt.Errorf("%w: empty response", ErrServiceUnavailable)
	}

	result, err := report.Decode([]byte(stripFences(apiResp.Choices[0].Message.Content)))
	if err != nil {
		return nil, latency, err
	}

	return result, latency, nil
}

// stripFences removes a markdown code fence wrapper if the model added one.
func stripFences(content string) string {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") && strings.HasSuffix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}
	return content
}

// IsValidationFailure reports whether err means the model's output did not
// match the report schema.
func IsValidationFailure(err error) bool {
	var ve *report.ValidationError
	return errors.As(err, &ve)
}

// IsServiceFailure reports whether err means the call itself failed.
func IsServiceFailure(err error) bool {
	return errors.Is(err, ErrServiceUnavailable)
}

func isUnavailableErr(err error) bool {
	if err == nil {
		return false
	}
	s := err.Error()
	return strings.Contains(s, "connection") ||
		strings.Contains(s, "HTTP 429") ||
		strings.Contains(s, "HTTP 502") ||
		strings.Contains(s, "HTTP 503") ||
		strings.Contains(s, "HTTP 504")
}
