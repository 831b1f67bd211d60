package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"teamboard/pkg/circuitbreaker"
	"teamboard/pkg/metrics"
)

// Generator produces raw model output for a prompt. The HTTP implementation
// below talks to any OpenAI-compatible chat-completions endpoint; tests
// substitute their own.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type OpenAIGenerator struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	cb         *circuitbreaker.CircuitBreaker
}

func NewOpenAIGenerator(baseURL, apiKey, model string) *OpenAIGenerator {
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	return &OpenAIGenerator{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		// Trip fast: a struggling backend should not eat the retry budget
		// of every suggestion request behind it.
		cb: circuitbreaker.New(circuitbreaker.Config{
			FailureThreshold:    3,
			SuccessThreshold:    2,
			Timeout:             30 * time.Second,
			HalfOpenMaxRequests: 2,
		}),
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate runs one chat-completions call under the circuit breaker. While
// the breaker is open the call fails immediately, which the caller treats
// like any other failed attempt.
func (g *OpenAIGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	var content string
	err := g.cb.Execute(func() error {
		var callErr error
		content, callErr = g.call(ctx, prompt)
		return callErr
	})
	return content, err
}

func (g *OpenAIGenerator) call(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "user", Content: prompt},
		},
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	start := time.Now()
	resp, err := g.httpClient.Do(req)
	latency := time.Since(start)
	if err != nil {
		metrics.RecordSuggestionBackendCall("error", latency)
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		metrics.RecordSuggestionBackendCall("5xx", latency)
		return "", fmt.Errorf("suggestion backend 5xx: %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		metrics.RecordSuggestionBackendCall(fmt.Sprintf("%d", resp.StatusCode), latency)
		return "", fmt.Errorf("suggestion backend status %d", resp.StatusCode)
	}
	metrics.RecordSuggestionBackendCall("success", latency)

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if parsed.Error != nil {
		return "", errors.New(parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", errors.New("suggestion backend returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}
