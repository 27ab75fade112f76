package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/desertthunder/autoplaylist/internal/shared"
	"golang.org/x/time/rate"
)

const groqBaseURL = "https://api.groq.com/openai/v1"

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

// GroqClient implements [InferenceClient] against an OpenAI-compatible chat completions endpoint.
type GroqClient struct {
	apiKey  string
	baseURL string
	client  *http.Client
	limiter *rate.Limiter
}

// NewGroqClient creates a client for baseURL (defaults to Groq) that sends at most
// requestsPerMinute requests. Zero or less disables the limit.
func NewGroqClient(apiKey, baseURL string, requestsPerMinute int) (*GroqClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("%w: missing inference api key", shared.ErrMissingCredentials)
	}
	if baseURL == "" {
		baseURL = groqBaseURL
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if requestsPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(requestsPerMinute)), 1)
	}

	return &GroqClient{
		apiKey:  apiKey,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		client:  &http.Client{Timeout: 60 * time.Second},
		limiter: limiter,
	}, nil
}

// Complete sends prompt as a single user message and returns the first choice's content.
func (c *GroqClient) Complete(ctx context.Context, prompt string, params CompletionParams) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	payload, err := json.Marshal(chatRequest{
		Model:       params.Model,
		Messages:    []chatMessage{{Role: "user", Content: prompt}},
		Temperature: params.Temperature,
		MaxTokens:   params.MaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", shared.ErrInferenceFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("%w: status %d - %s", shared.ErrInferenceFailed, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var result chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("%w: failed to decode response: %v", shared.ErrInferenceFailed, err)
	}
	if len(result.Choices) == 0 {
		return "", fmt.Errorf("%w: response has no choices", shared.ErrInferenceFailed)
	}

	return strings.TrimSpace(result.Choices[0].Message.Content), nil
}
