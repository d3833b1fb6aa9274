package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"RssDigest/internal/config"
	"RssDigest/internal/ports"
)

// ErrUnauthorized marks an authentication failure on the remote digest API.
// It is fatal for the run and never retried.
var ErrUnauthorized = errors.New("digest api: unauthorized")

// MistralClient implements ports.DigestClient against Mistral/OpenAI-style
// chat-completions endpoints. Rate limits and server errors are retried
// with a bounded attempt budget; exhaustion fails the digest stage only.
type MistralClient struct {
	endpoint    string
	model       string
	apiKey      string
	maxTokens   int
	temperature float64
	maxAttempts int
	retryDelay  time.Duration
	httpClient  *http.Client
	logger      *slog.Logger
	sleep       func(context.Context, time.Duration) error
}

var _ ports.DigestClient = (*MistralClient)(nil)

// NewMistralClient builds a client from configuration.
func NewMistralClient(cfg config.DigestConfig, log *slog.Logger) *MistralClient {
	attempts := cfg.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	delay := time.Duration(cfg.RetryDelaySec) * time.Second
	if delay <= 0 {
		delay = 5 * time.Second
	}
	temperature := 0.7
	if cfg.Temperature != nil {
		temperature = *cfg.Temperature
	}
	return &MistralClient{
		endpoint:    cfg.Endpoint,
		model:       cfg.Model,
		apiKey:      cfg.APIKey,
		maxTokens:   cfg.MaxTokens,
		temperature: temperature,
		maxAttempts: attempts,
		retryDelay:  delay,
		httpClient: &http.Client{
			Timeout: 180 * time.Second,
		},
		logger: log,
		sleep:  sleepCtx,
	}
}

// SynthesizeDigest posts the prompt as a single user message and returns the
// synthesized digest text.
func (c *MistralClient) SynthesizeDigest(ctx context.Context, prompt string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%w: missing API key", ErrUnauthorized)
	}
	if c.endpoint == "" || c.model == "" {
		return "", fmt.Errorf("digest client misconfigured")
	}

	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		content, err := c.complete(ctx, prompt)
		if err == nil {
			return content, nil
		}
		if errors.Is(err, ErrUnauthorized) {
			return "", err
		}
		lastErr = err
		if c.logger != nil {
			c.logger.Warn("digest attempt failed", "attempt", attempt, "error", err)
		}

		if attempt < c.maxAttempts {
			if err := c.sleep(ctx, c.retryDelay*time.Duration(attempt)); err != nil {
				return "", err
			}
		}
	}

	return "", fmt.Errorf("digest synthesis after %d attempts: %w", c.maxAttempts, lastErr)
}

func (c *MistralClient) complete(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
		"max_tokens":  c.maxTokens,
		"temperature": c.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send prompt: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return "", fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)
	case resp.StatusCode >= http.StatusBadRequest:
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("digest api error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}

	if len(parsed.Choices) == 0 || strings.TrimSpace(parsed.Choices[0].Message.Content) == "" {
		return "", fmt.Errorf("digest api returned no content")
	}
	return parsed.Choices[0].Message.Content, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
