package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"RssDigest/internal/config"
	"RssDigest/internal/ports"
)

// Client talks to the local inference backend for extractive summarization.
// The backend is swappable; the contract is a single summarize call with
// length bounds.
type Client struct {
	endpoint      string
	apiKey        string
	maxInputChars int
	http          *http.Client
}

var _ ports.Summarizer = (*Client)(nil)

// NewClient creates a reusable HTTP client for the inference endpoint.
func NewClient(cfg config.SummarizerConfig) *Client {
	timeout := time.Duration(cfg.TimeoutSec) * time.Second
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	maxInput := cfg.MaxInputChars
	if maxInput <= 0 {
		maxInput = 4000
	}
	return &Client{
		endpoint:      cfg.InferenceURL,
		apiKey:        cfg.APIKey,
		maxInputChars: maxInput,
		http:          &http.Client{Timeout: timeout},
	}
}

// Summarize posts the text for summarization. Inputs longer than the
// backend's limit are truncated first; the cut point is a coverage
// trade-off, not part of the contract.
func (c *Client) Summarize(ctx context.Context, text string, maxLength, minLength int) (string, error) {
	if text == "" {
		return "", fmt.Errorf("nothing to summarize")
	}
	if c.endpoint == "" {
		return "", fmt.Errorf("summarizer misconfigured: no inference URL")
	}

	payload := map[string]any{
		"text":       truncate(text, c.maxInputChars),
		"max_length": maxLength,
		"min_length": minLength,
	}

	var resp struct {
		Summary string `json:"summary"`
	}
	if err := c.post(ctx, payload, &resp); err != nil {
		return "", err
	}

	if resp.Summary == "" {
		return "", fmt.Errorf("inference backend returned an empty summary")
	}
	return resp.Summary, nil
}

func (c *Client) post(ctx context.Context, payload any, v any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}

	return nil
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
