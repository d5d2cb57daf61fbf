// Package external contains clients for third-party services. The only
// collaborator in this system is the generative-text endpoint used for
// narrative reports.
package external

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/pgx-med-guard-server/internal/domain"
)

// TextGenClient calls the generative-text HTTP endpoint. One POST per
// generation, no retries: a failure is terminal for the enclosing
// analysis invocation.
type TextGenClient struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	limiter    *rate.Limiter

	temperature     float64
	maxOutputTokens int
	structuredMode  bool
}

// NewTextGenClient creates a text-generation client from configuration.
// The API key must be supplied via configuration; it is never a compiled
// default.
func NewTextGenClient(cfg domain.TextGenConfig) *TextGenClient {
	if cfg.RateLimit <= 0 {
		cfg.RateLimit = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxOutputTokens == 0 {
		cfg.MaxOutputTokens = 1024
	}

	return &TextGenClient{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter:         rate.NewLimiter(rate.Limit(cfg.RateLimit), 1),
		temperature:     cfg.Temperature,
		maxOutputTokens: cfg.MaxOutputTokens,
		structuredMode:  cfg.StructuredMode,
	}
}

// Request/response wire types for the text endpoint.

type generateRequest struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      float64 `json:"temperature"`
	MaxOutputTokens  int     `json:"maxOutputTokens"`
	ResponseMimeType string  `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []part `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

// Generate sends the prompt and returns the generated text. Network
// failures surface as TransportFailureError; non-2xx statuses and
// malformed bodies surface as InvalidResponseError with a truncated body
// preview.
func (c *TextGenClient) Generate(ctx context.Context, prompt string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	reqBody := generateRequest{
		Contents: []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:     c.temperature,
			MaxOutputTokens: c.maxOutputTokens,
		},
	}
	if c.structuredMode {
		reqBody.GenerationConfig.ResponseMimeType = "application/json"
	}

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", &domain.TransportFailureError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", &domain.TransportFailureError{Err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", domain.NewInvalidResponseError(resp.StatusCode, string(body))
	}

	var genResp generateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", domain.NewInvalidResponseError(resp.StatusCode, string(body))
	}

	if len(genResp.Candidates) == 0 || len(genResp.Candidates[0].Content.Parts) == 0 {
		return "", domain.NewInvalidResponseError(resp.StatusCode, string(body))
	}

	return genResp.Candidates[0].Content.Parts[0].Text, nil
}
