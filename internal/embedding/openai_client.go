package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
)

const (
	DefaultModel      = "text-embedding-3-large"
	DefaultDimensions = 3072

	// Published per-token price for text-embedding-3-large, USD per 1M tokens.
	costPerMillionTokens = 0.13
)

type Config struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int
	MaxRetries uint64
}

// OpenAIClient talks to an OpenAI-compatible /v1/embeddings endpoint.
// Transient failures (429, 5xx, network errors) are retried with
// exponential backoff; other HTTP errors fail immediately.
type OpenAIClient struct {
	baseURL    string
	apiKey     string
	model      string
	dimensions int
	maxRetries uint64
	httpClient *http.Client

	requests    atomic.Int64
	totalTokens atomic.Int64
}

func NewOpenAIClient(cfg Config) *OpenAIClient {
	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = 3
	}
	return &OpenAIClient{
		baseURL:    cfg.BaseURL,
		apiKey:     cfg.APIKey,
		model:      model,
		dimensions: dims,
		maxRetries: retries,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

func (c *OpenAIClient) Dimensions() int {
	return c.dimensions
}

type embedRequest struct {
	Model      string   `json:"model"`
	Input      []string `json:"input"`
	Dimensions int      `json:"dimensions,omitempty"`
}

type embedResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
	Usage struct {
		TotalTokens int64 `json:"total_tokens"`
	} `json:"usage"`
}

func (c *OpenAIClient) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var resp *embedResponse
	operation := func() error {
		var err error
		resp, err = c.embedOnce(ctx, texts)
		return err
	}
	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(operation, policy); err != nil {
		return nil, err
	}

	c.requests.Add(1)
	c.totalTokens.Add(resp.Usage.TotalTokens)

	embeddings := make([][]float32, len(texts))
	for _, d := range resp.Data {
		if d.Index < 0 || d.Index >= len(texts) {
			return nil, fmt.Errorf("embedding index %d out of range for %d inputs", d.Index, len(texts))
		}
		embeddings[d.Index] = d.Embedding
	}
	for i, emb := range embeddings {
		if emb == nil {
			return nil, fmt.Errorf("no embedding returned for input %d", i)
		}
	}
	return embeddings, nil
}

func (c *OpenAIClient) embedOnce(ctx context.Context, texts []string) (*embedResponse, error) {
	reqBody, err := json.Marshal(embedRequest{
		Model:      c.model,
		Input:      texts,
		Dimensions: c.dimensions,
	})
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to marshal request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/v1/embeddings", bytes.NewReader(reqBody))
	if err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		httpErr := fmt.Errorf("embedding API error (status %d): %s", resp.StatusCode, string(body))
		if retryableStatus(resp.StatusCode) {
			return nil, httpErr
		}
		return nil, backoff.Permanent(httpErr)
	}

	var parsed embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, backoff.Permanent(fmt.Errorf("failed to decode response: %w", err))
	}
	return &parsed, nil
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

// UsageStats accumulates across all successful Embed calls.
type UsageStats struct {
	Requests      int64
	TotalTokens   int64
	EstimatedCost float64
}

func (c *OpenAIClient) Usage() UsageStats {
	tokens := c.totalTokens.Load()
	return UsageStats{
		Requests:      c.requests.Load(),
		TotalTokens:   tokens,
		EstimatedCost: float64(tokens) / 1_000_000 * costPerMillionTokens,
	}
}

// ZeroVector is the placeholder stored when embedding fails permanently,
// so chunk creation never blocks indexing.
func ZeroVector(dimensions int) []float32 {
	return make([]float32, dimensions)
}
