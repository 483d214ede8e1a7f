// ABOUTME: OpenAI-compatible /embeddings client (sentence-transformers servers, LiteLLM, OpenAI).
// ABOUTME: Supports batched input and optional request pacing.
package embeddings

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/2389-research/propsearch/internal/config"
)

const httpTimeout = 60 * time.Second

// OpenAIClient embeds text through an OpenAI-compatible REST API.
type OpenAIClient struct {
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
	dim     atomic.Int64
}

type openAIEmbedRequest struct {
	Input          interface{} `json:"input"` // string or []string
	Model          string      `json:"model"`
	EncodingFormat string      `json:"encoding_format"`
}

type openAIEmbedResponse struct {
	Data []struct {
		Embedding []float32 `json:"embedding"`
		Index     int       `json:"index"`
	} `json:"data"`
	Model string `json:"model"`
}

// NewOpenAIClient creates a client for cfg.BaseURL (for example http://localhost:8080/v1).
func NewOpenAIClient(cfg config.EmbeddingConfig, logger zerolog.Logger) *OpenAIClient {
	c := &OpenAIClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		client:  &http.Client{Timeout: httpTimeout},
		limiter: newLimiter(cfg.RequestsPerSecond),
		log:     logger.With().Str("component", "embeddings").Str("provider", "openai").Logger(),
	}
	c.dim.Store(int64(cfg.Dimensions))
	return c
}

// ModelID returns the configured model name.
func (c *OpenAIClient) ModelID() string { return c.model }

// Dimension returns the configured or observed vector size.
func (c *OpenAIClient) Dimension() int { return int(c.dim.Load()) }

// Embed returns the embedding for a single text.
func (c *OpenAIClient) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.request(ctx, text, 1)
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// EmbedBatch returns embeddings for texts in a single request.
func (c *OpenAIClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	return c.request(ctx, texts, len(texts))
}

func (c *OpenAIClient) request(ctx context.Context, input interface{}, expected int) ([][]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(openAIEmbedRequest{
		Input:          input,
		Model:          c.model,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("embedding request to %s failed: %w", c.baseURL, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding API error (model=%s, status=%d): %s",
			c.model, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var parsed openAIEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embedding response: %w", err)
	}
	if len(parsed.Data) != expected {
		return nil, fmt.Errorf("embedding API returned %d results for %d inputs (model=%s)",
			len(parsed.Data), expected, c.model)
	}

	sort.SliceStable(parsed.Data, func(i, j int) bool {
		return parsed.Data[i].Index < parsed.Data[j].Index
	})
	vectors := make([][]float32, len(parsed.Data))
	for i, item := range parsed.Data {
		vectors[i] = item.Embedding
	}
	c.dim.CompareAndSwap(0, int64(len(vectors[0])))

	c.log.Debug().
		Int("inputs", expected).
		Dur("elapsed", time.Since(start)).
		Msg("embedded")
	return vectors, nil
}

// newLimiter returns nil (unpaced) when rps is not positive.
func newLimiter(rps float64) *rate.Limiter {
	if rps <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(rps), 1)
}
