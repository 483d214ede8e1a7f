// ABOUTME: Ollama /api/embeddings client.
// ABOUTME: Ollama embeds one prompt per request, so batches are sent sequentially.
package embeddings

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/2389-research/propsearch/internal/config"
)

// OllamaClient embeds text with a locally running Ollama server.
type OllamaClient struct {
	baseURL string
	model   string
	client  *http.Client
	limiter *rate.Limiter
	log     zerolog.Logger
	dim     atomic.Int64
}

type ollamaEmbedReq struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbedResp struct {
	Embedding []float64 `json:"embedding"`
}

// NewOllamaClient creates a client for cfg.BaseURL (for example http://localhost:11434).
func NewOllamaClient(cfg config.EmbeddingConfig, logger zerolog.Logger) *OllamaClient {
	c := &OllamaClient{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		model:   cfg.Model,
		client:  &http.Client{Timeout: httpTimeout},
		limiter: newLimiter(cfg.RequestsPerSecond),
		log:     logger.With().Str("component", "embeddings").Str("provider", "ollama").Logger(),
	}
	c.dim.Store(int64(cfg.Dimensions))
	return c
}

// ModelID returns the configured model name.
func (c *OllamaClient) ModelID() string { return c.model }

// Dimension returns the configured or observed vector size.
func (c *OllamaClient) Dimension() int { return int(c.dim.Load()) }

// Embed returns the embedding for a single text.
func (c *OllamaClient) Embed(ctx context.Context, text string) ([]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	body, err := json.Marshal(ollamaEmbedReq{Model: c.model, Prompt: text})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embedding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("ollama embed: status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
	}

	var result ollamaEmbedResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("ollama embed decode: %w", err)
	}
	if len(result.Embedding) == 0 {
		return nil, fmt.Errorf("ollama embed: empty embedding for model %s", c.model)
	}

	out := make([]float32, len(result.Embedding))
	for i, v := range result.Embedding {
		out[i] = float32(v)
	}
	c.dim.CompareAndSwap(0, int64(len(out)))
	return out, nil
}

// EmbedBatch embeds each text in turn. Partial results are discarded on error.
func (c *OllamaClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vec, err := c.Embed(ctx, text)
		if err != nil {
			return nil, fmt.Errorf("embed batch [%d]: %w", i, err)
		}
		vectors[i] = vec
	}
	c.log.Debug().Int("inputs", len(texts)).Msg("embedded")
	return vectors, nil
}
