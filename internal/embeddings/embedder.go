// ABOUTME: Embedding interface, provider factory, and model load errors.
// ABOUTME: Every provider maps text to fixed-dimension float32 vectors for one session.
package embeddings

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/2389-research/propsearch/internal/config"
)

// Embedder generates vector embeddings from text. All vectors produced by one
// Embedder share the same dimensionality.
type Embedder interface {
	// Embed returns a vector embedding for the given text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch returns one vector per input text, in input order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the dimensionality of the output vectors, or 0 if it
	// is not known until the first vector has been produced.
	Dimension() int

	// ModelID identifies the model, for logging and cache keys.
	ModelID() string
}

// ModelLoadError reports an embedding model that could not be located or initialized.
type ModelLoadError struct {
	Model string
	Err   error
}

func (e *ModelLoadError) Error() string {
	return fmt.Sprintf("failed to load embedding model %q: %v", e.Model, e.Err)
}

func (e *ModelLoadError) Unwrap() error { return e.Err }

// New creates the embedder selected by cfg.Provider.
func New(cfg config.EmbeddingConfig, logger zerolog.Logger) (Embedder, error) {
	if cfg.Model == "" {
		return nil, &ModelLoadError{Model: cfg.Model, Err: fmt.Errorf("no model configured")}
	}

	switch cfg.Provider {
	case config.ProviderOpenAI, "":
		if cfg.BaseURL == "" {
			return nil, &ModelLoadError{Model: cfg.Model, Err: fmt.Errorf("base_url is required for the openai provider")}
		}
		return NewOpenAIClient(cfg, logger), nil
	case config.ProviderOllama:
		if cfg.BaseURL == "" {
			return nil, &ModelLoadError{Model: cfg.Model, Err: fmt.Errorf("base_url is required for the ollama provider")}
		}
		return NewOllamaClient(cfg, logger), nil
	case config.ProviderHashing:
		return NewHashingEmbedder(cfg.Model, cfg.Dimensions), nil
	default:
		return nil, &ModelLoadError{Model: cfg.Model, Err: fmt.Errorf("unknown embedding provider %q", cfg.Provider)}
	}
}
