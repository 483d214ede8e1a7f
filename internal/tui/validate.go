// ABOUTME: Embedding backend validation used by the setup wizard.
// ABOUTME: Embeds a probe sentence with the entered settings.
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/2389-research/propsearch/internal/config"
	"github.com/2389-research/propsearch/internal/embeddings"
)

const probeText = "2BHK apartment near park"

// ValidateEmbedding embeds a probe sentence with the given backend settings.
// The context allows cancellation when the user quits during validation.
func ValidateEmbedding(ctx context.Context, provider, baseURL, model, apiKey string) error {
	cfg := config.EmbeddingConfig{
		Provider: provider,
		BaseURL:  baseURL,
		Model:    model,
		APIKey:   apiKey,
	}
	if provider == config.ProviderHashing {
		cfg.Dimensions = config.DefaultHashingDims
	}

	emb, err := embeddings.New(cfg, zerolog.Nop())
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	vec, err := emb.Embed(ctx, probeText)
	if err != nil {
		return fmt.Errorf("embedding failed: %w", err)
	}
	if len(vec) == 0 {
		return fmt.Errorf("backend returned an empty embedding")
	}
	return nil
}
