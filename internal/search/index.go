// ABOUTME: Embedding index over the listing dataset, built once per session.
// ABOUTME: Embeds every combined_property in dataset order, in batches.
package search

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/2389-research/propsearch/internal/embeddings"
	"github.com/2389-research/propsearch/internal/models"
)

// DefaultBatchSize is the number of listings embedded per request.
const DefaultBatchSize = 32

// Index holds one embedding per listing, parallel to the listing slice.
type Index struct {
	listings []models.Listing
	vectors  [][]float32
	dim      int
	model    string
}

// IndexOption configures BuildIndex.
type IndexOption func(*indexOptions)

type indexOptions struct {
	batchSize int
	logger    zerolog.Logger
}

// WithBatchSize sets how many listings are embedded per request.
func WithBatchSize(n int) IndexOption {
	return func(o *indexOptions) {
		if n > 0 {
			o.batchSize = n
		}
	}
}

// WithIndexLogger sets the logger used while building.
func WithIndexLogger(logger zerolog.Logger) IndexOption {
	return func(o *indexOptions) {
		o.logger = logger
	}
}

// BuildIndex embeds every listing. Any embedder failure, or vectors of
// differing dimensionality, is reported as an *embeddings.ModelLoadError.
// Cancellation of ctx is returned as ctx.Err() and is not a model failure.
func BuildIndex(ctx context.Context, embedder embeddings.Embedder, listings []models.Listing, opts ...IndexOption) (*Index, error) {
	o := indexOptions{batchSize: DefaultBatchSize, logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(&o)
	}

	start := time.Now()
	idx := &Index{
		listings: listings,
		vectors:  make([][]float32, 0, len(listings)),
		dim:      embedder.Dimension(),
		model:    embedder.ModelID(),
	}

	for i := 0; i < len(listings); i += o.batchSize {
		end := i + o.batchSize
		if end > len(listings) {
			end = len(listings)
		}

		texts := make([]string, 0, end-i)
		for _, l := range listings[i:end] {
			texts = append(texts, l.CombinedProperty)
		}

		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vectors, err := embedder.EmbedBatch(ctx, texts)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, &embeddings.ModelLoadError{Model: idx.model, Err: fmt.Errorf("failed to embed listings %d-%d: %w", i, end-1, err)}
		}
		if len(vectors) != len(texts) {
			return nil, &embeddings.ModelLoadError{Model: idx.model, Err: fmt.Errorf("embedder returned %d vectors for %d listings", len(vectors), len(texts))}
		}
		for j, vec := range vectors {
			if idx.dim == 0 {
				idx.dim = len(vec)
			}
			if len(vec) != idx.dim {
				return nil, &embeddings.ModelLoadError{Model: idx.model, Err: fmt.Errorf("listing %d has dimension %d, expected %d", i+j, len(vec), idx.dim)}
			}
			idx.vectors = append(idx.vectors, vec)
		}
	}

	o.logger.Info().
		Int("listings", len(listings)).
		Int("dimension", idx.dim).
		Str("model", idx.model).
		Dur("elapsed", time.Since(start)).
		Msg("built embedding index")
	return idx, nil
}

// Len returns the number of indexed listings.
func (idx *Index) Len() int { return len(idx.listings) }

// Dimension returns the shared vector dimensionality (0 for an empty index).
func (idx *Index) Dimension() int { return idx.dim }

// Listings returns the indexed listings in dataset order.
func (idx *Index) Listings() []models.Listing { return idx.listings }
