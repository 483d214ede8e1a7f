// ABOUTME: Query processor: embeds a query, cosine-scores every listing, keeps the top results.
// ABOUTME: Query embeddings are memoized in a TTL cache and deduplicated with singleflight.
package search

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/2389-research/propsearch/internal/embeddings"
	"github.com/2389-research/propsearch/internal/models"
)

// DefaultTopK is the number of results returned per query.
const DefaultTopK = 5

const (
	defaultQueryCacheTTL = 10 * time.Minute
	queryCacheCapacity   = 256
)

// Engine answers queries against a built Index using the embedder that built it.
type Engine struct {
	index    *Index
	embedder embeddings.Embedder
	topK     int
	cache    *ttlcache.Cache[string, []float32]
	group    singleflight.Group
	log      zerolog.Logger
}

// EngineOption configures NewEngine.
type EngineOption func(*Engine)

// WithTopK sets how many results Search returns.
func WithTopK(k int) EngineOption {
	return func(e *Engine) {
		if k > 0 {
			e.topK = k
		}
	}
}

// WithQueryCacheTTL sets how long query embeddings are remembered.
func WithQueryCacheTTL(ttl time.Duration) EngineOption {
	return func(e *Engine) {
		if ttl > 0 {
			e.cache = newQueryCache(ttl)
		}
	}
}

// WithLogger sets the engine logger.
func WithLogger(logger zerolog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = logger
	}
}

// NewEngine creates a query processor. embedder must be the one used to build index.
func NewEngine(index *Index, embedder embeddings.Embedder, opts ...EngineOption) *Engine {
	e := &Engine{
		index:    index,
		embedder: embedder,
		topK:     DefaultTopK,
		cache:    newQueryCache(defaultQueryCacheTTL),
		log:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func newQueryCache(ttl time.Duration) *ttlcache.Cache[string, []float32] {
	return ttlcache.New[string, []float32](
		ttlcache.WithTTL[string, []float32](ttl),
		ttlcache.WithCapacity[string, []float32](queryCacheCapacity),
	)
}

// Search returns up to topK listings ordered by descending cosine similarity
// to query, ties kept in dataset order. A blank query returns nil without
// searching.
func (e *Engine) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	queryVec, err := e.embedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}
	if e.index.Len() > 0 && len(queryVec) != e.index.Dimension() {
		return nil, fmt.Errorf("query embedding has dimension %d, index has %d", len(queryVec), e.index.Dimension())
	}

	results := make([]models.SearchResult, len(e.index.listings))
	for i, listing := range e.index.listings {
		results[i] = models.SearchResult{
			Listing: listing,
			Score:   embeddings.CosineSimilarity(queryVec, e.index.vectors[i]),
		}
	}

	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	limit := e.topK
	if limit > len(results) {
		limit = len(results)
	}
	results = results[:limit]

	e.log.Debug().
		Str("query", query).
		Int("results", len(results)).
		Msg("search complete")
	return results, nil
}

func (e *Engine) embedQuery(ctx context.Context, query string) ([]float32, error) {
	if item := e.cache.Get(query); item != nil {
		return item.Value(), nil
	}

	// The shared call outlives any one waiter, so it ignores the caller's cancellation.
	shared := context.WithoutCancel(ctx)
	ch := e.group.DoChan(query, func() (interface{}, error) {
		vec, err := e.embedder.Embed(shared, query)
		if err != nil {
			return nil, err
		}
		e.cache.Set(query, vec, ttlcache.DefaultTTL)
		return vec, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]float32), nil
	}
}
