// ABOUTME: Session wires the dataset, embedding index, narrator, and voice listener together.
// ABOUTME: The dataset and index are built once per session and shared by every surface.
package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/2389-research/propsearch/internal/catalog"
	"github.com/2389-research/propsearch/internal/config"
	"github.com/2389-research/propsearch/internal/embeddings"
	"github.com/2389-research/propsearch/internal/models"
	"github.com/2389-research/propsearch/internal/narrator"
	"github.com/2389-research/propsearch/internal/search"
	"github.com/2389-research/propsearch/internal/voice"
)

// ListingSource supplies the dataset.
type ListingSource interface {
	Listings() ([]models.Listing, error)
}

// Listener turns one spoken utterance into text.
type Listener interface {
	Listen(ctx context.Context) (string, error)
}

// Session is the search-and-speak cycle shared by the TUI, CLI, and MCP server.
type Session struct {
	cfg      *config.Config
	log      zerolog.Logger
	source   ListingSource
	embedder embeddings.Embedder
	narrator *narrator.Narrator
	listener Listener

	engineFactory narrator.EngineFactory

	mu     sync.Mutex // guards embedder, index, engine, built, err
	built  bool
	index  *search.Index
	engine *search.Engine
	err    error
}

// Option overrides a Session collaborator.
type Option func(*Session)

// WithListingSource replaces the CSV dataset loader.
func WithListingSource(src ListingSource) Option {
	return func(s *Session) { s.source = src }
}

// WithEmbedder replaces the configured embedding provider.
func WithEmbedder(e embeddings.Embedder) Option {
	return func(s *Session) { s.embedder = e }
}

// WithEngineFactory replaces the speech command.
func WithEngineFactory(f narrator.EngineFactory) Option {
	return func(s *Session) { s.engineFactory = f }
}

// WithListener replaces the microphone and transcription backend.
func WithListener(l Listener) Option {
	return func(s *Session) { s.listener = l }
}

// WithLogger sets the session logger, which is passed on to every component.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Session) { s.log = logger }
}

// NewSession builds a session from cfg. Nothing is loaded until Ready.
func NewSession(cfg *config.Config, opts ...Option) (*Session, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	s := &Session{cfg: cfg, log: zerolog.Nop()}
	for _, opt := range opts {
		opt(s)
	}

	if s.source == nil {
		path, err := cfg.GetDatasetPath()
		if err != nil {
			return nil, fmt.Errorf("failed to resolve dataset path: %w", err)
		}
		s.source = catalog.NewLoader(path)
	}
	if s.engineFactory == nil {
		s.engineFactory = narrator.NewCommandFactory(cfg.Speech.Command)
	}
	s.narrator = narrator.New(s.engineFactory,
		narrator.WithRate(cfg.Speech.Rate),
		narrator.WithLogger(s.log.With().Str("component", "narrator").Logger()))

	if s.listener == nil {
		s.listener = voice.NewListener(
			voice.NewCommandRecorder(cfg.Voice.RecordCommand),
			voice.NewWhisperClient(cfg.Voice.TranscribeURL, cfg.Voice.APIKey, cfg.Voice.Model, cfg.Voice.Language),
			voice.WithTimeout(cfg.Voice.Timeout),
			voice.WithTranscribeTimeout(cfg.Voice.TranscribeTimeout),
			voice.WithLogger(s.log.With().Str("component", "voice").Logger()),
		)
	}
	return s, nil
}

// Ready loads the dataset and builds the embedding index. The work happens
// once; later calls return the cached outcome, including a failure. A build
// abandoned because ctx was cancelled is not cached and is retried by the
// next caller.
func (s *Session) Ready(ctx context.Context) error {
	_, err := s.ready(ctx)
	return err
}

func (s *Session) ready(ctx context.Context) (*search.Engine, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.built {
		return s.engine, s.err
	}
	err := s.build(ctx)
	if err != nil && ctx.Err() != nil && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		s.log.Debug().Err(err).Msg("index build interrupted")
		return nil, err
	}
	s.built = true
	s.err = err
	return s.engine, err
}

func (s *Session) build(ctx context.Context) error {
	listings, err := s.source.Listings()
	if err != nil {
		return err
	}

	if s.embedder == nil {
		emb, err := embeddings.New(s.cfg.Embedding, s.log.With().Str("component", "embeddings").Logger())
		if err != nil {
			return err
		}
		s.embedder = emb
	}

	idx, err := search.BuildIndex(ctx, s.embedder, listings,
		search.WithBatchSize(s.cfg.Embedding.BatchSize),
		search.WithIndexLogger(s.log))
	if err != nil {
		return err
	}
	s.index = idx
	s.engine = search.NewEngine(idx, s.embedder,
		search.WithQueryCacheTTL(s.cfg.Embedding.QueryCacheTTL),
		search.WithLogger(s.log.With().Str("component", "search").Logger()))
	return nil
}

// Size returns the number of indexed listings, or 0 before Ready succeeds.
func (s *Session) Size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.index == nil {
		return 0
	}
	return s.index.Len()
}

// Search returns the best matches for query. A blank query returns nil
// without loading anything.
func (s *Session) Search(ctx context.Context, query string) ([]models.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}
	engine, err := s.ready(ctx)
	if err != nil {
		return nil, err
	}
	return engine.Search(ctx, query)
}

// Narrate reads results aloud in rank order, replacing any narration in progress.
func (s *Session) Narrate(results []models.SearchResult) {
	if len(results) == 0 {
		return
	}
	s.narrator.Speak(NarrationText(results))
}

// NarrationText is the text spoken for results: one line per match.
func NarrationText(results []models.SearchResult) string {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		lines = append(lines, fmt.Sprintf("Match found: %s.", r.Listing.CombinedProperty))
	}
	return strings.Join(lines, "\n")
}

// SearchAndSpeak searches and narrates the results.
func (s *Session) SearchAndSpeak(ctx context.Context, query string) ([]models.SearchResult, error) {
	results, err := s.Search(ctx, query)
	if err != nil {
		return nil, err
	}
	s.Narrate(results)
	return results, nil
}

// Listen captures one spoken query. Errors match voice.ErrNotUnderstood or
// voice.ErrServiceUnavailable and are not fatal.
func (s *Session) Listen(ctx context.Context) (string, error) {
	return s.listener.Listen(ctx)
}

// Speaking reports whether a narration is in progress.
func (s *Session) Speaking() bool {
	return s.narrator.State() == narrator.Speaking
}

// StopSpeaking silences the narrator immediately.
func (s *Session) StopSpeaking() {
	s.narrator.Stop()
}

// WaitSpeaking blocks until the current narration finishes.
func (s *Session) WaitSpeaking() {
	s.narrator.Wait()
}

// Close stops any narration.
func (s *Session) Close() error {
	s.narrator.Close()
	return nil
}
