// ABOUTME: MCP server initialization and configuration for propsearch.
// ABOUTME: Exposes property search, narration control, and voice capture to AI agents.
package mcp

import (
	"context"
	"fmt"

	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog"

	"github.com/2389-research/propsearch/internal/models"
)

// Searcher is the search-and-speak cycle behind the tools.
type Searcher interface {
	Search(ctx context.Context, query string) ([]models.SearchResult, error)
	SearchAndSpeak(ctx context.Context, query string) ([]models.SearchResult, error)
	Listen(ctx context.Context) (string, error)
	StopSpeaking()
}

// Server wraps the MCP server with a property search session.
type Server struct {
	mcp      *gomcp.Server
	searcher Searcher
	log      zerolog.Logger
}

// ServerOption configures optional Server dependencies.
type ServerOption func(*Server)

// WithLogger sets the logger used for tool calls. Logs must not go to stdout.
func WithLogger(logger zerolog.Logger) ServerOption {
	return func(s *Server) {
		s.log = logger
	}
}

// NewServer creates an MCP server backed by searcher.
func NewServer(searcher Searcher, version string, opts ...ServerOption) (*Server, error) {
	if searcher == nil {
		return nil, fmt.Errorf("searcher is required")
	}

	mcpServer := gomcp.NewServer(
		&gomcp.Implementation{
			Name:    "propsearch",
			Version: version,
		},
		nil,
	)

	s := &Server{
		mcp:      mcpServer,
		searcher: searcher,
		log:      zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.registerPropertyTools()

	return s, nil
}

// Serve starts the MCP server in stdio mode.
func (s *Server) Serve(ctx context.Context) error {
	return s.mcp.Run(ctx, &gomcp.StdioTransport{})
}
