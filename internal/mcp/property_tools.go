// ABOUTME: MCP tool implementations for property search.
// ABOUTME: Registers search_properties, stop_speaking, and listen_for_query.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	gomcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/2389-research/propsearch/internal/models"
	"github.com/2389-research/propsearch/internal/voice"
)

func (s *Server) registerPropertyTools() {
	s.mcp.AddTool(&gomcp.Tool{
		Name:        "search_properties",
		Description: "Semantic search over the property listings. Returns the five closest listings with similarity scores, best first.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"query": {"type": "string", "description": "Free-text description of the property you want", "minLength": 1},
				"speak": {"type": "boolean", "description": "Read the matches aloud on the local speaker (default false)"}
			},
			"required": ["query"]
		}`),
	}, s.handleSearchProperties)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "stop_speaking",
		Description: "Immediately stop reading search results aloud.",
		InputSchema: json.RawMessage(`{"type": "object", "properties": {}}`),
	}, s.handleStopSpeaking)

	s.mcp.AddTool(&gomcp.Tool{
		Name:        "listen_for_query",
		Description: "Record one spoken query from the local microphone and return the transcript. Optionally search for it right away.",
		InputSchema: json.RawMessage(`{
			"type": "object",
			"properties": {
				"search": {"type": "boolean", "description": "Search for the transcript and return matches (default false)"},
				"speak": {"type": "boolean", "description": "With search, read the matches aloud (default false)"}
			}
		}`),
	}, s.handleListenForQuery)
}

func (s *Server) handleSearchProperties(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Query string `json:"query"`
		Speak bool   `json:"speak"`
	}
	if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
		return toolError("invalid arguments: %v", err), nil
	}

	query := strings.TrimSpace(args.Query)
	if query == "" {
		return toolError("query is required"), nil
	}

	text, err := s.runSearch(ctx, query, args.Speak)
	if err != nil {
		return toolError("search failed: %v", err), nil
	}
	return textResult(text), nil
}

func (s *Server) handleStopSpeaking(_ context.Context, _ *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	s.searcher.StopSpeaking()
	return textResult("Stopped speaking."), nil
}

func (s *Server) handleListenForQuery(ctx context.Context, req *gomcp.CallToolRequest) (*gomcp.CallToolResult, error) {
	var args struct {
		Search bool `json:"search"`
		Speak  bool `json:"speak"`
	}
	if len(req.Params.Arguments) > 0 {
		if err := json.Unmarshal(req.Params.Arguments, &args); err != nil {
			return toolError("invalid arguments: %v", err), nil
		}
	}

	heard, err := s.searcher.Listen(ctx)
	if err != nil {
		return toolError("%s", voice.Notice(err)), nil
	}

	out := fmt.Sprintf("You said: %s", heard)
	if !args.Search {
		return textResult(out), nil
	}

	text, err := s.runSearch(ctx, heard, args.Speak)
	if err != nil {
		return toolError("%s\nsearch failed: %v", out, err), nil
	}
	return textResult(out + "\n\n" + text), nil
}

func (s *Server) runSearch(ctx context.Context, query string, speak bool) (string, error) {
	callID := uuid.New().String()
	s.log.Debug().Str("call_id", callID).Str("query", query).Bool("speak", speak).Msg("search_properties")

	var (
		results []models.SearchResult
		err     error
	)
	if speak {
		results, err = s.searcher.SearchAndSpeak(ctx, query)
	} else {
		results, err = s.searcher.Search(ctx, query)
	}
	if err != nil {
		s.log.Warn().Str("call_id", callID).Err(err).Msg("search failed")
		return "", err
	}
	s.log.Debug().Str("call_id", callID).Int("results", len(results)).Msg("search done")
	return formatResults(query, results), nil
}

// formatResults renders ranked results the way the interactive screen shows them.
func formatResults(query string, results []models.SearchResult) string {
	if len(results) == 0 {
		return fmt.Sprintf("No matches for %q.", query)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Top matches for %q:\n", query)
	for i, r := range results {
		fmt.Fprintf(&b, "%d. %s\n   Similarity Score: %s\n", i+1, r.Listing.CombinedProperty, r.FormattedScore())
	}
	return strings.TrimRight(b.String(), "\n")
}

func textResult(text string) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: text}},
	}
}

func toolError(format string, args ...interface{}) *gomcp.CallToolResult {
	return &gomcp.CallToolResult{
		Content: []gomcp.Content{&gomcp.TextContent{Text: fmt.Sprintf(format, args...)}},
		IsError: true,
	}
}
