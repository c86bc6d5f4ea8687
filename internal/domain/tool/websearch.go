package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"openchat/server/internal/domain/llm"
)

// SearchResult is one web search hit returned to the model.
type SearchResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Content string `json:"content"`
}

// SearchClient performs web searches against an external search API.
type SearchClient interface {
	Search(ctx context.Context, query string, maxResults int) ([]SearchResult, error)
}

const (
	// WebSearchToolName is the name advertised to the model.
	WebSearchToolName = "web_search"

	defaultMaxResults = 5
)

type webSearchInput struct {
	Query      string `json:"query"`
	MaxResults int    `json:"maxResults"`
}

// WebSearchDefinition declares the web search tool contract.
func WebSearchDefinition() llm.ToolDefinition {
	return llm.ToolDefinition{
		Type: "function",
		Function: llm.ToolFunctionSchema{
			Name:        WebSearchToolName,
			Description: "Search the web for up-to-date information. Use for questions about current events or facts that may have changed since training.",
			Parameters: map[string]interface{}{
				"type": "object",
				"properties": map[string]interface{}{
					"query": map[string]interface{}{
						"type":        "string",
						"description": "The search query",
					},
					"maxResults": map[string]interface{}{
						"type":        "integer",
						"description": "Maximum number of results to return, up to 10",
					},
				},
				"required": []string{"query"},
			},
		},
	}
}

// RegisterWebSearch wires the web search tool into the registry.
func RegisterWebSearch(r *Registry, client SearchClient) {
	r.Register(WebSearchDefinition(), func(ctx context.Context, input json.RawMessage) (interface{}, error) {
		var args webSearchInput
		if err := json.Unmarshal(input, &args); err != nil {
			return nil, fmt.Errorf("decode web_search arguments: %w", err)
		}
		if strings.TrimSpace(args.Query) == "" {
			return nil, fmt.Errorf("web_search requires a non-empty query")
		}
		max := args.MaxResults
		if max <= 0 || max > 10 {
			max = defaultMaxResults
		}

		results, err := client.Search(ctx, args.Query, max)
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{"results": results}, nil
	})
}
