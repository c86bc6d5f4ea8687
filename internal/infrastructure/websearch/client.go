package websearch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"openchat/server/internal/domain/tool"
	"openchat/server/internal/infrastructure/metrics"
)

// Client implements tool.SearchClient against the Serper search API.
type Client struct {
	httpClient *resty.Client
	apiKey     string
	log        zerolog.Logger
}

var _ tool.SearchClient = (*Client)(nil)

// NewClient creates a Serper-backed search client.
func NewClient(baseURL, apiKey string, log zerolog.Logger) *Client {
	return &Client{
		httpClient: resty.New().
			SetBaseURL(baseURL).
			SetHeader("Content-Type", "application/json").
			SetTimeout(15 * time.Second),
		apiKey: apiKey,
		log:    log.With().Str("component", "websearch").Logger(),
	}
}

type searchResponse struct {
	Organic []organicResult `json:"organic"`
}

type organicResult struct {
	Title   string `json:"title"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
}

// Search queries the search API and maps organic hits into tool results.
func (c *Client) Search(ctx context.Context, query string, maxResults int) ([]tool.SearchResult, error) {
	if c.apiKey == "" {
		return nil, fmt.Errorf("search api key is not configured")
	}

	var result searchResponse
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetHeader("X-API-KEY", c.apiKey).
		SetBody(map[string]any{
			"q":   query,
			"num": maxResults,
		}).
		SetResult(&result).
		Post("/search")
	if err != nil {
		metrics.RecordToolCall(tool.WebSearchToolName, "error")
		return nil, fmt.Errorf("query search api: %w", err)
	}
	if resp.IsError() {
		metrics.RecordToolCall(tool.WebSearchToolName, "error")
		return nil, fmt.Errorf("search api error (status %d): %s", resp.StatusCode(), resp.String())
	}
	metrics.RecordToolCall(tool.WebSearchToolName, "ok")

	out := make([]tool.SearchResult, 0, maxResults)
	for _, hit := range result.Organic {
		if len(out) == maxResults {
			break
		}
		out = append(out, tool.SearchResult{
			Title:   hit.Title,
			URL:     hit.Link,
			Content: hit.Snippet,
		})
	}

	c.log.Debug().Str("query", query).Int("results", len(out)).Msg("web search completed")
	return out, nil
}
