// Package websearch wraps the SerpAPI google search endpoint into ranked
// snippet text for the research loop.
package websearch

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/chronicler/config"
	"github.com/mohammad-safakhou/chronicler/internal/httpx"
)

const defaultEndpoint = "https://serpapi.com/search.json"

// Client queries SerpAPI.
type Client struct {
	apiKey     string
	endpoint   string
	maxResults int
	http       *httpx.Client
}

// New builds a client from configuration.
func New(cfg config.WebSearchConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	return &Client{
		apiKey:     cfg.APIKey,
		endpoint:   endpoint,
		maxResults: maxResults,
		http:       httpx.NewClient(cfg.Timeout, 2, 0),
	}
}

type searchResponse struct {
	OrganicResults []struct {
		Title   string `json:"title"`
		Link    string `json:"link"`
		Snippet string `json:"snippet"`
	} `json:"organic_results"`
	Error string `json:"error"`
}

// Search runs a google search and returns the top results as numbered
// title/snippet/link blocks.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("empty search query")
	}

	params := url.Values{}
	params.Set("engine", "google")
	params.Set("q", query)
	params.Set("api_key", c.apiKey)
	params.Set("num", fmt.Sprintf("%d", c.maxResults))

	var out searchResponse
	if err := c.http.DoJSON(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil, nil, &out); err != nil {
		return "", fmt.Errorf("serpapi: %w", err)
	}
	if out.Error != "" {
		return "", fmt.Errorf("serpapi: %s", out.Error)
	}
	if len(out.OrganicResults) == 0 {
		return "No search results found.", nil
	}

	var sb strings.Builder
	for i, r := range out.OrganicResults {
		if i >= c.maxResults {
			break
		}
		sb.WriteString(fmt.Sprintf("%d. %s\n%s\n%s\n\n", i+1, r.Title, r.Snippet, r.Link))
	}
	return strings.TrimSpace(sb.String()), nil
}
