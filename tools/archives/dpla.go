// Package archives wraps the Digital Public Library of America items API for
// primary source discovery.
package archives

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/chronicler/config"
	"github.com/mohammad-safakhou/chronicler/internal/httpx"
)

const defaultEndpoint = "https://api.dp.la/v2"

// EmptyResultText is returned verbatim when a query matches no archival
// items, so downstream reasoning can recognize the miss.
const EmptyResultText = "No primary sources found in the DPLA for that query."

// Client queries the DPLA.
type Client struct {
	apiKey   string
	endpoint string
	pageSize int
	http     *httpx.Client
}

// New builds a client from configuration.
func New(cfg config.ArchivesConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 5
	}
	return &Client{
		apiKey:   cfg.APIKey,
		endpoint: strings.TrimRight(endpoint, "/"),
		pageSize: pageSize,
		http:     httpx.NewClient(cfg.Timeout, 2, 0),
	}
}

type itemsResponse struct {
	Count int `json:"count"`
	Docs  []struct {
		SourceResource struct {
			Title any `json:"title"`
		} `json:"sourceResource"`
		Provider struct {
			Name string `json:"name"`
		} `json:"provider"`
		IsShownAt string `json:"isShownAt"`
	} `json:"docs"`
}

// Search queries the items API and formats each hit as a Title/Provider/Link
// block, blocks separated by "---" lines.
func (c *Client) Search(ctx context.Context, query string) (string, error) {
	if strings.TrimSpace(query) == "" {
		return "", fmt.Errorf("empty archival query")
	}

	params := url.Values{}
	params.Set("q", query)
	params.Set("api_key", c.apiKey)
	params.Set("page_size", fmt.Sprintf("%d", c.pageSize))

	var out itemsResponse
	if err := c.http.DoJSON(ctx, http.MethodGet, c.endpoint+"/items?"+params.Encode(), nil, nil, &out); err != nil {
		return "", fmt.Errorf("dpla: %w", err)
	}
	if len(out.Docs) == 0 {
		return EmptyResultText, nil
	}

	blocks := make([]string, 0, len(out.Docs))
	for _, doc := range out.Docs {
		title := flattenTitle(doc.SourceResource.Title)
		if title == "" {
			title = "Untitled"
		}
		provider := doc.Provider.Name
		if provider == "" {
			provider = "Unknown provider"
		}
		link := doc.IsShownAt
		if link == "" {
			link = "No link available"
		}
		blocks = append(blocks, fmt.Sprintf("Title: %s\nProvider: %s\nLink: %s", title, provider, link))
	}
	return strings.Join(blocks, "\n---\n"), nil
}

// flattenTitle handles the API returning title as either a string or a list.
func flattenTitle(v any) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []any:
		parts := make([]string, 0, len(t))
		for _, p := range t {
			if s, ok := p.(string); ok && strings.TrimSpace(s) != "" {
				parts = append(parts, strings.TrimSpace(s))
			}
		}
		return strings.Join(parts, "; ")
	default:
		return ""
	}
}
