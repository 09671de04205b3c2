// Package encyclopedia wraps the Wikipedia REST summary API for quick
// background lookups during research.
package encyclopedia

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/mohammad-safakhou/chronicler/config"
	"github.com/mohammad-safakhou/chronicler/internal/httpx"
)

const defaultEndpoint = "https://en.wikipedia.org/api/rest_v1"

// Client queries Wikipedia.
type Client struct {
	endpoint string
	http     *httpx.Client
}

// New builds a client from configuration.
func New(cfg config.EncyclopediaConfig) *Client {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return &Client{
		endpoint: strings.TrimRight(endpoint, "/"),
		http:     httpx.NewClient(cfg.Timeout, 2, 0),
	}
}

type summaryResponse struct {
	Title   string `json:"title"`
	Extract string `json:"extract"`
	Content struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Summary fetches the article summary for a topic. Unknown topics come back
// as a plain observation, not an error.
func (c *Client) Summary(ctx context.Context, topic string) (string, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return "", fmt.Errorf("empty topic")
	}
	title := url.PathEscape(strings.ReplaceAll(topic, " ", "_"))

	var out summaryResponse
	err := c.http.DoJSON(ctx, http.MethodGet, c.endpoint+"/page/summary/"+title,
		map[string]string{"Accept": "application/json"}, nil, &out)
	if err != nil {
		var statusErr *httpx.StatusError
		if errors.As(err, &statusErr) && statusErr.Code == http.StatusNotFound {
			return fmt.Sprintf("No encyclopedia entry found for %q.", topic), nil
		}
		return "", fmt.Errorf("wikipedia: %w", err)
	}
	if strings.TrimSpace(out.Extract) == "" {
		return fmt.Sprintf("No encyclopedia entry found for %q.", topic), nil
	}

	var sb strings.Builder
	sb.WriteString(out.Title)
	sb.WriteString("\n")
	sb.WriteString(out.Extract)
	if out.Content.Desktop.Page != "" {
		sb.WriteString("\n")
		sb.WriteString(out.Content.Desktop.Page)
	}
	return sb.String(), nil
}
