// Package pagefetch renders a page in headless Chrome and extracts the
// readable article text for deep reads during research.
package pagefetch

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/go-shiori/go-readability"

	"github.com/mohammad-safakhou/chronicler/config"
)

// Fetcher renders and extracts pages.
type Fetcher struct {
	timeout  time.Duration
	maxChars int
}

// New builds a fetcher from configuration.
func New(cfg config.PageFetchConfig) *Fetcher {
	cfg = cfg.Normalize()
	return &Fetcher{timeout: cfg.Timeout, maxChars: cfg.MaxChars}
}

// Fetch renders the page and returns title plus truncated article text.
// Render failures are observations, not errors; a dead link should not
// derail the research loop.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (string, error) {
	rawURL = strings.TrimSpace(rawURL)
	if rawURL == "" {
		return "", errors.New("invalid url")
	}

	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	html, err := fetchHTML(ctx, rawURL)
	if err != nil {
		return fmt.Sprintf("Could not load %s: %v", rawURL, err), nil
	}

	article, err := readability.FromReader(strings.NewReader(html), mustParseURL(rawURL))
	if err != nil {
		return fmt.Sprintf("Could not extract readable text from %s.", rawURL), nil
	}
	text := strings.TrimSpace(article.TextContent)
	if len(text) > f.maxChars {
		text = text[:f.maxChars]
	}
	if text == "" {
		return fmt.Sprintf("Page %s contained no readable text.", rawURL), nil
	}

	title := strings.TrimSpace(article.Title)
	if title == "" {
		title = rawURL
	}
	return title + "\n\n" + text, nil
}

func fetchHTML(ctx context.Context, rawURL string) (string, error) {
	opts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.UserAgent("ChroniclerResearchAgent/1.0 (+contact@example.com)"),
	)
	actx, cancelAlloc := chromedp.NewExecAllocator(ctx, opts...)
	defer cancelAlloc()
	bctx, cancelBrowser := chromedp.NewContext(actx)
	defer cancelBrowser()

	var html string
	err := chromedp.Run(bctx,
		chromedp.Navigate(rawURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	return html, err
}

func mustParseURL(raw string) *url.URL {
	u, err := url.Parse(raw)
	if err != nil {
		return &url.URL{}
	}
	return u
}
