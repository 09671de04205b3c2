// Package report renders finished research reports to disk artifacts.
package report

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mohammad-safakhou/chronicler/config"
)

// MarkdownRenderer writes reports as timestamped Markdown files under the
// configured output directory.
type MarkdownRenderer struct {
	outputDir string
}

// NewMarkdownRenderer builds a renderer from configuration.
func NewMarkdownRenderer(cfg config.ReportConfig) *MarkdownRenderer {
	cfg = cfg.Normalize()
	return &MarkdownRenderer{outputDir: cfg.OutputDir}
}

// Render writes the report body and returns the artifact path.
func (r *MarkdownRenderer) Render(ctx context.Context, runID, title, body string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if strings.TrimSpace(body) == "" {
		return "", fmt.Errorf("report body is empty")
	}
	if err := os.MkdirAll(r.outputDir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	name := fmt.Sprintf("%s_%s.md", time.Now().UTC().Format("20060102T150405"), sanitize(runID))
	path := filepath.Join(r.outputDir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		return "", fmt.Errorf("writing artifact: %w", err)
	}
	return path, nil
}

// sanitize keeps artifact names filesystem-safe.
func sanitize(s string) string {
	if s == "" {
		return "report"
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}
