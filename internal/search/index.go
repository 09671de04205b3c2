// Package search maintains a full-text index over finished reports.
package search

import (
	"fmt"
	"strings"
	"sync"

	"github.com/blevesearch/bleve"
)

// Document is one indexed report.
type Document struct {
	RunID string `json:"run_id"`
	Query string `json:"query"`
	Body  string `json:"body"`
}

// Hit is one search result.
type Hit struct {
	RunID string  `json:"run_id"`
	Query string  `json:"query"`
	Score float64 `json:"score"`
}

// Index wraps a bleve index. Writes are serialized; bleve handles concurrent
// reads itself.
type Index struct {
	mu  sync.Mutex
	idx bleve.Index
}

// New opens or creates the index at path. An empty path builds an in-memory
// index, which tests and the CLI use.
func New(path string) (*Index, error) {
	if strings.TrimSpace(path) == "" {
		idx, err := bleve.NewMemOnly(bleve.NewIndexMapping())
		if err != nil {
			return nil, fmt.Errorf("creating memory index: %w", err)
		}
		return &Index{idx: idx}, nil
	}

	idx, err := bleve.Open(path)
	if err == bleve.ErrorIndexPathDoesNotExist {
		idx, err = bleve.New(path, bleve.NewIndexMapping())
	}
	if err != nil {
		return nil, fmt.Errorf("opening index %s: %w", path, err)
	}
	return &Index{idx: idx}, nil
}

// Add indexes one report, replacing any previous version for the same run.
func (i *Index) Add(doc Document) error {
	i.mu.Lock()
	defer i.mu.Unlock()
	if err := i.idx.Index(doc.RunID, doc); err != nil {
		return fmt.Errorf("indexing report %s: %w", doc.RunID, err)
	}
	return nil
}

// Search runs a match query over the indexed reports.
func (i *Index) Search(q string, limit int) ([]Hit, error) {
	if limit <= 0 {
		limit = 10
	}
	req := bleve.NewSearchRequestOptions(bleve.NewMatchQuery(q), limit, 0, false)
	req.Fields = []string{"query"}
	res, err := i.idx.Search(req)
	if err != nil {
		return nil, fmt.Errorf("searching reports: %w", err)
	}

	hits := make([]Hit, 0, len(res.Hits))
	for _, h := range res.Hits {
		hit := Hit{RunID: h.ID, Score: h.Score}
		if v, ok := h.Fields["query"].(string); ok {
			hit.Query = v
		}
		hits = append(hits, hit)
	}
	return hits, nil
}

// Close releases the index.
func (i *Index) Close() error { return i.idx.Close() }
