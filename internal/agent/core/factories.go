package core

import (
	"context"
	"fmt"

	"github.com/mohammad-safakhou/chronicler/config"
	"github.com/mohammad-safakhou/chronicler/internal/agent/telemetry"
	"github.com/mohammad-safakhou/chronicler/tools/archives"
	"github.com/mohammad-safakhou/chronicler/tools/encyclopedia"
	"github.com/mohammad-safakhou/chronicler/tools/pagefetch"
	"github.com/mohammad-safakhou/chronicler/tools/websearch"
)

// NewToolRegistry wires the external research tools from configuration.
// Registration order is fixed; a duplicate name here is a programming error
// surfaced at startup.
func NewToolRegistry(cfg config.ToolsConfig, tel *telemetry.Telemetry) (*Registry, error) {
	registry := NewRegistry()

	search := websearch.New(cfg.WebSearch)
	wiki := encyclopedia.New(cfg.Encyclopedia)
	dpla := archives.New(cfg.Archives)

	specs := []ToolSpec{
		{
			Name:        "web_search",
			Description: "Search the web for a query. Input: search terms. Returns ranked result snippets with links.",
			Run:         instrument(tel, "web_search", search.Search),
		},
		{
			Name:        "wikipedia",
			Description: "Look up an encyclopedia summary for a topic. Input: topic name.",
			Run:         instrument(tel, "wikipedia", wiki.Summary),
		},
		{
			Name:        ArchivalToolName,
			Description: "Search the Digital Public Library of America for primary source documents. Input: search terms. Returns title, provider, and link per item.",
			Run:         instrument(tel, ArchivalToolName, dpla.Search),
		},
	}

	if cfg.PageFetch.Enabled {
		fetcher := pagefetch.New(cfg.PageFetch)
		specs = append(specs, ToolSpec{
			Name:        "fetch_page",
			Description: "Fetch a web page and return its readable article text. Input: a URL from an earlier search result.",
			Run:         instrument(tel, "fetch_page", fetcher.Fetch),
		})
	}

	for _, spec := range specs {
		if err := registry.Register(spec); err != nil {
			return nil, fmt.Errorf("registering tools: %w", err)
		}
	}
	return registry, nil
}

// instrument wraps a tool function with telemetry accounting.
func instrument(tel *telemetry.Telemetry, name string, fn ToolFunc) ToolFunc {
	if tel == nil {
		return fn
	}
	return func(ctx context.Context, input string) (string, error) {
		out, err := fn(ctx, input)
		tel.RecordToolCall(name, err)
		return out, err
	}
}

// NewPipeline assembles a full orchestrator from configuration. The renderer
// and sink are injected so the CLI and the server can share the wiring.
func NewPipeline(cfg *config.Config, renderer Renderer, sink StatusSink, tel *telemetry.Telemetry) (*Orchestrator, error) {
	provider, err := NewLLMProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}
	registry, err := NewToolRegistry(cfg.Tools, tel)
	if err != nil {
		return nil, err
	}

	pipeline := cfg.Pipeline.Normalize()
	loop := NewLoop(provider, tel, nil, pipeline.ModelCallRetries, pipeline.RetryBackoff)

	planner := NewPlanner(loop, pipeline.MaxIterations)
	researcher := NewResearcher(loop, registry, pipeline.MaxIterations)
	checker := NewChecker(provider)
	reporter := NewReporter(renderer)

	return NewOrchestrator(planner, researcher, checker, reporter, sink, tel, pipeline.StageTimeout), nil
}
