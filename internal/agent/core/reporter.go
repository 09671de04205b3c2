package core

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"
)

// Renderer writes a finished report to its artifact form and returns the
// artifact location. The Markdown renderer in internal/report is the only
// implementation today; the interface leaves room for other formats.
type Renderer interface {
	Render(ctx context.Context, runID, title, body string) (string, error)
}

// Reporter assembles the final report from the verified text and hands it to
// the renderer. It never sees the raw findings, only the checker's rewrite.
type Reporter struct {
	renderer Renderer
	logger   *log.Logger
}

// NewReporter builds the reporting stage.
func NewReporter(renderer Renderer) *Reporter {
	return &Reporter{
		renderer: renderer,
		logger:   log.New(log.Writer(), "[REPORTER] ", log.LstdFlags),
	}
}

// Report renders the verified text into the final artifact and returns the
// report body plus the artifact path.
func (r *Reporter) Report(ctx context.Context, state *PipelineState) (string, string, error) {
	if err := ctx.Err(); err != nil {
		return "", "", ErrCancelled
	}
	if state.Verification == nil {
		return "", "", &ReportGenerationError{Err: fmt.Errorf("no verification result to report")}
	}

	body := buildReportBody(state)
	path, err := r.renderer.Render(ctx, state.RunID, state.Query, body)
	if err != nil {
		return "", "", &ReportGenerationError{Err: err}
	}
	r.logger.Printf("report written: %s", path)
	return body, path, nil
}

func buildReportBody(state *PipelineState) string {
	var sb strings.Builder
	sb.WriteString("# Research Report\n\n")
	sb.WriteString(fmt.Sprintf("**Query:** %s\n\n", state.Query))
	sb.WriteString(fmt.Sprintf("**Generated:** %s\n\n", time.Now().UTC().Format(time.RFC3339)))
	if state.Verification.Verdict == VerdictFlagged && len(state.Verification.Issues) > 0 {
		sb.WriteString("## Verification Notes\n\n")
		sb.WriteString("The fact checker flagged and corrected the following issues:\n\n")
		for _, issue := range state.Verification.Issues {
			sb.WriteString("- " + issue + "\n")
		}
		sb.WriteString("\n")
	}
	sb.WriteString(state.Verification.RewrittenOutput)
	sb.WriteString("\n")
	return sb.String()
}
