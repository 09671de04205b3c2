package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

type recordingSink struct {
	events []StageEvent
}

func (r *recordingSink) Publish(event StageEvent) { r.events = append(r.events, event) }

type fakeRenderer struct {
	body   string
	called int
	err    error
}

func (f *fakeRenderer) Render(ctx context.Context, runID, title, body string) (string, error) {
	f.called++
	f.body = body
	if f.err != nil {
		return "", f.err
	}
	return "/tmp/reports/" + runID + ".md", nil
}

func pipelineScript(t *testing.T, rewritten string) []string {
	t.Helper()
	findings, err := actionFinal(findingsFor(5))
	if err != nil {
		t.Fatalf("building findings action: %v", err)
	}
	script := plannerScript(planJSON(5, 10))
	script = append(script, findings)
	script = append(script, `{"verdict":"flagged","issues":["minor date slip"],"rewritten_output":"`+rewritten+`"}`)
	return script
}

func testOrchestrator(llm LLMProvider, renderer Renderer, sink StatusSink) *Orchestrator {
	loop := testLoop(llm, 0)
	planner := NewPlanner(loop, 10)
	researcher := NewResearcher(loop, NewRegistry(), 10)
	checker := NewChecker(llm)
	reporter := NewReporter(renderer)
	return NewOrchestrator(planner, researcher, checker, reporter, sink, nil, time.Minute)
}

func TestOrchestratorRunsFullPipeline(t *testing.T) {
	rewritten := "Verified account of the Declaration of Independence."
	llm := &scriptedLLM{replies: pipelineScript(t, rewritten)}
	renderer := &fakeRenderer{}
	sink := &recordingSink{}
	orch := testOrchestrator(llm, renderer, sink)

	query := "Find primary source documents or letters related to the signing of the US Declaration of Independence."
	state, err := orch.Run(context.Background(), "run-1", query)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if state.Plan == nil || len(state.Plan.Questions) != 5 {
		t.Fatalf("expected plan with 5 questions")
	}
	if !strings.Contains(state.Plan.RawText, ArchivalToolName) {
		t.Fatalf("primary source query must augment the plan with %s", ArchivalToolName)
	}
	if state.Findings == "" {
		t.Fatalf("expected findings on state")
	}
	if state.Verification == nil || state.Verification.Verdict != VerdictFlagged {
		t.Fatalf("expected flagged verification, got %+v", state.Verification)
	}

	// The reporter must consume the checker's rewrite, never the raw findings.
	if !strings.Contains(renderer.body, rewritten) {
		t.Fatalf("rendered body must contain rewritten output")
	}
	if strings.Contains(renderer.body, "## 1. Question 1") {
		t.Fatalf("rendered body must not contain raw findings")
	}
	if state.ArtifactPath == "" {
		t.Fatalf("expected artifact path on state")
	}

	wantEvents := []struct{ stage, kind string }{
		{StagePlanner, EventStarted},
		{StagePlanner, EventCompleted},
		{StageResearcher, EventStarted},
		{StageResearcher, EventCompleted},
		{StageChecker, EventStarted},
		{StageChecker, EventCompleted},
		{StageReporter, EventStarted},
		{StageReporter, EventCompleted},
	}
	if len(sink.events) != len(wantEvents) {
		t.Fatalf("expected %d events, got %d", len(wantEvents), len(sink.events))
	}
	for i, want := range wantEvents {
		got := sink.events[i]
		if got.Stage != want.stage || got.Kind != want.kind {
			t.Fatalf("event %d: expected %s/%s, got %s/%s", i, want.stage, want.kind, got.Stage, got.Kind)
		}
		if got.RunID != "run-1" {
			t.Fatalf("event %d: expected run-1, got %q", i, got.RunID)
		}
	}
}

func TestOrchestratorAbortsOnCheckerFailure(t *testing.T) {
	findings, err := actionFinal(findingsFor(5))
	if err != nil {
		t.Fatalf("building findings action: %v", err)
	}
	script := plannerScript(planJSON(5, 10))
	script = append(script, findings)
	script = append(script, "not a verification object")

	llm := &scriptedLLM{replies: script}
	renderer := &fakeRenderer{}
	sink := &recordingSink{}
	orch := testOrchestrator(llm, renderer, sink)

	state, runErr := orch.Run(context.Background(), "run-2", "some query")
	var pipeErr *PipelineError
	if !errors.As(runErr, &pipeErr) {
		t.Fatalf("expected PipelineError, got %v", runErr)
	}
	if pipeErr.Stage != StageChecker {
		t.Fatalf("expected checker stage failure, got %q", pipeErr.Stage)
	}
	var schemaErr *VerificationSchemaError
	if !errors.As(runErr, &schemaErr) {
		t.Fatalf("expected wrapped VerificationSchemaError, got %v", runErr)
	}

	if renderer.called != 0 {
		t.Fatalf("reporter must not run after a checker failure")
	}
	if state.Findings == "" {
		t.Fatalf("partial state must keep earlier stage output")
	}

	last := sink.events[len(sink.events)-1]
	if last.Stage != StageChecker || last.Kind != EventFailed {
		t.Fatalf("expected final event checker/failed, got %s/%s", last.Stage, last.Kind)
	}
	for _, ev := range sink.events {
		if ev.Stage == StageReporter {
			t.Fatalf("no reporter events expected after abort")
		}
	}
}

func TestOrchestratorWrapsReportFailure(t *testing.T) {
	rewritten := "Verified text."
	llm := &scriptedLLM{replies: pipelineScript(t, rewritten)}
	renderer := &fakeRenderer{err: errors.New("disk full")}
	sink := &recordingSink{}
	orch := testOrchestrator(llm, renderer, sink)

	_, runErr := orch.Run(context.Background(), "run-3", "some query")
	var pipeErr *PipelineError
	if !errors.As(runErr, &pipeErr) {
		t.Fatalf("expected PipelineError, got %v", runErr)
	}
	if pipeErr.Stage != StageReporter {
		t.Fatalf("expected reporter stage failure, got %q", pipeErr.Stage)
	}
	var repErr *ReportGenerationError
	if !errors.As(runErr, &repErr) {
		t.Fatalf("expected wrapped ReportGenerationError, got %v", runErr)
	}
}

func TestOrchestratorGeneratesRunID(t *testing.T) {
	llm := &scriptedLLM{replies: pipelineScript(t, "Verified.")}
	orch := testOrchestrator(llm, &fakeRenderer{}, &recordingSink{})

	state, err := orch.Run(context.Background(), "", "some query")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if state.RunID == "" {
		t.Fatalf("expected generated run ID")
	}
}
