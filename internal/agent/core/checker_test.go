package core

import (
	"context"
	"errors"
	"testing"
)

func TestCheckerParsesAccurateVerdict(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		`{"verdict":"accurate","issues":[],"rewritten_output":"The findings hold up."}`,
	}}
	checker := NewChecker(llm)

	result, err := checker.Check(context.Background(), "query", "findings")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Verdict != VerdictAccurate {
		t.Fatalf("expected accurate, got %q", result.Verdict)
	}
	if len(result.Issues) != 0 {
		t.Fatalf("expected no issues, got %v", result.Issues)
	}
	if result.RewrittenOutput != "The findings hold up." {
		t.Fatalf("unexpected rewritten output %q", result.RewrittenOutput)
	}
}

func TestCheckerParsesFlaggedVerdict(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		`The evaluation follows: {"verdict":"flagged","issues":["date is wrong"],"rewritten_output":"Corrected text."}`,
	}}
	checker := NewChecker(llm)

	result, err := checker.Check(context.Background(), "query", "findings")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if result.Verdict != VerdictFlagged {
		t.Fatalf("expected flagged, got %q", result.Verdict)
	}
	if len(result.Issues) != 1 || result.Issues[0] != "date is wrong" {
		t.Fatalf("unexpected issues %v", result.Issues)
	}
}

func TestCheckerRejectsUnknownVerdict(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		`{"verdict":"maybe","issues":[],"rewritten_output":"text"}`,
	}}
	checker := NewChecker(llm)

	_, err := checker.Check(context.Background(), "query", "findings")
	var schemaErr *VerificationSchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected VerificationSchemaError, got %v", err)
	}
}

func TestCheckerRejectsNonJSONReply(t *testing.T) {
	llm := &scriptedLLM{replies: []string{"Looks fine to me!"}}
	checker := NewChecker(llm)

	_, err := checker.Check(context.Background(), "query", "findings")
	var schemaErr *VerificationSchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected VerificationSchemaError, got %v", err)
	}
	if llm.calls != 1 {
		t.Fatalf("schema errors must not be retried, got %d calls", llm.calls)
	}
}

func TestCheckerRejectsEmptyRewrittenOutput(t *testing.T) {
	llm := &scriptedLLM{replies: []string{
		`{"verdict":"accurate","issues":[],"rewritten_output":"  "}`,
	}}
	checker := NewChecker(llm)

	_, err := checker.Check(context.Background(), "query", "findings")
	var schemaErr *VerificationSchemaError
	if !errors.As(err, &schemaErr) {
		t.Fatalf("expected VerificationSchemaError, got %v", err)
	}
}
