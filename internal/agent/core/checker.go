package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

const checkerPrompt = `You are a meticulous fact checker reviewing a research
report against its original query.

Original query: %s

Report:
%s

Evaluate the report for factual accuracy, internal consistency, and coverage
of the query. Respond with exactly one JSON object:
{"verdict": "accurate" or "flagged", "issues": ["...", ...], "rewritten_output": "..."}
"issues" lists every problem found, empty if none. "rewritten_output" is the
full corrected report text. If nothing needed correction, return the report
unchanged as rewritten_output.`

// Checker verifies research findings with a single model call and a strict
// response schema. Schema violations are fatal, never retried; a checker
// that cannot follow its own contract must not silently pass text through.
type Checker struct {
	provider LLMProvider
	logger   *log.Logger
}

// NewChecker builds the verification stage.
func NewChecker(provider LLMProvider) *Checker {
	return &Checker{
		provider: provider,
		logger:   log.New(log.Writer(), "[CHECKER] ", log.LstdFlags),
	}
}

// Check evaluates the findings and returns the structured verdict.
func (c *Checker) Check(ctx context.Context, query, findings string) (*VerificationResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, ErrCancelled
	}
	model := c.provider.ModelFor(StageChecker)
	reply, _, _, err := c.provider.Chat(ctx, []Message{
		{Role: RoleUser, Content: fmt.Sprintf(checkerPrompt, query, findings)},
	}, model)
	if err != nil {
		return nil, &ModelCallError{Err: err}
	}

	result, err := parseVerification(reply)
	if err != nil {
		return nil, err
	}
	c.logger.Printf("verdict=%s issues=%d", result.Verdict, len(result.Issues))
	return result, nil
}

// parseVerification holds the checker to its schema: the verdict must be one
// of the two known values and rewritten_output must be non-empty.
func parseVerification(reply string) (*VerificationResult, error) {
	raw := extractFirstJSON(reply)
	if raw == "" {
		return nil, &VerificationSchemaError{Raw: reply, Err: fmt.Errorf("no JSON object in reply")}
	}
	var result VerificationResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		return nil, &VerificationSchemaError{Raw: reply, Err: err}
	}
	switch result.Verdict {
	case VerdictAccurate, VerdictFlagged:
	default:
		return nil, &VerificationSchemaError{Raw: reply, Err: fmt.Errorf("unknown verdict %q", result.Verdict)}
	}
	if strings.TrimSpace(result.RewrittenOutput) == "" {
		return nil, &VerificationSchemaError{Raw: reply, Err: fmt.Errorf("rewritten_output is empty")}
	}
	if result.Issues == nil {
		result.Issues = []string{}
	}
	return &result, nil
}
