package core

import (
	"context"
	"fmt"
	"log"
	"strings"
)

const researcherInstructions = `You are a historical researcher. Investigate
every research question below using the available tools. Search broadly,
consult encyclopedia entries for background, and look for primary sources
when the plan calls for them.

Your final answer must be a findings report in Markdown. It must contain one
section per research question, in the order given, each opened by a heading
of the exact form "## <n>. <question>" where <n> is the question number.
Write multiple substantive paragraphs under each heading and cite the
sources you used.`

// Researcher answers the plan's questions through a reasoning loop armed
// with the external research tools.
type Researcher struct {
	loop          *Loop
	registry      *Registry
	logger        *log.Logger
	maxIterations int
}

// NewResearcher builds the research stage over the shared tool registry.
func NewResearcher(loop *Loop, registry *Registry, maxIterations int) *Researcher {
	return &Researcher{
		loop:          loop,
		registry:      registry,
		logger:        log.New(log.Writer(), "[RESEARCHER] ", log.LstdFlags),
		maxIterations: maxIterations,
	}
}

// Research runs the loop seeded with the numbered questions and validates
// the heading structure of the findings before returning them.
func (r *Researcher) Research(ctx context.Context, plan *ResearchPlan) (string, error) {
	if plan == nil || len(plan.Questions) == 0 {
		return "", fmt.Errorf("research requires a plan with questions")
	}

	var seed strings.Builder
	seed.WriteString("Research plan:\n")
	seed.WriteString(plan.RawText)
	seed.WriteString("\n\nResearch questions:\n")
	for i, q := range plan.Questions {
		seed.WriteString(fmt.Sprintf("%d. %s\n", i+1, q))
	}

	findings, err := r.loop.Execute(ctx, StageResearcher, researcherInstructions, r.registry.Specs(), seed.String(), r.maxIterations)
	if err != nil {
		return "", err
	}
	if err := validateFindings(findings, len(plan.Questions)); err != nil {
		return "", err
	}
	r.logger.Printf("findings ready: %d sections, %d chars", len(plan.Questions), len(findings))
	return findings, nil
}

// validateFindings checks for exactly one numbered section heading per
// question, in ascending order.
func validateFindings(findings string, questions int) error {
	var numbers []int
	for _, line := range strings.Split(findings, "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "## ") {
			continue
		}
		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "## "))
		var n int
		if _, err := fmt.Sscanf(rest, "%d.", &n); err != nil {
			return fmt.Errorf("findings heading %q is not numbered", trimmed)
		}
		numbers = append(numbers, n)
	}
	if len(numbers) != questions {
		return fmt.Errorf("findings have %d sections, plan has %d questions", len(numbers), questions)
	}
	for i, n := range numbers {
		if n != i+1 {
			return fmt.Errorf("findings sections out of order: got %d at position %d", n, i+1)
		}
	}
	return nil
}
