package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
)

const plannerInstructions = `You are a historical research planning assistant.
Given a user's research query, first call extract_info to identify the key
facets of the topic, then call generate_plan to produce the research plan,
and finally answer with the complete plan text.`

const extractInfoPrompt = `Extract the key facets of this historical research query.
Respond with exactly one JSON object:
{"topic": "...", "time_period": "...", "location": "...", "group_involved": "..."}
Use "N/A" for any facet that cannot be determined from the query.

Query: %s`

const generatePlanPrompt = `Create a research plan for the topic below.
Respond with exactly one JSON object:
{"questions": ["...", ...], "keywords": ["...", ...], "strategy": "..."}
Provide exactly 5 specific research questions and exactly 10 search keywords.
The strategy is a short paragraph describing how to approach the research.

Topic facets: %s
Original query: %s`

// Planner turns a raw query into a ResearchPlan through a reasoning loop
// armed with two internal tools.
type Planner struct {
	loop          *Loop
	logger        *log.Logger
	maxIterations int
}

// NewPlanner builds the planning stage.
func NewPlanner(loop *Loop, maxIterations int) *Planner {
	return &Planner{
		loop:          loop,
		logger:        log.New(log.Writer(), "[PLANNER] ", log.LstdFlags),
		maxIterations: maxIterations,
	}
}

type facets struct {
	Topic         string `json:"topic"`
	TimePeriod    string `json:"time_period"`
	Location      string `json:"location"`
	GroupInvolved string `json:"group_involved"`
}

// Plan runs the planning loop and parses its output. Plans with more than 5
// questions or 10 keywords are truncated; plans with fewer fail the stage.
// The archival augmentation rule is applied to the finished plan text.
func (p *Planner) Plan(ctx context.Context, query string) (*ResearchPlan, error) {
	var (
		captured  facets
		plan      ResearchPlan
		planReady bool
	)

	// Both internal tools are single model calls; closures capture their
	// structured output so the stage does not re-parse the loop's prose.
	tools := []ToolSpec{
		{
			Name:        "extract_info",
			Description: "Extract topic, time period, location, and group involved from a research query. Input: the query text.",
			Run: func(ctx context.Context, input string) (string, error) {
				model := p.loop.provider.ModelFor(StagePlanner)
				reply, _, _, err := p.loop.provider.Chat(ctx, []Message{
					{Role: RoleUser, Content: fmt.Sprintf(extractInfoPrompt, input)},
				}, model)
				if err != nil {
					return "", err
				}
				raw := extractFirstJSON(reply)
				if raw == "" {
					return "", fmt.Errorf("no facet object in reply")
				}
				if err := json.Unmarshal([]byte(raw), &captured); err != nil {
					return "", fmt.Errorf("parse facets: %w", err)
				}
				return raw, nil
			},
		},
		{
			Name:        "generate_plan",
			Description: "Generate 5 research questions, 10 search keywords, and a strategy for the extracted topic. Input: the topic description.",
			Run: func(ctx context.Context, input string) (string, error) {
				model := p.loop.provider.ModelFor(StagePlanner)
				reply, _, _, err := p.loop.provider.Chat(ctx, []Message{
					{Role: RoleUser, Content: fmt.Sprintf(generatePlanPrompt, input, query)},
				}, model)
				if err != nil {
					return "", err
				}
				raw := extractFirstJSON(reply)
				if raw == "" {
					return "", fmt.Errorf("no plan object in reply")
				}
				var draft struct {
					Questions []string `json:"questions"`
					Keywords  []string `json:"keywords"`
					Strategy  string   `json:"strategy"`
				}
				if err := json.Unmarshal([]byte(raw), &draft); err != nil {
					return "", fmt.Errorf("parse plan: %w", err)
				}
				plan.Questions = draft.Questions
				plan.Keywords = draft.Keywords
				plan.Strategy = draft.Strategy
				planReady = true
				return raw, nil
			},
		},
	}

	answer, err := p.loop.Execute(ctx, StagePlanner, plannerInstructions, tools, query, p.maxIterations)
	if err != nil {
		return nil, err
	}
	if !planReady {
		return nil, fmt.Errorf("planning finished without calling generate_plan")
	}

	if len(plan.Questions) < 5 {
		return nil, fmt.Errorf("plan has %d research questions, need 5", len(plan.Questions))
	}
	if len(plan.Keywords) < 10 {
		return nil, fmt.Errorf("plan has %d search keywords, need 10", len(plan.Keywords))
	}
	plan.Questions = plan.Questions[:5]
	plan.Keywords = plan.Keywords[:10]

	plan.Topic = captured.Topic
	plan.TimePeriod = captured.TimePeriod
	plan.Location = captured.Location
	plan.GroupInvolved = captured.GroupInvolved
	plan.RawText = AugmentPlan(query, renderPlanText(answer, &plan))

	p.logger.Printf("plan ready: topic=%q questions=%d keywords=%d", plan.Topic, len(plan.Questions), len(plan.Keywords))
	return &plan, nil
}

// renderPlanText prefers the model's own prose answer; an empty answer falls
// back to a deterministic rendering of the structured plan.
func renderPlanText(answer string, plan *ResearchPlan) string {
	if strings.TrimSpace(answer) != "" {
		return answer
	}
	var sb strings.Builder
	sb.WriteString("Research questions:\n")
	for i, q := range plan.Questions {
		sb.WriteString(fmt.Sprintf("%d. %s\n", i+1, q))
	}
	sb.WriteString("\nSearch keywords: ")
	sb.WriteString(strings.Join(plan.Keywords, ", "))
	if plan.Strategy != "" {
		sb.WriteString("\n\nStrategy: ")
		sb.WriteString(plan.Strategy)
	}
	return sb.String()
}
