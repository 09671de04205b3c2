package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/mohammad-safakhou/chronicler/internal/agent/telemetry"
)

// action is the strict JSON protocol the model must answer with on every
// turn: either a final answer or a tool request.
type action struct {
	Action string `json:"action"` // "final" or "tool"
	Answer string `json:"answer,omitempty"`
	Tool   string `json:"tool,omitempty"`
	Input  string `json:"input,omitempty"`
}

// Loop runs a bounded tool-calling reasoning conversation against the
// reasoning service. One Loop value is safe for concurrent Execute calls;
// all per-run state lives in the call frame.
type Loop struct {
	provider  LLMProvider
	telemetry *telemetry.Telemetry
	logger    *log.Logger

	modelCallRetries int
	retryBackoff     time.Duration
}

// NewLoop builds a reasoning loop over the given provider.
func NewLoop(provider LLMProvider, tel *telemetry.Telemetry, logger *log.Logger, modelCallRetries int, retryBackoff time.Duration) *Loop {
	if logger == nil {
		logger = log.New(log.Writer(), "[LOOP] ", log.LstdFlags)
	}
	if retryBackoff <= 0 {
		retryBackoff = 500 * time.Millisecond
	}
	return &Loop{
		provider:         provider,
		telemetry:        tel,
		logger:           logger,
		modelCallRetries: modelCallRetries,
		retryBackoff:     retryBackoff,
	}
}

// Execute runs the loop until the model produces a final answer or the
// iteration budget runs out. instructions become the system prompt (plus the
// tool roster), seed the opening user message. The returned error is an
// *IterationLimitError when the budget is exhausted; the partial history
// rides along for diagnostics.
func (l *Loop) Execute(ctx context.Context, stage, instructions string, tools []ToolSpec, seed string, maxIterations int) (string, error) {
	if maxIterations <= 0 {
		return "", fmt.Errorf("maxIterations must be positive, got %d", maxIterations)
	}

	index := make(map[string]ToolSpec, len(tools))
	for _, t := range tools {
		index[t.Name] = t
	}

	history := []Message{
		{Role: RoleSystem, Content: buildSystemPrompt(instructions, tools)},
		{Role: RoleUser, Content: seed},
	}
	model := l.provider.ModelFor(stage)

	for iteration := 0; iteration < maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			return "", ErrCancelled
		}

		reply, err := l.callModel(ctx, history, model, stage)
		if err != nil {
			return "", err
		}
		history = append(history, Message{Role: RoleAssistant, Content: reply})

		act, err := parseAction(reply)
		if err != nil {
			// Not valid protocol output. Feed the complaint back so the
			// model can correct itself on the next turn.
			history = append(history, Message{Role: RoleUser, Content: "Observation: your reply was not a valid JSON action. Respond with exactly one JSON object using the documented format."})
			continue
		}

		switch act.Action {
		case "final":
			return act.Answer, nil
		case "tool":
			observation := l.invokeTool(ctx, index, act)
			if err := ctx.Err(); err != nil {
				return "", ErrCancelled
			}
			history = append(history, Message{Role: RoleUser, Content: "Observation: " + observation})
		default:
			history = append(history, Message{Role: RoleUser, Content: fmt.Sprintf("Observation: unknown action %q. Use \"final\" or \"tool\".", act.Action)})
		}
	}

	return "", &IterationLimitError{MaxIterations: maxIterations, History: history}
}

// callModel calls the reasoning service with bounded retry and exponential
// backoff. Cancellation wins over the backoff sleep.
func (l *Loop) callModel(ctx context.Context, history []Message, model, stage string) (string, error) {
	var lastErr error
	tries := l.modelCallRetries + 1
	for attempt := 0; attempt < tries; attempt++ {
		if err := ctx.Err(); err != nil {
			return "", ErrCancelled
		}
		start := time.Now()
		reply, inTok, outTok, err := l.provider.Chat(ctx, history, model)
		if err == nil {
			if l.telemetry != nil {
				l.telemetry.RecordModelCall(stage, model, inTok, outTok, l.provider.CalculateCost(inTok, outTok, model), time.Since(start))
			}
			return reply, nil
		}
		lastErr = err
		l.logger.Printf("model call attempt %d/%d failed: %v", attempt+1, tries, err)
		if attempt < tries-1 {
			select {
			case <-time.After(l.retryBackoff * time.Duration(1<<attempt)):
			case <-ctx.Done():
				return "", ErrCancelled
			}
		}
	}
	return "", &ModelCallError{Err: lastErr}
}

// invokeTool resolves and runs a requested tool, turning every failure mode
// into observation text. Tool calls are serialized within a run; nothing here
// spawns goroutines.
func (l *Loop) invokeTool(ctx context.Context, index map[string]ToolSpec, act action) string {
	spec, ok := index[act.Tool]
	if !ok {
		notFound := &ToolNotFoundError{Name: act.Tool}
		return notFound.Error()
	}
	result, err := spec.Run(ctx, act.Input)
	if err != nil {
		invErr := &ToolInvocationError{Tool: act.Tool, Err: err}
		l.logger.Printf("%v", invErr)
		return invErr.Error()
	}
	return result
}

func buildSystemPrompt(instructions string, tools []ToolSpec) string {
	var sb strings.Builder
	sb.WriteString(instructions)
	sb.WriteString("\n\nYou have access to the following tools:\n")
	for _, t := range tools {
		sb.WriteString(fmt.Sprintf("- %s: %s\n", t.Name, t.Description))
	}
	sb.WriteString(`
Respond on every turn with exactly one JSON object, nothing else.
To call a tool: {"action":"tool","tool":"<name>","input":"<input text>"}
To finish:      {"action":"final","answer":"<your complete answer>"}`)
	return sb.String()
}

// parseAction extracts the first JSON object from the reply and unmarshals
// it as an action. Models sometimes wrap the object in prose or fences; the
// extractor tolerates that, strict parsing applies to the object itself.
func parseAction(reply string) (action, error) {
	raw := extractFirstJSON(reply)
	if raw == "" {
		return action{}, fmt.Errorf("no JSON object in reply")
	}
	var act action
	if err := json.Unmarshal([]byte(raw), &act); err != nil {
		return action{}, fmt.Errorf("parse action: %w", err)
	}
	if act.Action == "" {
		return action{}, fmt.Errorf("action field missing")
	}
	return act, nil
}

// extractFirstJSON returns the first balanced top-level JSON object in s,
// tracking string and escape state so braces inside strings do not count.
func extractFirstJSON(s string) string {
	start := -1
	depth := 0
	inString := false
	escaped := false
	for i, r := range s {
		if start >= 0 && inString {
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				inString = false
			}
			continue
		}
		switch r {
		case '{':
			if start < 0 {
				start = i
			}
			depth++
		case '}':
			if start >= 0 {
				depth--
				if depth == 0 {
					return s[start : i+1]
				}
			}
		case '"':
			if start >= 0 {
				inString = true
			}
		}
	}
	return ""
}
