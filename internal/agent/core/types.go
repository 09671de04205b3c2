package core

import (
	"context"
	"log"
	"time"
)

// Role of a message in a reasoning conversation.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one entry in a reasoning loop's history. Histories are
// append-only; nothing rewrites an earlier entry.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ToolFunc executes a tool against its input text and returns the observation
// text. Errors are reported to the reasoning context, not up the stack.
type ToolFunc func(ctx context.Context, input string) (string, error)

// ToolSpec describes a callable tool: the name the model addresses it by, a
// description injected into the system prompt, and the function itself.
type ToolSpec struct {
	Name        string
	Description string
	Run         ToolFunc
}

// ResearchPlan is the Planner's structured output.
type ResearchPlan struct {
	Topic         string   `json:"topic"`
	TimePeriod    string   `json:"time_period"`
	Location      string   `json:"location"`
	GroupInvolved string   `json:"group_involved"`
	Questions     []string `json:"questions"`
	Keywords      []string `json:"keywords"`
	Strategy      string   `json:"strategy"`
	RawText       string   `json:"raw_text"`
}

// Verdict values produced by the verification stage.
const (
	VerdictAccurate = "accurate"
	VerdictFlagged  = "flagged"
)

// VerificationResult is the Checker's structured output. RewrittenOutput is
// always the text that reaches the Reporter, whatever the verdict.
type VerificationResult struct {
	Verdict         string   `json:"verdict"`
	Issues          []string `json:"issues"`
	RewrittenOutput string   `json:"rewritten_output"`
}

// PipelineState accumulates stage outputs across a run. Each stage reads the
// fields written by earlier stages and fills exactly its own; nothing is
// overwritten. One instance per run, never shared.
type PipelineState struct {
	RunID        string
	Query        string
	Plan         *ResearchPlan
	Findings     string
	Verification *VerificationResult
	Report       string
	ArtifactPath string

	StartedAt  time.Time
	FinishedAt time.Time
}

// Stage names in execution order.
const (
	StagePlanner    = "planner"
	StageResearcher = "researcher"
	StageChecker    = "checker"
	StageReporter   = "reporter"
)

// StageEvent transition kinds.
const (
	EventStarted   = "started"
	EventCompleted = "completed"
	EventFailed    = "failed"
)

// StageEvent reports a stage transition for a run.
type StageEvent struct {
	RunID     string
	Stage     string
	Kind      string
	Err       error
	Timestamp time.Time
}

// StatusSink receives stage transitions. Publish must not block the pipeline;
// implementations buffer or drop.
type StatusSink interface {
	Publish(event StageEvent)
}

// LogSink writes stage transitions to a logger.
type LogSink struct {
	Logger *log.Logger
}

func (s LogSink) Publish(event StageEvent) {
	if s.Logger == nil {
		return
	}
	if event.Err != nil {
		s.Logger.Printf("run %s: stage %s %s: %v", event.RunID, event.Stage, event.Kind, event.Err)
		return
	}
	s.Logger.Printf("run %s: stage %s %s", event.RunID, event.Stage, event.Kind)
}

// ChannelSink forwards events into a bounded channel, dropping when full so a
// slow consumer can never stall a run.
type ChannelSink struct {
	ch chan StageEvent
}

// NewChannelSink returns a sink buffering up to size events.
func NewChannelSink(size int) *ChannelSink {
	if size <= 0 {
		size = 16
	}
	return &ChannelSink{ch: make(chan StageEvent, size)}
}

func (s *ChannelSink) Publish(event StageEvent) {
	select {
	case s.ch <- event:
	default:
	}
}

// Events exposes the receive side for consumers.
func (s *ChannelSink) Events() <-chan StageEvent { return s.ch }

// MultiSink fans one event out to several sinks.
type MultiSink []StatusSink

func (m MultiSink) Publish(event StageEvent) {
	for _, s := range m {
		if s != nil {
			s.Publish(event)
		}
	}
}
