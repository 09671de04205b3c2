package core

import (
	"errors"
	"fmt"
)

// ErrCancelled reports a pipeline run aborted by the caller's context.
var ErrCancelled = errors.New("run cancelled")

// DuplicateToolError reports an attempt to register a tool name twice.
// Registration happens at construction time, so this is a configuration
// error, never a runtime one.
type DuplicateToolError struct {
	Name string
}

func (e *DuplicateToolError) Error() string {
	return fmt.Sprintf("tool %q already registered", e.Name)
}

// ToolNotFoundError reports a reasoning step that proposed an unknown tool.
// It is surfaced to the reasoning context as an observation, not thrown.
type ToolNotFoundError struct {
	Name string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("no tool named %q is available", e.Name)
}

// ToolInvocationError reports a tool-level failure (network, upstream API).
// Non-fatal to the reasoning loop: the text is fed back as an observation so
// the model can try an alternative tool or explain the limitation.
type ToolInvocationError struct {
	Tool string
	Err  error
}

func (e *ToolInvocationError) Error() string {
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolInvocationError) Unwrap() error { return e.Err }

// ModelCallError reports a reasoning service failure (network, timeout,
// malformed response). Retried with backoff inside the loop up to a bounded
// count before escalating.
type ModelCallError struct {
	Err error
}

func (e *ModelCallError) Error() string { return fmt.Sprintf("model call failed: %v", e.Err) }

func (e *ModelCallError) Unwrap() error { return e.Err }

// IterationLimitError reports a reasoning loop that exhausted its iteration
// budget without producing a final answer. The partial history is carried
// for diagnostics.
type IterationLimitError struct {
	MaxIterations int
	History       []Message
}

func (e *IterationLimitError) Error() string {
	return fmt.Sprintf("reasoning loop exhausted %d iterations without a final answer", e.MaxIterations)
}

// VerificationSchemaError reports a checker response that could not be parsed
// into the verification schema. Fatal to the stage; no retries.
type VerificationSchemaError struct {
	Raw string
	Err error
}

func (e *VerificationSchemaError) Error() string {
	return fmt.Sprintf("verification response does not match schema: %v", e.Err)
}

func (e *VerificationSchemaError) Unwrap() error { return e.Err }

// ReportGenerationError reports a failure rendering the final artifact.
type ReportGenerationError struct {
	Err error
}

func (e *ReportGenerationError) Error() string { return fmt.Sprintf("report generation failed: %v", e.Err) }

func (e *ReportGenerationError) Unwrap() error { return e.Err }

// PipelineError wraps the first fatal stage error with the stage name. The
// underlying error is surfaced unchanged; nothing is downgraded.
type PipelineError struct {
	Stage string
	Err   error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("stage %s: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
