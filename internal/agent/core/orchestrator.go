package core

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/mohammad-safakhou/chronicler/internal/agent/telemetry"
)

// Orchestrator drives one pipeline run through the fixed stage order
// Planner, Researcher, Checker, Reporter. Each run gets its own
// PipelineState; the orchestrator itself is safe for concurrent runs.
type Orchestrator struct {
	planner    *Planner
	researcher *Researcher
	checker    *Checker
	reporter   *Reporter

	sink         StatusSink
	telemetry    *telemetry.Telemetry
	logger       *log.Logger
	stageTimeout time.Duration
}

// NewOrchestrator assembles the pipeline.
func NewOrchestrator(planner *Planner, researcher *Researcher, checker *Checker, reporter *Reporter, sink StatusSink, tel *telemetry.Telemetry, stageTimeout time.Duration) *Orchestrator {
	if sink == nil {
		sink = LogSink{Logger: log.New(log.Writer(), "[STATUS] ", log.LstdFlags)}
	}
	if stageTimeout <= 0 {
		stageTimeout = 5 * time.Minute
	}
	return &Orchestrator{
		planner:      planner,
		researcher:   researcher,
		checker:      checker,
		reporter:     reporter,
		sink:         sink,
		telemetry:    tel,
		logger:       log.New(log.Writer(), "[ORCH] ", log.LstdFlags),
		stageTimeout: stageTimeout,
	}
}

// Run executes the pipeline for a query. The first stage failure aborts the
// run; the returned state carries whatever earlier stages produced. runID may
// be empty, in which case one is generated.
func (o *Orchestrator) Run(ctx context.Context, runID, query string) (*PipelineState, error) {
	if runID == "" {
		runID = uuid.New().String()
	}
	state := &PipelineState{
		RunID:     runID,
		Query:     query,
		StartedAt: time.Now().UTC(),
	}
	o.logger.Printf("run %s: starting for query %q", runID, query)

	err := o.runStage(ctx, state, StagePlanner, func(ctx context.Context) error {
		plan, err := o.planner.Plan(ctx, query)
		if err != nil {
			return err
		}
		state.Plan = plan
		return nil
	})
	if err == nil {
		err = o.runStage(ctx, state, StageResearcher, func(ctx context.Context) error {
			findings, err := o.researcher.Research(ctx, state.Plan)
			if err != nil {
				return err
			}
			state.Findings = findings
			return nil
		})
	}
	if err == nil {
		err = o.runStage(ctx, state, StageChecker, func(ctx context.Context) error {
			result, err := o.checker.Check(ctx, query, state.Findings)
			if err != nil {
				return err
			}
			state.Verification = result
			return nil
		})
	}
	if err == nil {
		err = o.runStage(ctx, state, StageReporter, func(ctx context.Context) error {
			report, path, err := o.reporter.Report(ctx, state)
			if err != nil {
				return err
			}
			state.Report = report
			state.ArtifactPath = path
			return nil
		})
	}

	state.FinishedAt = time.Now().UTC()
	if o.telemetry != nil {
		o.telemetry.RecordRun(err == nil)
	}
	if err != nil {
		o.logger.Printf("run %s: failed after %s: %v", runID, state.FinishedAt.Sub(state.StartedAt), err)
		return state, err
	}
	o.logger.Printf("run %s: completed in %s, artifact %s", runID, state.FinishedAt.Sub(state.StartedAt), state.ArtifactPath)
	return state, nil
}

// runStage wraps one stage with its timeout, status events, telemetry, and
// error attribution.
func (o *Orchestrator) runStage(ctx context.Context, state *PipelineState, stage string, fn func(ctx context.Context) error) error {
	o.sink.Publish(StageEvent{RunID: state.RunID, Stage: stage, Kind: EventStarted, Timestamp: time.Now().UTC()})

	stageCtx, cancel := context.WithTimeout(ctx, o.stageTimeout)
	defer cancel()

	start := time.Now()
	err := fn(stageCtx)
	if o.telemetry != nil {
		o.telemetry.RecordStage(stage, time.Since(start), err)
	}
	if err != nil {
		wrapped := &PipelineError{Stage: stage, Err: err}
		o.sink.Publish(StageEvent{RunID: state.RunID, Stage: stage, Kind: EventFailed, Err: wrapped, Timestamp: time.Now().UTC()})
		return wrapped
	}
	o.sink.Publish(StageEvent{RunID: state.RunID, Stage: stage, Kind: EventCompleted, Timestamp: time.Now().UTC()})
	return nil
}
