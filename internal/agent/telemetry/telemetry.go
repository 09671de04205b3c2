package telemetry

import (
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mohammad-safakhou/chronicler/config"
)

// Telemetry tracks pipeline activity and reasoning service spend. In-process
// counters answer CLI queries; the Prometheus collectors feed /metrics.
type Telemetry struct {
	config config.TelemetryConfig
	logger *log.Logger

	mu      sync.RWMutex
	metrics Metrics

	stageRuns      *prometheus.CounterVec
	stageDurations *prometheus.HistogramVec
	modelCalls     *prometheus.CounterVec
	modelTokens    *prometheus.CounterVec
	toolCalls      *prometheus.CounterVec
}

// Metrics holds the in-process counters.
type Metrics struct {
	TotalRuns      int64
	SuccessfulRuns int64
	FailedRuns     int64

	StageExecutions map[string]int64
	StageFailures   map[string]int64
	StageDurations  map[string]time.Duration

	ModelCalls  map[string]int64
	TokensIn    map[string]int64
	TokensOut   map[string]int64
	ModelCosts  map[string]float64
	TotalCost   float64
	TotalTokens int64
}

var (
	registerOnce sync.Once
	collectors   struct {
		stageRuns      *prometheus.CounterVec
		stageDurations *prometheus.HistogramVec
		modelCalls     *prometheus.CounterVec
		modelTokens    *prometheus.CounterVec
		toolCalls      *prometheus.CounterVec
	}
)

// NewTelemetry creates a telemetry instance. Prometheus collectors are
// registered once per process; repeated construction (tests) reuses them.
func NewTelemetry(cfg config.TelemetryConfig) *Telemetry {
	registerOnce.Do(func() {
		collectors.stageRuns = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicler_stage_runs_total",
			Help: "Stage executions by stage and outcome.",
		}, []string{"stage", "outcome"})
		collectors.stageDurations = promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "chronicler_stage_duration_seconds",
			Help:    "Stage execution duration.",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"})
		collectors.modelCalls = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicler_model_calls_total",
			Help: "Reasoning service calls by stage and model.",
		}, []string{"stage", "model"})
		collectors.modelTokens = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicler_model_tokens_total",
			Help: "Tokens exchanged with the reasoning service.",
		}, []string{"model", "direction"})
		collectors.toolCalls = promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "chronicler_tool_calls_total",
			Help: "Tool invocations by tool and outcome.",
		}, []string{"tool", "outcome"})
	})

	return &Telemetry{
		config: cfg,
		logger: log.New(log.Writer(), "[TELEMETRY] ", log.LstdFlags),
		metrics: Metrics{
			StageExecutions: make(map[string]int64),
			StageFailures:   make(map[string]int64),
			StageDurations:  make(map[string]time.Duration),
			ModelCalls:      make(map[string]int64),
			TokensIn:        make(map[string]int64),
			TokensOut:       make(map[string]int64),
			ModelCosts:      make(map[string]float64),
		},
		stageRuns:      collectors.stageRuns,
		stageDurations: collectors.stageDurations,
		modelCalls:     collectors.modelCalls,
		modelTokens:    collectors.modelTokens,
		toolCalls:      collectors.toolCalls,
	}
}

// RecordRun records a completed pipeline run.
func (t *Telemetry) RecordRun(success bool) {
	if !t.config.Enabled {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.TotalRuns++
	if success {
		t.metrics.SuccessfulRuns++
	} else {
		t.metrics.FailedRuns++
	}
}

// RecordStage records one stage execution.
func (t *Telemetry) RecordStage(stage string, duration time.Duration, err error) {
	if !t.config.Enabled {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	t.stageRuns.WithLabelValues(stage, outcome).Inc()
	t.stageDurations.WithLabelValues(stage).Observe(duration.Seconds())

	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.StageExecutions[stage]++
	t.metrics.StageDurations[stage] += duration
	if err != nil {
		t.metrics.StageFailures[stage]++
	}
}

// RecordModelCall records one reasoning service call with token usage and cost.
func (t *Telemetry) RecordModelCall(stage, model string, tokensIn, tokensOut int64, cost float64, duration time.Duration) {
	if !t.config.Enabled {
		return
	}
	t.modelCalls.WithLabelValues(stage, model).Inc()
	t.modelTokens.WithLabelValues(model, "in").Add(float64(tokensIn))
	t.modelTokens.WithLabelValues(model, "out").Add(float64(tokensOut))

	t.mu.Lock()
	defer t.mu.Unlock()
	t.metrics.ModelCalls[model]++
	t.metrics.TokensIn[model] += tokensIn
	t.metrics.TokensOut[model] += tokensOut
	t.metrics.TotalTokens += tokensIn + tokensOut
	if t.config.CostTracking {
		t.metrics.ModelCosts[model] += cost
		t.metrics.TotalCost += cost
	}
}

// RecordToolCall records one tool invocation.
func (t *Telemetry) RecordToolCall(tool string, err error) {
	if !t.config.Enabled {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	t.toolCalls.WithLabelValues(tool, outcome).Inc()
}

// GetMetrics returns a snapshot of the in-process counters.
func (t *Telemetry) GetMetrics() Metrics {
	t.mu.RLock()
	defer t.mu.RUnlock()

	snap := t.metrics
	snap.StageExecutions = copyInt64Map(t.metrics.StageExecutions)
	snap.StageFailures = copyInt64Map(t.metrics.StageFailures)
	snap.ModelCalls = copyInt64Map(t.metrics.ModelCalls)
	snap.TokensIn = copyInt64Map(t.metrics.TokensIn)
	snap.TokensOut = copyInt64Map(t.metrics.TokensOut)
	snap.StageDurations = make(map[string]time.Duration, len(t.metrics.StageDurations))
	for k, v := range t.metrics.StageDurations {
		snap.StageDurations[k] = v
	}
	snap.ModelCosts = make(map[string]float64, len(t.metrics.ModelCosts))
	for k, v := range t.metrics.ModelCosts {
		snap.ModelCosts[k] = v
	}
	return snap
}

// CostReport renders a short cost summary for CLI output.
func (t *Telemetry) CostReport() string {
	m := t.GetMetrics()
	out := fmt.Sprintf("total cost $%.4f across %d tokens\n", m.TotalCost, m.TotalTokens)
	for model, cost := range m.ModelCosts {
		out += fmt.Sprintf("  %s: $%.4f (%d in / %d out tokens)\n", model, cost, m.TokensIn[model], m.TokensOut[model])
	}
	return out
}

func copyInt64Map(src map[string]int64) map[string]int64 {
	dst := make(map[string]int64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
