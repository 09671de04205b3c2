package server

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/chronicler/internal/agent/core"
)

// Stage status values exposed by the status API. Every stage starts out
// waiting; the pipeline's events move it forward.
const (
	stageWaiting  = "waiting"
	stageActive   = "active"
	stageComplete = "complete"
	stageFailed   = "failed"
)

const statusTTL = 24 * time.Hour

// RedisSink mirrors pipeline stage events into a per-run Redis hash so the
// status endpoint can answer without touching the pipeline. Publish hands the
// event to a single writer goroutine over a bounded buffer; a slow or dead
// Redis drops events instead of stalling a run.
type RedisSink struct {
	rdb    *redis.Client
	events chan core.StageEvent
	logger *log.Logger
}

// NewRedisSink builds the sink and starts its writer.
func NewRedisSink(rdb *redis.Client) *RedisSink {
	s := &RedisSink{
		rdb:    rdb,
		events: make(chan core.StageEvent, 64),
		logger: log.New(log.Writer(), "[STATUS] ", log.LstdFlags),
	}
	go s.writeLoop()
	return s
}

func statusKey(runID string) string { return "run:status:" + runID }

// Publish enqueues the stage transition without blocking.
func (s *RedisSink) Publish(event core.StageEvent) {
	select {
	case s.events <- event:
	default:
		s.logger.Printf("status buffer full, dropping %s/%s for run %s", event.Stage, event.Kind, event.RunID)
	}
}

func (s *RedisSink) writeLoop() {
	for event := range s.events {
		s.write(event)
	}
}

// write records one transition. Best effort: a Redis hiccup must not affect
// the run, so failures are logged and dropped.
func (s *RedisSink) write(event core.StageEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var value string
	switch event.Kind {
	case core.EventStarted:
		value = stageActive
	case core.EventCompleted:
		value = stageComplete
	case core.EventFailed:
		value = stageFailed
	default:
		return
	}

	key := statusKey(event.RunID)
	fields := map[string]interface{}{event.Stage: value}
	if event.Err != nil {
		fields["error"] = event.Err.Error()
	}
	if err := s.rdb.HSet(ctx, key, fields).Err(); err != nil {
		s.logger.Printf("recording status for run %s: %v", event.RunID, err)
		return
	}
	if err := s.rdb.Expire(ctx, key, statusTTL).Err(); err != nil {
		s.logger.Printf("setting status TTL for run %s: %v", event.RunID, err)
	}
}

// InitRun seeds every stage as waiting so the status endpoint shows the full
// pipeline shape before the first event arrives.
func (s *RedisSink) InitRun(ctx context.Context, runID string) error {
	fields := map[string]interface{}{
		core.StagePlanner:    stageWaiting,
		core.StageResearcher: stageWaiting,
		core.StageChecker:    stageWaiting,
		core.StageReporter:   stageWaiting,
	}
	key := statusKey(runID)
	if err := s.rdb.HSet(ctx, key, fields).Err(); err != nil {
		return fmt.Errorf("seeding run status: %w", err)
	}
	return s.rdb.Expire(ctx, key, statusTTL).Err()
}

// RunStatus reads the stage map for a run. An empty map means the run is
// unknown to the cache (expired or never started).
func (s *RedisSink) RunStatus(ctx context.Context, runID string) (map[string]string, error) {
	out, err := s.rdb.HGetAll(ctx, statusKey(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("reading run status: %w", err)
	}
	return out, nil
}
