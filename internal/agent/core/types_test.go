package core

import (
	"testing"
	"time"
)

func TestChannelSinkDropsWhenFull(t *testing.T) {
	sink := NewChannelSink(2)
	for i := 0; i < 5; i++ {
		sink.Publish(StageEvent{RunID: "r", Stage: StagePlanner, Kind: EventStarted, Timestamp: time.Now()})
	}

	// Publish never blocked; only the buffered events remain.
	count := 0
	for {
		select {
		case <-sink.Events():
			count++
		default:
			if count != 2 {
				t.Fatalf("expected 2 buffered events, got %d", count)
			}
			return
		}
	}
}

func TestMultiSinkFansOut(t *testing.T) {
	a := &recordingSink{}
	b := &recordingSink{}
	m := MultiSink{a, nil, b}

	m.Publish(StageEvent{RunID: "r", Stage: StageChecker, Kind: EventCompleted})
	if len(a.events) != 1 || len(b.events) != 1 {
		t.Fatalf("expected both sinks to receive the event")
	}
}
