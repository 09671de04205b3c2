package server

import (
	"testing"
	"time"
)

func TestIsDueDaily(t *testing.T) {
	if !isDue("@daily", nil) {
		t.Fatalf("never-run daily schedule must be due")
	}
	recent := time.Now().Add(-time.Hour)
	if isDue("@daily", &recent) {
		t.Fatalf("daily schedule run an hour ago must not be due")
	}
	old := time.Now().Add(-25 * time.Hour)
	if !isDue("@daily", &old) {
		t.Fatalf("daily schedule run 25h ago must be due")
	}
}

func TestIsDueHourly(t *testing.T) {
	if !isDue("@hourly", nil) {
		t.Fatalf("never-run hourly schedule must be due")
	}
	recent := time.Now().Add(-30 * time.Minute)
	if isDue("@hourly", &recent) {
		t.Fatalf("hourly schedule run 30m ago must not be due")
	}
	old := time.Now().Add(-2 * time.Hour)
	if !isDue("@hourly", &old) {
		t.Fatalf("hourly schedule run 2h ago must be due")
	}
}

func TestIsDueCronExpression(t *testing.T) {
	// midnight every day
	old := time.Now().Add(-48 * time.Hour)
	if !isDue("0 0 * * *", &old) {
		t.Fatalf("cron schedule last run two days ago must be due")
	}
	if !isDue("0 0 * * *", nil) {
		t.Fatalf("never-run cron schedule must be due")
	}
}

func TestIsDueInvalidExpressionFallsBackToDaily(t *testing.T) {
	recent := time.Now().Add(-time.Hour)
	if isDue("not a cron spec", &recent) {
		t.Fatalf("invalid spec run an hour ago must not be due")
	}
	old := time.Now().Add(-25 * time.Hour)
	if !isDue("not a cron spec", &old) {
		t.Fatalf("invalid spec run 25h ago must fall back to daily and be due")
	}
}
