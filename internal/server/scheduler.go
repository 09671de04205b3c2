package server

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorhill/cronexpr"
	"github.com/redis/go-redis/v9"

	"github.com/mohammad-safakhou/chronicler/internal/store"
)

// Scheduler fires recurring research topics. Every hour it walks the stored
// recurring runs, checks which schedules are due, and launches a fresh run
// for each. A Redis SetNX lock keeps multiple instances from double firing.
type Scheduler struct {
	Store   *store.Store
	Rdb     *redis.Client
	Handler *ResearchHandler
	Stop    chan struct{}

	logger *log.Logger
}

func NewScheduler(st *store.Store, rdb *redis.Client, handler *ResearchHandler) *Scheduler {
	return &Scheduler{
		Store:   st,
		Rdb:     rdb,
		Handler: handler,
		Stop:    make(chan struct{}),
		logger:  log.New(log.Writer(), "[SCHED] ", log.LstdFlags),
	}
}

func (s *Scheduler) Start() {
	ticker := time.NewTicker(1 * time.Hour)
	go func() {
		for {
			select {
			case <-s.Stop:
				ticker.Stop()
				return
			case <-ticker.C:
				s.tick()
			}
		}
	}()
}

func (s *Scheduler) tick() {
	ctx := context.Background()
	runs, err := s.Store.ListScheduledRuns(ctx)
	if err != nil {
		s.logger.Printf("listing scheduled runs: %v", err)
		return
	}
	for _, last := range runs {
		var lastAt *time.Time
		if last.FinishedAt.Valid {
			t := last.FinishedAt.Time
			lastAt = &t
		}
		if !isDue(last.Schedule, lastAt) {
			continue
		}

		if s.Rdb != nil {
			lockKey := "sched:lock:" + last.UserID + ":" + last.Query
			ok, _ := s.Rdb.SetNX(ctx, lockKey, "1", 2*time.Minute).Result()
			if !ok {
				continue
			}
		}

		runID := uuid.New().String()
		if err := s.Store.CreateRun(ctx, runID, last.UserID, last.Query, last.Schedule); err != nil {
			s.logger.Printf("creating scheduled run for %q: %v", last.Query, err)
			continue
		}
		if err := s.Handler.Status.InitRun(ctx, runID); err != nil {
			s.logger.Printf("seeding status for run %s: %v", runID, err)
		}
		s.logger.Printf("firing scheduled run %s for %q", runID, last.Query)
		go s.Handler.execute(ctx, runID, last.Query)
	}
}

// isDue determines whether a schedule should fire now given the last run
// time. Supports "@daily", "@hourly", and 5-field cron expressions; an
// unparsable expression falls back to daily.
func isDue(cronSpec string, last *time.Time) bool {
	now := time.Now()
	switch cronSpec {
	case "@daily":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= 24*time.Hour
	case "@hourly":
		if last == nil {
			return true
		}
		return now.Sub(*last) >= time.Hour
	default:
		expr, err := cronexpr.Parse(cronSpec)
		if err != nil {
			if last == nil {
				return true
			}
			return now.Sub(*last) >= 24*time.Hour
		}
		if last == nil {
			return true
		}
		next := expr.Next(*last)
		return !next.After(now)
	}
}
