// Package store persists users, research runs, and finished reports in
// Postgres.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mohammad-safakhou/chronicler/config"
)

// ErrNotFound reports a lookup that matched no row.
var ErrNotFound = errors.New("not found")

// ErrDuplicateEmail reports a signup with an already registered email.
var ErrDuplicateEmail = errors.New("email already registered")

// Run status values persisted for research runs.
const (
	RunStatusPending   = "pending"
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// User is an account row.
type User struct {
	ID           string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Run is a research run row.
type Run struct {
	ID         string
	UserID     string
	Query      string
	Schedule   string
	Status     string
	Error      string
	CreatedAt  time.Time
	FinishedAt sql.NullTime
}

// Report is a finished report row.
type Report struct {
	RunID        string
	Plan         string
	Findings     string
	Verdict      string
	Issues       []string
	Rewritten    string
	ArtifactPath string
	CreatedAt    time.Time
}

// Store wraps the Postgres connection.
type Store struct {
	db *sql.DB
}

// New opens a Postgres connection and pings it.
func New(cfg config.PostgresConfig) (*Store, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("opening postgres: %w", err)
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging postgres: %w", err)
	}
	return &Store{db: db}, nil
}

// NewWithDB wraps an existing connection, used by tests.
func NewWithDB(db *sql.DB) *Store { return &Store{db: db} }

// Close releases the connection pool.
func (s *Store) Close() error { return s.db.Close() }

// CreateUser inserts an account. A duplicate email maps to ErrDuplicateEmail
// through the unique constraint.
func (s *Store) CreateUser(ctx context.Context, id, email, passwordHash string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO users (id, email, password_hash) VALUES ($1, $2, $3)`,
		id, email, passwordHash)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("inserting user: %w", err)
	}
	return nil
}

// GetUserByEmail looks up an account for login.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM users WHERE email = $1`,
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting user: %w", err)
	}
	return &u, nil
}

// CreateRun inserts a pending research run.
func (s *Store) CreateRun(ctx context.Context, id, userID, query, schedule string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO research_runs (id, user_id, query, schedule, status) VALUES ($1, $2, $3, $4, $5)`,
		id, userID, query, schedule, RunStatusPending)
	if err != nil {
		return fmt.Errorf("inserting run: %w", err)
	}
	return nil
}

// GetRun fetches a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, query, schedule, status, COALESCE(error, ''), created_at, finished_at
		 FROM research_runs WHERE id = $1`,
		id).Scan(&r.ID, &r.UserID, &r.Query, &r.Schedule, &r.Status, &r.Error, &r.CreatedAt, &r.FinishedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting run: %w", err)
	}
	return &r, nil
}

// MarkRunRunning transitions a run to running.
func (s *Store) MarkRunRunning(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE research_runs SET status = $2 WHERE id = $1`, id, RunStatusRunning)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	return nil
}

// FinishRun records the terminal status of a run.
func (s *Store) FinishRun(ctx context.Context, id, status, runErr string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE research_runs SET status = $2, error = NULLIF($3, ''), finished_at = now() WHERE id = $1`,
		id, status, runErr)
	if err != nil {
		return fmt.Errorf("updating run: %w", err)
	}
	return nil
}

// ListScheduledRuns returns the most recent run per recurring query for the
// scheduler's due-check.
func (s *Store) ListScheduledRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT DISTINCT ON (user_id, query)
		        id, user_id, query, schedule, status, COALESCE(error, ''), created_at, finished_at
		 FROM research_runs
		 WHERE schedule <> ''
		 ORDER BY user_id, query, created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("selecting scheduled runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.UserID, &r.Query, &r.Schedule, &r.Status, &r.Error, &r.CreatedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scanning run: %w", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// SaveReport persists a finished report.
func (s *Store) SaveReport(ctx context.Context, rep Report) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO reports (run_id, plan, findings, verdict, issues, rewritten, artifact_path)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		rep.RunID, rep.Plan, rep.Findings, rep.Verdict, pq.Array(rep.Issues), rep.Rewritten, rep.ArtifactPath)
	if err != nil {
		return fmt.Errorf("inserting report: %w", err)
	}
	return nil
}

// GetReport fetches the report for a run.
func (s *Store) GetReport(ctx context.Context, runID string) (*Report, error) {
	var rep Report
	err := s.db.QueryRowContext(ctx,
		`SELECT run_id, plan, findings, verdict, issues, rewritten, artifact_path, created_at
		 FROM reports WHERE run_id = $1`,
		runID).Scan(&rep.RunID, &rep.Plan, &rep.Findings, &rep.Verdict, pq.Array(&rep.Issues), &rep.Rewritten, &rep.ArtifactPath, &rep.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("selecting report: %w", err)
	}
	return &rep, nil
}
