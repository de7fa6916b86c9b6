// Package history keeps a SQLite log of generated articles so earlier runs
// can be listed, re-read and compared.
package history

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrNotFound is returned by Get for an unknown run ID.
var ErrNotFound = errors.New("history: run not found")

// Run statuses.
const (
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// DefaultListLimit caps List when the caller passes a non-positive limit.
const DefaultListLimit = 20

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Record is one stored run.
type Record struct {
	ID           string
	Topic        string
	Temperature  float64
	NumResults   int
	Model        string
	Status       string
	Content      string
	Error        string
	InputTokens  int
	OutputTokens int
	CreatedAt    time.Time
	Duration     time.Duration
	Tasks        []TaskRecord
}

// TaskRecord is the stored output of one pipeline task.
type TaskRecord struct {
	Name     string
	Agent    string
	Output   string
	Duration time.Duration
}

// Store reads and writes run records.
type Store struct {
	db *sql.DB
}

// Open opens the database at path, creating it and applying migrations as
// needed.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := openDB(ctx, path)
	if err != nil {
		return nil, err
	}

	if err := migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save inserts or replaces a record together with its task outputs.
func (s *Store) Save(ctx context.Context, r Record) error {
	if r.ID == "" {
		return errors.New("history: record id is required")
	}
	if r.Status == "" {
		r.Status = StatusSucceeded
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("history: save %s: %w", r.ID, err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `
		INSERT OR REPLACE INTO runs
			(id, topic, temperature, num_results, model, status, content, error,
			 input_tokens, output_tokens, created_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Topic, r.Temperature, r.NumResults, r.Model, r.Status, r.Content, r.Error,
		r.InputTokens, r.OutputTokens, r.CreatedAt.UTC().Format(timeLayout), r.Duration.Milliseconds(),
	); err != nil {
		return fmt.Errorf("history: save %s: %w", r.ID, err)
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM run_tasks WHERE run_id = ?", r.ID); err != nil {
		return fmt.Errorf("history: save %s tasks: %w", r.ID, err)
	}

	for i, t := range r.Tasks {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO run_tasks (run_id, position, name, agent, output, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?)`,
			r.ID, i, t.Name, t.Agent, t.Output, t.Duration.Milliseconds(),
		); err != nil {
			return fmt.Errorf("history: save %s task %d: %w", r.ID, i, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("history: save %s: %w", r.ID, err)
	}
	return nil
}

const selectRun = `
	SELECT id, topic, temperature, num_results, model, status, content, error,
	       input_tokens, output_tokens, created_at, duration_ms
	FROM runs`

// Get returns the record with its task outputs.
func (s *Store) Get(ctx context.Context, id string) (Record, error) {
	r, err := scanRecord(s.db.QueryRowContext(ctx, selectRun+" WHERE id = ?", id))
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return Record{}, fmt.Errorf("history: get %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT name, agent, output, duration_ms FROM run_tasks WHERE run_id = ? ORDER BY position", id)
	if err != nil {
		return Record{}, fmt.Errorf("history: get %s tasks: %w", id, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var t TaskRecord
		var ms int64
		if err := rows.Scan(&t.Name, &t.Agent, &t.Output, &ms); err != nil {
			return Record{}, fmt.Errorf("history: get %s tasks: %w", id, err)
		}
		t.Duration = time.Duration(ms) * time.Millisecond
		r.Tasks = append(r.Tasks, t)
	}
	if err := rows.Err(); err != nil {
		return Record{}, fmt.Errorf("history: get %s tasks: %w", id, err)
	}

	return r, nil
}

// List returns up to limit records, newest first, without task outputs.
func (s *Store) List(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	rows, err := s.db.QueryContext(ctx, selectRun+" ORDER BY created_at DESC, id DESC LIMIT ?", limit)
	if err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Record
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("history: list: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: list: %w", err)
	}

	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (Record, error) {
	var (
		r       Record
		created string
		ms      int64
	)
	if err := row.Scan(
		&r.ID, &r.Topic, &r.Temperature, &r.NumResults, &r.Model, &r.Status, &r.Content, &r.Error,
		&r.InputTokens, &r.OutputTokens, &created, &ms,
	); err != nil {
		return Record{}, err
	}

	t, err := time.Parse(timeLayout, created)
	if err != nil {
		return Record{}, fmt.Errorf("parse created_at %q: %w", created, err)
	}
	r.CreatedAt = t
	r.Duration = time.Duration(ms) * time.Millisecond

	return r, nil
}
