package taskqueue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"ddrc/internal/platform/database"
	"ddrc/pkg/platform/sentinel"
	txcontext "ddrc/pkg/platform/tx"
)

// SQL keeps tasks in the tasks table. Enqueue joins a transaction carried on
// ctx so a task only becomes visible once the state it depends on commits.
type SQL struct {
	db *database.DB
}

func NewSQL(db *database.DB) *SQL {
	return &SQL{db: db}
}

const taskColumns = `id, task_group, name, payload, status, attempts, result, last_error,
	available_at, created_at, updated_at`

func (s *SQL) exec(ctx context.Context) txcontext.Executor {
	return txcontext.Exec(ctx, s.db.DB)
}

func (s *SQL) Enqueue(ctx context.Context, t *Task) error {
	query := s.db.Rebind(`INSERT INTO tasks
		(task_group, name, payload, status, attempts, last_error, available_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, 0, '', ?, ?, ?) RETURNING id`)
	payload := string(t.Payload)
	if payload == "" {
		payload = "{}"
	}
	err := s.exec(ctx).QueryRowContext(ctx, query,
		t.Group, t.Name, payload, string(StatusQueued),
		t.AvailableAt.UTC().UnixMilli(), t.CreatedAt.UTC().UnixMilli(), t.UpdatedAt.UTC().UnixMilli(),
	).Scan(&t.ID)
	if err != nil {
		return fmt.Errorf("insert task %s: %w", t.Key(), err)
	}
	return nil
}

// Claim moves the oldest available queued task to running. The status
// check in the outer WHERE keeps two claimers from taking the same row.
func (s *SQL) Claim(ctx context.Context, now time.Time) (*Task, error) {
	lock := ""
	if s.db.Dialect == database.Postgres {
		lock = " FOR UPDATE SKIP LOCKED"
	}
	query := s.db.Rebind(`UPDATE tasks SET status = ?, attempts = attempts + 1, updated_at = ?
		WHERE id = (
			SELECT id FROM tasks WHERE status = ? AND available_at <= ?
			ORDER BY id LIMIT 1` + lock + `
		) AND status = ?
		RETURNING ` + taskColumns)
	ms := now.UTC().UnixMilli()
	row := s.exec(ctx).QueryRowContext(ctx, query,
		string(StatusRunning), ms, string(StatusQueued), ms, string(StatusQueued))
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrEmpty
	}
	if err != nil {
		return nil, fmt.Errorf("claim task: %w", err)
	}
	return t, nil
}

func (s *SQL) Complete(ctx context.Context, id int64, result json.RawMessage, now time.Time) error {
	query := s.db.Rebind(`UPDATE tasks SET status = ?, result = ?, last_error = '', updated_at = ? WHERE id = ?`)
	var res sql.NullString
	if len(result) > 0 {
		res = sql.NullString{String: string(result), Valid: true}
	}
	return s.update(ctx, id, query, string(StatusSucceeded), res, now.UTC().UnixMilli(), id)
}

func (s *SQL) Fail(ctx context.Context, id int64, cause string, retryAt *time.Time, now time.Time) error {
	if retryAt == nil {
		query := s.db.Rebind(`UPDATE tasks SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`)
		return s.update(ctx, id, query, string(StatusFailed), cause, now.UTC().UnixMilli(), id)
	}
	query := s.db.Rebind(`UPDATE tasks SET status = ?, last_error = ?, available_at = ?, updated_at = ? WHERE id = ?`)
	return s.update(ctx, id, query, string(StatusQueued), cause, retryAt.UTC().UnixMilli(), now.UTC().UnixMilli(), id)
}

func (s *SQL) update(ctx context.Context, id int64, query string, args ...any) error {
	res, err := s.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update task %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("task %d: %w", id, sentinel.ErrNotFound)
	}
	return nil
}

func (s *SQL) Get(ctx context.Context, id int64) (*Task, error) {
	row := s.exec(ctx).QueryRowContext(ctx, s.db.Rebind(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`), id)
	t, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, sentinel.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("select task %d: %w", id, err)
	}
	return t, nil
}

// List returns the newest tasks first.
func (s *SQL) List(ctx context.Context, limit int) ([]*Task, error) {
	rows, err := s.exec(ctx).QueryContext(ctx,
		s.db.Rebind(`SELECT `+taskColumns+` FROM tasks ORDER BY id DESC LIMIT ?`), limit)
	if err != nil {
		return nil, fmt.Errorf("query tasks: %w", err)
	}
	defer rows.Close()

	var out []*Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scan task: %w", err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tasks: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTask(row scanner) (*Task, error) {
	var (
		t                           Task
		payload, status             string
		result                      sql.NullString
		available, created, updated int64
	)
	err := row.Scan(&t.ID, &t.Group, &t.Name, &payload, &status, &t.Attempts, &result, &t.LastError,
		&available, &created, &updated)
	if err != nil {
		return nil, err
	}
	t.Payload = json.RawMessage(payload)
	t.Status = Status(status)
	if result.Valid {
		t.Result = json.RawMessage(result.String)
	}
	t.AvailableAt = time.UnixMilli(available).UTC()
	t.CreatedAt = time.UnixMilli(created).UTC()
	t.UpdatedAt = time.UnixMilli(updated).UTC()
	return &t, nil
}
