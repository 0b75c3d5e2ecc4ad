// Package sqlstore persists audit events in the audit_events table shared
// with the request and task stores.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ddrc/internal/platform/database"
	audit "ddrc/pkg/platform/audit"
	txcontext "ddrc/pkg/platform/tx"
)

type Store struct {
	db *database.DB
}

func New(db *database.DB) *Store {
	return &Store{db: db}
}

const eventColumns = `id, action, subject, request_id, client_ip, user_agent, device, detail, created_at`

// Append joins a transaction carried on ctx so events commit with the
// state change they describe.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	query := s.db.Rebind(`INSERT INTO audit_events (` + eventColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	_, err := txcontext.Exec(ctx, s.db.DB).ExecContext(ctx, query,
		event.ID,
		string(event.Action),
		event.Subject,
		event.RequestID,
		event.ClientIP,
		event.UserAgent,
		event.Device,
		event.Detail,
		event.Timestamp.UTC().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListBySubject returns events for one subject, oldest first.
func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	query := s.db.Rebind(`SELECT ` + eventColumns + ` FROM audit_events
		WHERE subject = ? ORDER BY created_at, id`)
	rows, err := txcontext.Exec(ctx, s.db.DB).QueryContext(ctx, query, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

// ListRecent returns the N most recent events.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	query := s.db.Rebind(`SELECT ` + eventColumns + ` FROM audit_events
		ORDER BY created_at DESC, id LIMIT ?`)
	rows, err := txcontext.Exec(ctx, s.db.DB).QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	return scanEvents(rows)
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var (
			event   audit.Event
			action  string
			created int64
		)
		err := rows.Scan(
			&event.ID,
			&action,
			&event.Subject,
			&event.RequestID,
			&event.ClientIP,
			&event.UserAgent,
			&event.Device,
			&event.Detail,
			&created,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		event.Action = audit.Action(action)
		event.Timestamp = time.UnixMilli(created).UTC()
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
