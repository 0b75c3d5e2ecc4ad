package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"ddrc/internal/platform/database"
	"ddrc/internal/vitalrecords/models"
	"ddrc/pkg/platform/sentinel"
	txcontext "ddrc/pkg/platform/tx"
)

const dateLayout = "2006-01-02"

// SQL stores requests in the vital_records_requests table. It serves both
// the sqlite and postgres dialects; timestamps are unix milliseconds.
type SQL struct {
	db *database.DB
}

func NewSQL(db *database.DB) *SQL {
	return &SQL{db: db}
}

const requestColumns = `id, status, type, fire, relationship, legal_attestation,
	first_name, middle_name, last_name, county_of_event, date_of_event, date_of_birth,
	person_1_first_name, person_1_middle_name, person_1_last_name, person_1_birth_last_name,
	person_2_first_name, person_2_middle_name, person_2_last_name, person_2_birth_last_name,
	number_of_records, order_first_name, order_last_name, address, address_2, city, state,
	zip_code, email_address, phone_number,
	started_at, submitted_at, enqueued_at, packaged_at, sent_at, created_at`

func (s *SQL) exec(ctx context.Context) txcontext.Executor {
	return txcontext.Exec(ctx, s.db.DB)
}

func (s *SQL) Create(ctx context.Context, r *models.Request) error {
	query := s.db.Rebind(`INSERT INTO vital_records_requests (` + requestColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	args := append([]any{r.ID.String()}, requestArgs(r)...)
	args = append(args, toMillis(r.CreatedAt))
	if _, err := s.exec(ctx).ExecContext(ctx, query, args...); err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("vital records request %s: %w", r.ID, sentinel.ErrConflict)
		}
		return fmt.Errorf("insert vital records request: %w", err)
	}
	return nil
}

func (s *SQL) Save(ctx context.Context, r *models.Request, from models.Status) error {
	query := s.db.Rebind(`UPDATE vital_records_requests SET
		status = ?, type = ?, fire = ?, relationship = ?, legal_attestation = ?,
		first_name = ?, middle_name = ?, last_name = ?, county_of_event = ?, date_of_event = ?, date_of_birth = ?,
		person_1_first_name = ?, person_1_middle_name = ?, person_1_last_name = ?, person_1_birth_last_name = ?,
		person_2_first_name = ?, person_2_middle_name = ?, person_2_last_name = ?, person_2_birth_last_name = ?,
		number_of_records = ?, order_first_name = ?, order_last_name = ?, address = ?, address_2 = ?, city = ?, state = ?,
		zip_code = ?, email_address = ?, phone_number = ?,
		started_at = ?, submitted_at = ?, enqueued_at = ?, packaged_at = ?, sent_at = ?
		WHERE id = ? AND status = ?`)
	args := append(requestArgs(r), r.ID.String(), string(from))
	res, err := s.exec(ctx).ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update vital records request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update vital records request: %w", err)
	}
	if n == 0 {
		stored, err := s.Get(ctx, r.ID)
		if err != nil {
			return err
		}
		return wrongStatus(r.ID, from, stored.Status)
	}
	return nil
}

// requestArgs lists every mutable column in requestColumns order, after id
// and before created_at.
func requestArgs(r *models.Request) []any {
	return []any{
		string(r.Status), string(r.Type), r.Fire, r.Relationship, r.LegalAttestation,
		r.FirstName, r.MiddleName, r.LastName, r.CountyOfEvent, toDate(r.DateOfEvent), toDate(r.DateOfBirth),
		r.Person1FirstName, r.Person1MiddleName, r.Person1LastName, r.Person1BirthLastName,
		r.Person2FirstName, r.Person2MiddleName, r.Person2LastName, r.Person2BirthLastName,
		r.NumberOfRecords, r.OrderFirstName, r.OrderLastName, r.Address, r.Address2, r.City, r.State,
		r.ZipCode, r.EmailAddress, r.PhoneNumber,
		toNullMillis(r.StartedAt), toNullMillis(r.SubmittedAt), toNullMillis(r.EnqueuedAt),
		toNullMillis(r.PackagedAt), toNullMillis(r.SentAt),
	}
}

func (s *SQL) Get(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	row := s.exec(ctx).QueryRowContext(ctx,
		s.db.Rebind(`SELECT `+requestColumns+` FROM vital_records_requests WHERE id = ?`), id.String())
	r, err := scanRequest(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, notFound(id)
	}
	if err != nil {
		return nil, fmt.Errorf("select vital records request: %w", err)
	}
	return r, nil
}

func (s *SQL) GetWithStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.Request, error) {
	r, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if r.Status != status {
		return nil, wrongStatus(id, status, r.Status)
	}
	return r, nil
}

func (s *SQL) Delete(ctx context.Context, id uuid.UUID) error {
	res, err := s.exec(ctx).ExecContext(ctx, s.db.Rebind(`DELETE FROM vital_records_requests WHERE id = ?`), id.String())
	if err != nil {
		return fmt.Errorf("delete vital records request: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete vital records request: %w", err)
	}
	if n == 0 {
		return notFound(id)
	}
	return nil
}

func (s *SQL) ListFinished(ctx context.Context) ([]*models.Request, error) {
	rows, err := s.exec(ctx).QueryContext(ctx,
		s.db.Rebind(`SELECT `+requestColumns+` FROM vital_records_requests WHERE status = ? ORDER BY created_at`),
		string(models.StatusFinished))
	if err != nil {
		return nil, fmt.Errorf("query finished requests: %w", err)
	}
	defer rows.Close()

	var out []*models.Request
	for rows.Next() {
		r, err := scanRequest(rows)
		if err != nil {
			return nil, fmt.Errorf("scan finished request: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate finished requests: %w", err)
	}
	return out, nil
}

func (s *SQL) CreateMetadata(ctx context.Context, md *models.Metadata) error {
	query := `INSERT INTO vital_records_request_metadata
		(request_id, fire, number_of_records, submitted_at, enqueued_at, packaged_at, sent_at, cleaned_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?) RETURNING id`
	err := s.exec(ctx).QueryRowContext(ctx, s.db.Rebind(query),
		md.RequestID.String(), md.Fire, md.NumberOfRecords,
		toNullMillis(md.SubmittedAt), toNullMillis(md.EnqueuedAt), toNullMillis(md.PackagedAt), toNullMillis(md.SentAt),
		toMillis(md.CleanedAt),
	).Scan(&md.ID)
	if err != nil {
		return fmt.Errorf("insert request metadata: %w", err)
	}
	return nil
}

func (s *SQL) ListMetadata(ctx context.Context) ([]models.Metadata, error) {
	rows, err := s.exec(ctx).QueryContext(ctx, `SELECT id, request_id, fire, number_of_records,
		submitted_at, enqueued_at, packaged_at, sent_at, cleaned_at
		FROM vital_records_request_metadata ORDER BY id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query request metadata: %w", err)
	}
	defer rows.Close()

	var out []models.Metadata
	for rows.Next() {
		var (
			md                                  models.Metadata
			requestID                           string
			submitted, enqueued, packaged, sent sql.NullInt64
			cleaned                             int64
		)
		if err := rows.Scan(&md.ID, &requestID, &md.Fire, &md.NumberOfRecords,
			&submitted, &enqueued, &packaged, &sent, &cleaned); err != nil {
			return nil, fmt.Errorf("scan request metadata: %w", err)
		}
		if md.RequestID, err = uuid.Parse(requestID); err != nil {
			return nil, fmt.Errorf("parse metadata request id: %w", err)
		}
		md.SubmittedAt = fromNullMillis(submitted)
		md.EnqueuedAt = fromNullMillis(enqueued)
		md.PackagedAt = fromNullMillis(packaged)
		md.SentAt = fromNullMillis(sent)
		md.CleanedAt = fromMillis(cleaned)
		out = append(out, md)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate request metadata: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRequest(row scanner) (*models.Request, error) {
	var (
		r                                            models.Request
		id, status, recordType                       string
		dateOfEvent, dateOfBirth                     sql.NullString
		started, submitted, enqueued, packaged, sent sql.NullInt64
		created                                      int64
	)
	err := row.Scan(&id, &status, &recordType, &r.Fire, &r.Relationship, &r.LegalAttestation,
		&r.FirstName, &r.MiddleName, &r.LastName, &r.CountyOfEvent, &dateOfEvent, &dateOfBirth,
		&r.Person1FirstName, &r.Person1MiddleName, &r.Person1LastName, &r.Person1BirthLastName,
		&r.Person2FirstName, &r.Person2MiddleName, &r.Person2LastName, &r.Person2BirthLastName,
		&r.NumberOfRecords, &r.OrderFirstName, &r.OrderLastName, &r.Address, &r.Address2, &r.City, &r.State,
		&r.ZipCode, &r.EmailAddress, &r.PhoneNumber,
		&started, &submitted, &enqueued, &packaged, &sent, &created)
	if err != nil {
		return nil, err
	}
	if r.ID, err = uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("parse request id: %w", err)
	}
	r.Status = models.Status(status)
	r.Type = models.RecordType(recordType)
	if r.DateOfEvent, err = fromDate(dateOfEvent); err != nil {
		return nil, err
	}
	if r.DateOfBirth, err = fromDate(dateOfBirth); err != nil {
		return nil, err
	}
	r.StartedAt = fromNullMillis(started)
	r.SubmittedAt = fromNullMillis(submitted)
	r.EnqueuedAt = fromNullMillis(enqueued)
	r.PackagedAt = fromNullMillis(packaged)
	r.SentAt = fromNullMillis(sent)
	r.CreatedAt = fromMillis(created)
	return &r, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

func fromMillis(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func toNullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}

func fromNullMillis(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := fromMillis(v.Int64)
	return &t
}

func toDate(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(dateLayout), Valid: true}
}

func fromDate(v sql.NullString) (*time.Time, error) {
	if !v.Valid || v.String == "" {
		return nil, nil
	}
	t, err := time.Parse(dateLayout, v.String)
	if err != nil {
		return nil, fmt.Errorf("parse date %q: %w", v.String, err)
	}
	return &t, nil
}
