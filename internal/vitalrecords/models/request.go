package models

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	dErrors "ddrc/pkg/domain-errors"
)

type RecordType string

const (
	TypeBirth    RecordType = "birth"
	TypeMarriage RecordType = "marriage"
	TypeDeath    RecordType = "death"
)

func (t RecordType) IsValid() bool {
	return t == TypeBirth || t == TypeMarriage || t == TypeDeath
}

// Title is the capitalized display name ("Birth").
func (t RecordType) Title() string {
	switch t {
	case TypeBirth:
		return "Birth"
	case TypeMarriage:
		return "Marriage"
	case TypeDeath:
		return "Death"
	}
	return ""
}

// Request is a single replacement record order moving through the wizard
// and the packaging pipeline.
//
// Invariants:
//   - Status only moves forward, one step at a time
//   - each transition stamps its own timestamp
//   - NumberOfRecords is between 1 and 10
type Request struct {
	ID     uuid.UUID
	Status Status

	Type             RecordType
	Fire             string
	Relationship     string
	LegalAttestation string

	FirstName     string
	MiddleName    string
	LastName      string
	CountyOfEvent string
	DateOfEvent   *time.Time
	DateOfBirth   *time.Time

	Person1FirstName     string
	Person1MiddleName    string
	Person1LastName      string
	Person1BirthLastName string
	Person2FirstName     string
	Person2MiddleName    string
	Person2LastName      string
	Person2BirthLastName string

	NumberOfRecords int
	OrderFirstName  string
	OrderLastName   string
	Address         string
	Address2        string
	City            string
	State           string
	ZipCode         string
	EmailAddress    string
	PhoneNumber     string

	CreatedAt   time.Time
	StartedAt   *time.Time
	SubmittedAt *time.Time
	EnqueuedAt  *time.Time
	PackagedAt  *time.Time
	SentAt      *time.Time
}

// NewRequest builds an initialized request for the fire the user confirmed.
func NewRequest(id uuid.UUID, fire string, now time.Time) (*Request, error) {
	if !IsFire(fire) {
		return nil, dErrors.New(dErrors.CodeValidation, fmt.Sprintf("unknown fire %q", fire))
	}
	return &Request{
		ID:              id,
		Status:          StatusInitialized,
		Fire:            fire,
		NumberOfRecords: 1,
		CreatedAt:       now,
	}, nil
}

// AlreadySubmitted is true once the request has left the wizard.
func (r *Request) AlreadySubmitted() bool {
	return r.Status.rank() >= StatusSubmitted.rank()
}

func (r *Request) canMove(target Status) error {
	if !r.Status.CanTransitionTo(target) {
		return dErrors.New(dErrors.CodeInvariantViolation,
			fmt.Sprintf("request %s cannot move from %s to %s", r.ID, r.Status, target))
	}
	return nil
}

func (r *Request) move(target Status, stamp **time.Time, now time.Time) error {
	if err := r.canMove(target); err != nil {
		return err
	}
	r.Status = target
	if stamp != nil {
		t := now
		*stamp = &t
	}
	return nil
}

func (r *Request) CompleteStart(now time.Time) error {
	return r.move(StatusStarted, &r.StartedAt, now)
}

func (r *Request) CompleteSubmit(now time.Time) error {
	return r.move(StatusSubmitted, &r.SubmittedAt, now)
}

func (r *Request) CompleteEnqueue(now time.Time) error {
	return r.move(StatusEnqueued, &r.EnqueuedAt, now)
}

func (r *Request) CompletePackage(now time.Time) error {
	return r.move(StatusPackaged, &r.PackagedAt, now)
}

func (r *Request) CompleteSend(now time.Time) error {
	return r.move(StatusSent, &r.SentAt, now)
}

// Finish has no timestamp of its own; cleanup records CleanedAt instead.
func (r *Request) Finish() error {
	return r.move(StatusFinished, nil, time.Time{})
}

// Metadata survives cleanup of a finished request.
type Metadata struct {
	ID              int64
	RequestID       uuid.UUID
	Fire            string
	NumberOfRecords int
	SubmittedAt     *time.Time
	EnqueuedAt      *time.Time
	PackagedAt      *time.Time
	SentAt          *time.Time
	CleanedAt       time.Time
}

// NewMetadata snapshots r at cleanup time.
func NewMetadata(r *Request, now time.Time) Metadata {
	return Metadata{
		RequestID:       r.ID,
		Fire:            r.Fire,
		NumberOfRecords: r.NumberOfRecords,
		SubmittedAt:     r.SubmittedAt,
		EnqueuedAt:      r.EnqueuedAt,
		PackagedAt:      r.PackagedAt,
		SentAt:          r.SentAt,
		CleanedAt:       now,
	}
}
