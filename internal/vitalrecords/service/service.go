// Package service drives a vital records request through the wizard: it
// applies the status transitions, persists them and enqueues the packaging
// task once the user confirms.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"ddrc/internal/platform/metrics"
	"ddrc/internal/taskqueue"
	"ddrc/internal/vitalrecords/models"
	"ddrc/internal/vitalrecords/store"
	dErrors "ddrc/pkg/domain-errors"
	audit "ddrc/pkg/platform/audit"
	"ddrc/pkg/platform/sentinel"
	txcontext "ddrc/pkg/platform/tx"
	"ddrc/pkg/requestcontext"
)

const TaskGroup = "vital-records"

// Task names within TaskGroup.
const (
	TaskPackage = "package"
	TaskEmail   = "email"
	TaskCleanup = "cleanup"
)

// PackagePayload is the argument of the package task.
type PackagePayload struct {
	RequestID uuid.UUID `json:"request_id"`
}

// ErrAlreadySubmitted is returned by Submit for a request that has left the
// wizard.
var ErrAlreadySubmitted = dErrors.New(dErrors.CodeConflict, "This request has already been submitted.")

type Service struct {
	store   store.Store
	queue   taskqueue.Enqueuer
	tx      txcontext.Runner
	auditor audit.Emitter
	metrics *metrics.Metrics
	logger  *slog.Logger
}

type Option func(*Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditor(e audit.Emitter) Option {
	return func(s *Service) { s.auditor = e }
}

// WithTx sets the boundary that makes enqueuing atomic with the status
// change. The default is a process-local lock.
func WithTx(r txcontext.Runner) Option {
	return func(s *Service) { s.tx = r }
}

func New(st store.Store, queue taskqueue.Enqueuer, opts ...Option) *Service {
	s := &Service{
		store:  st,
		queue:  queue,
		tx:     &txcontext.LockRunner{},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start creates a request for fire and moves it to started.
func (s *Service) Start(ctx context.Context, fire string) (*models.Request, error) {
	now := requestcontext.Now(ctx)
	r, err := models.NewRequest(uuid.New(), fire, now)
	if err != nil {
		return nil, err
	}
	if err := r.CompleteStart(now); err != nil {
		return nil, err
	}
	if err := s.store.Create(ctx, r); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create request")
	}
	s.transitioned(ctx, r, audit.ActionRequestStarted)
	return r, nil
}

func (s *Service) Get(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	r, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, translate(err, "failed to load request")
	}
	return r, nil
}

// Save persists wizard edits. Requests that have been submitted are frozen,
// including when the submit happened after r was loaded.
func (s *Service) Save(ctx context.Context, r *models.Request) error {
	if r.AlreadySubmitted() {
		return ErrAlreadySubmitted
	}
	if err := s.store.Save(ctx, r, r.Status); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return ErrAlreadySubmitted
		}
		return translate(err, "failed to save request")
	}
	return nil
}

// Submit moves a started request to submitted.
func (s *Service) Submit(ctx context.Context, r *models.Request) error {
	if r.AlreadySubmitted() {
		return ErrAlreadySubmitted
	}
	from := r.Status
	if err := r.CompleteSubmit(requestcontext.Now(ctx)); err != nil {
		return err
	}
	if err := s.store.Save(ctx, r, from); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return ErrAlreadySubmitted
		}
		return translate(err, "failed to save request")
	}
	s.transitioned(ctx, r, audit.ActionRequestSubmitted)
	return nil
}

// Enqueue moves a submitted request to enqueued and schedules its package
// task. The request is saved before the task is written, inside one
// transaction, so a worker never sees a task for a request still marked
// submitted.
func (s *Service) Enqueue(ctx context.Context, id uuid.UUID) (*models.Request, error) {
	var r *models.Request
	err := s.tx.RunInTx(ctx, func(ctx context.Context) error {
		var err error
		r, err = s.store.GetWithStatus(ctx, id, models.StatusSubmitted)
		if err != nil {
			return err
		}
		if err := r.CompleteEnqueue(requestcontext.Now(ctx)); err != nil {
			return err
		}
		if err := s.store.Save(ctx, r, models.StatusSubmitted); err != nil {
			return err
		}
		_, err = s.queue.Enqueue(ctx, TaskGroup, TaskPackage, PackagePayload{RequestID: r.ID})
		return err
	})
	if err != nil {
		return nil, translate(err, "failed to enqueue request")
	}
	s.transitioned(ctx, r, audit.ActionRequestEnqueued)
	return r, nil
}

// Metadata lists the records kept for cleaned up requests.
func (s *Service) Metadata(ctx context.Context) ([]models.Metadata, error) {
	return s.store.ListMetadata(ctx)
}

func (s *Service) transitioned(ctx context.Context, r *models.Request, action audit.Action) {
	if s.metrics != nil {
		s.metrics.IncrementTransition(string(r.Status))
	}
	s.logger.InfoContext(ctx, "vital records request transitioned",
		"request", r.ID,
		"status", r.Status,
		"request_id", requestcontext.RequestID(ctx),
	)
	if s.auditor == nil {
		return
	}
	if err := s.auditor.Emit(ctx, audit.Event{
		Action:  action,
		Subject: r.ID.String(),
		Detail:  fmt.Sprintf("type=%s fire=%s", r.Type, r.Fire),
	}); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event", "action", action, "error", err)
	}
}

// translate maps store sentinels to domain codes. Domain errors pass
// through unchanged.
func translate(err error, msg string) error {
	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		return err
	case errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeNotFound, "request not found")
	case errors.Is(err, sentinel.ErrInvalidState):
		return dErrors.Wrap(err, dErrors.CodeInvalidState, "request is not in the expected status")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, msg)
	}
}
