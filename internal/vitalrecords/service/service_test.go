package service

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"ddrc/internal/platform/database"
	"ddrc/internal/platform/metrics"
	"ddrc/internal/taskqueue"
	"ddrc/internal/vitalrecords/models"
	"ddrc/internal/vitalrecords/store"
	dErrors "ddrc/pkg/domain-errors"
	audit "ddrc/pkg/platform/audit"
	"ddrc/pkg/platform/audit/publisher"
	auditmemory "ddrc/pkg/platform/audit/store/memory"
	txcontext "ddrc/pkg/platform/tx"
	"ddrc/pkg/requestcontext"
)

type backend struct {
	store store.Store
	tasks taskqueue.Store
	tx    txcontext.Runner
}

type ServiceSuite struct {
	suite.Suite
	newBackend func(t *testing.T) backend

	service *Service
	store   store.Store
	tasks   taskqueue.Store
	audit   *auditmemory.InMemoryStore
	metrics *metrics.Metrics
	ctx     context.Context
	now     time.Time
}

func TestServiceInMemory(t *testing.T) {
	suite.Run(t, &ServiceSuite{newBackend: func(*testing.T) backend {
		return backend{store: store.NewInMemory(), tasks: taskqueue.NewInMemory(), tx: &txcontext.LockRunner{}}
	}})
}

func TestServiceSQLite(t *testing.T) {
	suite.Run(t, &ServiceSuite{newBackend: func(t *testing.T) backend {
		db, err := database.Open(context.Background(), "sqlite", "file:"+filepath.Join(t.TempDir(), "service.db"))
		if err != nil {
			t.Fatalf("open sqlite: %v", err)
		}
		t.Cleanup(func() { _ = db.Close() })
		return backend{store: store.NewSQL(db), tasks: taskqueue.NewSQL(db), tx: txcontext.SQLRunner{DB: db.DB}}
	}})
}

func (s *ServiceSuite) SetupTest() {
	b := s.newBackend(s.T())
	s.store = b.store
	s.tasks = b.tasks
	s.audit = auditmemory.NewInMemoryStore()
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.now = time.Date(2025, 1, 20, 8, 30, 0, 0, time.UTC)
	s.ctx = requestcontext.WithTime(context.Background(), s.now)
	s.service = New(s.store, taskqueue.NewQueue(s.tasks, nil),
		WithTx(b.tx),
		WithMetrics(s.metrics),
		WithAuditor(publisher.NewPublisher(s.audit)),
	)
}

func (s *ServiceSuite) startBirth() *models.Request {
	r, err := s.service.Start(s.ctx, "eaton")
	s.Require().NoError(err)
	r.Type = models.TypeBirth
	r.FirstName = "Ada"
	s.Require().NoError(s.service.Save(s.ctx, r))
	return r
}

func (s *ServiceSuite) TestStart() {
	r, err := s.service.Start(s.ctx, "palisades")
	s.Require().NoError(err)

	s.Equal(models.StatusStarted, r.Status)
	s.Require().NotNil(r.StartedAt)
	s.True(r.StartedAt.Equal(s.now))

	stored, err := s.store.Get(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusStarted, stored.Status)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.RequestTransitions.WithLabelValues("started")))

	events, err := s.audit.ListBySubject(s.ctx, r.ID.String())
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionRequestStarted, events[0].Action)
}

func (s *ServiceSuite) TestStartUnknownFire() {
	_, err := s.service.Start(s.ctx, "not-a-fire")
	s.True(dErrors.HasCode(err, dErrors.CodeValidation))
}

func (s *ServiceSuite) TestGetMissing() {
	_, err := s.service.Get(s.ctx, uuid.New())
	s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
}

func (s *ServiceSuite) TestSubmitOnce() {
	r := s.startBirth()

	s.Require().NoError(s.service.Submit(s.ctx, r))
	s.Equal(models.StatusSubmitted, r.Status)

	again, err := s.service.Get(s.ctx, r.ID)
	s.Require().NoError(err)
	err = s.service.Submit(s.ctx, again)
	s.True(errors.Is(err, ErrAlreadySubmitted))
	s.Equal(models.StatusSubmitted, again.Status)
}

func (s *ServiceSuite) TestSaveAfterSubmitIsRefused() {
	r := s.startBirth()
	s.Require().NoError(s.service.Submit(s.ctx, r))

	r.FirstName = "Grace"
	s.ErrorIs(s.service.Save(s.ctx, r), ErrAlreadySubmitted)
}

func (s *ServiceSuite) TestStaleTabCannotReopenRequest() {
	r := s.startBirth()
	tabA, err := s.service.Get(s.ctx, r.ID)
	s.Require().NoError(err)
	tabB, err := s.service.Get(s.ctx, r.ID)
	s.Require().NoError(err)

	s.Require().NoError(s.service.Submit(s.ctx, tabB))
	_, err = s.service.Enqueue(s.ctx, r.ID)
	s.Require().NoError(err)

	tabA.LastName = "Lovelace"
	s.ErrorIs(s.service.Save(s.ctx, tabA), ErrAlreadySubmitted)
	s.ErrorIs(s.service.Submit(s.ctx, tabA), ErrAlreadySubmitted)

	stored, err := s.store.Get(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusEnqueued, stored.Status)
	s.Require().NotNil(stored.EnqueuedAt)
	s.Empty(stored.LastName)

	tasks, err := s.tasks.List(s.ctx, 10)
	s.Require().NoError(err)
	s.Len(tasks, 1)
}

func (s *ServiceSuite) TestEnqueuePersistsAndSchedulesPackage() {
	r := s.startBirth()
	s.Require().NoError(s.service.Submit(s.ctx, r))

	enqueued, err := s.service.Enqueue(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusEnqueued, enqueued.Status)

	stored, err := s.store.Get(s.ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusEnqueued, stored.Status)
	s.Require().NotNil(stored.EnqueuedAt)

	tasks, err := s.tasks.List(s.ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(tasks, 1)
	s.Equal(TaskGroup, tasks[0].Group)
	s.Equal(TaskPackage, tasks[0].Name)
	var payload PackagePayload
	s.Require().NoError(json.Unmarshal(tasks[0].Payload, &payload))
	s.Equal(r.ID, payload.RequestID)
}

func (s *ServiceSuite) TestEnqueueRequiresSubmitted() {
	r := s.startBirth()

	_, err := s.service.Enqueue(s.ctx, r.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	tasks, err := s.tasks.List(s.ctx, 10)
	s.Require().NoError(err)
	s.Empty(tasks)
}

func (s *ServiceSuite) TestEnqueueTwiceFails() {
	r := s.startBirth()
	s.Require().NoError(s.service.Submit(s.ctx, r))
	_, err := s.service.Enqueue(s.ctx, r.ID)
	s.Require().NoError(err)

	_, err = s.service.Enqueue(s.ctx, r.ID)
	s.True(dErrors.HasCode(err, dErrors.CodeInvalidState))

	tasks, err := s.tasks.List(s.ctx, 10)
	s.Require().NoError(err)
	s.Len(tasks, 1)
}
