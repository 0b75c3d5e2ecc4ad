package admin

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"ddrc/internal/taskqueue"
	"ddrc/internal/vitalrecords/models"
	"ddrc/internal/vitalrecords/service"
	"ddrc/internal/vitalrecords/store"
	audit "ddrc/pkg/platform/audit"
	"ddrc/pkg/platform/audit/publisher"
	auditmemory "ddrc/pkg/platform/audit/store/memory"
	adminmw "ddrc/pkg/platform/middleware/admin"
	"ddrc/pkg/testutil"
)

const adminToken = "operator-token"

type AdminHandlerSuite struct {
	suite.Suite
	store  *store.InMemory
	tasks  *taskqueue.InMemory
	audit  *publisher.Publisher
	router *chi.Mux
}

func TestAdminHandlerSuite(t *testing.T) {
	suite.Run(t, new(AdminHandlerSuite))
}

func (s *AdminHandlerSuite) SetupTest() {
	hash, err := adminmw.HashToken(adminToken)
	s.Require().NoError(err)

	s.store = store.NewInMemory()
	s.tasks = taskqueue.NewInMemory()
	s.audit = publisher.NewPublisher(auditmemory.NewInMemoryStore())
	queue := taskqueue.NewQueue(s.tasks, nil)
	svc := service.New(s.store, queue)

	s.router = chi.NewRouter()
	New(svc, queue, s.audit, hash, nil).Register(s.router)
}

func (s *AdminHandlerSuite) do(method, path string) *httptest.ResponseRecorder {
	req := testutil.NewRequest(s.T(), method, path)
	req.Header.Set(adminmw.HeaderAdminToken, adminToken)
	return testutil.DoRequest(s.router, req)
}

func (s *AdminHandlerSuite) TestRequiresToken() {
	rr := testutil.DoRequest(s.router, testutil.NewRequest(s.T(), http.MethodGet, "/admin/tasks"))
	s.Equal(http.StatusUnauthorized, rr.Code)
}

func (s *AdminHandlerSuite) TestMetadata() {
	sent := time.Date(2025, 1, 21, 9, 0, 0, 0, time.UTC)
	md := models.Metadata{
		RequestID:       uuid.New(),
		Fire:            "eaton",
		NumberOfRecords: 3,
		SentAt:          &sent,
		CleanedAt:       sent.Add(time.Hour),
	}
	s.Require().NoError(s.store.CreateMetadata(context.Background(), &md))

	rr := s.do(http.MethodGet, "/admin/metadata")
	s.Require().Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[MetadataListResponse](s.T(), rr)
	s.Equal(1, resp.Total)
	s.Equal(md.RequestID.String(), resp.Metadata[0].RequestID)
	s.Equal("eaton", resp.Metadata[0].Fire)
	s.Equal(3, resp.Metadata[0].NumberOfRecords)
	s.Nil(resp.Metadata[0].SubmittedAt)
}

func (s *AdminHandlerSuite) TestCleanupEnqueuesTask() {
	rr := s.do(http.MethodPost, "/admin/cleanup")
	s.Require().Equal(http.StatusAccepted, rr.Code)
	created := testutil.UnmarshalResponse[CleanupResponse](s.T(), rr)

	rr = s.do(http.MethodGet, "/admin/tasks")
	s.Require().Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[TasksListResponse](s.T(), rr)
	s.Require().Equal(1, resp.Total)
	s.Equal(created.TaskID, resp.Tasks[0].ID)
	s.Equal(taskqueue.Key(service.TaskGroup, service.TaskCleanup), resp.Tasks[0].Task)
	s.Equal(string(taskqueue.StatusQueued), resp.Tasks[0].Status)

	rr = s.do(http.MethodGet, "/admin/audit?subject="+service.TaskGroup)
	s.Require().Equal(http.StatusOK, rr.Code)
	events := testutil.UnmarshalResponse[EventsListResponse](s.T(), rr)
	s.Require().Equal(1, events.Total)
	s.Equal(string(audit.ActionCleanupTriggered), events.Events[0].Action)
}

func (s *AdminHandlerSuite) TestAuditRecent() {
	ctx := context.Background()
	for _, action := range []audit.Action{audit.ActionLoginStarted, audit.ActionLoginSucceeded, audit.ActionLogout} {
		s.Require().NoError(s.audit.Emit(ctx, audit.Event{Action: action, Subject: "vital-records"}))
	}

	rr := s.do(http.MethodGet, "/admin/audit?limit=2")
	s.Require().Equal(http.StatusOK, rr.Code)
	resp := testutil.UnmarshalResponse[EventsListResponse](s.T(), rr)
	s.Equal(2, resp.Total)
}

func (s *AdminHandlerSuite) TestInvalidLimit() {
	for _, path := range []string{"/admin/tasks?limit=zero", "/admin/audit?limit=-1"} {
		rr := s.do(http.MethodGet, path)
		s.Equal(http.StatusBadRequest, rr.Code, path)
	}
}
