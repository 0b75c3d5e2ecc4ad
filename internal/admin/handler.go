// Package admin serves the operator JSON API: cleaned request metadata, the
// task queue, the audit log and a manual cleanup trigger.
package admin

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"ddrc/internal/platform/middleware"
	"ddrc/internal/taskqueue"
	"ddrc/internal/vitalrecords/models"
	"ddrc/internal/vitalrecords/service"
	dErrors "ddrc/pkg/domain-errors"
	audit "ddrc/pkg/platform/audit"
	"ddrc/pkg/platform/httputil"
	adminmw "ddrc/pkg/platform/middleware/admin"
	"ddrc/pkg/requestcontext"
)

const (
	defaultLimit = 50
	maxLimit     = 500
)

type MetadataLister interface {
	Metadata(ctx context.Context) ([]models.Metadata, error)
}

type TaskQueue interface {
	taskqueue.Enqueuer
	List(ctx context.Context, limit int) ([]*taskqueue.Task, error)
}

type AuditLog interface {
	audit.Emitter
	List(ctx context.Context, subject string) ([]audit.Event, error)
	ListRecent(ctx context.Context, limit int) ([]audit.Event, error)
}

type Handler struct {
	metadata  MetadataLister
	tasks     TaskQueue
	audit     AuditLog
	tokenHash string
	logger    *slog.Logger
}

// New builds the admin API. An empty tokenHash disables every route.
func New(metadata MetadataLister, tasks TaskQueue, auditLog AuditLog, tokenHash string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		metadata:  metadata,
		tasks:     tasks,
		audit:     auditLog,
		tokenHash: tokenHash,
		logger:    logger,
	}
}

func (h *Handler) Register(r chi.Router) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(adminmw.RequireAdminToken(h.tokenHash, h.logger))
		r.Use(middleware.NoCache)
		r.Use(middleware.ContentTypeJSON)

		r.Get("/metadata", h.handleMetadata)
		r.Get("/tasks", h.handleTasks)
		r.Get("/audit", h.handleAudit)
		r.Post("/cleanup", h.handleCleanup)
	})
}

func (h *Handler) handleMetadata(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	mds, err := h.metadata.Metadata(ctx)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list metadata"))
		return
	}
	resp := MetadataListResponse{Metadata: make([]MetadataResponse, 0, len(mds)), Total: len(mds)}
	for _, md := range mds {
		resp.Metadata = append(resp.Metadata, toMetadataResponse(md))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleTasks(w http.ResponseWriter, r *http.Request) {
	limit, err := parseLimit(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tasks, err := h.tasks.List(r.Context(), limit)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tasks"))
		return
	}
	resp := TasksListResponse{Tasks: make([]TaskResponse, 0, len(tasks)), Total: len(tasks)}
	for _, t := range tasks {
		resp.Tasks = append(resp.Tasks, toTaskResponse(t))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

// handleAudit lists events for ?subject= when given, otherwise the most
// recent ones.
func (h *Handler) handleAudit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var (
		events []audit.Event
		err    error
	)
	if subject := r.URL.Query().Get("subject"); subject != "" {
		events, err = h.audit.List(ctx, subject)
	} else {
		limit, limitErr := parseLimit(r)
		if limitErr != nil {
			h.writeError(w, r, limitErr)
			return
		}
		events, err = h.audit.ListRecent(ctx, limit)
	}
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list audit events"))
		return
	}
	resp := EventsListResponse{Events: make([]EventResponse, 0, len(events)), Total: len(events)}
	for _, e := range events {
		resp.Events = append(resp.Events, toEventResponse(e))
	}
	httputil.WriteJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleCleanup(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	task, err := h.tasks.Enqueue(ctx, service.TaskGroup, service.TaskCleanup, struct{}{})
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "failed to enqueue cleanup"))
		return
	}
	if err := h.audit.Emit(ctx, audit.Event{
		Action:  audit.ActionCleanupTriggered,
		Subject: service.TaskGroup,
		Detail:  strconv.FormatInt(task.ID, 10),
	}); err != nil {
		h.logger.WarnContext(ctx, "failed to emit audit event", "action", audit.ActionCleanupTriggered, "error", err)
	}
	h.logger.InfoContext(ctx, "cleanup triggered",
		"task_id", task.ID,
		"request_id", requestcontext.RequestID(ctx),
	)
	httputil.WriteJSON(w, http.StatusAccepted, CleanupResponse{TaskID: task.ID})
}

func parseLimit(r *http.Request) (int, error) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, dErrors.New(dErrors.CodeBadRequest, "limit must be a positive integer")
	}
	return min(n, maxLimit), nil
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if dErrors.HTTPStatus(dErrors.CodeOf(err)) >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "admin request failed",
			"error", err,
			"request_id", requestcontext.RequestID(r.Context()),
		)
	}
	httputil.WriteError(w, err)
}
