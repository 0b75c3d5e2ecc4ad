package admin

import (
	"encoding/json"
	"time"

	"ddrc/internal/taskqueue"
	"ddrc/internal/vitalrecords/models"
	audit "ddrc/pkg/platform/audit"
)

// MetadataResponse is the HTTP response DTO for a cleaned request.
type MetadataResponse struct {
	RequestID       string     `json:"request_id"`
	Fire            string     `json:"fire"`
	NumberOfRecords int        `json:"number_of_records"`
	SubmittedAt     *time.Time `json:"submitted_at,omitempty"`
	EnqueuedAt      *time.Time `json:"enqueued_at,omitempty"`
	PackagedAt      *time.Time `json:"packaged_at,omitempty"`
	SentAt          *time.Time `json:"sent_at,omitempty"`
	CleanedAt       time.Time  `json:"cleaned_at"`
}

type MetadataListResponse struct {
	Metadata []MetadataResponse `json:"metadata"`
	Total    int                `json:"total"`
}

type TaskResponse struct {
	ID        int64           `json:"id"`
	Task      string          `json:"task"`
	Status    string          `json:"status"`
	Attempts  int             `json:"attempts"`
	Payload   json.RawMessage `json:"payload"`
	Result    json.RawMessage `json:"result,omitempty"`
	LastError string          `json:"last_error,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

type TasksListResponse struct {
	Tasks []TaskResponse `json:"tasks"`
	Total int            `json:"total"`
}

type EventResponse struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Action    string    `json:"action"`
	Subject   string    `json:"subject"`
	RequestID string    `json:"request_id,omitempty"`
	Device    string    `json:"device,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

type EventsListResponse struct {
	Events []EventResponse `json:"events"`
	Total  int             `json:"total"`
}

// CleanupResponse names the task scheduled by a manual cleanup.
type CleanupResponse struct {
	TaskID int64 `json:"task_id"`
}

func toMetadataResponse(md models.Metadata) MetadataResponse {
	return MetadataResponse{
		RequestID:       md.RequestID.String(),
		Fire:            md.Fire,
		NumberOfRecords: md.NumberOfRecords,
		SubmittedAt:     md.SubmittedAt,
		EnqueuedAt:      md.EnqueuedAt,
		PackagedAt:      md.PackagedAt,
		SentAt:          md.SentAt,
		CleanedAt:       md.CleanedAt,
	}
}

func toTaskResponse(t *taskqueue.Task) TaskResponse {
	return TaskResponse{
		ID:        t.ID,
		Task:      t.Key(),
		Status:    string(t.Status),
		Attempts:  t.Attempts,
		Payload:   t.Payload,
		Result:    t.Result,
		LastError: t.LastError,
		CreatedAt: t.CreatedAt,
		UpdatedAt: t.UpdatedAt,
	}
}

// toEventResponse leaves out the client IP and raw user agent.
func toEventResponse(e audit.Event) EventResponse {
	return EventResponse{
		ID:        e.ID,
		Timestamp: e.Timestamp,
		Action:    string(e.Action),
		Subject:   e.Subject,
		RequestID: e.RequestID,
		Device:    e.Device,
		Detail:    e.Detail,
	}
}
