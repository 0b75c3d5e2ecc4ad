// Package tasks holds the background work that follows a submitted request:
// packaging the PDFs, emailing them, and cleaning up finished requests.
package tasks

//go:generate mockgen -source=tasks.go -destination=mocks/mocks.go -package=mocks Store,Filler,Storage,Mailer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"ddrc/internal/mail"
	"ddrc/internal/platform/metrics"
	"ddrc/internal/taskqueue"
	"ddrc/internal/vitalrecords/models"
	"ddrc/internal/vitalrecords/service"
	"ddrc/internal/web"
	audit "ddrc/pkg/platform/audit"
	txcontext "ddrc/pkg/platform/tx"
)

// LogoURL is the state logo shown in notification emails.
const LogoURL = "https://webstandards.ca.gov/wp-content/uploads/sites/8/2024/10/cagov-logo-coastal-flat.png"

type Store interface {
	GetWithStatus(ctx context.Context, id uuid.UUID, status models.Status) (*models.Request, error)
	Save(ctx context.Context, r *models.Request, from models.Status) error
	Delete(ctx context.Context, id uuid.UUID) error
	ListFinished(ctx context.Context) ([]*models.Request, error)
	CreateMetadata(ctx context.Context, md *models.Metadata) error
}

type Filler interface {
	Fill(template string, fields map[string]string) ([]byte, error)
	Merge(docs ...[]byte) ([]byte, error)
}

type Storage interface {
	Put(ctx context.Context, name string, data []byte) error
	Open(ctx context.Context, name string) (io.ReadCloser, error)
	Delete(ctx context.Context, name string) error
}

type Mailer interface {
	Send(ctx context.Context, msg mail.Message) (int, error)
}

// EmailPayload is the argument of the email task.
type EmailPayload struct {
	RequestID uuid.UUID `json:"request_id"`
	Package   string    `json:"package"`
}

// EmailResult counts the messages accepted for the office and the
// requestor; [1, 1] is a complete send.
type EmailResult [2]int

type Tasks struct {
	store       Store
	filler      Filler
	files       Storage
	mailer      Mailer
	renderer    *web.Renderer
	queue       taskqueue.Enqueuer
	officeEmail string

	tx       txcontext.Runner
	auditor  audit.Emitter
	metrics  *metrics.Metrics
	logger   *slog.Logger
	location *time.Location
	now      func() time.Time
}

type Option func(*Tasks)

func WithLogger(logger *slog.Logger) Option {
	return func(t *Tasks) { t.logger = logger }
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(t *Tasks) { t.metrics = m }
}

func WithAuditor(e audit.Emitter) Option {
	return func(t *Tasks) { t.auditor = e }
}

// WithTx makes the metadata insert and request delete of cleanup atomic.
func WithTx(r txcontext.Runner) Option {
	return func(t *Tasks) { t.tx = r }
}

// WithLocation sets the zone used for the sworn statement signature time.
func WithLocation(loc *time.Location) Option {
	return func(t *Tasks) { t.location = loc }
}

func WithClock(now func() time.Time) Option {
	return func(t *Tasks) { t.now = now }
}

func New(st Store, filler Filler, files Storage, mailer Mailer, renderer *web.Renderer, queue taskqueue.Enqueuer, officeEmail string, opts ...Option) *Tasks {
	t := &Tasks{
		store:       st,
		filler:      filler,
		files:       files,
		mailer:      mailer,
		renderer:    renderer,
		queue:       queue,
		officeEmail: officeEmail,
		tx:          &txcontext.LockRunner{},
		logger:      slog.Default(),
		location:    time.UTC,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register binds the handlers and the package post hook to w.
func (t *Tasks) Register(w *taskqueue.Worker) {
	w.Register(service.TaskGroup, service.TaskPackage, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p service.PackagePayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode package payload: %w", err)
		}
		return t.Package(ctx, p.RequestID)
	})
	w.OnFinish(service.TaskGroup, service.TaskPackage, t.AfterPackage)

	w.Register(service.TaskGroup, service.TaskEmail, func(ctx context.Context, raw json.RawMessage) (any, error) {
		var p EmailPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("decode email payload: %w", err)
		}
		return t.Email(ctx, p.RequestID, p.Package)
	})

	w.Register(service.TaskGroup, service.TaskCleanup, func(ctx context.Context, _ json.RawMessage) (any, error) {
		return t.Cleanup(ctx)
	})
}

// Package fills the application and sworn statement for an enqueued
// request, stores the merged document and returns its name.
func (t *Tasks) Package(ctx context.Context, id uuid.UUID) (string, error) {
	t.logger.DebugContext(ctx, "creating request package", "request", id)
	r, err := t.store.GetWithStatus(ctx, id, models.StatusEnqueued)
	if err != nil {
		return "", err
	}

	appFields, err := ApplicationFields(r)
	if err != nil {
		return "", err
	}
	application, err := t.filler.Fill(ApplicationTemplate(r.Type), appFields)
	if err != nil {
		return "", err
	}
	statement, err := t.filler.Fill(SwornStatementTemplate, SwornStatementFields(r, t.location))
	if err != nil {
		return "", err
	}
	doc, err := t.filler.Merge(application, statement)
	if err != nil {
		return "", err
	}

	name := PackageName(r)
	if err := t.files.Put(ctx, name, doc); err != nil {
		return "", fmt.Errorf("store package %s: %w", name, err)
	}

	if err := r.CompletePackage(t.now()); err != nil {
		return "", err
	}
	if err := t.store.Save(ctx, r, models.StatusEnqueued); err != nil {
		return "", err
	}
	t.transitioned(ctx, r, audit.ActionRequestPackaged, name)
	return name, nil
}

// AfterPackage chains the email task onto a successful package task.
func (t *Tasks) AfterPackage(ctx context.Context, outcome taskqueue.Outcome) {
	var p service.PackagePayload
	if err := json.Unmarshal(outcome.Task.Payload, &p); err != nil {
		t.logger.ErrorContext(ctx, "package task has an unreadable payload", "task_id", outcome.Task.ID, "error", err)
		return
	}
	if !outcome.OK {
		t.logger.ErrorContext(ctx, "package creation failed", "request", p.RequestID, "error", outcome.Err)
		return
	}
	var name string
	if err := outcome.Decode(&name); err != nil {
		t.logger.ErrorContext(ctx, "package task has an unreadable result", "request", p.RequestID, "error", err)
		return
	}
	t.logger.DebugContext(ctx, "creating email task", "request", p.RequestID)
	if _, err := t.queue.Enqueue(ctx, service.TaskGroup, service.TaskEmail, EmailPayload{RequestID: p.RequestID, Package: name}); err != nil {
		t.logger.ErrorContext(ctx, "failed to enqueue email task", "request", p.RequestID, "error", err)
	}
}

// Email sends the package to the office and a confirmation to the
// requestor, then finishes the request. Once the office copy is out a failed
// confirmation is only logged, so a retry never resends the package.
func (t *Tasks) Email(ctx context.Context, id uuid.UUID, pkg string) (EmailResult, error) {
	var result EmailResult
	r, err := t.store.GetWithStatus(ctx, id, models.StatusPackaged)
	if err != nil {
		return result, err
	}

	recordType := r.Type.Title()
	text, html, err := t.renderer.Email(web.EmailData{
		NumberOfCopies: r.NumberOfRecords,
		LogoURL:        LogoURL,
		EmailAddress:   r.EmailAddress,
		RequestType:    recordType,
	})
	if err != nil {
		return result, err
	}
	attachment, err := t.readPackage(ctx, pkg)
	if err != nil {
		return result, err
	}

	subject := fmt.Sprintf("Completed: %s Record Request", recordType)
	result[0], err = t.mailer.Send(ctx, mail.Message{
		To:      []string{t.officeEmail},
		Subject: subject,
		Text:    text,
		HTML:    html,
		Attachments: []mail.Attachment{{
			Name:        pkg,
			ContentType: "application/pdf",
			Data:        attachment,
		}},
	})
	if err != nil {
		return result, fmt.Errorf("send office email: %w", err)
	}
	result[1], err = t.mailer.Send(ctx, mail.Message{
		To:      []string{r.EmailAddress},
		Subject: subject,
		Text:    text,
		HTML:    html,
	})
	if err != nil {
		t.logger.ErrorContext(ctx, "failed to send requestor confirmation", "request", id, "error", err)
		result[1] = 0
	}

	if err := r.CompleteSend(t.now()); err != nil {
		return result, err
	}
	if err := r.Finish(); err != nil {
		return result, err
	}
	if err := t.store.Save(ctx, r, models.StatusPackaged); err != nil {
		return result, err
	}
	t.logger.InfoContext(ctx, "request package sent",
		"request", id,
		"office", result[0],
		"requestor", result[1],
	)
	t.transitioned(ctx, r, audit.ActionRequestSent, pkg)
	return result, nil
}

func (t *Tasks) readPackage(ctx context.Context, name string) ([]byte, error) {
	rc, err := t.files.Open(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("open package %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("read package %s: %w", name, err)
	}
	return data, nil
}

// Cleanup removes every finished request, keeping a metadata record for
// each. It reports whether all of them were cleaned.
func (t *Tasks) Cleanup(ctx context.Context) (bool, error) {
	t.logger.InfoContext(ctx, "running cleanup task")
	batch, err := t.store.ListFinished(ctx)
	if err != nil {
		return false, err
	}
	t.logger.DebugContext(ctx, "found records to clean", "count", len(batch))

	cleaned := 0
	for _, r := range batch {
		if err := t.clean(ctx, r); err != nil {
			t.logger.WarnContext(ctx, "cleaning failed for record", "request", r.ID, "error", err)
			continue
		}
		cleaned++
	}
	if t.metrics != nil {
		t.metrics.AddCleaned(cleaned)
	}

	if cleaned != len(batch) {
		t.logger.WarnContext(ctx, "some records were not cleaned",
			"failed", len(batch)-cleaned,
			"total", len(batch),
		)
		return false, nil
	}
	if len(batch) > 0 {
		t.logger.InfoContext(ctx, "cleanup task completed successfully", "count", cleaned)
	}
	return true, nil
}

// clean records metadata and deletes the row together, then removes the
// package file.
func (t *Tasks) clean(ctx context.Context, r *models.Request) error {
	err := t.tx.RunInTx(ctx, func(ctx context.Context) error {
		md := models.NewMetadata(r, t.now())
		if err := t.store.CreateMetadata(ctx, &md); err != nil {
			return fmt.Errorf("create metadata: %w", err)
		}
		if err := t.store.Delete(ctx, r.ID); err != nil {
			return fmt.Errorf("delete record: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if err := t.files.Delete(ctx, PackageName(r)); err != nil {
		return fmt.Errorf("delete package file: %w", err)
	}
	t.transitioned(ctx, r, audit.ActionRequestCleaned, PackageName(r))
	return nil
}

func (t *Tasks) transitioned(ctx context.Context, r *models.Request, action audit.Action, detail string) {
	if t.metrics != nil && action != audit.ActionRequestCleaned {
		t.metrics.IncrementTransition(string(r.Status))
	}
	if t.auditor == nil {
		return
	}
	if err := t.auditor.Emit(ctx, audit.Event{Action: action, Subject: r.ID.String(), Detail: detail}); err != nil {
		t.logger.WarnContext(ctx, "failed to emit audit event", "action", action, "error", err)
	}
}
