// Package handler serves the vital records request wizard.
package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"ddrc/internal/platform/middleware"
	"ddrc/internal/session"
	"ddrc/internal/userflow"
	"ddrc/internal/vitalrecords/forms"
	"ddrc/internal/vitalrecords/models"
	"ddrc/internal/vitalrecords/service"
	"ddrc/internal/vitalrecords/steps"
	"ddrc/internal/web"
	dErrors "ddrc/pkg/domain-errors"
	"ddrc/pkg/requestcontext"
)

const (
	basePath     = "/vital-records"
	loginPath    = basePath + "/login"
	startPath    = basePath + "/request"
	oauthLogin   = "/oauth/login"
	defaultTitle = "Replacement records"
)

// Service is the wizard's view of the vital records service.
type Service interface {
	Start(ctx context.Context, fire string) (*models.Request, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Request, error)
	Save(ctx context.Context, r *models.Request) error
	Submit(ctx context.Context, r *models.Request) error
	Enqueue(ctx context.Context, id uuid.UUID) (*models.Request, error)
}

type Sessions interface {
	Load(w http.ResponseWriter, r *http.Request) (*session.Session, error)
}

type Flows interface {
	Get(systemName string) (*userflow.UserFlow, error)
}

type Handler struct {
	service  Service
	sessions Sessions
	flows    Flows
	renderer *web.Renderer
	logger   *slog.Logger
}

func New(svc Service, sessions Sessions, flows Flows, renderer *web.Renderer, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		service:  svc,
		sessions: sessions,
		flows:    flows,
		renderer: renderer,
		logger:   logger,
	}
}

// Register mounts the wizard under /vital-records.
func (h *Handler) Register(r chi.Router) {
	r.Route(basePath, func(r chi.Router) {
		r.Use(middleware.NoCache)
		r.Use(h.loadSession)

		r.Get("/", h.handleIndex)
		r.Get("/login", h.handleLogin)
		r.Get("/unverified", h.handleUnverified)

		r.Group(func(r chi.Router) {
			r.Use(h.requireEligibility)
			r.Get("/request", h.handleStart)
			r.Post("/request", h.handleStart)

			r.Route("/request/{id}", func(r chi.Router) {
				r.Use(h.requireRequest)
				r.Get("/", h.handleSubmitted)
				r.Get("/type", h.handleType)
				r.Post("/type", h.handleType)
				r.Get("/statement", h.handleStatement)
				r.Post("/statement", h.handleStatement)
				r.Get("/{step}", h.handleStep)
				r.Post("/{step}", h.handleStep)
			})
		})
	})
}

type sessionKey struct{}
type requestKey struct{}

func sessionFrom(ctx context.Context) *session.Session {
	s, _ := ctx.Value(sessionKey{}).(*session.Session)
	return s
}

func requestFrom(ctx context.Context) *models.Request {
	r, _ := ctx.Value(requestKey{}).(*models.Request)
	return r
}

func (h *Handler) loadSession(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess, err := h.sessions.Load(w, r)
		if err != nil {
			h.serverError(w, r, "failed to load session", err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionKey{}, sess)))
	})
}

// requireEligibility sends users without the flow's verified eligibility
// claim back through login.
func (h *Handler) requireEligibility(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		flow, err := h.flows.Get(userflow.VitalRecords)
		if err != nil {
			h.serverError(w, r, "vital records user flow missing", err)
			return
		}
		if !sessionFrom(r.Context()).HasVerifiedEligibility(flow.EligibilityClaim) {
			http.Redirect(w, r, loginPath, http.StatusFound)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// requireRequest loads the request named in the URL. Only the request
// started in this session may be viewed.
func (h *Handler) requireRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			http.NotFound(w, r)
			return
		}
		current, ok := sessionFrom(ctx).RequestID()
		if !ok || current != id {
			h.logger.WarnContext(ctx, "request id does not match session",
				"request", id,
				"request_id", requestcontext.RequestID(ctx),
			)
			h.writeError(w, r, dErrors.New(dErrors.CodeForbidden, "request does not belong to this session"))
			return
		}
		req, err := h.service.Get(ctx, id)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(ctx, requestKey{}, req)))
	})
}

func (h *Handler) handleIndex(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := sess.Reset(r.Context(), userflow.VitalRecords); err != nil {
		h.serverError(w, r, "failed to reset session", err)
		return
	}
	h.render(w, r, http.StatusOK, "index", web.Page{PageTitle: defaultTitle})
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r.Context())
	if err := sess.Reset(r.Context(), userflow.VitalRecords); err != nil {
		h.serverError(w, r, "failed to reset session", err)
		return
	}
	http.Redirect(w, r, oauthLogin, http.StatusFound)
}

func (h *Handler) handleUnverified(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, http.StatusOK, "unverified", web.Page{
		PageTitle: defaultTitle,
		LoggedIn:  sessionFrom(r.Context()).LoggedIn(),
	})
}

func (h *Handler) handleStart(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess := sessionFrom(ctx)
	form := forms.Eligibility()
	page := web.Page{PageTitle: defaultTitle, LoggedIn: sess.LoggedIn(), Form: form}

	if r.Method != http.MethodPost {
		h.render(w, r, http.StatusOK, "start", page)
		return
	}
	if !h.bind(w, r, form) {
		h.render(w, r, http.StatusOK, "start", page)
		return
	}

	req, err := h.service.Start(ctx, form.Value("fire"))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	sess.SetRequestID(req.ID)
	if err := sess.Save(ctx); err != nil {
		h.serverError(w, r, "failed to save session", err)
		return
	}
	http.Redirect(w, r, steps.URL(req.ID, steps.RouteType), http.StatusFound)
}

func (h *Handler) handleType(w http.ResponseWriter, r *http.Request) {
	req := requestFrom(r.Context())
	form := forms.Type(req)
	page := h.page(r, req, form)
	page.PageTitle = defaultTitle
	page.PreviousURL = startPath

	h.handleForm(w, r, req, form, "type", page, func() string {
		return steps.URL(req.ID, steps.RouteStatement)
	})
}

func (h *Handler) handleStatement(w http.ResponseWriter, r *http.Request) {
	req := requestFrom(r.Context())
	if !req.Type.IsValid() {
		http.Redirect(w, r, steps.URL(req.ID, steps.RouteType), http.StatusFound)
		return
	}
	form := forms.Statement(req)
	page := h.page(r, req, form)
	page.PreviousURL = steps.URL(req.ID, steps.RouteType)

	h.handleForm(w, r, req, form, "statement", page, func() string {
		return steps.URL(req.ID, steps.FirstRoute(req.Type))
	})
}

var knownSteps = map[steps.Route]bool{
	steps.RouteName:    true,
	steps.RouteCounty:  true,
	steps.RouteDate:    true,
	steps.RouteDOB:     true,
	steps.RouteParents: true,
	steps.RouteParent:  true,
	steps.RouteOrder:   true,
	steps.RouteSubmit:  true,
}

func (h *Handler) handleStep(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := requestFrom(ctx)
	route := steps.Route(chi.URLParam(r, "step"))
	if !knownSteps[route] {
		http.NotFound(w, r)
		return
	}
	if !steps.Has(req.Type, route) {
		h.writeError(w, r, dErrors.New(dErrors.CodeForbidden, "step does not apply to this record type"))
		return
	}

	form := h.formFor(ctx, route, req)
	page := h.page(r, req, form)
	page.PreviousURL = steps.URL(req.ID, steps.PreviousRoute(req.Type, route))
	page.Step = &web.StepInfo{
		Name:   steps.Name(req.Type, route),
		Number: steps.StepNumber(req.Type, route),
		Total:  len(steps.StepsFor(req.Type)),
	}
	next := func() string { return steps.URL(req.ID, steps.NextRoute(req.Type, route)) }

	switch route {
	case steps.RouteSubmit:
		h.handleSubmit(w, r, req, form, page, next)
	case steps.RouteOrder:
		h.handleForm(w, r, req, form, "order", page, next)
	default:
		h.handleForm(w, r, req, form, "form", page, next)
	}
}

func (h *Handler) formFor(ctx context.Context, route steps.Route, req *models.Request) *forms.Form {
	now := requestcontext.Now(ctx)
	switch route {
	case steps.RouteName:
		return forms.Name(req)
	case steps.RouteCounty:
		return forms.County(req)
	case steps.RouteDate:
		return forms.EventDate(req, now)
	case steps.RouteDOB:
		return forms.BirthDate(req, now)
	case steps.RouteParents:
		return forms.Parents(req)
	case steps.RouteParent:
		return forms.Parent(req)
	case steps.RouteOrder:
		return forms.Order(req, sessionFrom(ctx).VerifiedEmail())
	default:
		return forms.Submit()
	}
}

// handleForm renders form on GET. On POST a valid form is applied, saved
// and followed by a redirect to next.
func (h *Handler) handleForm(w http.ResponseWriter, r *http.Request, req *models.Request, form *forms.Form, tmpl string, page web.Page, next func() string) {
	if r.Method != http.MethodPost {
		h.render(w, r, http.StatusOK, tmpl, page)
		return
	}
	if !h.bind(w, r, form) {
		h.render(w, r, http.StatusOK, tmpl, page)
		return
	}
	form.Apply(req)
	if err := h.service.Save(r.Context(), req); err != nil {
		if errors.Is(err, service.ErrAlreadySubmitted) {
			form.AddError(alreadySubmittedMessage)
			h.render(w, r, http.StatusOK, tmpl, page)
			return
		}
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, next(), http.StatusFound)
}

const alreadySubmittedMessage = "This request has already been submitted."

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request, req *models.Request, form *forms.Form, page web.Page, next func() string) {
	page.SubmitLabel = "Submit"
	if r.Method != http.MethodPost {
		h.render(w, r, http.StatusOK, "confirm", page)
		return
	}
	if err := h.service.Submit(r.Context(), req); err != nil {
		if errors.Is(err, service.ErrAlreadySubmitted) {
			form.AddError(alreadySubmittedMessage)
			h.render(w, r, http.StatusOK, "confirm", page)
			return
		}
		h.writeError(w, r, err)
		return
	}
	http.Redirect(w, r, next(), http.StatusFound)
}

// handleSubmitted enqueues a freshly submitted request for packaging and
// shows the confirmation.
func (h *Handler) handleSubmitted(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	req := requestFrom(ctx)
	if req.Status != models.StatusSubmitted {
		h.writeError(w, r, dErrors.New(dErrors.CodeInvalidState, "request has not been submitted"))
		return
	}
	enqueued, err := h.service.Enqueue(ctx, req.ID)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.render(w, r, http.StatusOK, "submitted", h.page(r, enqueued, nil))
}

// page fills the fields shared by every wizard page of req.
func (h *Handler) page(r *http.Request, req *models.Request, form *forms.Form) web.Page {
	p := web.Page{
		PageTitle: defaultTitle,
		LoggedIn:  sessionFrom(r.Context()).LoggedIn(),
		Form:      form,
		Request:   req,
	}
	if req.Type.IsValid() {
		p.PageTitle = "Replacement " + string(req.Type) + " record"
		p.TypeLabel = req.Type.Title()
		p.FirstSentence = firstSentence(req.Type)
		p.CountyDisplay = models.LabelOf(models.CountyChoices, req.CountyOfEvent)
		p.Details = details(req)
	}
	return p
}

func firstSentence(t models.RecordType) string {
	switch t {
	case models.TypeMarriage, models.TypeDeath:
		return "This is the information that will be used to search for the replacement " + string(t) + " record."
	default:
		return "The following information will be used to search for your replacement record."
	}
}

func details(req *models.Request) []web.Detail {
	join := func(parts ...string) string {
		return strings.Join(strings.Fields(strings.Join(parts, " ")), " ")
	}
	date := func(label string, d *time.Time) web.Detail {
		if d == nil {
			return web.Detail{Label: label}
		}
		return web.Detail{Label: label, Value: d.Format("01/02/2006")}
	}

	switch req.Type {
	case models.TypeMarriage:
		return []web.Detail{
			{Label: "Spouse 1", Value: join(req.Person1FirstName, req.Person1MiddleName, req.Person1LastName)},
			{Label: "Spouse 1 last name at birth", Value: req.Person1BirthLastName},
			{Label: "Spouse 2", Value: join(req.Person2FirstName, req.Person2MiddleName, req.Person2LastName)},
			{Label: "Spouse 2 last name at birth", Value: req.Person2BirthLastName},
			date("Date of marriage", req.DateOfEvent),
		}
	case models.TypeDeath:
		return []web.Detail{
			{Label: "Name", Value: join(req.FirstName, req.MiddleName, req.LastName)},
			date("Date of death", req.DateOfEvent),
			date("Date of birth", req.DateOfBirth),
			{Label: "Parent", Value: join(req.Person1FirstName, req.Person1MiddleName, req.Person1LastName)},
		}
	default:
		return []web.Detail{
			{Label: "Name", Value: join(req.FirstName, req.MiddleName, req.LastName)},
			date("Date of birth", req.DateOfEvent),
			{Label: "Parent 1", Value: join(req.Person1FirstName, req.Person1LastName)},
			{Label: "Parent 2", Value: join(req.Person2FirstName, req.Person2LastName)},
		}
	}
}

func (h *Handler) bind(w http.ResponseWriter, r *http.Request, form *forms.Form) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 64<<10)
	if err := r.ParseForm(); err != nil {
		form.AddError("The form could not be read. Please try again.")
		return false
	}
	return form.Bind(r.PostForm)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, tmpl string, page web.Page) {
	if err := h.renderer.Render(w, status, tmpl, page); err != nil {
		h.serverError(w, r, "failed to render page", err)
	}
}

// writeError maps a domain error to a plain status page.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := dErrors.HTTPStatus(dErrors.CodeOf(err))
	if status >= http.StatusInternalServerError {
		h.serverError(w, r, "vital records request failed", err)
		return
	}
	h.logger.WarnContext(r.Context(), "vital records request rejected",
		"status", status,
		"error", err,
		"request_id", requestcontext.RequestID(r.Context()),
	)
	http.Error(w, http.StatusText(status), status)
}

func (h *Handler) serverError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	h.logger.ErrorContext(r.Context(), msg,
		"error", err,
		"request_id", requestcontext.RequestID(r.Context()),
	)
	http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
}
