// Package handler serves the identity gateway login and logout routes.
package handler

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"

	"ddrc/internal/oauth"
	"ddrc/internal/oauth/claims"
	"ddrc/internal/platform/middleware"
	"ddrc/internal/session"
	"ddrc/internal/userflow"
	"ddrc/internal/web"
	dErrors "ddrc/pkg/domain-errors"
	audit "ddrc/pkg/platform/audit"
	"ddrc/pkg/requestcontext"
)

const (
	basePath        = "/oauth"
	AuthorizePath   = basePath + "/authorize"
	PostLogoutPath  = basePath + "/post_logout"
	defaultRedirect = "/"

	loginRequestLimit = 30
	loginWindow       = time.Minute
)

type Clients interface {
	Client(ctx context.Context, cfg oauth.ClientConfig, scopes, scheme string) (*oauth.Client, error)
}

type Sessions interface {
	Load(w http.ResponseWriter, r *http.Request) (*session.Session, error)
}

type Flows interface {
	Get(systemName string) (*userflow.UserFlow, error)
}

type Handler struct {
	clients  Clients
	sessions Sessions
	flows    Flows
	renderer *web.Renderer
	baseURL  string
	auditor  audit.Emitter
	logger   *slog.Logger
}

type Option func(*Handler)

func WithLogger(logger *slog.Logger) Option {
	return func(h *Handler) { h.logger = logger }
}

func WithAuditor(e audit.Emitter) Option {
	return func(h *Handler) { h.auditor = e }
}

// New builds the handler. baseURL is the public origin used for the post
// logout redirect.
func New(clients Clients, sessions Sessions, flows Flows, renderer *web.Renderer, baseURL string, opts ...Option) *Handler {
	h := &Handler{
		clients:  clients,
		sessions: sessions,
		flows:    flows,
		renderer: renderer,
		baseURL:  strings.TrimRight(baseURL, "/"),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Register(r chi.Router) {
	r.Route(basePath, func(r chi.Router) {
		r.Use(middleware.NoCache)
		r.Use(httprate.Limit(
			loginRequestLimit,
			loginWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Retry-After", fmt.Sprintf("%d", int(loginWindow.Seconds())))
				http.Error(w, http.StatusText(http.StatusTooManyRequests), http.StatusTooManyRequests)
			}),
		))

		r.Get("/login", h.handleLogin)
		r.Get("/authorize", h.handleAuthorize)
		r.Get("/cancel", h.handleCancel)
		r.Get("/logout", h.handleLogout)
		r.Get("/post_logout", h.handlePostLogout)
	})
}

// begin loads the session, its user flow and the flow's client.
func (h *Handler) begin(w http.ResponseWriter, r *http.Request) (*session.Session, *userflow.UserFlow, *oauth.Client, error) {
	ctx := r.Context()
	sess, err := h.sessions.Load(w, r)
	if err != nil {
		return nil, nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session")
	}
	if sess.Data.UserFlow == "" {
		return sess, nil, nil, dErrors.New(dErrors.CodeBadRequest, "no user flow in session")
	}
	flow, err := h.flows.Get(sess.Data.UserFlow)
	if err != nil {
		return sess, nil, nil, dErrors.Wrap(err, dErrors.CodeBadRequest, "unknown user flow")
	}
	client, err := h.clients.Client(ctx, flow.OAuth, flow.Scopes, flow.SchemeOverride)
	if err != nil {
		return sess, flow, nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity gateway unavailable")
	}
	return sess, flow, client, nil
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, flow, client, err := h.begin(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	pkce, err := oauth.NewFlow()
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "failed to start login"))
		return
	}
	sess.Data.State = pkce.State
	sess.Data.CodeVerifier = pkce.CodeVerifier
	sess.Data.Nonce = pkce.Nonce
	if err := sess.Save(ctx); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session"))
		return
	}

	h.logger.DebugContext(ctx, "redirecting to identity gateway",
		"client", client.Name(),
		"request_id", requestcontext.RequestID(ctx),
	)
	h.emit(ctx, audit.ActionLoginStarted, flow, "")
	http.Redirect(w, r, client.AuthCodeURL(pkce), http.StatusFound)
}

// handleAuthorize is the authorization callback. Users whose verified
// claims include the flow's eligibility claim go to the success route,
// everyone else to the failure route.
func (h *Handler) handleAuthorize(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, flow, client, err := h.begin(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}

	pkce := oauth.Flow{State: sess.Data.State, CodeVerifier: sess.Data.CodeVerifier, Nonce: sess.Data.Nonce}
	sess.Data.State, sess.Data.CodeVerifier, sess.Data.Nonce = "", "", ""

	q := r.URL.Query()
	if gatewayErr := q.Get("error"); gatewayErr != "" {
		h.logger.WarnContext(ctx, "identity gateway returned an error",
			"error", gatewayErr,
			"description", q.Get("error_description"),
		)
		h.finishLogin(w, r, sess, flow.RedirectFailure)
		h.emit(ctx, audit.ActionLoginFailed, flow, gatewayErr)
		return
	}

	token, err := client.Exchange(ctx, pkce, q.Get("state"), q.Get("code"))
	if err != nil {
		h.emit(ctx, audit.ActionLoginFailed, flow, "token exchange failed")
		if saveErr := sess.Save(ctx); saveErr != nil {
			h.logger.WarnContext(ctx, "failed to clear login state", "error", saveErr)
		}
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeUnauthorized, "could not authorize access token"))
		return
	}
	sess.Data.IDToken = token.IDToken

	verified, errorClaims := claims.Process(ctx, h.logger, token.Userinfo, flow.AllClaims())
	if flow.EligibilityClaim != "" && slices.Contains(verified, flow.EligibilityClaim) {
		sess.Data.VerifiedClaims = strings.Join(verified, " ")
		h.finishLogin(w, r, sess, flow.RedirectSuccess)
		h.emit(ctx, audit.ActionLoginSucceeded, flow, sess.Data.VerifiedClaims)
		return
	}

	if len(errorClaims) > 0 {
		h.logger.ErrorContext(ctx, "identity gateway returned claim errors", "claims", errorClaims)
	}
	h.finishLogin(w, r, sess, flow.RedirectFailure)
	h.emit(ctx, audit.ActionLoginFailed, flow, "eligibility claim not verified")
}

func (h *Handler) finishLogin(w http.ResponseWriter, r *http.Request, sess *session.Session, target string) {
	if err := sess.Save(r.Context()); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session"))
		return
	}
	if target == "" {
		target = defaultRedirect
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleCancel is where the gateway sends users who back out of login.
func (h *Handler) handleCancel(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, err := h.sessions.Load(w, r)
	if err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load session"))
		return
	}
	target := defaultRedirect
	flow, err := h.flows.Get(sess.Data.UserFlow)
	if err == nil {
		if flow.RedirectFailure != "" {
			target = flow.RedirectFailure
		}
		h.emit(ctx, audit.ActionLoginCancelled, flow, "")
	}
	http.Redirect(w, r, target, http.StatusFound)
}

// handleLogout signs the user out of the portal and then out of the
// gateway, which returns them to post_logout.
func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	sess, flow, client, err := h.begin(w, r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	idToken := sess.Data.IDToken
	if err := sess.Logout(ctx); err != nil {
		h.writeError(w, r, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save session"))
		return
	}
	h.emit(ctx, audit.ActionLogout, flow, "")
	http.Redirect(w, r, client.EndSessionURL(idToken, h.baseURL+PostLogoutPath), http.StatusFound)
}

func (h *Handler) handlePostLogout(w http.ResponseWriter, r *http.Request) {
	if err := h.renderer.Render(w, http.StatusOK, "post_logout", web.Page{PageTitle: "Signed out"}); err != nil {
		h.logger.ErrorContext(r.Context(), "failed to render page", "page", "post_logout", "error", err)
	}
}

func (h *Handler) emit(ctx context.Context, action audit.Action, flow *userflow.UserFlow, detail string) {
	if h.auditor == nil {
		return
	}
	if err := h.auditor.Emit(ctx, audit.Event{Action: action, Subject: flow.SystemName, Detail: detail}); err != nil {
		h.logger.WarnContext(ctx, "failed to emit audit event", "action", action, "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	status := dErrors.HTTPStatus(dErrors.CodeOf(err))
	level := slog.LevelWarn
	if status >= http.StatusInternalServerError {
		level = slog.LevelError
	}
	h.logger.Log(ctx, level, "oauth request failed",
		"status", status,
		"error", err,
		"request_id", requestcontext.RequestID(ctx),
	)
	http.Error(w, http.StatusText(status), status)
}
