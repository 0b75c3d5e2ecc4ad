package session

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"ddrc/pkg/platform/sentinel"
)

// Manager binds sessions to requests through an HS256-signed cookie that
// carries only the session id.
type Manager struct {
	store      Store
	key        []byte
	cookieName string
	ttl        time.Duration
	secure     bool
	logger     *slog.Logger
}

type Option func(*Manager)

func WithCookieName(name string) Option {
	return func(m *Manager) { m.cookieName = name }
}

func WithTTL(ttl time.Duration) Option {
	return func(m *Manager) { m.ttl = ttl }
}

func WithSecureCookie(secure bool) Option {
	return func(m *Manager) { m.secure = secure }
}

func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

func NewManager(store Store, signingKey string, opts ...Option) *Manager {
	m := &Manager{
		store:      store,
		key:        []byte(signingKey),
		cookieName: "ddrc_session",
		ttl:        2 * time.Hour,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Load returns the session named by the request cookie. A missing, tampered
// or expired cookie starts a fresh session and sets its cookie on w.
func (m *Manager) Load(w http.ResponseWriter, r *http.Request) (*Session, error) {
	ctx := r.Context()
	if c, err := r.Cookie(m.cookieName); err == nil {
		id, err := m.verify(c.Value)
		if err == nil {
			data, err := m.store.Load(ctx, id)
			if err == nil {
				return &Session{ID: id, Data: *data, store: m.store, ttl: m.ttl}, nil
			}
			if !errors.Is(err, sentinel.ErrNotFound) {
				return nil, err
			}
		} else {
			m.logger.DebugContext(ctx, "discarding invalid session cookie", "error", err)
		}
	}

	s := &Session{ID: uuid.NewString(), store: m.store, ttl: m.ttl}
	token, err := m.sign(s.ID)
	if err != nil {
		return nil, err
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return s, nil
}

func (m *Manager) sign(id string) (string, error) {
	now := time.Now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		ID:        id,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
	})
	signed, err := token.SignedString(m.key)
	if err != nil {
		return "", fmt.Errorf("sign session cookie: %w", err)
	}
	return signed, nil
}

func (m *Manager) verify(value string) (string, error) {
	claims := &jwt.RegisteredClaims{}
	_, err := jwt.ParseWithClaims(value, claims, func(*jwt.Token) (any, error) {
		return m.key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return "", err
	}
	if claims.ID == "" {
		return "", errors.New("session cookie has no id")
	}
	return claims.ID, nil
}
