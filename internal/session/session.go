// Package session keeps per-browser state server side. The browser only
// holds a signed cookie naming the session.
package session

import (
	"context"
	"time"

	"github.com/google/uuid"

	"ddrc/internal/oauth/claims"
)

// Data is everything stored for one session.
type Data struct {
	UserFlow       string `json:"userflow,omitempty"`
	IDToken        string `json:"oauth_token,omitempty"`
	VerifiedClaims string `json:"oauth_claims_verified,omitempty"`
	State          string `json:"oauth_state,omitempty"`
	CodeVerifier   string `json:"oauth_code_verifier,omitempty"`
	Nonce          string `json:"oauth_nonce,omitempty"`
	RequestID      string `json:"vital_records_request_id,omitempty"`
}

// Store persists session data by id.
type Store interface {
	// Load returns sentinel.ErrNotFound for unknown or expired ids.
	Load(ctx context.Context, id string) (*Data, error)
	Save(ctx context.Context, id string, data *Data, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

var (
	_ Store = (*InMemory)(nil)
	_ Store = (*Redis)(nil)
)

// Session is a loaded session bound to its store.
type Session struct {
	ID   string
	Data Data

	store Store
	ttl   time.Duration
}

func (s *Session) Save(ctx context.Context) error {
	return s.store.Save(ctx, s.ID, &s.Data, s.ttl)
}

// Reset clears every key and selects flow as the active user flow.
func (s *Session) Reset(ctx context.Context, flow string) error {
	s.Data = Data{UserFlow: flow}
	return s.Save(ctx)
}

// Logout drops the token and verified claims, keeping the user flow.
func (s *Session) Logout(ctx context.Context) error {
	s.Data.IDToken = ""
	s.Data.VerifiedClaims = ""
	return s.Save(ctx)
}

func (s *Session) LoggedIn() bool {
	return s.Data.IDToken != ""
}

func (s *Session) Claims() claims.Result {
	return claims.Parse(s.Data.VerifiedClaims)
}

// HasVerifiedEligibility is true when the flow's eligibility claim is among
// the verified claims.
func (s *Session) HasVerifiedEligibility(eligibilityClaim string) bool {
	if eligibilityClaim == "" || s.Data.VerifiedClaims == "" {
		return false
	}
	return s.Claims().Has(eligibilityClaim)
}

// VerifiedEmail returns the email claim only when the gateway verified it.
func (s *Session) VerifiedEmail() string {
	c := s.Claims()
	if c.Has("email_verified") {
		return c.Get("email")
	}
	return ""
}

func (s *Session) RequestID() (uuid.UUID, bool) {
	if s.Data.RequestID == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(s.Data.RequestID)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func (s *Session) SetRequestID(id uuid.UUID) {
	if id == uuid.Nil {
		s.Data.RequestID = ""
		return
	}
	s.Data.RequestID = id.String()
}
