// Package userflow describes the login journeys offered by the portal: which
// identity gateway client to use, which claims prove eligibility, and where
// to send the user afterwards.
package userflow

import (
	"fmt"
	"strings"
	"sync"

	"ddrc/internal/oauth"
	"ddrc/internal/platform/config"
	"ddrc/pkg/platform/sentinel"
)

// VitalRecords is the system name of the replacement records flow.
const VitalRecords = "vital-records"

type UserFlow struct {
	Label            string
	SystemName       string
	OAuth            oauth.ClientConfig
	Scopes           string
	EligibilityClaim string
	ExtraClaims      string
	RedirectSuccess  string
	RedirectFailure  string
	SchemeOverride   string
}

// AllClaims lists the eligibility claim followed by the extra claims.
func (f *UserFlow) AllClaims() []string {
	return strings.Fields(f.EligibilityClaim + " " + f.ExtraClaims)
}

func (f *UserFlow) String() string {
	return f.Label
}

type Registry struct {
	mu    sync.RWMutex
	flows map[string]*UserFlow
}

func NewRegistry(flows ...*UserFlow) *Registry {
	r := &Registry{flows: make(map[string]*UserFlow)}
	for _, f := range flows {
		r.flows[f.SystemName] = f
	}
	return r
}

func (r *Registry) Get(systemName string) (*UserFlow, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.flows[systemName]
	if !ok {
		return nil, fmt.Errorf("user flow %q: %w", systemName, sentinel.ErrNotFound)
	}
	return f, nil
}

// FromConfig builds the vital-records flow. Eligible users continue to the
// request start page; everyone else lands on the unverified page.
func FromConfig(cfg config.OAuth) *UserFlow {
	return &UserFlow{
		Label:      "Vital records",
		SystemName: VitalRecords,
		OAuth: oauth.ClientConfig{
			ClientName:         cfg.ClientName,
			ClientIDSecretName: cfg.ClientIDSecretName,
			Authority:          cfg.Authority,
			Scheme:             cfg.Scheme,
		},
		Scopes:           cfg.Scopes,
		EligibilityClaim: cfg.EligibilityClaim,
		ExtraClaims:      cfg.ExtraClaims,
		RedirectSuccess:  "/vital-records/request",
		RedirectFailure:  "/vital-records/unverified",
		SchemeOverride:   cfg.SchemeOverride,
	}
}
