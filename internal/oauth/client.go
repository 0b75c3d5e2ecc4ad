// Package oauth registers identity gateway clients and drives the OIDC
// authorization code flow with PKCE.
package oauth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"sync"

	"github.com/coreos/go-oidc/v3/oidc"
	"golang.org/x/oauth2"
)

// ClientConfig names a client registered with an authority server. The
// client id itself lives in the secret named ClientIDSecretName.
type ClientConfig struct {
	ClientName         string
	ClientIDSecretName string
	Authority          string
	Scheme             string
}

// MetadataURL is the authority's OIDC discovery document.
func (c ClientConfig) MetadataURL() string {
	return strings.TrimRight(c.Authority, "/") + "/.well-known/openid-configuration"
}

// Scopes returns "openid" followed by the extra space-separated scopes.
func Scopes(extra string) []string {
	fields := strings.Fields(extra)
	if slices.Contains(fields, oidc.ScopeOpenID) {
		return fields
	}
	return append([]string{oidc.ScopeOpenID}, fields...)
}

type SecretResolver interface {
	Get(name string) (string, error)
}

// Registry holds one Client per client name, discovering the provider the
// first time a name is requested.
type Registry struct {
	secrets     SecretResolver
	redirectURL string
	httpClient  *http.Client

	mu      sync.Mutex
	clients map[string]*Client
}

// NewRegistry builds clients whose authorization callback is redirectURL.
func NewRegistry(secrets SecretResolver, redirectURL string, httpClient *http.Client) *Registry {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Registry{
		secrets:     secrets,
		redirectURL: redirectURL,
		httpClient:  httpClient,
		clients:     make(map[string]*Client),
	}
}

// Client returns the registered client for cfg.ClientName, registering it
// with scopes and scheme when needed. An empty scheme falls back to
// cfg.Scheme.
func (r *Registry) Client(ctx context.Context, cfg ClientConfig, scopes, scheme string) (*Client, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.clients[cfg.ClientName]; ok {
		return c, nil
	}

	clientID, err := r.secrets.Get(cfg.ClientIDSecretName)
	if err != nil {
		return nil, fmt.Errorf("oauth client %s: %w", cfg.ClientName, err)
	}

	ctx = oidc.ClientContext(ctx, r.httpClient)
	provider, err := oidc.NewProvider(ctx, strings.TrimRight(cfg.Authority, "/"))
	if err != nil {
		return nil, fmt.Errorf("oidc provider %s: %w", cfg.Authority, err)
	}
	var metadata struct {
		EndSessionEndpoint string `json:"end_session_endpoint"`
	}
	if err := provider.Claims(&metadata); err != nil {
		return nil, fmt.Errorf("oidc provider metadata: %w", err)
	}

	if scheme == "" {
		scheme = cfg.Scheme
	}
	c := &Client{
		name:       cfg.ClientName,
		scheme:     scheme,
		httpClient: r.httpClient,
		verifier:   provider.Verifier(&oidc.Config{ClientID: clientID}),
		endSession: metadata.EndSessionEndpoint,
		config: oauth2.Config{
			ClientID:    clientID,
			Endpoint:    provider.Endpoint(),
			RedirectURL: r.redirectURL,
			Scopes:      Scopes(scopes),
		},
	}
	r.clients[cfg.ClientName] = c
	return c, nil
}

type Client struct {
	name       string
	scheme     string
	config     oauth2.Config
	verifier   *oidc.IDTokenVerifier
	endSession string
	httpClient *http.Client
}

func (c *Client) Name() string { return c.name }

// Flow is the per-login secret material kept in the session between the
// authorize redirect and the callback.
type Flow struct {
	State        string
	CodeVerifier string
	Nonce        string
}

func NewFlow() (Flow, error) {
	state, err := randomBase64URL(32)
	if err != nil {
		return Flow{}, err
	}
	nonce, err := randomBase64URL(32)
	if err != nil {
		return Flow{}, err
	}
	return Flow{State: state, CodeVerifier: oauth2.GenerateVerifier(), Nonce: nonce}, nil
}

// AuthCodeURL is the authorize redirect for flow: PKCE S256, a forced login
// prompt, and the scheme parameter when one is configured.
func (c *Client) AuthCodeURL(flow Flow) string {
	opts := []oauth2.AuthCodeOption{
		oauth2.AccessTypeOnline,
		oauth2.S256ChallengeOption(flow.CodeVerifier),
		oidc.Nonce(flow.Nonce),
		oauth2.SetAuthURLParam("prompt", "login"),
	}
	if c.scheme != "" {
		opts = append(opts, oauth2.SetAuthURLParam("scheme", c.scheme))
	}
	return c.config.AuthCodeURL(flow.State, opts...)
}

var (
	ErrStateMismatch = errors.New("oauth state mismatch")
	ErrMissingToken  = errors.New("token response has no id_token")
	ErrNonceMismatch = errors.New("id_token nonce mismatch")
)

// Token is the verified result of the code exchange.
type Token struct {
	IDToken  string
	Userinfo map[string]any
}

// Exchange trades code for tokens and verifies the ID token against flow.
func (c *Client) Exchange(ctx context.Context, flow Flow, state, code string) (*Token, error) {
	if flow.State == "" || state != flow.State {
		return nil, ErrStateMismatch
	}
	ctx = oidc.ClientContext(ctx, c.httpClient)
	token, err := c.config.Exchange(ctx, code, oauth2.VerifierOption(flow.CodeVerifier))
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}
	rawIDToken, ok := token.Extra("id_token").(string)
	if !ok || rawIDToken == "" {
		return nil, ErrMissingToken
	}
	idToken, err := c.verifier.Verify(ctx, rawIDToken)
	if err != nil {
		return nil, fmt.Errorf("verify id_token: %w", err)
	}
	if idToken.Nonce != flow.Nonce {
		return nil, ErrNonceMismatch
	}
	userinfo := map[string]any{}
	if err := idToken.Claims(&userinfo); err != nil {
		return nil, fmt.Errorf("decode id_token claims: %w", err)
	}
	return &Token{IDToken: rawIDToken, Userinfo: userinfo}, nil
}

// EndSessionURL is where the browser goes to sign out of the provider.
// Without an end_session_endpoint the browser goes straight to
// postLogoutRedirect.
func (c *Client) EndSessionURL(idToken, postLogoutRedirect string) string {
	if c.endSession == "" {
		return postLogoutRedirect
	}
	u, err := url.Parse(c.endSession)
	if err != nil {
		return postLogoutRedirect
	}
	q := u.Query()
	q.Set("post_logout_redirect_uri", postLogoutRedirect)
	q.Set("client_id", c.config.ClientID)
	if idToken != "" {
		q.Set("id_token_hint", idToken)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func randomBase64URL(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate random value: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
