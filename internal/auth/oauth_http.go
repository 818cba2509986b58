package auth

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/mcpgateway/gateway/internal/logging"
)

// LoginSession tracks an in-flight SSO authorization-code exchange between
// the redirect to the provider and its callback. It is short-lived and
// keyed by the random state value sent to the provider.
type LoginSession struct {
	Provider  string
	CreatedAt time.Time
}

// stateStore holds pending login sessions in memory. A single gateway
// instance's login flow fits comfortably in memory; a multi-instance
// deployment behind a shared load balancer should route callbacks to the
// same instance that issued the redirect (sticky session) or move this to
// internal/cache.
type stateStore struct {
	mu       sync.Mutex
	sessions map[string]LoginSession
	ttl      time.Duration
}

func newStateStore(ttl time.Duration) *stateStore {
	return &stateStore{sessions: make(map[string]LoginSession), ttl: ttl}
}

func (s *stateStore) put(state string, sess LoginSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[state] = sess
}

func (s *stateStore) take(state string) (LoginSession, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[state]
	if ok {
		delete(s.sessions, state)
	}
	if ok && time.Since(sess.CreatedAt) > s.ttl {
		return LoginSession{}, false
	}
	return sess, ok
}

// HTTPHandler wires one or more IdentityProvider instances, an Issuer, and
// a Store into the gateway's SSO login/callback HTTP endpoints plus the
// OAuth-style well-known discovery documents described in spec §4.7.
type HTTPHandler struct {
	Providers map[string]IdentityProvider
	Issuer    *Issuer
	Store     Store
	BaseURL   string

	states *stateStore
}

// NewHTTPHandler builds an HTTPHandler. providers is keyed by the name each
// provider's login link should use (the "provider" query parameter).
func NewHTTPHandler(providers map[string]IdentityProvider, issuer *Issuer, store Store, baseURL string) *HTTPHandler {
	return &HTTPHandler{
		Providers: providers,
		Issuer:    issuer,
		Store:     store,
		BaseURL:   baseURL,
		states:    newStateStore(10 * time.Minute),
	}
}

// RegisterRoutes mounts the SSO and discovery endpoints on mux.
func (h *HTTPHandler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/.well-known/mcp-gateway-authorization-server", h.serveDiscoveryDocument)
	mux.HandleFunc("/auth/login", h.serveLogin)
	mux.HandleFunc("/auth/callback", h.serveCallback)
}

// serveLogin redirects the browser to the requested provider's
// authorization endpoint, matching the teacher's oauth_http.go flow of
// building a provider-specific redirect with a CSRF state token.
func (h *HTTPHandler) serveLogin(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("provider")
	provider, ok := h.Providers[name]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown identity provider %q", name), http.StatusBadRequest)
		return
	}

	state, err := randomState()
	if err != nil {
		http.Error(w, "failed to generate state", http.StatusInternalServerError)
		return
	}
	h.states.put(state, LoginSession{Provider: name, CreatedAt: time.Now()})

	http.Redirect(w, r, provider.AuthorizeURL(state), http.StatusFound)
}

// serveCallback completes the authorization-code exchange, provisions or
// updates the local User, and issues a gateway-native JWT.
func (h *HTTPHandler) serveCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	code := r.URL.Query().Get("code")
	if state == "" || code == "" {
		http.Error(w, "missing state or code", http.StatusBadRequest)
		return
	}

	sess, ok := h.states.take(state)
	if !ok {
		http.Error(w, "unknown or expired state", http.StatusBadRequest)
		return
	}
	provider, ok := h.Providers[sess.Provider]
	if !ok {
		http.Error(w, "provider no longer configured", http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	profile, err := provider.ExchangeCode(ctx, code)
	if err != nil {
		slog.Error("sso code exchange failed", logging.Err(err))
		http.Error(w, "authentication failed", http.StatusUnauthorized)
		return
	}

	user, err := h.Store.GetUser(ctx, profile.Email)
	if err != nil {
		user = User{
			Email:           profile.Email,
			FullName:        profile.FullName,
			IsEmailVerified: profile.EmailVerified,
			CreatedAt:       time.Now(),
		}
		if err := h.Store.CreateUser(ctx, user); err != nil {
			slog.Error("failed to provision SSO user", logging.UserHash(profile.Email), logging.Err(err))
			http.Error(w, "failed to provision user", http.StatusInternalServerError)
			return
		}
	}

	teamIDs, err := h.Store.TeamIDsForUser(ctx, user.Email)
	if err != nil {
		http.Error(w, "failed to resolve team memberships", http.StatusInternalServerError)
		return
	}

	token, _, err := h.Issuer.Issue(IssueOptions{
		Subject:         user.Email,
		IsPlatformAdmin: user.IsPlatformAdmin,
	})
	if err != nil {
		http.Error(w, "failed to issue token", http.StatusInternalServerError)
		return
	}

	_ = h.Store.RecordAuthEvent(ctx, AuthEvent{UserEmail: user.Email, Event: EventLogin, Timestamp: time.Now()})

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"access_token": token,
		"token_type":   "Bearer",
		"team_ids":     teamIDs,
	})
}

// serveDiscoveryDocument serves a minimal authorization-server metadata
// document (RFC 8414 shape), grounded on the teacher's
// "/.well-known/oauth-authorization-server" handler.
func (h *HTTPHandler) serveDiscoveryDocument(w http.ResponseWriter, _ *http.Request) {
	providers := make([]string, 0, len(h.Providers))
	for name := range h.Providers {
		providers = append(providers, name)
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"issuer":                 h.BaseURL,
		"authorization_endpoint": h.BaseURL + "/auth/login",
		"token_endpoint":         h.BaseURL + "/auth/callback",
		"identity_providers":     providers,
	})
}

// ConnectionStringHandler serves the "how do I connect" document for a
// catalog server, described in SPEC_FULL.md as the teacher's well-known
// document pattern repurposed for MCP connection discovery.
func ConnectionStringHandler(baseURL, transport, authHint string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"url":       baseURL,
			"transport": transport,
			"auth_hint": authHint,
		})
	}
}

func randomState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
