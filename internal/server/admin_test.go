package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpgateway/gateway/internal/auth"
	"github.com/mcpgateway/gateway/internal/gateway"
	"github.com/mcpgateway/gateway/internal/instrumentation"
)

func newTestIssuer(t *testing.T) *auth.Issuer {
	t.Helper()
	issuer, err := auth.NewHMACIssuer(auth.AlgHS256, []byte("test-secret-test-secret"), "mcp-gateway", "mcp-gateway-test", 0)
	require.NoError(t, err)
	return issuer
}

func newTestAdminServer(t *testing.T) *AdminServer {
	t.Helper()
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{Enabled: false})
	require.NoError(t, err)

	app := &gateway.AppState{
		Config: gateway.Config{
			ServerVersion: "test-version",
		},
		Catalog:         &gateway.CatalogService{},
		Issuer:          newTestIssuer(t),
		Instrumentation: provider,
	}
	return NewAdminServer(app, AdminOptions{Addr: ":0"})
}

func TestAdminServer_HealthEndpoint(t *testing.T) {
	s := newTestAdminServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	s.buildMux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAdminServer_MetricsEndpointAbsentWhenDisabled(t *testing.T) {
	s := newTestAdminServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	s.buildMux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestAdminServer_AdminRoutesRequireBearerToken(t *testing.T) {
	s := newTestAdminServer(t)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/tools", nil)
	s.buildMux().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

// staticRevocation is a minimal auth.RevocationChecker for tests that never
// revokes any token.
type staticRevocation map[string]bool

func (s staticRevocation) IsRevoked(jti string) bool { return s[jti] }

func TestRequirePlatformAdmin_MissingToken(t *testing.T) {
	issuer := newTestIssuer(t)
	handler := requirePlatformAdmin(issuer, staticRevocation{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/tools", nil)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequirePlatformAdmin_NonAdminToken(t *testing.T) {
	issuer := newTestIssuer(t)
	token, _, err := issuer.Issue(auth.IssueOptions{Subject: "member@example.com", IsPlatformAdmin: false})
	require.NoError(t, err)

	handler := requirePlatformAdmin(issuer, staticRevocation{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/tools", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestRequirePlatformAdmin_AdminToken(t *testing.T) {
	issuer := newTestIssuer(t)
	token, _, err := issuer.Issue(auth.IssueOptions{Subject: "admin@example.com", IsPlatformAdmin: true})
	require.NoError(t, err)

	var gotIdentity auth.Identity
	handler := requirePlatformAdmin(issuer, staticRevocation{})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIdentity, _ = identityFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/tools", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "admin@example.com", gotIdentity.Email())
	assert.True(t, gotIdentity.IsPlatformAdmin())
}

func TestRequirePlatformAdmin_RevokedToken(t *testing.T) {
	issuer := newTestIssuer(t)
	token, jti, err := issuer.Issue(auth.IssueOptions{Subject: "admin@example.com", IsPlatformAdmin: true})
	require.NoError(t, err)

	handler := requirePlatformAdmin(issuer, staticRevocation{jti: true})(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/admin/tools", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	assert.Equal(t, "", bearerToken(req))

	req.Header.Set("Authorization", "Bearer abc123")
	assert.Equal(t, "abc123", bearerToken(req))

	req.Header.Set("Authorization", "Basic xyz")
	assert.Equal(t, "", bearerToken(req))
}
