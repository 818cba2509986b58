package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpgateway/gateway/internal/gateway"
	"github.com/mcpgateway/gateway/internal/instrumentation"
)

func newTestAppState(t *testing.T) *gateway.AppState {
	t.Helper()
	provider, err := instrumentation.NewProvider(context.Background(), instrumentation.Config{Enabled: false})
	require.NoError(t, err)

	return &gateway.AppState{
		Config: gateway.Config{
			ServerVersion: "test-version",
			Instrumentation: instrumentation.Config{
				Enabled:         false,
				MetricsExporter: "prometheus",
				TracingExporter: "none",
			},
		},
		Instrumentation: provider,
	}
}

func TestHealthChecker_LivenessHandler(t *testing.T) {
	h := NewHealthChecker(newTestAppState(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.LivenessHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusOK, resp.Status)
	assert.Equal(t, "test-version", resp.Version)
}

func TestHealthChecker_LivenessHandler_NilApp(t *testing.T) {
	h := NewHealthChecker(nil)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	h.LivenessHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthChecker_ReadinessHandler_Ready(t *testing.T) {
	h := NewHealthChecker(newTestAppState(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	h.ReadinessHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusOK, resp.Status)
	assert.Equal(t, healthStatusOK, resp.Checks["ready"])
}

func TestHealthChecker_ReadinessHandler_NotReady(t *testing.T) {
	h := NewHealthChecker(newTestAppState(t))
	h.SetReady(false)

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	h.ReadinessHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusNotReady, resp.Status)
	assert.Equal(t, healthStatusNotReady, resp.Checks["ready"])
}

func TestHealthChecker_ReadinessHandler_ShuttingDown(t *testing.T) {
	h := NewHealthChecker(newTestAppState(t))
	h.SetShuttingDown()

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
	h.ReadinessHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var resp ReadinessResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusShuttingDown, resp.Checks["shutdown"])
}

func TestHealthChecker_DetailedHealthHandler(t *testing.T) {
	h := NewHealthChecker(newTestAppState(t))

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/healthz/detailed", nil)
	h.DetailedHealthHandler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)

	var resp DetailedHealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, healthStatusOK, resp.Status)
	assert.Equal(t, "test-version", resp.Version)
	assert.NotEmpty(t, resp.Uptime)
	require.NotNil(t, resp.Instrumentation)
	assert.False(t, resp.Instrumentation.Enabled)
	assert.Nil(t, resp.Federation)
}

func TestHealthChecker_RegisterHealthEndpoints(t *testing.T) {
	h := NewHealthChecker(newTestAppState(t))
	mux := http.NewServeMux()
	h.RegisterHealthEndpoints(mux)

	for _, path := range []string{"/healthz", "/readyz", "/healthz/detailed"} {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, path, nil)
		mux.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code, "path %s", path)
	}
}

func TestHealthChecker_IsReady(t *testing.T) {
	h := NewHealthChecker(newTestAppState(t))
	assert.True(t, h.IsReady())
	h.SetReady(false)
	assert.False(t, h.IsReady())
}
