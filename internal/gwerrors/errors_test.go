package gwerrors

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestErrorCodesAndStatuses(t *testing.T) {
	tests := []struct {
		name       string
		err        *Error
		wantJSONRPC int
		wantHTTP   int
	}{
		{"not found", NotFound("tool %q", "kubectl.get"), -32004, http.StatusNotFound},
		{"invalid request", InvalidRequest("missing field %q", "name"), -32602, http.StatusBadRequest},
		{"forbidden", Forbidden("tenant mismatch"), -32002, http.StatusForbidden},
		{"auth required", AuthRequired("missing bearer token"), -32001, http.StatusUnauthorized},
		{"policy denied", PolicyDenied("plugin rejected call"), -32003, http.StatusForbidden},
		{"rate limited", RateLimited("bucket exhausted"), -32009, http.StatusTooManyRequests},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantJSONRPC, tt.err.JSONRPCCode())
			assert.Equal(t, tt.wantHTTP, tt.err.HTTPStatus())
		})
	}
}

func TestErrorWrappingAndIs(t *testing.T) {
	cause := errors.New("connection reset")
	err := Upstream(cause, "dispatch to peer %q failed", "peer-1")

	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))
	assert.True(t, Is(err, CodeUpstreamError))
	assert.False(t, Is(err, CodeNotFound))
	assert.Equal(t, CodeUpstreamError, CodeOf(err))
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("plain error")))
}

func TestWithDetails(t *testing.T) {
	err := NotFound("tool %q", "x").WithDetails(map[string]any{"tool": "x"})
	assert.Equal(t, "x", err.Details["tool"])
}
