package dispatch

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpgateway/gateway/internal/catalog"
)

func TestA2AClientSignsAndDecodesResponse(t *testing.T) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	var gotSignature, gotDigest string
	var gotBody a2aTaskRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSignature = r.Header.Get("Signature")
		gotDigest = r.Header.Get("Digest")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "accepted"})
	}))
	defer srv.Close()

	client, err := NewA2AClient("gateway/test", privateKey, 5*time.Second)
	require.NoError(t, err)

	agent := catalog.A2AAgent{
		Entity:          catalog.Entity{ID: "agent-1", Name: "planner"},
		Endpoint:        srv.URL,
		ProtocolVersion: "0.1",
	}
	result, err := client.InvokeAgent(context.Background(), agent, map[string]any{"goal": "ship"})
	require.NoError(t, err)

	assert.Equal(t, "accepted", result["status"])
	assert.Equal(t, "0.1", gotBody.ProtocolVersion)
	assert.Equal(t, "ship", gotBody.Arguments["goal"])
	assert.NotEmpty(t, gotSignature)
	assert.NotEmpty(t, gotDigest)
}

func TestA2AClientSurfacesUpstreamErrorStatus(t *testing.T) {
	_, privateKey, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream unavailable"))
	}))
	defer srv.Close()

	client, err := NewA2AClient("gateway/test", privateKey, 5*time.Second)
	require.NoError(t, err)

	agent := catalog.A2AAgent{Entity: catalog.Entity{ID: "agent-1", Name: "planner"}, Endpoint: srv.URL}
	_, err = client.InvokeAgent(context.Background(), agent, nil)
	assert.Error(t, err)
}
