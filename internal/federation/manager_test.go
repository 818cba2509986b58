package federation

import (
	"context"
	"errors"
	"testing"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var assertError = errors.New("connection refused")

func newTestManager(t *testing.T, factory clientFactory) *Manager {
	t.Helper()
	m := NewManager(context.Background(), "self-gw", "self", withClientFactory(factory), WithHealthInterval(time.Hour), WithResyncInterval(time.Hour))
	t.Cleanup(func() { _ = m.Close() })
	return m
}

func TestConnectRejectsLoop(t *testing.T) {
	called := false
	m := newTestManager(t, func(_ context.Context, _, _ string) (*mcpclient.Client, error) {
		called = true
		return nil, nil
	})

	_, err := m.Connect(context.Background(), "self-gw", "loopy", "http://peer", "STREAMABLEHTTP", []string{"gw-other", "self-gw"})
	require.Error(t, err)
	var loopErr *LoopDetectedError
	assert.ErrorAs(t, err, &loopErr)
	assert.False(t, called, "client factory must not be invoked once a loop is detected")
}

func TestConnectRecordsUnreachablePeerOnFactoryError(t *testing.T) {
	m := newTestManager(t, func(_ context.Context, _, _ string) (*mcpclient.Client, error) {
		return nil, assertError
	})

	peer, err := m.Connect(context.Background(), "peer-gw", "peer", "http://peer", "STREAMABLEHTTP", nil)
	require.Error(t, err)
	require.NotNil(t, peer)
	assert.Equal(t, PeerStateUnreachable, peer.State)
}

func TestUnknownPeerRejectsInvokeAndPull(t *testing.T) {
	m := newTestManager(t, nil)

	_, err := m.InvokeTool(context.Background(), "ghost", "tool", nil)
	require.Error(t, err)
	var unknown *UnknownPeerError
	assert.ErrorAs(t, err, &unknown)

	_, err = m.Pull(context.Background(), "ghost")
	require.Error(t, err)
	assert.ErrorAs(t, err, &unknown)
}
