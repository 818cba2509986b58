package federation

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushHubBroadcastsToConnectedPeer(t *testing.T) {
	hub := NewPushHub("self-gw", nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	wsURL := "ws" + srv.URL[len("http"):]

	received := make(chan PushUpdate, 1)
	client := NewPushClient(nil)
	closer, err := client.Connect(context.Background(), wsURL, func(u PushUpdate) {
		received <- u
	})
	require.NoError(t, err)
	defer func() { _ = closer.Close() }()

	require.Eventually(t, func() bool { return hub.PeerCount() == 1 }, time.Second, 10*time.Millisecond)

	hub.Broadcast()

	select {
	case update := <-received:
		assert.Equal(t, "self-gw", update.GatewayID)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for push update")
	}
}

func TestPushHubDropsDisconnectedPeer(t *testing.T) {
	hub := NewPushHub("self-gw", nil)
	srv := httptest.NewServer(hub)
	defer srv.Close()
	wsURL := "ws" + srv.URL[len("http"):]

	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return hub.PeerCount() == 1 }, time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.PeerCount() == 0 }, time.Second, 10*time.Millisecond)
}

func TestManagerBroadcastCatalogChangedNoopWithoutPushHub(t *testing.T) {
	m := NewManager(context.Background(), "self-gw", "self", WithHealthInterval(time.Hour), WithResyncInterval(time.Hour))
	defer func() { _ = m.Close() }()

	assert.Nil(t, m.PushHub())
	assert.NotPanics(t, m.BroadcastCatalogChanged)
}
