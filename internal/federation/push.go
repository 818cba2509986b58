package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// PushUpdate is broadcast to connected peers when this gateway's catalog
// changes, so they can resync immediately instead of waiting out their
// resyncInterval (spec §9: federation push across resources/subscribe is
// left optional; this is the optional channel).
type PushUpdate struct {
	GatewayID string    `json:"gateway_id"`
	ChangedAt time.Time `json:"changed_at"`
}

var pushUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Federation peers are registered gateways, not browser clients; origin
	// checking is handled by whatever auth middleware fronts this route.
	CheckOrigin: func(_ *http.Request) bool { return true },
}

// PushHub accepts inbound WebSocket connections from peer gateways and
// broadcasts PushUpdates to all of them. One Manager owns one PushHub.
type PushHub struct {
	selfGatewayID string
	logger        *slog.Logger

	mu      sync.Mutex
	clients map[*websocket.Conn]struct{}
}

// NewPushHub builds an empty PushHub identifying itself as selfGatewayID.
func NewPushHub(selfGatewayID string, logger *slog.Logger) *PushHub {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushHub{
		selfGatewayID: selfGatewayID,
		logger:        logger,
		clients:       make(map[*websocket.Conn]struct{}),
	}
}

// ServeHTTP upgrades the request to a WebSocket and registers the
// connection until it closes or the hub shuts down. Mounted at
// "/federation/push" by the admin server (spec §6.2).
func (h *PushHub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := pushUpgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("federation push upgrade failed", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.mu.Unlock()

	h.logger.Info("federation push peer connected", slog.String("remote", r.RemoteAddr))

	// Drain and discard inbound frames; this channel is one-directional
	// (hub -> peer), but we still need to read to notice the peer closing
	// and to answer control-frame pings.
	go func() {
		defer h.disconnect(conn)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

func (h *PushHub) disconnect(conn *websocket.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.mu.Unlock()
	_ = conn.Close()
}

// Broadcast sends a PushUpdate naming this gateway to every connected peer.
// A send failure drops that peer's connection; the peer still catches up
// on its own next scheduled resync.
func (h *PushHub) Broadcast() {
	update := PushUpdate{GatewayID: h.selfGatewayID, ChangedAt: time.Now()}
	payload, err := json.Marshal(update)
	if err != nil {
		h.logger.Error("federation push encode failed", slog.String("error", err.Error()))
		return
	}

	h.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(h.clients))
	for conn := range h.clients {
		conns = append(conns, conn)
	}
	h.mu.Unlock()

	for _, conn := range conns {
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.disconnect(conn)
		}
	}
}

// PeerCount reports how many peers currently hold an open push connection.
func (h *PushHub) PeerCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close closes every connection the hub holds.
func (h *PushHub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.Close()
		delete(h.clients, conn)
	}
	return nil
}

// PushClient dials a peer's PushHub endpoint and invokes onUpdate for every
// PushUpdate it receives, until ctx is cancelled or the connection drops.
type PushClient struct {
	logger *slog.Logger
}

// NewPushClient builds a PushClient.
func NewPushClient(logger *slog.Logger) *PushClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &PushClient{logger: logger}
}

// Connect dials wsURL (e.g. "wss://peer.example/federation/push") and runs
// a read loop on a background goroutine, calling onUpdate for each message.
// The returned closer stops the loop and closes the connection.
func (c *PushClient) Connect(ctx context.Context, wsURL string, onUpdate func(PushUpdate)) (io.Closer, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("dial federation push endpoint %s: %w", wsURL, err)
	}

	go func() {
		defer func() { _ = conn.Close() }()
		for {
			_, payload, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var update PushUpdate
			if err := json.Unmarshal(payload, &update); err != nil {
				c.logger.Warn("federation push decode failed", slog.String("error", err.Error()))
				continue
			}
			onUpdate(update)
		}
	}()

	return conn, nil
}
