package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	mcpclient "github.com/mark3labs/mcp-go/client"
	mcptransport "github.com/mark3labs/mcp-go/client/transport"
	"github.com/mark3labs/mcp-go/mcp"

	"github.com/mcpgateway/gateway/internal/logging"
)

// clientFactory builds a connected, initialized MCP client for a peer's
// URL/transport pair. Overridable in tests.
type clientFactory func(ctx context.Context, peerURL, transport string) (*mcpclient.Client, error)

// Manager owns every peer gateway connection: handshake/loop detection,
// catalog pulls, a background health loop, and periodic re-sync (spec
// §4.6). It satisfies dispatch.PeerInvoker via InvokeTool.
type Manager struct {
	selfGatewayID   string
	selfDisplayName string
	logger          *slog.Logger
	newClient       clientFactory

	healthInterval time.Duration
	resyncInterval time.Duration

	mu      sync.RWMutex
	peers   map[string]*Peer
	clients map[string]*mcpclient.Client
	closed  bool

	pushHub *PushHub

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger overrides the Manager's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(m *Manager) { m.logger = logger }
}

// WithHealthInterval overrides DefaultHealthInterval.
func WithHealthInterval(d time.Duration) Option {
	return func(m *Manager) { m.healthInterval = d }
}

// WithResyncInterval overrides DefaultResyncInterval.
func WithResyncInterval(d time.Duration) Option {
	return func(m *Manager) { m.resyncInterval = d }
}

// withClientFactory overrides how peer MCP clients are constructed; used
// by tests to avoid real network connections.
func withClientFactory(f clientFactory) Option {
	return func(m *Manager) { m.newClient = f }
}

// WithPushHub wires a PushHub so BroadcastCatalogChanged notifies connected
// peers over WebSocket (spec §9's optional federation push channel)
// instead of relying solely on resyncLoop's poll interval.
func WithPushHub(hub *PushHub) Option {
	return func(m *Manager) { m.pushHub = hub }
}

// PushHub returns the Manager's configured push hub, or nil if federation
// push is disabled.
func (m *Manager) PushHub() *PushHub {
	return m.pushHub
}

// BroadcastCatalogChanged notifies every peer connected to this gateway's
// push hub that the local catalog changed, so they can resync sooner than
// their next scheduled resyncLoop tick. A no-op if push is disabled.
func (m *Manager) BroadcastCatalogChanged() {
	if m.pushHub != nil {
		m.pushHub.Broadcast()
	}
}

// NewManager builds a Manager identifying itself as selfGatewayID in
// handshakes, and starts its background health/resync loops bound to ctx.
func NewManager(ctx context.Context, selfGatewayID, selfDisplayName string, opts ...Option) *Manager {
	runCtx, cancel := context.WithCancel(ctx)
	m := &Manager{
		selfGatewayID:   selfGatewayID,
		selfDisplayName: selfDisplayName,
		logger:          slog.Default(),
		newClient:       defaultClientFactory,
		healthInterval:  DefaultHealthInterval,
		resyncInterval:  DefaultResyncInterval,
		peers:           make(map[string]*Peer),
		clients:         make(map[string]*mcpclient.Client),
		cancel:          cancel,
	}
	for _, opt := range opts {
		opt(m)
	}

	m.wg.Add(2)
	go m.healthLoop(runCtx)
	go m.resyncLoop(runCtx)
	return m
}

func defaultClientFactory(ctx context.Context, peerURL, transport string) (*mcpclient.Client, error) {
	var c *mcpclient.Client
	var err error
	switch transport {
	case "SSE":
		c, err = mcpclient.NewSSEMCPClient(peerURL)
	default:
		c, err = mcpclient.NewStreamableHttpClient(peerURL, mcptransport.WithHTTPTimeout(30*time.Second))
	}
	if err != nil {
		return nil, fmt.Errorf("build client: %w", err)
	}
	if err := c.Start(context.Background()); err != nil {
		return nil, fmt.Errorf("start transport: %w", err)
	}
	if _, err := c.Initialize(ctx, mcp.InitializeRequest{
		Params: mcp.InitializeParams{
			ProtocolVersion: mcp.LATEST_PROTOCOL_VERSION,
			ClientInfo:      mcp.Implementation{Name: "mcp-gateway-federation", Version: "1"},
		},
	}); err != nil {
		_ = c.Close()
		return nil, fmt.Errorf("initialize: %w", err)
	}
	return c, nil
}

// Connect performs the handshake with a new peer, rejecting it if doing so
// would create a federation loop, then registers it as PeerStateConnected.
// A peer whose client cannot be built is recorded as PeerStateUnreachable
// and the error is returned alongside it.
func (m *Manager) Connect(ctx context.Context, gatewayID, displayName, url, transport string, incomingChain []string) (*Peer, error) {
	handshake := HandshakeInfo{GatewayID: m.selfGatewayID, PeerChain: incomingChain}
	if handshake.ContainsLoop(gatewayID) {
		return nil, &LoopDetectedError{GatewayID: gatewayID, PeerChain: incomingChain}
	}

	client, err := m.newClient(ctx, url, transport)
	if err != nil {
		peer := &Peer{GatewayID: gatewayID, DisplayName: displayName, URL: url, Transport: transport, State: PeerStateUnreachable, LastError: err.Error()}
		m.mu.Lock()
		m.peers[gatewayID] = peer
		m.mu.Unlock()
		return peer, fmt.Errorf("federation: connect to peer %s: %w", gatewayID, err)
	}

	peer := &Peer{
		GatewayID:     gatewayID,
		DisplayName:   displayName,
		URL:           url,
		Transport:     transport,
		State:         PeerStateConnected,
		LastHandshake: time.Now(),
		LastHealthy:   time.Now(),
	}

	m.mu.Lock()
	m.peers[gatewayID] = peer
	m.clients[gatewayID] = client
	m.mu.Unlock()

	m.logger.Info("federation peer connected", slog.String("gateway_id", gatewayID), slog.String("url", url))
	return peer, nil
}

// Disconnect closes and forgets a peer.
func (m *Manager) Disconnect(gatewayID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if client, ok := m.clients[gatewayID]; ok {
		_ = client.Close()
		delete(m.clients, gatewayID)
	}
	if peer, ok := m.peers[gatewayID]; ok {
		peer.State = PeerStateClosed
	}
	return nil
}

// Pull fetches a peer's full catalog (tools/resources/prompts), for the
// caller to merge into the local catalog under a qualified name.
func (m *Manager) Pull(ctx context.Context, gatewayID string) (CatalogSnapshot, error) {
	client, ok := m.clientFor(gatewayID)
	if !ok {
		return CatalogSnapshot{}, &UnknownPeerError{GatewayID: gatewayID}
	}

	snapshot := CatalogSnapshot{FetchedAt: time.Now()}

	toolsResult, err := client.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		return snapshot, fmt.Errorf("federation: list tools on peer %s: %w", gatewayID, err)
	}
	for _, t := range toolsResult.Tools {
		schema, _ := json.Marshal(t.InputSchema)
		snapshot.Tools = append(snapshot.Tools, RemoteTool{Name: t.Name, Description: t.Description, InputSchema: schema})
	}

	resResult, err := client.ListResources(ctx, mcp.ListResourcesRequest{})
	if err == nil {
		for _, r := range resResult.Resources {
			snapshot.Resources = append(snapshot.Resources, RemoteResource{URI: r.URI, Name: r.Name, Description: r.Description, MimeType: r.MIMEType})
		}
	}

	promptResult, err := client.ListPrompts(ctx, mcp.ListPromptsRequest{})
	if err == nil {
		for _, p := range promptResult.Prompts {
			snapshot.Prompts = append(snapshot.Prompts, RemotePrompt{Name: p.Name, Description: p.Description})
		}
	}

	m.mu.Lock()
	if peer, ok := m.peers[gatewayID]; ok {
		peer.LastSyncedAt = snapshot.FetchedAt
	}
	m.mu.Unlock()

	return snapshot, nil
}

// InvokeTool calls toolName on the named peer gateway. Satisfies
// internal/dispatch.PeerInvoker.
func (m *Manager) InvokeTool(ctx context.Context, gatewayID, toolName string, arguments map[string]any) (map[string]any, error) {
	client, ok := m.clientFor(gatewayID)
	if !ok {
		return nil, &UnknownPeerError{GatewayID: gatewayID}
	}

	result, err := client.CallTool(ctx, mcp.CallToolRequest{
		Params: mcp.CallToolParams{Name: toolName, Arguments: arguments},
	})
	if err != nil {
		return nil, fmt.Errorf("federation: call tool %s on peer %s: %w", toolName, gatewayID, err)
	}
	if result.IsError {
		return nil, fmt.Errorf("federation: peer %s reported an error invoking %s", gatewayID, toolName)
	}
	if m, ok := result.StructuredContent.(map[string]any); ok {
		return m, nil
	}
	return map[string]any{}, nil
}

func (m *Manager) clientFor(gatewayID string) (*mcpclient.Client, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.clients[gatewayID]
	return c, ok
}

// Peers returns a snapshot of every tracked peer.
func (m *Manager) Peers() []Peer {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Peer, 0, len(m.peers))
	for _, p := range m.peers {
		out = append(out, *p)
	}
	return out
}

// healthLoop pings each connected peer on a ticker, tracking consecutive
// failures and transitioning unhealthy peers to PeerStateUnreachable.
func (m *Manager) healthLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.checkAllPeers(ctx)
		}
	}
}

func (m *Manager) checkAllPeers(ctx context.Context) {
	m.mu.RLock()
	ids := make([]string, 0, len(m.peers))
	for id, p := range m.peers {
		if p.State == PeerStateConnected || p.State == PeerStateUnreachable {
			ids = append(ids, id)
		}
	}
	m.mu.RUnlock()

	for _, id := range ids {
		client, ok := m.clientFor(id)
		if !ok {
			continue
		}
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		_, err := client.ListTools(pingCtx, mcp.ListToolsRequest{})
		cancel()

		m.mu.Lock()
		peer := m.peers[id]
		if err != nil {
			peer.ConsecutiveFailures++
			peer.LastError = err.Error()
			if peer.ConsecutiveFailures >= MaxConsecutiveFailures {
				peer.State = PeerStateUnreachable
				m.logger.Warn("federation peer unreachable", slog.String("gateway_id", id), logging.Err(err))
			}
		} else {
			peer.ConsecutiveFailures = 0
			peer.LastHealthy = time.Now()
			peer.State = PeerStateConnected
		}
		m.mu.Unlock()
	}
}

// resyncLoop re-pulls each connected peer's catalog on a ticker. The fresh
// snapshot is discarded: Pull only updates the peer's LastSyncedAt, and
// entities the peer has since removed are not disabled in the local
// catalog.
func (m *Manager) resyncLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := time.NewTicker(m.resyncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.mu.RLock()
			ids := make([]string, 0, len(m.peers))
			for id, p := range m.peers {
				if p.State == PeerStateConnected {
					ids = append(ids, id)
				}
			}
			m.mu.RUnlock()
			for _, id := range ids {
				if _, err := m.Pull(ctx, id); err != nil {
					m.logger.Warn("federation periodic re-sync failed", slog.String("gateway_id", id), logging.Err(err))
				}
			}
		}
	}
}

// Close stops the background loops and disconnects every peer.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.cancel()
	for id, client := range m.clients {
		_ = client.Close()
		delete(m.clients, id)
	}
	m.mu.Unlock()

	m.wg.Wait()
	if m.pushHub != nil {
		_ = m.pushHub.Close()
	}
	return nil
}
