package federation

import "time"

// PeerState is a federated peer gateway's connection lifecycle.
type PeerState string

const (
	PeerStatePending     PeerState = "pending"
	PeerStateConnected   PeerState = "connected"
	PeerStateUnreachable PeerState = "unreachable"
	PeerStateLoopRejected PeerState = "loop_rejected"
	PeerStateClosed       PeerState = "closed"
)

// HandshakeInfo is exchanged when a gateway first connects to a peer, used
// both to negotiate capabilities and to detect federation loops (a chain
// of gateways that would route a call back to its origin).
type HandshakeInfo struct {
	GatewayID   string   `json:"gateway_id"`
	DisplayName string   `json:"display_name"`
	Version     string   `json:"version"`
	// PeerChain lists the GatewayIDs already traversed to reach this
	// handshake, oldest first. A new peer appends its own ID; if its own
	// ID already appears earlier in the chain, the connection is rejected
	// as a loop (spec §4.6 loop detection).
	PeerChain []string `json:"peer_chain"`
}

// ContainsLoop reports whether candidateID already appears in the chain,
// meaning accepting this peer would create a federation cycle.
func (h HandshakeInfo) ContainsLoop(candidateID string) bool {
	for _, id := range h.PeerChain {
		if id == candidateID {
			return true
		}
	}
	return false
}

// Peer is one federated connection this gateway maintains.
type Peer struct {
	GatewayID   string
	DisplayName string
	URL         string
	Transport   string // "SSE" or "STREAMABLEHTTP", mirrors catalog.GatewayTransport

	State          PeerState
	LastHandshake  time.Time
	LastHealthy    time.Time
	LastSyncedAt   time.Time
	ConsecutiveFailures int
	LastError      string
}

// CatalogSnapshot is what a peer's catalog pull returns: the peer's tools,
// resources, and prompts under the peer's own, unqualified names (see
// Qualify).
type CatalogSnapshot struct {
	Tools     []RemoteTool
	Resources []RemoteResource
	Prompts   []RemotePrompt
	FetchedAt time.Time
}

// RemoteTool is a tool as advertised by a peer, before qualification.
type RemoteTool struct {
	Name         string
	Description  string
	InputSchema  []byte
	OutputSchema []byte
}

// RemoteResource is a resource as advertised by a peer.
type RemoteResource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// RemotePrompt is a prompt as advertised by a peer.
type RemotePrompt struct {
	Name        string
	Description string
	Template    string
}

// Qualify builds the dotted qualified name used for a peer tool/resource/
// prompt once merged into the local catalog (spec §4.6), e.g.
// "payments-gw.charge_card".
func Qualify(peerDisplayName, localName string) string {
	return peerDisplayName + "." + localName
}

// DefaultHealthInterval is how often the health loop pings each connected
// peer.
const DefaultHealthInterval = 30 * time.Second

// DefaultResyncInterval is how often the Manager re-pulls each connected
// peer's full catalog.
const DefaultResyncInterval = 5 * time.Minute

// MaxConsecutiveFailures is the number of failed health checks after which
// a peer transitions to PeerStateUnreachable.
const MaxConsecutiveFailures = 3
