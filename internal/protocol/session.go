// Package protocol implements the MCP session state machine and method
// dispatch table (spec §4.2, C2): [New] -> [Initializing] -> [Ready] ->
// [Closed], JSON-RPC 2.0 method routing, and virtual-server scoping of a
// session's visible tools/resources/prompts.
package protocol

import (
	"sync"
	"time"

	"github.com/mcpgateway/gateway/internal/auth"
)

// State is a session's position in the MCP lifecycle state machine.
type State string

const (
	StateNew          State = "new"
	StateInitializing State = "initializing"
	StateReady        State = "ready"
	StateClosed       State = "closed"
)

// transitions enumerates the state machine's legal edges; Session.Transition
// rejects anything else.
var transitions = map[State][]State{
	StateNew:          {StateInitializing, StateClosed},
	StateInitializing: {StateReady, StateClosed},
	StateReady:        {StateClosed},
	StateClosed:       {},
}

// Session is one client's MCP connection, independent of transport
// (stdio/SSE/Streamable-HTTP all produce the same Session shape;
// internal/transport owns framing, internal/protocol owns semantics).
type Session struct {
	ID        string
	CreatedAt time.Time

	// VirtualServer, if set, scopes this session's tools/resources/prompts
	// to one named bundle (spec §4.1 "present virtual servers"). Empty
	// means the session sees the full catalog the caller's identity can
	// read.
	VirtualServer string

	// Identity is the authenticated principal for this session, set once
	// the transport/auth layer validates a token during initialize.
	Identity auth.Identity

	// ClientInfo captures the initialize request's client name/version for
	// logging and capability negotiation.
	ClientName    string
	ClientVersion string

	// NegotiatedVersion is the MCP protocol version agreed during
	// initialize.
	NegotiatedVersion string

	mu            sync.Mutex
	state         State
	lastActivity  time.Time
}

// NewSession creates a session in StateNew.
func NewSession(id string) *Session {
	now := time.Now()
	return &Session{ID: id, CreatedAt: now, lastActivity: now, state: StateNew}
}

// State returns the session's current lifecycle state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Transition moves the session to next, returning an error if the edge
// isn't legal from the current state.
func (s *Session) Transition(next State) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, allowed := range transitions[s.state] {
		if allowed == next {
			s.state = next
			s.lastActivity = time.Now()
			return nil
		}
	}
	return &InvalidTransitionError{From: s.state, To: next}
}

// Touch records activity for idle-timeout tracking.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastActivity = time.Now()
}

// IdleSince reports how long the session has been inactive.
func (s *Session) IdleSince() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return time.Since(s.lastActivity)
}

// InvalidTransitionError reports an illegal session state transition.
type InvalidTransitionError struct {
	From State
	To   State
}

func (e *InvalidTransitionError) Error() string {
	return "protocol: cannot transition session from " + string(e.From) + " to " + string(e.To)
}

// Table tracks every live session on this gateway instance, independent of
// transport. internal/transport registers/unregisters sessions here as
// connections open and close.
type Table struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewTable builds an empty session Table.
func NewTable() *Table {
	return &Table{sessions: make(map[string]*Session)}
}

// Register adds sess to the table.
func (t *Table) Register(sess *Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[sess.ID] = sess
}

// Unregister removes a session, e.g. on transport disconnect.
func (t *Table) Unregister(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.sessions, id)
}

// Get looks up a session by ID.
func (t *Table) Get(id string) (*Session, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	sess, ok := t.sessions[id]
	return sess, ok
}

// Count returns the number of live sessions.
func (t *Table) Count() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.sessions)
}

// IdleBeyond returns the IDs of sessions whose IdleSince exceeds timeout,
// for the transport layer's idle-reaper to close.
func (t *Table) IdleBeyond(timeout time.Duration) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	var idle []string
	for id, sess := range t.sessions {
		if sess.IdleSince() > timeout {
			idle = append(idle, id)
		}
	}
	return idle
}
