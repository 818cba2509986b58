// Package federation manages this gateway's connections to peer MCP
// gateways (spec §4.6, C4): handshake and loop detection, pulling a peer's
// catalog (callers qualify the names, see Qualify), a background health
// loop, and a periodic re-pull of each connected peer's catalog. The
// re-pull only records the peer's LastSyncedAt; it does not disable local
// entities the peer has since removed.
//
// The package is independent of how a peer's tools are actually invoked at
// request time beyond a thin PeerInvoker surface (see Manager.InvokeTool);
// internal/dispatch is the only caller that reaches into a live session.
package federation
