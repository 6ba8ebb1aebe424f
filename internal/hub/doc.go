// Package hub implements the device synchronisation hub: it accepts many
// concurrent WebSocket connections, attributes each to an optional device
// identity, routes inbound messages through the canonical record store,
// and rebroadcasts changes to the right subset of connections.
//
// # Broadcast scopes
//
// register and tempUpdate are device-originated facts the originator
// already knows, so they fan out to every connection except the sender.
// setAngle is viewer-originated intent, so the resulting angleSet echoes
// to every connection including the sender as confirmation that the
// command reached canonical state.
//
// # Failure model
//
// All errors are local to the operation that caused them: malformed
// messages are dropped without closing the connection, unknown device IDs
// and out-of-range angles are logged with no broadcast, and a write to a
// dead connection during fan-out is silently skipped. Nothing here is
// fatal to the process or to unrelated connections.
package hub
