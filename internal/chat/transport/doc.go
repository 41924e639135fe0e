// Package transport owns the single live WebSocket connection for a chat
// session.
//
// It keeps dialing, reconnection, and frame normalization isolated from
// session state so the components above it only ever see typed events in
// arrival order.
package transport
