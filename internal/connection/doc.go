// Package connection maintains the single persistent WebSocket to the
// freight backend: transport lifecycle, linear-backoff reconnection,
// manual-disconnect semantics, and the degraded-mode fallback state.
package connection
