// Package api is a REST client for the freight-order backend. The
// realtime layer uses it to re-fetch order state while the WebSocket
// connection is degraded.
package api
