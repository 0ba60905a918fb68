// Package metrics provides Prometheus metrics for monitoring.
//
// Key metrics:
//   - Connection state and reconnect attempts
//   - Inbound message and decode error rates
//   - Dropped outbound sends
//   - Listener panics during dispatch
//   - Fallback polls triggered
package metrics
