// Package fallback degrades the realtime layer to on-demand REST
// polling once the reconnection budget is exhausted.
package fallback
