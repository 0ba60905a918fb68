package connection

import (
	"errors"
	"time"
)

// Errors
var (
	ErrNotConnected    = errors.New("not connected")
	ErrStaleConnection = errors.New("connection stale (no ping)")
	ErrAlreadyClosed   = errors.New("already closed")
)

// CloseInfo describes how a transport ended. Code follows WebSocket
// close-code semantics: 1000 is an intentional close and suppresses
// reconnection, anything else enters the backoff path.
type CloseInfo struct {
	Code int
	Err  error
}

// ClientConfig configures a single WebSocket transport.
type ClientConfig struct {
	URL              string        // Full endpoint including the token query parameter
	HandshakeTimeout time.Duration // Dial timeout
	WriteTimeout     time.Duration // Write deadline for sends
	PingInterval     time.Duration // Keepalive ping cadence
	PongTimeout      time.Duration // Max time without ping/pong before the connection is stale
	BufferSize       int           // Inbound frame channel capacity
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		PongTimeout:      60 * time.Second,
		BufferSize:       256,
	}
}

// ManagerConfig configures the Connection Manager.
type ManagerConfig struct {
	BaseURL          string        // WebSocket base URL (e.g. wss://api.freight.example.com)
	MaxAttempts      int           // Reconnect attempt budget before entering fallback
	BaseInterval     time.Duration // Linear backoff unit: wait = BaseInterval * attempt
	ReconnectDelay   time.Duration // Fixed delay before an explicit Reconnect redials
	HandshakeTimeout time.Duration
	WriteTimeout     time.Duration
	PingInterval     time.Duration
	PongTimeout      time.Duration
	BufferSize       int
}

// DefaultManagerConfig returns sensible defaults.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		MaxAttempts:      5,
		BaseInterval:     3 * time.Second,
		ReconnectDelay:   100 * time.Millisecond,
		HandshakeTimeout: 10 * time.Second,
		WriteTimeout:     5 * time.Second,
		PingInterval:     30 * time.Second,
		PongTimeout:      60 * time.Second,
		BufferSize:       256,
	}
}

func (c ManagerConfig) clientConfig(url string) ClientConfig {
	return ClientConfig{
		URL:              url,
		HandshakeTimeout: c.HandshakeTimeout,
		WriteTimeout:     c.WriteTimeout,
		PingInterval:     c.PingInterval,
		PongTimeout:      c.PongTimeout,
		BufferSize:       c.BufferSize,
	}
}
