package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultMaxAttempts      = 5
	DefaultBaseInterval     = 3 * time.Second
	DefaultReconnectDelay   = 100 * time.Millisecond
	DefaultHandshakeTimeout = 10 * time.Second
	DefaultWriteTimeout     = 5 * time.Second
	DefaultPingInterval     = 30 * time.Second
	DefaultPongTimeout      = 60 * time.Second
	DefaultBufferSize       = 256
	DefaultPollTimeout      = 10 * time.Second
	DefaultMetricsPort      = 9090
	DefaultMetricsPath      = "/metrics"
)

func (c *ClientConfig) applyDefaults() {
	if c.Reconnect.MaxAttempts == 0 {
		c.Reconnect.MaxAttempts = DefaultMaxAttempts
	}
	if c.Reconnect.BaseInterval == 0 {
		c.Reconnect.BaseInterval = DefaultBaseInterval
	}
	if c.Reconnect.ReconnectDelay == 0 {
		c.Reconnect.ReconnectDelay = DefaultReconnectDelay
	}

	if c.Transport.HandshakeTimeout == 0 {
		c.Transport.HandshakeTimeout = DefaultHandshakeTimeout
	}
	if c.Transport.WriteTimeout == 0 {
		c.Transport.WriteTimeout = DefaultWriteTimeout
	}
	if c.Transport.PingInterval == 0 {
		c.Transport.PingInterval = DefaultPingInterval
	}
	if c.Transport.PongTimeout == 0 {
		c.Transport.PongTimeout = DefaultPongTimeout
	}
	if c.Transport.BufferSize == 0 {
		c.Transport.BufferSize = DefaultBufferSize
	}

	if c.Poll.Timeout == 0 {
		c.Poll.Timeout = DefaultPollTimeout
	}

	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
