package config

import "time"

// ClientConfig is the root configuration for a realtime client session.
type ClientConfig struct {
	Server    ServerConfig    `yaml:"server"`
	Reconnect ReconnectConfig `yaml:"reconnect"`
	Transport TransportConfig `yaml:"transport"`
	Poll      PollConfig      `yaml:"poll"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

// ServerConfig holds freight backend endpoints.
type ServerConfig struct {
	WSURL   string `yaml:"ws_url"`   // e.g. wss://api.freight.example.com
	RestURL string `yaml:"rest_url"` // e.g. https://api.freight.example.com/api/v1
}

// ReconnectConfig holds the reconnection policy. Wait time before
// attempt N is base_interval * N (linear backoff).
type ReconnectConfig struct {
	MaxAttempts    int           `yaml:"max_attempts"`
	BaseInterval   time.Duration `yaml:"base_interval"`
	ReconnectDelay time.Duration `yaml:"reconnect_delay"` // Fixed delay before an explicit reconnect redials
}

// TransportConfig holds low-level WebSocket settings.
type TransportConfig struct {
	HandshakeTimeout time.Duration `yaml:"handshake_timeout"`
	WriteTimeout     time.Duration `yaml:"write_timeout"`
	PingInterval     time.Duration `yaml:"ping_interval"`
	PongTimeout      time.Duration `yaml:"pong_timeout"` // Max time without ping/pong before the connection is stale
	BufferSize       int           `yaml:"buffer_size"`  // Inbound frame channel capacity
}

// PollConfig holds REST fallback polling settings. Poll scheduling is
// the application layer's job; only the per-request timeout lives here.
type PollConfig struct {
	Timeout time.Duration `yaml:"timeout"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}
