package session

import (
	"context"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/avpopescu/freight-realtime/internal/api"
	"github.com/avpopescu/freight-realtime/internal/config"
	"github.com/avpopescu/freight-realtime/internal/connection"
	"github.com/avpopescu/freight-realtime/internal/fallback"
	"github.com/avpopescu/freight-realtime/internal/metrics"
	"github.com/avpopescu/freight-realtime/internal/registry"
	"github.com/avpopescu/freight-realtime/internal/room"
)

// Session wires one authenticated realtime context together: connection
// manager, subscription registry, order room, REST client, and the
// fallback coordinator. Construct one per credential and Close it when
// the context ends; nothing here is process-global.
type Session struct {
	cfg    config.ClientConfig
	logger *slog.Logger

	metrics  *metrics.Metrics
	manager  *connection.Manager
	registry *registry.Registry
	room     *room.Session
	rest     *api.Client
	fallback *fallback.Coordinator

	closeOnce sync.Once
}

// Option configures a Session.
type Option func(*options)

type options struct {
	registerer prometheus.Registerer
}

// WithRegisterer sets the Prometheus registerer for session metrics.
// Without it metrics are disabled entirely.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// New builds a session from configuration. The connection is not dialed
// until Start.
func New(cfg config.ClientConfig, logger *slog.Logger, opts ...Option) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled && o.registerer != nil {
		m = metrics.New(o.registerer)
	}

	reg := registry.New(logger, m)

	mgr := connection.NewManager(connection.ManagerConfig{
		BaseURL:          cfg.Server.WSURL,
		MaxAttempts:      cfg.Reconnect.MaxAttempts,
		BaseInterval:     cfg.Reconnect.BaseInterval,
		ReconnectDelay:   cfg.Reconnect.ReconnectDelay,
		HandshakeTimeout: cfg.Transport.HandshakeTimeout,
		WriteTimeout:     cfg.Transport.WriteTimeout,
		PingInterval:     cfg.Transport.PingInterval,
		PongTimeout:      cfg.Transport.PongTimeout,
		BufferSize:       cfg.Transport.BufferSize,
	}, reg, logger, m)

	rm := room.New(reg, mgr, logger)

	s := &Session{
		cfg:      cfg,
		logger:   logger,
		metrics:  m,
		manager:  mgr,
		registry: reg,
		room:     rm,
	}

	return s
}

// Start creates the REST client for the credential and dials the
// WebSocket endpoint. The credential is also the bearer token for the
// fallback path.
func (s *Session) Start(credential string) {
	s.rest = api.NewClient(s.cfg.Server.RestURL, credential,
		api.WithTimeout(s.cfg.Poll.Timeout),
		api.WithLogger(s.logger),
	)

	s.fallback = fallback.New(s.manager, s.room, func(ctx context.Context, orderID string) error {
		_, err := s.rest.GetOrder(ctx, orderID)
		return err
	}, s.logger, s.metrics)

	s.manager.Connect(credential)
}

// Close leaves the order room, then tears the connection down. Safe to
// call more than once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.room.Close()
		s.manager.Disconnect()
		s.logger.Info("session closed")
	})
}

// Manager returns the connection manager.
func (s *Session) Manager() *connection.Manager { return s.manager }

// Registry returns the subscription registry.
func (s *Session) Registry() *registry.Registry { return s.registry }

// Room returns the order room session.
func (s *Session) Room() *room.Session { return s.room }

// Rest returns the REST client, nil before Start.
func (s *Session) Rest() *api.Client { return s.rest }

// Fallback returns the fallback coordinator, nil before Start.
func (s *Session) Fallback() *fallback.Coordinator { return s.fallback }

// Indicator returns the UI connectivity surface for the current state.
func (s *Session) Indicator() connection.Indicator {
	return s.manager.Indicator()
}
