package connection

import (
	"context"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/avpopescu/freight-realtime/internal/envelope"
	"github.com/avpopescu/freight-realtime/internal/metrics"
)

// Dispatcher receives decoded inbound envelopes. The Subscription
// Registry implements it; the Manager never calls it while holding its
// own lock.
type Dispatcher interface {
	Dispatch(env envelope.Envelope)
}

// Manager owns the single transport handle and drives the connection
// state machine: Idle -> Connecting -> Open, abnormal closes loop
// through Closed with linear backoff, and an exhausted attempt budget
// parks the session in Fallback until an explicit Reconnect.
//
// Invariants: at most one live Client and at most one pending reconnect
// timer exist at any time; both live behind mu. A generation counter
// discards transport events that arrive after the connection they
// belong to was superseded, so a close racing a manual Disconnect
// cannot re-open the session.
type Manager struct {
	cfg        ManagerConfig
	logger     *slog.Logger
	metrics    *metrics.Metrics
	dispatcher Dispatcher

	mu      sync.Mutex
	state   State
	token   string
	attempt int
	conn    *Client
	timer   *time.Timer
	gen     uint64
}

// NewManager creates a Connection Manager. The dispatcher may be nil,
// in which case decoded envelopes are discarded.
func NewManager(cfg ManagerConfig, dispatcher Dispatcher, logger *slog.Logger, m *metrics.Metrics) *Manager {
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		cfg:        cfg,
		logger:     logger,
		metrics:    m,
		dispatcher: dispatcher,
		state:      StateIdle,
	}
}

// Connect starts an asynchronous connection attempt using the given
// credential. It is a no-op without a credential or while already
// Connecting or Open. Completion is observable through State.
func (m *Manager) Connect(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if token == "" {
		m.logger.Warn("connect refused: missing credential")
		return
	}
	if m.state == StateConnecting || m.state == StateOpen {
		return
	}

	m.token = token
	m.startConnectingLocked()
}

// Disconnect cancels any pending reconnect timer, suppresses in-flight
// reconnection by exhausting the attempt budget, closes the transport
// with code 1000, and leaves the session Closed. Idempotent.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.cancelTimerLocked()
	m.attempt = m.cfg.MaxAttempts
	m.gen++

	if m.conn != nil {
		m.conn.Close(websocket.CloseNormalClosure, "client disconnect")
		m.conn = nil
	}

	if m.state != StateClosed {
		m.setStateLocked(StateClosed)
		m.logger.Info("disconnected")
	}
}

// Reconnect tears the current connection down, resets the attempt
// budget, and redials after a short fixed delay. This is the only path
// that resets the attempt counter outside a successful open.
func (m *Manager) Reconnect() {
	m.Disconnect()

	m.mu.Lock()
	m.attempt = 0
	token := m.token
	delay := m.cfg.ReconnectDelay
	m.mu.Unlock()

	m.logger.Info("explicit reconnect", "delay", delay)
	time.AfterFunc(delay, func() {
		m.Connect(token)
	})
}

// Send stamps a fresh timestamp and writes the envelope to the
// transport. While the connection is not Open the envelope is dropped,
// not queued; callers must not assume delivery.
func (m *Manager) Send(env envelope.Envelope) {
	m.mu.Lock()
	if m.state != StateOpen || m.conn == nil {
		state := m.state
		m.mu.Unlock()
		m.logger.Warn("dropping send: connection not open",
			"type", env.Type,
			"state", state,
		)
		m.metrics.RecordDroppedSend()
		return
	}
	conn := m.conn
	m.mu.Unlock()

	env.Timestamp = time.Now().UTC()
	data, err := envelope.Marshal(env)
	if err != nil {
		m.logger.Error("failed to marshal envelope", "type", env.Type, "error", err)
		return
	}

	if err := conn.Send(data); err != nil {
		m.logger.Warn("write failed", "type", env.Type, "error", err)
	}
}

// State returns the current connection state.
func (m *Manager) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Indicator returns the UI connectivity surface for the current state.
func (m *Manager) Indicator() Indicator {
	return IndicatorFor(m.State())
}

// startConnectingLocked transitions to Connecting and dials in the
// background. Callers hold mu.
func (m *Manager) startConnectingLocked() {
	m.setStateLocked(StateConnecting)
	m.gen++
	gen := m.gen
	token := m.token

	go m.dial(gen, token)
}

// dial performs one connection attempt. A failed dial follows the same
// backoff path as an abnormal close.
func (m *Manager) dial(gen uint64, token string) {
	client := NewClient(m.cfg.clientConfig(m.endpoint(token)), m.logger)

	ctx, cancel := context.WithTimeout(context.Background(), m.cfg.HandshakeTimeout)
	defer cancel()
	err := client.Connect(ctx)

	m.mu.Lock()
	if gen != m.gen {
		m.mu.Unlock()
		if err == nil {
			client.Close(websocket.CloseNormalClosure, "superseded")
		}
		return
	}

	if err != nil {
		m.logger.Warn("dial failed", "error", err)
		m.handleCloseLocked(CloseInfo{Code: websocket.CloseAbnormalClosure, Err: err})
		m.mu.Unlock()
		return
	}

	m.conn = client
	m.attempt = 0
	m.cancelTimerLocked()
	m.setStateLocked(StateOpen)
	m.mu.Unlock()

	m.logger.Info("connected")

	go m.readLoop(gen, client)
}

// readLoop forwards inbound frames to the codec and dispatcher until
// the transport ends. It also sends application-level pings on the
// keepalive cadence; the backend answers with pong events and uses them
// for presence liveness, separately from the protocol-level pings.
func (m *Manager) readLoop(gen uint64, client *Client) {
	var pings <-chan time.Time
	if m.cfg.PingInterval > 0 {
		ticker := time.NewTicker(m.cfg.PingInterval)
		defer ticker.Stop()
		pings = ticker.C
	}

	for {
		select {
		case raw := <-client.Frames():
			m.handleFrame(raw)

		case <-pings:
			m.Send(envelope.NewPing())

		case info := <-client.Closed():
			m.mu.Lock()
			if gen == m.gen {
				m.conn = nil
				m.handleCloseLocked(info)
			}
			m.mu.Unlock()
			return
		}
	}
}

// handleFrame decodes and dispatches one inbound frame. A malformed
// frame is dropped and logged; it never reaches the registry.
func (m *Manager) handleFrame(raw []byte) {
	m.metrics.RecordMessageReceived()

	env, err := envelope.Decode(raw)
	if err != nil {
		m.logger.Warn("dropping malformed frame", "error", err)
		m.metrics.RecordDecodeError()
		return
	}

	m.metrics.RecordMessageDispatched()
	if m.dispatcher != nil {
		m.dispatcher.Dispatch(env)
	}
}

// handleCloseLocked applies close-code semantics: 1000 parks the
// session in Closed, anything else schedules linear backoff while
// attempts remain and enters Fallback once the budget is spent.
// Callers hold mu.
func (m *Manager) handleCloseLocked(info CloseInfo) {
	if info.Code == websocket.CloseNormalClosure {
		m.setStateLocked(StateClosed)
		m.logger.Info("connection closed", "code", info.Code)
		return
	}

	if info.Err != nil {
		m.logger.Warn("transport error", "code", info.Code, "error", info.Err)
	}

	if m.attempt >= m.cfg.MaxAttempts {
		m.setStateLocked(StateFallback)
		m.logger.Warn("reconnect budget exhausted, entering fallback",
			"attempts", m.attempt,
		)
		return
	}

	m.attempt++
	wait := m.cfg.BaseInterval * time.Duration(m.attempt)

	m.setStateLocked(StateClosed)
	m.cancelTimerLocked()
	m.metrics.RecordReconnectAttempt()

	gen := m.gen
	m.timer = time.AfterFunc(wait, func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		if gen != m.gen || m.state != StateClosed {
			return
		}
		m.timer = nil
		m.startConnectingLocked()
	})

	m.logger.Info("reconnect scheduled",
		"attempt", m.attempt,
		"max_attempts", m.cfg.MaxAttempts,
		"wait", wait,
	)
}

func (m *Manager) setStateLocked(s State) {
	m.state = s
	m.metrics.SetConnectionState(int(s))
}

func (m *Manager) cancelTimerLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
}

// endpoint builds the handshake URL with the credential embedded as a
// query parameter.
func (m *Manager) endpoint(token string) string {
	base := strings.TrimRight(m.cfg.BaseURL, "/")
	return base + "/ws?token=" + url.QueryEscape(token)
}
