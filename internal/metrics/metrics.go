package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "freight_realtime"

// Metrics holds the Prometheus collectors for one realtime session.
// A nil *Metrics is valid and records nothing, so components can run
// unmetered in tests.
type Metrics struct {
	connectionState    prometheus.Gauge
	reconnectAttempts  prometheus.Counter
	messagesReceived   prometheus.Counter
	messagesDispatched prometheus.Counter
	decodeErrors       prometheus.Counter
	droppedSends       prometheus.Counter
	listenerPanics     prometheus.Counter
	fallbackPolls      prometheus.Counter
}

// New creates the collectors and registers them with reg. Pass
// prometheus.DefaultRegisterer for the process-wide registry.
func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		connectionState: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connection_state",
			Help:      "Current connection state (0=idle 1=connecting 2=open 3=closed 4=fallback).",
		}),
		reconnectAttempts: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconnect_attempts_total",
			Help:      "Reconnection attempts scheduled after abnormal closes.",
		}),
		messagesReceived: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_received_total",
			Help:      "Raw frames received from the transport.",
		}),
		messagesDispatched: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_dispatched_total",
			Help:      "Decoded envelopes handed to the subscription registry.",
		}),
		decodeErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decode_errors_total",
			Help:      "Inbound frames dropped because they failed to decode.",
		}),
		droppedSends: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dropped_sends_total",
			Help:      "Outbound envelopes dropped because the connection was not open.",
		}),
		listenerPanics: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "listener_panics_total",
			Help:      "Listener callbacks that panicked during dispatch.",
		}),
		fallbackPolls: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fallback_polls_total",
			Help:      "REST polls triggered while in fallback mode.",
		}),
	}
}

// SetConnectionState records the numeric connection state.
func (m *Metrics) SetConnectionState(state int) {
	if m == nil {
		return
	}
	m.connectionState.Set(float64(state))
}

// RecordReconnectAttempt counts a scheduled reconnection attempt.
func (m *Metrics) RecordReconnectAttempt() {
	if m == nil {
		return
	}
	m.reconnectAttempts.Inc()
}

// RecordMessageReceived counts a raw inbound frame.
func (m *Metrics) RecordMessageReceived() {
	if m == nil {
		return
	}
	m.messagesReceived.Inc()
}

// RecordMessageDispatched counts a decoded envelope reaching dispatch.
func (m *Metrics) RecordMessageDispatched() {
	if m == nil {
		return
	}
	m.messagesDispatched.Inc()
}

// RecordDecodeError counts a dropped malformed frame.
func (m *Metrics) RecordDecodeError() {
	if m == nil {
		return
	}
	m.decodeErrors.Inc()
}

// RecordDroppedSend counts an outbound envelope discarded while not open.
func (m *Metrics) RecordDroppedSend() {
	if m == nil {
		return
	}
	m.droppedSends.Inc()
}

// RecordListenerPanic counts a recovered listener panic.
func (m *Metrics) RecordListenerPanic() {
	if m == nil {
		return
	}
	m.listenerPanics.Inc()
}

// RecordFallbackPoll counts a triggered fallback poll.
func (m *Metrics) RecordFallbackPoll() {
	if m == nil {
		return
	}
	m.fallbackPolls.Inc()
}
