package registry

import (
	"log/slog"
	"sync"

	"github.com/avpopescu/freight-realtime/internal/envelope"
	"github.com/avpopescu/freight-realtime/internal/metrics"
)

// Listener receives decoded envelopes for one topic.
type Listener func(env envelope.Envelope)

// entry pairs a listener with a registration identity so unsubscribe
// removes exactly the callback it was returned for.
type entry struct {
	id int64
	fn Listener
}

// Registry maps topic names (envelope types) to ordered listener sets
// and fans decoded inbound envelopes out to them.
type Registry struct {
	logger  *slog.Logger
	metrics *metrics.Metrics

	mu     sync.Mutex
	topics map[string][]entry
	nextID int64
}

// New creates an empty registry.
func New(logger *slog.Logger, m *metrics.Metrics) *Registry {
	if logger == nil {
		logger = slog.Default()
	}

	return &Registry{
		logger:  logger,
		metrics: m,
		topics:  make(map[string][]entry),
	}
}

// Subscribe registers fn under topic and returns a func that removes
// exactly that registration. Within a topic, listeners are invoked in
// registration order. Unsubscribing twice is harmless.
func (r *Registry) Subscribe(topic string, fn Listener) func() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.nextID++
	id := r.nextID
	r.topics[topic] = append(r.topics[topic], entry{id: id, fn: fn})

	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()

		entries := r.topics[topic]
		for i, e := range entries {
			if e.id == id {
				r.topics[topic] = append(entries[:i:i], entries[i+1:]...)
				break
			}
		}
		if len(r.topics[topic]) == 0 {
			delete(r.topics, topic)
		}
	}
}

// Dispatch invokes every listener registered for env.Type with the
// envelope. It iterates over a snapshot taken at dispatch time, so
// subscriptions and unsubscriptions made from inside a callback take
// effect on the next dispatch, not the current one. A panicking
// listener is recovered and logged; the remaining listeners still run.
func (r *Registry) Dispatch(env envelope.Envelope) {
	r.mu.Lock()
	entries := r.topics[env.Type]
	snapshot := make([]entry, len(entries))
	copy(snapshot, entries)
	r.mu.Unlock()

	for _, e := range snapshot {
		r.invoke(e, env)
	}
}

func (r *Registry) invoke(e entry, env envelope.Envelope) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("listener panicked",
				"topic", env.Type,
				"panic", rec,
			)
			r.metrics.RecordListenerPanic()
		}
	}()

	e.fn(env)
}

// Count returns the number of listeners registered for topic.
func (r *Registry) Count(topic string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.topics[topic])
}
