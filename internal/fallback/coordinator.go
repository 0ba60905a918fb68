package fallback

import (
	"context"
	"log/slog"

	"github.com/avpopescu/freight-realtime/internal/connection"
	"github.com/avpopescu/freight-realtime/internal/metrics"
)

// StateSource reports the current connection state. The Connection
// Manager satisfies it.
type StateSource interface {
	State() connection.State
}

// RoomSource reports the currently joined order room. The room Session
// satisfies it.
type RoomSource interface {
	CurrentOrderID() string
}

// PollFunc re-fetches one order's state over REST.
type PollFunc func(ctx context.Context, orderID string) error

// Coordinator gates REST polling on degraded connectivity. It never
// schedules its own intervals; the caller decides when fresh data is
// worth a poll and the coordinator decides whether one is warranted.
type Coordinator struct {
	conn    StateSource
	room    RoomSource
	poll    PollFunc
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// New creates a fallback coordinator.
func New(conn StateSource, room RoomSource, poll PollFunc, logger *slog.Logger, m *metrics.Metrics) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		conn:    conn,
		room:    room,
		poll:    poll,
		logger:  logger,
		metrics: m,
	}
}

// IsFallback reports whether the connection has degraded to polling.
func (c *Coordinator) IsFallback() bool {
	return c.conn.State() == connection.StateFallback
}

// TriggerPoll runs one poll for the joined order. It is a no-op unless
// the connection is in fallback and a room is joined, so callers may
// invoke it unconditionally whenever they want fresh data.
func (c *Coordinator) TriggerPoll(ctx context.Context) error {
	if !c.IsFallback() {
		return nil
	}

	orderID := c.room.CurrentOrderID()
	if orderID == "" {
		return nil
	}

	c.metrics.RecordFallbackPoll()
	c.logger.Debug("fallback poll", "order_id", orderID)

	if err := c.poll(ctx, orderID); err != nil {
		c.logger.Warn("fallback poll failed", "order_id", orderID, "error", err)
		return err
	}

	return nil
}
