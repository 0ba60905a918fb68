package fallback

import (
	"context"
	"errors"
	"testing"

	"github.com/avpopescu/freight-realtime/internal/connection"
)

type stubState struct{ state connection.State }

func (s stubState) State() connection.State { return s.state }

type stubRoom struct{ orderID string }

func (s stubRoom) CurrentOrderID() string { return s.orderID }

func TestIsFallback(t *testing.T) {
	tests := []struct {
		state connection.State
		want  bool
	}{
		{connection.StateIdle, false},
		{connection.StateConnecting, false},
		{connection.StateOpen, false},
		{connection.StateClosed, false},
		{connection.StateFallback, true},
	}

	for _, tt := range tests {
		c := New(stubState{tt.state}, stubRoom{}, nil, nil, nil)
		if got := c.IsFallback(); got != tt.want {
			t.Errorf("IsFallback() in %v = %v, want %v", tt.state, got, tt.want)
		}
	}
}

func TestTriggerPoll(t *testing.T) {
	t.Run("polls joined order in fallback", func(t *testing.T) {
		var polled string
		c := New(stubState{connection.StateFallback}, stubRoom{"ord-7"},
			func(ctx context.Context, orderID string) error {
				polled = orderID
				return nil
			}, nil, nil)

		if err := c.TriggerPoll(context.Background()); err != nil {
			t.Fatalf("TriggerPoll: %v", err)
		}
		if polled != "ord-7" {
			t.Errorf("polled order = %q, want ord-7", polled)
		}
	})

	t.Run("no-op while connection healthy", func(t *testing.T) {
		c := New(stubState{connection.StateOpen}, stubRoom{"ord-7"},
			func(ctx context.Context, orderID string) error {
				t.Error("poll must not run while open")
				return nil
			}, nil, nil)

		if err := c.TriggerPoll(context.Background()); err != nil {
			t.Fatalf("TriggerPoll: %v", err)
		}
	})

	t.Run("no-op without a joined room", func(t *testing.T) {
		c := New(stubState{connection.StateFallback}, stubRoom{},
			func(ctx context.Context, orderID string) error {
				t.Error("poll must not run without a room")
				return nil
			}, nil, nil)

		if err := c.TriggerPoll(context.Background()); err != nil {
			t.Fatalf("TriggerPoll: %v", err)
		}
	})

	t.Run("propagates poll errors", func(t *testing.T) {
		want := errors.New("rest down")
		c := New(stubState{connection.StateFallback}, stubRoom{"ord-7"},
			func(ctx context.Context, orderID string) error {
				return want
			}, nil, nil)

		if err := c.TriggerPoll(context.Background()); !errors.Is(err, want) {
			t.Errorf("TriggerPoll error = %v, want %v", err, want)
		}
	})
}
