package registry

import (
	"testing"

	"github.com/avpopescu/freight-realtime/internal/envelope"
)

func event(typ string) envelope.Envelope {
	return envelope.Envelope{Type: typ}
}

func TestSubscribeUnsubscribe(t *testing.T) {
	r := New(nil, nil)

	unsubA := r.Subscribe("order:updated", func(envelope.Envelope) {})
	unsubB := r.Subscribe("order:updated", func(envelope.Envelope) {})

	if got := r.Count("order:updated"); got != 2 {
		t.Fatalf("Count = %d, want 2", got)
	}

	unsubA()
	if got := r.Count("order:updated"); got != 1 {
		t.Fatalf("Count = %d, want 1 after unsubscribe", got)
	}

	// Unsubscribing twice must not remove the other listener.
	unsubA()
	if got := r.Count("order:updated"); got != 1 {
		t.Fatalf("Count = %d, want 1 after double unsubscribe", got)
	}

	unsubB()
	if got := r.Count("order:updated"); got != 0 {
		t.Fatalf("Count = %d, want 0", got)
	}
}

func TestDispatchOrderAndIsolation(t *testing.T) {
	r := New(nil, nil)

	var calls []string
	r.Subscribe("order:updated", func(envelope.Envelope) {
		calls = append(calls, "A")
	})
	r.Subscribe("order:updated", func(envelope.Envelope) {
		calls = append(calls, "B")
		panic("listener B exploded")
	})
	r.Subscribe("order:updated", func(envelope.Envelope) {
		calls = append(calls, "C")
	})

	r.Dispatch(event("order:updated"))

	want := []string{"A", "B", "C"}
	if len(calls) != len(want) {
		t.Fatalf("calls = %v, want %v", calls, want)
	}
	for i := range want {
		if calls[i] != want[i] {
			t.Errorf("calls[%d] = %q, want %q", i, calls[i], want[i])
		}
	}
}

func TestDispatchWrongTopic(t *testing.T) {
	r := New(nil, nil)

	called := false
	r.Subscribe("order:updated", func(envelope.Envelope) { called = true })

	r.Dispatch(event("order:pricing_updated"))

	if called {
		t.Error("listener invoked for a topic it never subscribed to")
	}
}

func TestDispatchPassesEnvelope(t *testing.T) {
	r := New(nil, nil)

	var got envelope.Envelope
	r.Subscribe(envelope.EventUserEditing, func(env envelope.Envelope) { got = env })

	env := envelope.Envelope{Type: envelope.EventUserEditing, OrderID: "ord-9"}
	r.Dispatch(env)

	if got.OrderID != "ord-9" {
		t.Errorf("listener received OrderID %q, want %q", got.OrderID, "ord-9")
	}
}

func TestUnsubscribeDuringDispatch(t *testing.T) {
	r := New(nil, nil)

	var calls []string
	var unsubB func()
	r.Subscribe("t", func(envelope.Envelope) {
		calls = append(calls, "A")
		unsubB() // removes B mid-pass; snapshot keeps it for this pass
	})
	unsubB = r.Subscribe("t", func(envelope.Envelope) {
		calls = append(calls, "B")
	})

	r.Dispatch(event("t"))
	if len(calls) != 2 {
		t.Fatalf("first dispatch calls = %v, want [A B]", calls)
	}

	calls = nil
	r.Dispatch(event("t"))
	if len(calls) != 1 || calls[0] != "A" {
		t.Fatalf("second dispatch calls = %v, want [A]", calls)
	}
}

func TestSubscribeDuringDispatch(t *testing.T) {
	r := New(nil, nil)

	var calls int
	r.Subscribe("t", func(envelope.Envelope) {
		calls++
		if calls == 1 {
			// Takes effect on the next pass only.
			r.Subscribe("t", func(envelope.Envelope) { calls += 10 })
		}
	})

	r.Dispatch(event("t"))
	if calls != 1 {
		t.Fatalf("calls = %d after first dispatch, want 1", calls)
	}

	r.Dispatch(event("t"))
	if calls != 12 {
		t.Fatalf("calls = %d after second dispatch, want 12", calls)
	}
}

func TestTopicRemovedWhenEmpty(t *testing.T) {
	r := New(nil, nil)

	unsub := r.Subscribe("t", func(envelope.Envelope) {})
	unsub()

	r.mu.Lock()
	_, exists := r.topics["t"]
	r.mu.Unlock()

	if exists {
		t.Error("topic entry not removed after last listener unsubscribed")
	}
}
