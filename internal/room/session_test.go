package room

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/avpopescu/freight-realtime/internal/envelope"
	"github.com/avpopescu/freight-realtime/internal/registry"
)

// fakeSender records sent commands.
type fakeSender struct {
	mu   sync.Mutex
	sent []envelope.Envelope
}

func (f *fakeSender) Send(env envelope.Envelope) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, env)
}

func (f *fakeSender) types() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.sent))
	for i, env := range f.sent {
		out[i] = env.Type
	}
	return out
}

func newTestSession(t *testing.T) (*Session, *registry.Registry, *fakeSender) {
	t.Helper()
	reg := registry.New(nil, nil)
	sender := &fakeSender{}
	s := New(reg, sender, nil)
	return s, reg, sender
}

func presenceEvent(typ, orderID, userID, username, field string) envelope.Envelope {
	payload, _ := json.Marshal(map[string]string{
		"orderId":  orderID,
		"userId":   userID,
		"username": username,
		"field":    field,
	})
	return envelope.Envelope{
		Type:      typ,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		OrderID:   orderID,
	}
}

func assertTypes(t *testing.T, got, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("sent commands = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("sent commands = %v, want %v", got, want)
		}
	}
}

func TestJoinOrder_SendsLeaveBeforeJoin(t *testing.T) {
	s, _, sender := newTestSession(t)

	s.JoinOrder("ord-1")
	s.JoinOrder("ord-2")

	assertTypes(t, sender.types(), []string{
		envelope.CmdJoinOrder,
		envelope.CmdLeaveOrder,
		envelope.CmdJoinOrder,
	})

	sender.mu.Lock()
	leave := sender.sent[1]
	join := sender.sent[2]
	sender.mu.Unlock()

	if leave.OrderID != "ord-1" {
		t.Errorf("leave order id = %q, want ord-1", leave.OrderID)
	}
	if join.OrderID != "ord-2" {
		t.Errorf("join order id = %q, want ord-2", join.OrderID)
	}
	if s.CurrentOrderID() != "ord-2" {
		t.Errorf("CurrentOrderID = %q, want ord-2", s.CurrentOrderID())
	}
}

func TestJoinOrder_SameIDRunsFullCycle(t *testing.T) {
	s, reg, sender := newTestSession(t)

	s.JoinOrder("ord-1")
	reg.Dispatch(presenceEvent(envelope.EventUserJoinedOrder, "ord-1", "u1", "Ana", ""))

	if len(s.ActiveUsers()) != 1 {
		t.Fatalf("ActiveUsers = %v, want one participant", s.ActiveUsers())
	}

	// A direct re-join of the same id is a fresh cycle: clear and
	// re-announce. Identity suppression lives only in AutoJoin.
	s.JoinOrder("ord-1")

	if len(s.ActiveUsers()) != 0 {
		t.Errorf("ActiveUsers = %v, want cleared after re-join", s.ActiveUsers())
	}
	assertTypes(t, sender.types(), []string{
		envelope.CmdJoinOrder,
		envelope.CmdLeaveOrder,
		envelope.CmdJoinOrder,
	})
}

func TestAutoJoin(t *testing.T) {
	s, _, sender := newTestSession(t)

	s.AutoJoin("ord-1")
	s.AutoJoin("ord-1") // same id: suppressed
	assertTypes(t, sender.types(), []string{envelope.CmdJoinOrder})

	s.AutoJoin("ord-2")
	assertTypes(t, sender.types(), []string{
		envelope.CmdJoinOrder,
		envelope.CmdLeaveOrder,
		envelope.CmdJoinOrder,
	})

	s.AutoJoin("")
	if s.CurrentOrderID() != "" {
		t.Errorf("CurrentOrderID = %q, want empty after AutoJoin(\"\")", s.CurrentOrderID())
	}
}

func TestPresenceLifecycle(t *testing.T) {
	s, reg, _ := newTestSession(t)
	s.JoinOrder("X")

	reg.Dispatch(presenceEvent(envelope.EventUserJoinedOrder, "X", "u1", "Ana", ""))

	users := s.ActiveUsers()
	if len(users) != 1 || users[0].UserID != "u1" || users[0].Username != "Ana" || users[0].EditingField != "" {
		t.Fatalf("after join: ActiveUsers = %+v", users)
	}

	reg.Dispatch(presenceEvent(envelope.EventUserEditing, "X", "u1", "Ana", "price"))

	users = s.ActiveUsers()
	if len(users) != 1 || users[0].EditingField != "price" {
		t.Fatalf("after editing: ActiveUsers = %+v", users)
	}
	if users[0].Username != "Ana" {
		t.Errorf("editing event must not alter other fields, got %+v", users[0])
	}

	reg.Dispatch(presenceEvent(envelope.EventUserLeftOrder, "X", "u1", "Ana", ""))

	if users = s.ActiveUsers(); len(users) != 0 {
		t.Fatalf("after left: ActiveUsers = %+v, want empty", users)
	}
}

func TestPresence_OtherRoomIgnored(t *testing.T) {
	s, reg, _ := newTestSession(t)
	s.JoinOrder("X")

	reg.Dispatch(presenceEvent(envelope.EventUserJoinedOrder, "Y", "u1", "Ana", ""))

	if users := s.ActiveUsers(); len(users) != 0 {
		t.Errorf("ActiveUsers = %+v, want empty for other-room event", users)
	}
}

func TestPresence_RejoinReplacesParticipant(t *testing.T) {
	s, reg, _ := newTestSession(t)
	s.JoinOrder("X")

	reg.Dispatch(presenceEvent(envelope.EventUserJoinedOrder, "X", "u1", "Ana", ""))
	reg.Dispatch(presenceEvent(envelope.EventUserEditing, "X", "u1", "Ana", "price"))
	reg.Dispatch(presenceEvent(envelope.EventUserJoinedOrder, "X", "u1", "Ana Pop", ""))

	users := s.ActiveUsers()
	if len(users) != 1 {
		t.Fatalf("ActiveUsers = %+v, want a single entry per user id", users)
	}
	if users[0].Username != "Ana Pop" {
		t.Errorf("username = %q, want replaced value", users[0].Username)
	}
	if users[0].EditingField != "" {
		t.Errorf("editing field = %q, want dropped on rejoin", users[0].EditingField)
	}
}

func TestEditing_UnknownUserNotCreated(t *testing.T) {
	s, reg, _ := newTestSession(t)
	s.JoinOrder("X")

	reg.Dispatch(presenceEvent(envelope.EventUserEditing, "X", "ghost", "Ghost", "price"))

	if users := s.ActiveUsers(); len(users) != 0 {
		t.Errorf("ActiveUsers = %+v, editing must not create participants", users)
	}
}

func TestRoomStateSeedsParticipants(t *testing.T) {
	s, reg, _ := newTestSession(t)
	s.JoinOrder("X")

	// The backend snapshots the room for a joining user, so presence
	// must not depend on witnessing everyone's join events.
	payload, _ := json.Marshal(map[string]any{
		"orderId": "X",
		"activeUsers": []map[string]string{
			{"userId": "u1", "username": "Ana", "editingField": "price_eur"},
			{"userId": "u2", "username": "Radu"},
		},
	})
	reg.Dispatch(envelope.Envelope{
		Type:      envelope.EventRoomState,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})

	users := s.ActiveUsers()
	if len(users) != 2 {
		t.Fatalf("ActiveUsers = %+v, want 2 seeded participants", users)
	}
	if users[0].UserID != "u1" || users[0].EditingField != "price_eur" {
		t.Errorf("users[0] = %+v", users[0])
	}
	if users[1].UserID != "u2" || users[1].Username != "Radu" {
		t.Errorf("users[1] = %+v", users[1])
	}
}

func TestRoomStateOtherRoomIgnored(t *testing.T) {
	s, reg, _ := newTestSession(t)
	s.JoinOrder("X")

	payload, _ := json.Marshal(map[string]any{
		"orderId": "Y",
		"activeUsers": []map[string]string{
			{"userId": "u1", "username": "Ana"},
		},
	})
	reg.Dispatch(envelope.Envelope{
		Type:      envelope.EventRoomState,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})

	if users := s.ActiveUsers(); len(users) != 0 {
		t.Errorf("ActiveUsers = %+v, want empty for other-room snapshot", users)
	}
}

func TestOrderEventsScopedByPayload(t *testing.T) {
	// The backend's order:* broadcasts carry the order id only inside
	// the payload, never at the envelope level.
	s, reg, _ := newTestSession(t)
	s.JoinOrder("X")

	payload, _ := json.Marshal(map[string]string{
		"orderId": "X",
		"status":  "confirmed",
	})
	reg.Dispatch(envelope.Envelope{
		Type:      envelope.EventOrderStatusChanged,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})

	snap := s.Snapshot()
	if snap.LastUpdate == nil {
		t.Fatal("LastUpdate = nil, want payload-scoped status event accepted")
	}
	if snap.OrderStatus != "confirmed" {
		t.Errorf("OrderStatus = %q, want confirmed", snap.OrderStatus)
	}

	payload, _ = json.Marshal(map[string]string{"orderId": "X"})
	reg.Dispatch(envelope.Envelope{
		Type:      envelope.EventOrderUpdated,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if snap = s.Snapshot(); snap.LastUpdate.Type != envelope.EventOrderUpdated {
		t.Errorf("LastUpdate.Type = %q, want order:updated", snap.LastUpdate.Type)
	}

	payload, _ = json.Marshal(map[string]any{
		"orderId":  "X",
		"progress": 0.4,
		"stage":    "pricing",
	})
	reg.Dispatch(envelope.Envelope{
		Type:      envelope.EventOrderAIProcessing,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	snap = s.Snapshot()
	if snap.LastUpdate.Type != envelope.EventOrderStatusChanged {
		t.Errorf("LastUpdate.Type = %q, want repackaged status-change", snap.LastUpdate.Type)
	}
	if snap.LastUpdate.OrderID != "X" {
		t.Errorf("synthetic OrderID = %q, want X", snap.LastUpdate.OrderID)
	}

	// A payload scoped to another room is still filtered out.
	payload, _ = json.Marshal(map[string]string{
		"orderId": "Y",
		"status":  "cancelled",
	})
	reg.Dispatch(envelope.Envelope{
		Type:      envelope.EventOrderStatusChanged,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	})
	if snap = s.Snapshot(); snap.OrderStatus != "confirmed" {
		t.Errorf("OrderStatus = %q, other-room status must not apply", snap.OrderStatus)
	}
}

func TestStatusChanged(t *testing.T) {
	s, reg, _ := newTestSession(t)
	s.JoinOrder("X")

	payload, _ := json.Marshal(map[string]string{"status": "in_transit"})
	reg.Dispatch(envelope.Envelope{
		Type:      envelope.EventOrderStatusChanged,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		OrderID:   "X",
	})

	snap := s.Snapshot()
	if snap.OrderStatus != "in_transit" {
		t.Errorf("OrderStatus = %q, want in_transit", snap.OrderStatus)
	}
	if snap.LastUpdate == nil || snap.LastUpdate.Type != envelope.EventOrderStatusChanged {
		t.Errorf("LastUpdate = %+v", snap.LastUpdate)
	}
}

func TestOrderUpdated_TouchesOnlyLastUpdate(t *testing.T) {
	s, reg, _ := newTestSession(t)
	s.JoinOrder("X")

	for _, typ := range []string{envelope.EventOrderUpdated, envelope.EventOrderPricingUpdated} {
		reg.Dispatch(envelope.Envelope{
			Type:      typ,
			Payload:   json.RawMessage(`{}`),
			Timestamp: time.Now().UTC(),
			OrderID:   "X",
		})

		snap := s.Snapshot()
		if snap.LastUpdate == nil || snap.LastUpdate.Type != typ {
			t.Errorf("LastUpdate after %s = %+v", typ, snap.LastUpdate)
		}
		if snap.OrderStatus != "" {
			t.Errorf("OrderStatus = %q, want untouched by %s", snap.OrderStatus, typ)
		}
	}
}

func TestAIProcessing_Repackaged(t *testing.T) {
	s, reg, _ := newTestSession(t)
	s.JoinOrder("X")

	payload, _ := json.Marshal(map[string]any{
		"progress":   0.6,
		"stage":      "extracting_route",
		"confidence": 0.87,
	})
	before := time.Now().UTC()
	reg.Dispatch(envelope.Envelope{
		Type:      envelope.EventOrderAIProcessing,
		Payload:   payload,
		Timestamp: time.Now().Add(-time.Hour).UTC(), // Sender time is not trusted
		OrderID:   "X",
	})

	snap := s.Snapshot()
	if snap.LastUpdate == nil {
		t.Fatal("LastUpdate = nil")
	}
	if snap.LastUpdate.Type != envelope.EventOrderStatusChanged {
		t.Errorf("synthetic type = %q, want %q", snap.LastUpdate.Type, envelope.EventOrderStatusChanged)
	}
	if snap.LastUpdate.Timestamp.Before(before) {
		t.Errorf("synthetic timestamp = %v, want stamped at receipt", snap.LastUpdate.Timestamp)
	}

	var p aiProgressPayload
	if err := json.Unmarshal(snap.LastUpdate.Payload, &p); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if p.Progress != 0.6 || p.Stage != "extracting_route" || p.Confidence != 0.87 {
		t.Errorf("payload = %+v", p)
	}
}

func TestLeaveOrder_ClearsLocalState(t *testing.T) {
	s, reg, sender := newTestSession(t)
	s.JoinOrder("X")
	reg.Dispatch(presenceEvent(envelope.EventUserJoinedOrder, "X", "u1", "Ana", ""))

	s.LeaveOrder()

	if s.CurrentOrderID() != "" {
		t.Errorf("CurrentOrderID = %q, want empty", s.CurrentOrderID())
	}
	if users := s.ActiveUsers(); len(users) != 0 {
		t.Errorf("ActiveUsers = %+v, want empty", users)
	}
	if snap := s.Snapshot(); snap.LastUpdate != nil || snap.OrderStatus != "" {
		t.Errorf("Snapshot = %+v, want cleared", snap)
	}

	got := sender.types()
	if got[len(got)-1] != envelope.CmdLeaveOrder {
		t.Errorf("last command = %q, want leave_order", got[len(got)-1])
	}

	// Leaving again with no room joined sends nothing.
	n := len(sender.types())
	s.LeaveOrder()
	if len(sender.types()) != n {
		t.Error("LeaveOrder without a room must not send commands")
	}
}

func TestCloseRunsTeardownOnce(t *testing.T) {
	s, reg, sender := newTestSession(t)
	s.JoinOrder("X")

	s.Close()
	s.Close()

	leaves := 0
	for _, typ := range sender.types() {
		if typ == envelope.CmdLeaveOrder {
			leaves++
		}
	}
	if leaves != 1 {
		t.Errorf("leave_order sent %d times, want exactly once", leaves)
	}

	// Listeners are gone: later events no longer mutate the session.
	reg.Dispatch(presenceEvent(envelope.EventUserJoinedOrder, "X", "u1", "Ana", ""))
	if users := s.ActiveUsers(); len(users) != 0 {
		t.Errorf("ActiveUsers = %+v after Close, want empty", users)
	}
}

func TestOutboundEditingCommands(t *testing.T) {
	s, _, sender := newTestSession(t)
	s.JoinOrder("ord-5")

	s.UpdateField("price_eur", 1275.50)
	s.BroadcastEditing("price_eur")
	s.StopEditing()

	assertTypes(t, sender.types(), []string{
		envelope.CmdJoinOrder,
		envelope.CmdUpdateOrderField,
		envelope.CmdUserEditing,
		envelope.CmdUserStopEditing,
	})

	sender.mu.Lock()
	update := sender.sent[1]
	sender.mu.Unlock()

	var p struct {
		OrderID string  `json:"orderId"`
		Field   string  `json:"field"`
		Value   float64 `json:"value"`
	}
	if err := json.Unmarshal(update.Payload, &p); err != nil {
		t.Fatalf("payload unmarshal: %v", err)
	}
	if p.OrderID != "ord-5" || p.Field != "price_eur" || p.Value != 1275.50 {
		t.Errorf("update payload = %+v", p)
	}
}

func TestOutboundCommandsRequireRoom(t *testing.T) {
	s, _, sender := newTestSession(t)

	s.UpdateField("price_eur", 1)
	s.BroadcastEditing("price_eur")
	s.StopEditing()

	if got := sender.types(); len(got) != 0 {
		t.Errorf("sent commands = %v, want none without a joined room", got)
	}
}

func TestManyParticipantsStayUnique(t *testing.T) {
	s, reg, _ := newTestSession(t)
	s.JoinOrder("X")

	for i := 0; i < 5; i++ {
		for j := 0; j < 3; j++ {
			id := fmt.Sprintf("u%d", j)
			reg.Dispatch(presenceEvent(envelope.EventUserJoinedOrder, "X", id, "User "+id, ""))
		}
	}

	if users := s.ActiveUsers(); len(users) != 3 {
		t.Errorf("ActiveUsers has %d entries, want 3 unique", len(users))
	}
}
