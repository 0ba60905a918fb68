package room

import (
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/avpopescu/freight-realtime/internal/envelope"
	"github.com/avpopescu/freight-realtime/internal/registry"
)

// Sender writes commands to the transport. The Connection Manager
// satisfies it and enforces the open-only send rule, so room state can
// update optimistically while commands are dropped offline.
type Sender interface {
	Send(env envelope.Envelope)
}

// Participant is one user present in the order room, unique by UserID.
type Participant struct {
	UserID       string `json:"userId"`
	Username     string `json:"username"`
	EditingField string `json:"editingField,omitempty"`
}

// State is a point-in-time copy of the room for the UI layer.
type State struct {
	OrderID      string
	Participants []Participant
	LastUpdate   *envelope.Envelope
	OrderStatus  string
}

// Session tracks presence and live updates for the one order room this
// client is joined to. It owns the participant set exclusively; all
// mutation happens through presence events or the join/leave protocol.
type Session struct {
	sender Sender
	logger *slog.Logger

	mu           sync.Mutex
	orderID      string
	participants []Participant
	lastUpdate   *envelope.Envelope
	orderStatus  string

	unsubs    []func()
	closeOnce sync.Once
}

// New creates a room session and registers its event listeners.
func New(reg *registry.Registry, sender Sender, logger *slog.Logger) *Session {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Session{
		sender: sender,
		logger: logger,
	}

	s.unsubs = []func(){
		reg.Subscribe(envelope.EventUserJoinedOrder, s.onUserJoined),
		reg.Subscribe(envelope.EventUserLeftOrder, s.onUserLeft),
		reg.Subscribe(envelope.EventUserEditing, s.onUserEditing),
		reg.Subscribe(envelope.EventRoomState, s.onRoomState),
		reg.Subscribe(envelope.EventOrderStatusChanged, s.onStatusChanged),
		reg.Subscribe(envelope.EventOrderUpdated, s.onOrderUpdated),
		reg.Subscribe(envelope.EventOrderPricingUpdated, s.onOrderUpdated),
		reg.Subscribe(envelope.EventOrderAIProcessing, s.onAIProcessing),
	}

	return s
}

// JoinOrder leaves any currently joined room and joins orderID fresh.
// Direct calls always run the full cycle, even for the id already
// joined; AutoJoin is the only place an identity check happens. Local
// state updates optimistically whether or not the connection is open.
func (s *Session) JoinOrder(orderID string) {
	s.mu.Lock()
	var out []envelope.Envelope
	if s.orderID != "" {
		out = append(out, envelope.NewLeaveOrder(s.orderID))
	}

	s.orderID = orderID
	s.participants = nil
	s.lastUpdate = nil
	s.orderStatus = ""

	if orderID != "" {
		out = append(out, envelope.NewJoinOrder(orderID))
	}
	s.mu.Unlock()

	for _, env := range out {
		s.sender.Send(env)
	}

	s.logger.Debug("joined order room", "order_id", orderID)
}

// LeaveOrder sends a leave command for the joined room, if any, and
// always clears local room state.
func (s *Session) LeaveOrder() {
	s.mu.Lock()
	old := s.orderID
	s.orderID = ""
	s.participants = nil
	s.lastUpdate = nil
	s.orderStatus = ""
	s.mu.Unlock()

	if old != "" {
		s.sender.Send(envelope.NewLeaveOrder(old))
		s.logger.Debug("left order room", "order_id", old)
	}
}

// AutoJoin tracks an externally supplied order id and joins only when
// it differs from the current room. An empty id leaves the room.
func (s *Session) AutoJoin(orderID string) {
	if s.CurrentOrderID() == orderID {
		return
	}
	if orderID == "" {
		s.LeaveOrder()
		return
	}
	s.JoinOrder(orderID)
}

// UpdateField broadcasts a field edit for the joined order.
func (s *Session) UpdateField(field string, value any) {
	if orderID := s.CurrentOrderID(); orderID != "" {
		s.sender.Send(envelope.NewUpdateOrderField(orderID, field, value))
	}
}

// BroadcastEditing announces which field the local user started editing.
func (s *Session) BroadcastEditing(field string) {
	if orderID := s.CurrentOrderID(); orderID != "" {
		s.sender.Send(envelope.NewUserEditing(orderID, field))
	}
}

// StopEditing announces that the local user stopped editing.
func (s *Session) StopEditing() {
	if orderID := s.CurrentOrderID(); orderID != "" {
		s.sender.Send(envelope.NewUserStopEditing(orderID))
	}
}

// Close leaves the room and removes the session's listeners. Safe to
// call more than once; teardown runs exactly once.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.LeaveOrder()
		for _, unsub := range s.unsubs {
			unsub()
		}
	})
}

// CurrentOrderID returns the joined order id, or "" if none.
func (s *Session) CurrentOrderID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.orderID
}

// ActiveUsers returns a copy of the room participants.
func (s *Session) ActiveUsers() []Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Participant(nil), s.participants...)
}

// Snapshot returns a point-in-time copy of the room state.
func (s *Session) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()

	return State{
		OrderID:      s.orderID,
		Participants: append([]Participant(nil), s.participants...),
		LastUpdate:   s.lastUpdate,
		OrderStatus:  s.orderStatus,
	}
}

// presencePayload covers the user:* event payloads.
type presencePayload struct {
	OrderID  string `json:"orderId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
	Field    string `json:"field"`
}

// roomStatePayload is the snapshot the backend sends a joining user.
type roomStatePayload struct {
	OrderID     string        `json:"orderId"`
	ActiveUsers []Participant `json:"activeUsers"`
}

// statusPayload covers the order:status_changed payload.
type statusPayload struct {
	OrderID string `json:"orderId"`
	Status  string `json:"status"`
}

// updatePayload covers the parts of order:* payloads the room needs.
type updatePayload struct {
	OrderID string `json:"orderId"`
}

// aiProgressPayload is the repackaged order:ai_processing payload.
type aiProgressPayload struct {
	OrderID    string  `json:"orderId,omitempty"`
	Progress   float64 `json:"progress"`
	Stage      string  `json:"stage"`
	Confidence float64 `json:"confidence"`
}

// scope returns the order id an event belongs to, preferring the
// envelope-level field over the payload one. The backend's order:*
// broadcasts carry the id only inside the payload.
func scope(env envelope.Envelope, payloadOrderID string) string {
	if env.OrderID != "" {
		return env.OrderID
	}
	return payloadOrderID
}

func (s *Session) onUserJoined(env envelope.Envelope) {
	var p presencePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		s.logger.Warn("bad presence payload", "type", env.Type, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orderID == "" || scope(env, p.OrderID) != s.orderID {
		return
	}

	// Upsert by user id: a rejoin replaces the existing entry and
	// drops any previous editing field.
	joined := Participant{UserID: p.UserID, Username: p.Username}
	for i, existing := range s.participants {
		if existing.UserID == p.UserID {
			s.participants[i] = joined
			return
		}
	}
	s.participants = append(s.participants, joined)
}

func (s *Session) onUserLeft(env envelope.Envelope) {
	var p presencePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		s.logger.Warn("bad presence payload", "type", env.Type, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orderID == "" || scope(env, p.OrderID) != s.orderID {
		return
	}

	for i, existing := range s.participants {
		if existing.UserID == p.UserID {
			s.participants = append(s.participants[:i:i], s.participants[i+1:]...)
			return
		}
	}
}

func (s *Session) onUserEditing(env envelope.Envelope) {
	var p presencePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		s.logger.Warn("bad presence payload", "type", env.Type, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orderID == "" || scope(env, p.OrderID) != s.orderID {
		return
	}

	// Editing events never create participants; an unknown user id is
	// a join we have not seen and is ignored.
	for i, existing := range s.participants {
		if existing.UserID == p.UserID {
			s.participants[i].EditingField = p.Field
			return
		}
	}
}

func (s *Session) onRoomState(env envelope.Envelope) {
	var p roomStatePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		s.logger.Warn("bad room state payload", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orderID == "" || scope(env, p.OrderID) != s.orderID {
		return
	}

	// The server snapshot is authoritative for who was already in the
	// room when we joined.
	s.participants = append([]Participant(nil), p.ActiveUsers...)
}

func (s *Session) onStatusChanged(env envelope.Envelope) {
	var p statusPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		s.logger.Warn("bad status payload", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orderID == "" || scope(env, p.OrderID) != s.orderID {
		return
	}

	s.lastUpdate = &env
	if p.Status != "" {
		s.orderStatus = p.Status
	}
}

func (s *Session) onOrderUpdated(env envelope.Envelope) {
	var p updatePayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		s.logger.Warn("bad order update payload", "type", env.Type, "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orderID == "" || scope(env, p.OrderID) != s.orderID {
		return
	}

	s.lastUpdate = &env
}

func (s *Session) onAIProcessing(env envelope.Envelope) {
	var p aiProgressPayload
	if err := json.Unmarshal(env.Payload, &p); err != nil {
		s.logger.Warn("bad ai progress payload", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.orderID == "" || scope(env, p.OrderID) != s.orderID {
		return
	}

	// AI progress is surfaced to the UI as a status-change-class
	// update stamped at receipt.
	payload, _ := json.Marshal(p)
	s.lastUpdate = &envelope.Envelope{
		Type:      envelope.EventOrderStatusChanged,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
		OrderID:   s.orderID,
	}
}
