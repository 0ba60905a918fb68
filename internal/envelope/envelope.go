package envelope

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Errors
var (
	ErrEmptyType = errors.New("envelope missing type")
)

// Outbound command types accepted by the freight backend.
const (
	CmdJoinOrder        = "join_order"
	CmdLeaveOrder       = "leave_order"
	CmdUpdateOrderField = "update_order_field"
	CmdUserEditing      = "user_editing"
	CmdUserStopEditing  = "user_stop_editing"
	CmdPing             = "ping"
)

// Inbound event types emitted by the freight backend.
const (
	EventOrderStatusChanged    = "order:status_changed"
	EventOrderUpdated          = "order:updated"
	EventOrderPricingUpdated   = "order:pricing_updated"
	EventOrderAIProcessing     = "order:ai_processing"
	EventUserJoinedOrder       = "user:joined_order"
	EventUserLeftOrder         = "user:left_order"
	EventUserEditing           = "user:editing"
	EventRoomState             = "room:state"
	EventConnectionEstablished = "connection:established"
	EventPong                  = "pong"
	EventError                 = "error"
)

// Envelope is the wire-level message unit. The payload stays opaque
// until a listener that knows the type decodes it. Timestamp is stamped
// by the sender and is not an ordering authority.
type Envelope struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp time.Time       `json:"timestamp"`
	OrderID   string          `json:"orderId,omitempty"`
}

// Marshal serializes an envelope for the wire.
func Marshal(env Envelope) ([]byte, error) {
	data, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("marshal envelope: %w", err)
	}
	return data, nil
}

// Decode parses a raw frame into an Envelope. Frames without a type are
// rejected so malformed server messages never reach dispatch.
func Decode(raw []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Envelope{}, fmt.Errorf("decode envelope: %w", err)
	}
	if env.Type == "" {
		return Envelope{}, ErrEmptyType
	}
	return env, nil
}

// commandPayload is the shape the backend expects for room commands.
type commandPayload struct {
	OrderID string `json:"orderId"`
	Field   string `json:"field,omitempty"`
	Value   any    `json:"value,omitempty"`
}

// NewJoinOrder builds a join_order command for an order room.
func NewJoinOrder(orderID string) Envelope {
	return newCommand(CmdJoinOrder, commandPayload{OrderID: orderID})
}

// NewLeaveOrder builds a leave_order command for an order room.
func NewLeaveOrder(orderID string) Envelope {
	return newCommand(CmdLeaveOrder, commandPayload{OrderID: orderID})
}

// NewUpdateOrderField builds an update_order_field command.
func NewUpdateOrderField(orderID, field string, value any) Envelope {
	return newCommand(CmdUpdateOrderField, commandPayload{OrderID: orderID, Field: field, Value: value})
}

// NewUserEditing builds a user_editing command announcing which field
// the local user started editing.
func NewUserEditing(orderID, field string) Envelope {
	return newCommand(CmdUserEditing, commandPayload{OrderID: orderID, Field: field})
}

// NewUserStopEditing builds a user_stop_editing command.
func NewUserStopEditing(orderID string) Envelope {
	return newCommand(CmdUserStopEditing, commandPayload{OrderID: orderID})
}

// NewPing builds a keepalive ping command.
func NewPing() Envelope {
	return Envelope{Type: CmdPing, Payload: json.RawMessage(`{}`)}
}

func newCommand(typ string, p commandPayload) Envelope {
	// Payload shapes are fixed structs; marshal cannot fail.
	data, _ := json.Marshal(p)
	return Envelope{
		Type:    typ,
		Payload: data,
		OrderID: p.OrderID,
	}
}
