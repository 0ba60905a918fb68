package model

import (
	"time"

	"github.com/google/uuid"
)

// Order represents a freight transport order.
type Order struct {
	ID          uuid.UUID `json:"id"`
	OrderNumber string    `json:"orderNumber"` // Human-facing reference (e.g., "FR-2026-01842")
	ClientName  string    `json:"clientName"`

	// Route
	PickupCity      string `json:"pickupCity"`
	PickupCountry   string `json:"pickupCountry"`
	DeliveryCity    string `json:"deliveryCity"`
	DeliveryCountry string `json:"deliveryCountry"`

	// Cargo
	CargoDescription string  `json:"cargoDescription"`
	WeightKG         float64 `json:"weightKg"`

	// Commercial
	PriceEUR float64 `json:"priceEur"`
	Status   Status  `json:"status"`

	PickupDate   time.Time `json:"pickupDate"`
	DeliveryDate time.Time `json:"deliveryDate"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Status is an order lifecycle status.
type Status string

// Order lifecycle statuses, in progression order.
const (
	StatusDraft     Status = "draft"
	StatusConfirmed Status = "confirmed"
	StatusInTransit Status = "in_transit"
	StatusDelivered Status = "delivered"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known order status.
func (s Status) Valid() bool {
	switch s {
	case StatusDraft, StatusConfirmed, StatusInTransit, StatusDelivered, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether the order can no longer change status.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}
