package domain

import "time"

// Действия, которые пишутся в аудит
const (
	ActionBookingCreated       = "booking.created"
	ActionBookingPlacedOnHold  = "booking.placed_on_hold"
	ActionBookingInvoiceIssued = "booking.invoice_issued"
	ActionBookingConfirmed     = "booking.confirmed"
	ActionBookingCancelled     = "booking.cancelled"
	ActionBookingHoldExpired   = "booking.hold_expired"
)

// EntityBooking тип сущности в аудите
const EntityBooking = "booking"

// AuditEvent неизменяемая запись аудита
type AuditEvent struct {
	ID         int64
	TraceID    string
	Actor      string
	Action     string
	EntityType string
	EntityID   int64
	Before     map[string]interface{}
	After      map[string]interface{}
	CreatedAt  time.Time
}

// BookingEvent уведомление о смене состояния брони, уходит после коммита
type BookingEvent struct {
	Action        string       `json:"action"`
	BookingID     int64        `json:"bookingId"`
	BookingCode   string       `json:"bookingCode"`
	SlotID        int64        `json:"slotId"`
	Qty           int          `json:"qty"`
	FromState     BookingState `json:"fromState"`
	ToState       BookingState `json:"toState"`
	CustomerID    string       `json:"customerId"`
	CustomerPhone *string      `json:"customerPhone,omitempty"`
	OccurredAt    time.Time    `json:"occurredAt"`
}
