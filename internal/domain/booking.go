package domain

import "time"

// BookingState состояние брони
type BookingState string

const (
	StateDraft   BookingState = "draft"
	StateHold    BookingState = "hold"
	StateInvoice BookingState = "invoice"
	StateConfirm BookingState = "confirm"
	StateCancel  BookingState = "cancel"
)

// CancelReason причина отмены, заполняется только в состоянии cancel
type CancelReason string

const (
	CancelUserRequest CancelReason = "user_request"
	CancelOpsRequest  CancelReason = "ops_request"
	CancelExpired     CancelReason = "expired"
)

// transitions допустимые переходы: draft → hold → invoice → confirm, cancel из hold и invoice
var transitions = map[BookingState][]BookingState{
	StateDraft:   {StateHold},
	StateHold:    {StateInvoice, StateCancel},
	StateInvoice: {StateConfirm, StateCancel},
}

// Booking попытка клиента занять qty мест на одном слоте
type Booking struct {
	ID     int64
	Code   string
	SlotID int64
	Qty    int
	State  BookingState

	CustomerID    string
	CustomerName  string
	CustomerPhone *string

	CancelReason  *CancelReason
	PaymentRef    *string
	HoldExpiresAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// CanTransitionTo true, если переход из текущего состояния в next разрешен
func (b *Booking) CanTransitionTo(next BookingState) bool {
	for _, s := range transitions[b.State] {
		if s == next {
			return true
		}
	}
	return false
}

// IsTerminal true для confirm и cancel
func (b *Booking) IsTerminal() bool {
	return b.State == StateConfirm || b.State == StateCancel
}

// HoldsCapacity true, пока бронь удерживает места в capacityHeld
func (b *Booking) HoldsCapacity() bool {
	return b.State == StateHold || b.State == StateInvoice
}

// IsHoldExpired true, если бронь в hold и срок удержания истек к моменту now
func (b *Booking) IsHoldExpired(now time.Time) bool {
	return b.State == StateHold && b.HoldExpiresAt != nil && !b.HoldExpiresAt.After(now)
}

// ParseBookingState проверяет строковое значение состояния
func ParseBookingState(s string) (BookingState, bool) {
	switch st := BookingState(s); st {
	case StateDraft, StateHold, StateInvoice, StateConfirm, StateCancel:
		return st, true
	}
	return "", false
}

// ParseCancelReason проверяет строковое значение причины отмены
func ParseCancelReason(s string) (CancelReason, bool) {
	switch r := CancelReason(s); r {
	case CancelUserRequest, CancelOpsRequest, CancelExpired:
		return r, true
	}
	return "", false
}

// BookingFilter фильтр списка броней
type BookingFilter struct {
	CustomerID *string
	SlotID     *int64
	State      *BookingState
	Limit      int
}
