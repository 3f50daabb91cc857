package domain

import "time"

const (
	// DefaultHoldTTL время удержания мест до выставления счета
	DefaultHoldTTL = 30 * time.Minute

	MinQty                = 1
	DefaultMaxQty         = 20
	MaxCustomerIDLength   = 64
	MaxCustomerNameLength = 200
	MaxPaymentRefLength   = 128
	BookingCodeLength     = 8
	DefaultListLimit      = 100
	MaxAvailabilityRange  = 93 * 24 * time.Hour
	SystemActorSweeper    = "system:sweeper"
	AnonymousActor        = "anonymous"
)

// TimeFormat формат времени во внешних ответах
const TimeFormat = time.RFC3339

// ActiveStates состояния, в которых бронь удерживает места
var ActiveStates = []BookingState{
	StateHold,
	StateInvoice,
}
