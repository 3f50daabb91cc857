package cancel_booking

// CancelBookingRequest HTTP request model.
// expired ставит только свипер, клиенту она недоступна.
type CancelBookingRequest struct {
	Reason string `json:"reason" validate:"required,oneof=user_request ops_request"`
}
