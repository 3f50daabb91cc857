package confirm_booking

// ConfirmBookingRequest HTTP request model
type ConfirmBookingRequest struct {
	PaymentRef string `json:"paymentRef" validate:"required,max=128"`
}
