package create_booking

import (
	"time"

	createBooking "github.com/m04kA/SMC-TourBookingService/internal/usecase/create_booking"
)

// CreateBookingRequest HTTP request model
type CreateBookingRequest struct {
	SlotID        int64   `json:"slotId" validate:"required,gt=0"`
	Qty           int     `json:"qty" validate:"required,gt=0"`
	CustomerID    string  `json:"customerId" validate:"required,max=64"`
	CustomerName  string  `json:"customerName" validate:"required,max=200"`
	CustomerPhone *string `json:"customerPhone,omitempty" validate:"omitempty,e164"`
}

// BookingResponse HTTP response model
type BookingResponse struct {
	ID            int64   `json:"id"`
	Code          string  `json:"code"`
	SlotID        int64   `json:"slotId"`
	Qty           int     `json:"qty"`
	State         string  `json:"state"`
	CustomerID    string  `json:"customerId"`
	CustomerName  string  `json:"customerName"`
	CustomerPhone *string `json:"customerPhone,omitempty"`
	CreatedAt     string  `json:"createdAt"`
	UpdatedAt     string  `json:"updatedAt"`
}

// ToUseCaseRequest конвертирует HTTP запрос в модель use case
func (r *CreateBookingRequest) ToUseCaseRequest(actor string) *createBooking.Request {
	return &createBooking.Request{
		SlotID:        r.SlotID,
		Qty:           r.Qty,
		CustomerID:    r.CustomerID,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		Actor:         actor,
	}
}

// FromUseCaseResponse конвертирует ответ use case в HTTP response
func FromUseCaseResponse(resp *createBooking.Response) *BookingResponse {
	return &BookingResponse{
		ID:            resp.ID,
		Code:          resp.Code,
		SlotID:        resp.SlotID,
		Qty:           resp.Qty,
		State:         resp.State,
		CustomerID:    resp.CustomerID,
		CustomerName:  resp.CustomerName,
		CustomerPhone: resp.CustomerPhone,
		CreatedAt:     resp.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:     resp.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
