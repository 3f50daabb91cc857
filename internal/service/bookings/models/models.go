package models

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
)

var (
	// ErrInvalidState возвращается при некорректном состоянии брони в фильтре
	ErrInvalidState = errors.New("invalid booking state")
)

// Request модели

// TransitionRequest запрос на перевод брони (hold, invoice)
type TransitionRequest struct {
	BookingID int64
	Actor     string
}

// ConfirmRequest подтверждение оплаты
type ConfirmRequest struct {
	BookingID  int64
	PaymentRef string
	Actor      string
}

// CancelRequest отмена брони
type CancelRequest struct {
	BookingID int64
	Reason    string
	Actor     string
}

// ListByCustomerRequest брони клиента, опционально по состоянию
type ListByCustomerRequest struct {
	CustomerID string
	State      *string
}

// ListBySlotRequest брони на слоте, опционально по состоянию
type ListBySlotRequest struct {
	SlotID int64
	State  *string
}

// Response модели

// BookingResponse ответ с данными бронирования
type BookingResponse struct {
	ID            int64      `json:"id"`
	Code          string     `json:"code"`
	SlotID        int64      `json:"slotId"`
	Qty           int        `json:"qty"`
	State         string     `json:"state"`
	CustomerID    string     `json:"customerId"`
	CustomerName  string     `json:"customerName"`
	CustomerPhone *string    `json:"customerPhone,omitempty"`
	CancelReason  *string    `json:"cancelReason,omitempty"`
	PaymentRef    *string    `json:"paymentRef,omitempty"`
	HoldExpiresAt *time.Time `json:"holdExpiresAt,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
}

// InvoiceResponse ответ с данными счета
type InvoiceResponse struct {
	ID        int64           `json:"id"`
	BookingID int64           `json:"bookingId"`
	Number    string          `json:"number"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Status    string          `json:"status"`
	IssuedAt  time.Time       `json:"issuedAt"`
	PaidAt    *time.Time      `json:"paidAt,omitempty"`
	VoidedAt  *time.Time      `json:"voidedAt,omitempty"`
}

// BookingDetailsResponse бронь вместе со счетом (если выставлен)
type BookingDetailsResponse struct {
	Booking *BookingResponse `json:"booking"`
	Invoice *InvoiceResponse `json:"invoice,omitempty"`
}

// IssueInvoiceResponse результат выставления счета.
// Created=false, если счет уже существовал и возвращен без изменений.
type IssueInvoiceResponse struct {
	Booking *BookingResponse `json:"booking"`
	Invoice *InvoiceResponse `json:"invoice"`
	Created bool             `json:"created"`
}

// ExpireResult результат попытки снять просроченное удержание
type ExpireResult struct {
	Expired bool
	Booking *BookingResponse
}

// BookingListResponse ответ со списком бронирований
type BookingListResponse struct {
	Bookings []BookingResponse `json:"bookings"`
}

// Методы конвертации

// FromDomainBooking конвертирует domain модель в DTO
func FromDomainBooking(b *domain.Booking) *BookingResponse {
	if b == nil {
		return nil
	}

	resp := &BookingResponse{
		ID:            b.ID,
		Code:          b.Code,
		SlotID:        b.SlotID,
		Qty:           b.Qty,
		State:         string(b.State),
		CustomerID:    b.CustomerID,
		CustomerName:  b.CustomerName,
		CustomerPhone: b.CustomerPhone,
		PaymentRef:    b.PaymentRef,
		HoldExpiresAt: b.HoldExpiresAt,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
	if b.CancelReason != nil {
		reason := string(*b.CancelReason)
		resp.CancelReason = &reason
	}

	return resp
}

// FromDomainInvoice конвертирует счет в DTO
func FromDomainInvoice(inv *domain.Invoice) *InvoiceResponse {
	if inv == nil {
		return nil
	}
	return &InvoiceResponse{
		ID:        inv.ID,
		BookingID: inv.BookingID,
		Number:    inv.Number,
		Amount:    inv.Amount,
		Currency:  inv.Currency,
		Status:    string(inv.Status),
		IssuedAt:  inv.IssuedAt,
		PaidAt:    inv.PaidAt,
		VoidedAt:  inv.VoidedAt,
	}
}

// FromDomainBookingList конвертирует список domain моделей в DTO
func FromDomainBookingList(bookings []*domain.Booking) *BookingListResponse {
	resp := &BookingListResponse{
		Bookings: make([]BookingResponse, 0, len(bookings)),
	}
	for _, booking := range bookings {
		if bookingResp := FromDomainBooking(booking); bookingResp != nil {
			resp.Bookings = append(resp.Bookings, *bookingResp)
		}
	}
	return resp
}

// ToDomainBookingState конвертирует строку в domain.BookingState с валидацией
func ToDomainBookingState(state string) (domain.BookingState, error) {
	s, ok := domain.ParseBookingState(state)
	if !ok {
		return "", ErrInvalidState
	}
	return s, nil
}
