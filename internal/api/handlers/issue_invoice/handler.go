package issue_invoice

import (
	"errors"
	"net/http"

	"github.com/m04kA/SMC-TourBookingService/internal/api/handlers"
	"github.com/m04kA/SMC-TourBookingService/internal/api/middleware"
	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings"
	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings/models"
)

const (
	msgInvalidBookingID = "некорректный ID бронирования"
	msgNotFound         = "бронирование не найдено"
	msgCannotInvoice    = "счет можно выставить только на удерживаемую бронь"
	msgHoldExpired      = "срок удержания мест истек"
)

type Handler struct {
	service BookingService
	logger  Logger
}

func NewHandler(service BookingService, logger Logger) *Handler {
	return &Handler{
		service: service,
		logger:  logger,
	}
}

// Handle POST /api/v1/bookings/{bookingId}/invoice
// 201 для нового счета, 200 если счет уже был выставлен
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	bookingID, err := handlers.PathID(r, "bookingId")
	if err != nil {
		h.logger.Warn("POST /bookings/{id}/invoice - Invalid booking ID: %v", err)
		handlers.RespondBadRequest(w, msgInvalidBookingID)
		return
	}

	result, err := h.service.IssueInvoice(r.Context(), &models.TransitionRequest{
		BookingID: bookingID,
		Actor:     middleware.GetActor(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, bookings.ErrBookingNotFound),
			errors.Is(err, bookings.ErrSlotNotFound),
			errors.Is(err, bookings.ErrRouteNotFound):
			h.logger.Warn("POST /bookings/{id}/invoice - Not found: booking_id=%d, error=%v", bookingID, err)
			handlers.RespondNotFound(w, msgNotFound)

		case errors.Is(err, bookings.ErrHoldExpired):
			h.logger.Warn("POST /bookings/{id}/invoice - Hold expired: booking_id=%d", bookingID)
			handlers.RespondConflict(w, msgHoldExpired)

		case errors.Is(err, bookings.ErrConflict):
			h.logger.Warn("POST /bookings/{id}/invoice - Conflict: booking_id=%d, error=%v", bookingID, err)
			handlers.RespondConflict(w, msgCannotInvoice)

		default:
			h.logger.Error("POST /bookings/{id}/invoice - Failed to issue invoice: booking_id=%d, error=%v", bookingID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	status := http.StatusOK
	if result.Created {
		status = http.StatusCreated
	}
	h.logger.Info("POST /bookings/{id}/invoice - Invoice %s: booking_id=%d, created=%t",
		result.Invoice.Number, bookingID, result.Created)
	handlers.RespondJSON(w, status, result)
}
