package place_hold

import (
	"errors"
	"net/http"

	"github.com/m04kA/SMC-TourBookingService/internal/api/handlers"
	"github.com/m04kA/SMC-TourBookingService/internal/api/middleware"
	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings"
	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings/models"
)

const (
	msgInvalidBookingID     = "некорректный ID бронирования"
	msgNotFound             = "бронирование не найдено"
	msgSlotNotFound         = "выезд не найден"
	msgCannotHold           = "бронь нельзя перевести в удержание из текущего состояния"
	msgInsufficientCapacity = "недостаточно свободных мест"
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

// Handle POST /api/v1/bookings/{bookingId}/hold
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	bookingID, err := handlers.PathID(r, "bookingId")
	if err != nil {
		h.logger.Warn("POST /bookings/{id}/hold - Invalid booking ID: %v", err)
		handlers.RespondBadRequest(w, msgInvalidBookingID)
		return
	}

	result, err := h.service.PlaceHold(r.Context(), &models.TransitionRequest{
		BookingID: bookingID,
		Actor:     middleware.GetActor(r.Context()),
	})
	if err != nil {
		switch {
		case errors.Is(err, bookings.ErrBookingNotFound):
			h.logger.Warn("POST /bookings/{id}/hold - Booking not found: booking_id=%d", bookingID)
			handlers.RespondNotFound(w, msgNotFound)

		case errors.Is(err, bookings.ErrSlotNotFound):
			h.logger.Warn("POST /bookings/{id}/hold - Slot not found: booking_id=%d", bookingID)
			handlers.RespondNotFound(w, msgSlotNotFound)

		case errors.Is(err, bookings.ErrInsufficientCapacity):
			h.logger.Warn("POST /bookings/{id}/hold - Insufficient capacity: booking_id=%d", bookingID)
			handlers.RespondInsufficientCapacity(w, msgInsufficientCapacity)

		case errors.Is(err, bookings.ErrConflict):
			h.logger.Warn("POST /bookings/{id}/hold - Conflict: booking_id=%d, error=%v", bookingID, err)
			handlers.RespondConflict(w, msgCannotHold)

		case errors.Is(err, bookings.ErrInvalidInput):
			handlers.RespondBadRequest(w, err.Error())

		default:
			h.logger.Error("POST /bookings/{id}/hold - Failed to place hold: booking_id=%d, error=%v", bookingID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	h.logger.Info("POST /bookings/{id}/hold - Hold placed: booking_id=%d, qty=%d", bookingID, result.Qty)
	handlers.RespondJSON(w, http.StatusOK, result)
}
