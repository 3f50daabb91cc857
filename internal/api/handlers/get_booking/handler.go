package get_booking

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/m04kA/SMC-TourBookingService/internal/api/handlers"
	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings"
	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings/models"
)

const (
	msgInvalidBookingRef = "некорректный ID или код бронирования"
	msgNotFound          = "бронирование не найдено"
)

type Handler struct {
	service BookingService
	logger  Logger
}

func NewHandler(service BookingService, logger Logger) *Handler {
	return &Handler{service: service, logger: logger}
}

// Handle GET /api/v1/bookings/{bookingId}
// bookingId - числовой ID или код брони из подтверждения клиенту
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	ref := mux.Vars(r)["bookingId"]

	var (
		result *models.BookingDetailsResponse
		err    error
	)
	if id, convErr := strconv.ParseInt(ref, 10, 64); convErr == nil {
		if id <= 0 {
			h.logger.Warn("GET /bookings/{id} - Invalid booking ID: %d", id)
			handlers.RespondBadRequest(w, msgInvalidBookingRef)
			return
		}
		result, err = h.service.GetByID(r.Context(), id)
	} else {
		result, err = h.service.GetByCode(r.Context(), ref)
	}

	if err != nil {
		switch {
		case errors.Is(err, bookings.ErrInvalidInput):
			h.logger.Warn("GET /bookings/{id} - Invalid booking reference %q: %v", ref, err)
			handlers.RespondBadRequest(w, msgInvalidBookingRef)
		case errors.Is(err, bookings.ErrBookingNotFound):
			h.logger.Warn("GET /bookings/{id} - Booking not found: ref=%s", ref)
			handlers.RespondNotFound(w, msgNotFound)
		default:
			h.logger.Error("GET /bookings/{id} - Failed to get booking: ref=%s, error=%v", ref, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
