package get_available_slots

import (
	"errors"
	"net/http"

	"github.com/m04kA/SMC-TourBookingService/internal/api/handlers"
	getAvailableSlots "github.com/m04kA/SMC-TourBookingService/internal/usecase/get_available_slots"
)

const (
	msgInvalidRouteID = "некорректный ID маршрута"
	msgMissingRange   = "параметры from и to обязательны"
	msgInvalidRange   = "некорректный формат from/to, ожидается RFC3339"
	msgRouteNotFound  = "маршрут не найден"
)

type Handler struct {
	useCase AvailabilityUseCase
	logger  Logger
}

func NewHandler(useCase AvailabilityUseCase, logger Logger) *Handler {
	return &Handler{
		useCase: useCase,
		logger:  logger,
	}
}

// Handle GET /api/v1/routes/{routeId}/availability
// Query params: from, to (required, RFC3339)
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	routeID, err := handlers.PathID(r, "routeId")
	if err != nil {
		h.logger.Warn("GET /routes/{id}/availability - Invalid route ID: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRouteID)
		return
	}

	fromStr := r.URL.Query().Get("from")
	toStr := r.URL.Query().Get("to")
	if fromStr == "" || toStr == "" {
		h.logger.Warn("GET /routes/{id}/availability - Missing range: route_id=%d", routeID)
		handlers.RespondBadRequest(w, msgMissingRange)
		return
	}

	useCaseReq, err := ToUseCaseRequest(routeID, fromStr, toStr)
	if err != nil {
		h.logger.Warn("GET /routes/{id}/availability - Invalid range: %v", err)
		handlers.RespondBadRequest(w, msgInvalidRange)
		return
	}

	result, err := h.useCase.Execute(r.Context(), useCaseReq)
	if err != nil {
		switch {
		case errors.Is(err, getAvailableSlots.ErrInvalidInput):
			h.logger.Warn("GET /routes/{id}/availability - Invalid input: route_id=%d, error=%v", routeID, err)
			handlers.RespondBadRequest(w, err.Error())

		case errors.Is(err, getAvailableSlots.ErrRouteNotFound):
			h.logger.Warn("GET /routes/{id}/availability - Route not found: route_id=%d", routeID)
			handlers.RespondNotFound(w, msgRouteNotFound)

		default:
			h.logger.Error("GET /routes/{id}/availability - Failed to get slots: route_id=%d, error=%v", routeID, err)
			handlers.RespondInternalError(w)
		}
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
