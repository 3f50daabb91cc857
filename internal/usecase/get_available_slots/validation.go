package get_available_slots

import (
	"fmt"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
)

// validateRequest валидирует входные данные запроса
func validateRequest(req *Request) error {
	if req.RouteID <= 0 {
		return fmt.Errorf("%w: routeId must be positive", ErrInvalidInput)
	}

	if req.From.IsZero() || req.To.IsZero() {
		return fmt.Errorf("%w: from and to are required", ErrInvalidInput)
	}

	if !req.From.Before(req.To) {
		return fmt.Errorf("%w: from must be before to", ErrInvalidInput)
	}

	if req.To.Sub(req.From) > domain.MaxAvailabilityRange {
		return fmt.Errorf("%w: range must not exceed %d days", ErrInvalidInput, int(domain.MaxAvailabilityRange.Hours()/24))
	}

	return nil
}
