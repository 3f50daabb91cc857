package get_available_slots

import (
	"fmt"
	"time"

	getAvailableSlots "github.com/m04kA/SMC-TourBookingService/internal/usecase/get_available_slots"
)

// ToUseCaseRequest разбирает границы диапазона в формате RFC3339
func ToUseCaseRequest(routeID int64, fromStr, toStr string) (*getAvailableSlots.Request, error) {
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		return nil, fmt.Errorf("from: %w", err)
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		return nil, fmt.Errorf("to: %w", err)
	}
	return &getAvailableSlots.Request{RouteID: routeID, From: from, To: to}, nil
}
