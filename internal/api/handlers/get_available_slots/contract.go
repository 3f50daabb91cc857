package get_available_slots

import (
	"context"

	getAvailableSlots "github.com/m04kA/SMC-TourBookingService/internal/usecase/get_available_slots"
)

// AvailabilityUseCase слоты маршрута со свободными местами
type AvailabilityUseCase interface {
	Execute(ctx context.Context, req *getAvailableSlots.Request) (*getAvailableSlots.Response, error)
}

type Logger interface {
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
