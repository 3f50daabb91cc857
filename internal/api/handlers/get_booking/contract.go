package get_booking

import (
	"context"

	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings/models"
)

// BookingService чтение брони по числовому ID или по коду
type BookingService interface {
	GetByID(ctx context.Context, id int64) (*models.BookingDetailsResponse, error)
	GetByCode(ctx context.Context, code string) (*models.BookingDetailsResponse, error)
}

type Logger interface {
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
