package cancel_booking

import (
	"context"

	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings/models"
)

// BookingService отмена брони из hold или invoice с освобождением мест
type BookingService interface {
	Cancel(ctx context.Context, req *models.CancelRequest) (*models.BookingDetailsResponse, error)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
