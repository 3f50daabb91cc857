package sweep_expired_holds

import (
	"context"
	"time"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings/models"
)

// BookingRepository интерфейс репозитория бронирований
type BookingRepository interface {
	ListExpiredHolds(ctx context.Context, now time.Time, afterID int64, limit int) ([]*domain.Booking, error)
}

// BookingService снимает удержание с одной брони в собственной транзакции
type BookingService interface {
	ExpireHold(ctx context.Context, bookingID int64) (*models.ExpireResult, error)
}

// Metrics счетчики результатов прохода
type Metrics interface {
	AddSweeperResult(result string, n int)
}

// TimeProvider интерфейс для получения текущего времени (для тестирования)
type TimeProvider interface {
	Now() time.Time
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
