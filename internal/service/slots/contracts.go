package slots

import (
	"context"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
)

// SlotRepository интерфейс репозитория слотов
type SlotRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Slot, error)
}

// RouteRepository интерфейс репозитория маршрутов
type RouteRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Route, error)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
