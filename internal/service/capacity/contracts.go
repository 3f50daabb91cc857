package capacity

import (
	"context"
	"time"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
)

// SlotRepository доступ к счетчикам слота
type SlotRepository interface {
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Slot, error)
	UpdateCapacity(ctx context.Context, id int64, held, confirmed int, updatedAt time.Time) error
}

// Metrics счетчики операций
type Metrics interface {
	IncCapacityOp(op, outcome string)
}

// TimeProvider источник текущего времени
type TimeProvider interface {
	Now() time.Time
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
