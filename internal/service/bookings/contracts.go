package bookings

import (
	"context"
	"time"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
)

// BookingRepository интерфейс репозитория бронирований
type BookingRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Booking, error)
	GetByIDForUpdate(ctx context.Context, id int64) (*domain.Booking, error)
	GetByCode(ctx context.Context, code string) (*domain.Booking, error)
	List(ctx context.Context, filter domain.BookingFilter) ([]*domain.Booking, error)
	UpdateState(ctx context.Context, booking *domain.Booking) error
}

// InvoiceRepository интерфейс репозитория счетов
type InvoiceRepository interface {
	Create(ctx context.Context, inv *domain.Invoice) (*domain.Invoice, error)
	GetByBookingID(ctx context.Context, bookingID int64) (*domain.Invoice, error)
	GetByBookingIDForUpdate(ctx context.Context, bookingID int64) (*domain.Invoice, error)
	MarkPaid(ctx context.Context, id int64, at time.Time) error
	MarkVoid(ctx context.Context, id int64, at time.Time) error
}

// SlotRepository чтение слота без блокировки (блокирует движок емкости)
type SlotRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Slot, error)
}

// RouteRepository интерфейс репозитория маршрутов
type RouteRepository interface {
	GetByID(ctx context.Context, id int64) (*domain.Route, error)
}

// CapacityEngine операции над счетчиками мест слота
type CapacityEngine interface {
	Hold(ctx context.Context, slotID int64, qty int) error
	Confirm(ctx context.Context, slotID int64, qty int) error
	Release(ctx context.Context, slotID int64, qty int) error
}

// AuditRecorder запись аудита; сбой записи не прерывает операцию
type AuditRecorder interface {
	Record(ctx context.Context, event domain.AuditEvent)
}

// Notifier уведомления после коммита
type Notifier interface {
	Notify(ctx context.Context, event domain.BookingEvent)
}

// TransactionManager интерфейс для управления транзакциями
type TransactionManager interface {
	DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error
}

// TimeProvider источник текущего времени
type TimeProvider interface {
	Now() time.Time
}

// Metrics счетчики переходов состояний
type Metrics interface {
	IncTransition(from, to string)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
