package middleware

import (
	"context"
	"time"

	"github.com/m04kA/SMC-TourBookingService/internal/infra/idempotency"
)

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// HTTPMetrics сбор метрик HTTP запросов
type HTTPMetrics interface {
	ObserveHTTP(method, route string, status int, elapsed time.Duration)
}

// Admitter ограничитель частоты запросов
type Admitter interface {
	Admit(ctx context.Context, identifier string, limit int, window time.Duration) error
}

// IdempotencyGate выполнение операции не более одного раза на ключ
type IdempotencyGate interface {
	Execute(ctx context.Context, scope, key string, op idempotency.Operation) (idempotency.Response, error)
}
