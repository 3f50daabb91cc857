package idempotency

import "context"

// Operation защищаемая операция; ее ответ кешируется по ключу
type Operation func(ctx context.Context) (Response, error)

// Metrics исходы проверки ключа
type Metrics interface {
	IncIdempotency(outcome string)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
