package audit

import (
	"context"

	"github.com/google/uuid"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	"github.com/m04kA/SMC-TourBookingService/pkg/tracing"
)

// Sink хранилище событий аудита
type Sink interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}

// Metrics счетчик неудачных записей
type Metrics interface {
	IncAuditFailure()
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// Tolerant пишет аудит синхронно, но его сбой не прерывает операцию:
// ошибка логируется и учитывается в метриках, повторов нет.
type Tolerant struct {
	sink    Sink
	metrics Metrics
	logger  Logger
}

// NewTolerant создает устойчивый к ошибкам адаптер аудита. metrics может быть nil.
func NewTolerant(sink Sink, metrics Metrics, logger Logger) *Tolerant {
	return &Tolerant{sink: sink, metrics: metrics, logger: logger}
}

// Record дописывает trace id и пишет событие
func (t *Tolerant) Record(ctx context.Context, event domain.AuditEvent) {
	if event.TraceID == "" {
		event.TraceID = tracing.TraceID(ctx)
	}
	if event.TraceID == "" {
		event.TraceID = uuid.NewString()
	}
	if event.Actor == "" {
		event.Actor = domain.AnonymousActor
	}

	if err := t.sink.Record(ctx, event); err != nil {
		if t.metrics != nil {
			t.metrics.IncAuditFailure()
		}
		t.logger.Error("Audit: failed to record action=%s entity=%s/%d trace=%s: %v",
			event.Action, event.EntityType, event.EntityID, event.TraceID, err)
	}
}
