package notify

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
)

const defaultQueueSize = 1024

// ErrDrainTimeout очередь не успела разойтись до остановки
var ErrDrainTimeout = errors.New("notify: pending events were not delivered before shutdown")

// Publisher канал доставки уведомлений (брокер, SMS)
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event domain.BookingEvent) error
}

// Metrics счетчик сбоев доставки
type Metrics interface {
	IncNotifyFailure(notifier string)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

type job struct {
	ctx   context.Context
	event domain.BookingEvent
}

// Multi рассылает событие во все каналы в фоне, вне пути запроса.
// События уходят одним воркером в порядке Notify. Сбой одного канала логируется
// и не мешает остальным; вызывающий код ошибок не получает.
type Multi struct {
	publishers []Publisher
	metrics    Metrics
	logger     Logger

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}
}

// NewMulti создает рассылку и запускает воркер. Пустой список допустим: уведомления отключены.
// После использования нужно вызвать Close.
func NewMulti(metrics Metrics, logger Logger, publishers ...Publisher) *Multi {
	return newMulti(defaultQueueSize, metrics, logger, publishers...)
}

func newMulti(queueSize int, metrics Metrics, logger Logger, publishers ...Publisher) *Multi {
	m := &Multi{
		publishers: publishers,
		metrics:    metrics,
		logger:     logger,
		queue:      make(chan job, queueSize),
		done:       make(chan struct{}),
	}
	go m.run()
	return m
}

// Notify ставит событие в очередь и сразу возвращается.
// Контекст запроса отвязан от отмены: значения (трейс) сохраняются, а ответ клиенту не обрывает доставку.
// Переполненная очередь или закрытая рассылка - событие отбрасывается с записью в метрику.
func (m *Multi) Notify(ctx context.Context, event domain.BookingEvent) {
	if len(m.publishers) == 0 {
		return
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		m.drop("closed", event)
		return
	}

	select {
	case m.queue <- job{ctx: context.WithoutCancel(ctx), event: event}:
	default:
		m.drop("queue full", event)
	}
}

// Close перестает принимать события и ждет доставки уже поставленных в очередь.
// Если ctx истек раньше, возвращает ErrDrainTimeout.
func (m *Multi) Close(ctx context.Context) error {
	m.mu.Lock()
	if !m.closed {
		m.closed = true
		close(m.queue)
	}
	m.mu.Unlock()

	select {
	case <-m.done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("%w: %d left: %w", ErrDrainTimeout, len(m.queue), ctx.Err())
	}
}

func (m *Multi) run() {
	defer close(m.done)
	for j := range m.queue {
		m.deliver(j.ctx, j.event)
	}
}

func (m *Multi) deliver(ctx context.Context, event domain.BookingEvent) {
	for _, p := range m.publishers {
		if err := p.Publish(ctx, event); err != nil {
			if m.metrics != nil {
				m.metrics.IncNotifyFailure(p.Name())
			}
			m.logger.Warn("Notify: %s failed for booking=%d action=%s: %v", p.Name(), event.BookingID, event.Action, err)
		}
	}
}

func (m *Multi) drop(reason string, event domain.BookingEvent) {
	if m.metrics != nil {
		m.metrics.IncNotifyFailure("queue")
	}
	m.logger.Warn("Notify: dropped booking=%d action=%s: %s", event.BookingID, event.Action, reason)
}
