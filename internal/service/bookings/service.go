package bookings

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	bookingRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/booking"
	"github.com/m04kA/SMC-TourBookingService/internal/service/capacity"
	"github.com/m04kA/SMC-TourBookingService/pkg/tracing"
)

// Dependencies зависимости сервиса бронирований
type Dependencies struct {
	Bookings  BookingRepository
	Invoices  InvoiceRepository
	Slots     SlotRepository
	Routes    RouteRepository
	Capacity  CapacityEngine
	Audit     AuditRecorder
	Notifier  Notifier
	TxManager TransactionManager
	Clock     TimeProvider
	// Metrics может быть nil
	Metrics Metrics
}

// Service единственная машина состояний брони.
// Каждый переход выполняется в одной сериализуемой транзакции и блокирует строки
// в порядке бронь → счет → слот.
type Service struct {
	bookingRepo BookingRepository
	invoiceRepo InvoiceRepository
	slotRepo    SlotRepository
	routeRepo   RouteRepository
	capacity    CapacityEngine
	audit       AuditRecorder
	notifier    Notifier
	txManager   TransactionManager
	clock       TimeProvider
	metrics     Metrics
	holdTTL     time.Duration
	tracer      trace.Tracer
	logger      Logger
}

// NewService создает новый экземпляр сервиса бронирований
func NewService(deps Dependencies, holdTTL time.Duration, logger Logger) *Service {
	if holdTTL <= 0 {
		holdTTL = domain.DefaultHoldTTL
	}
	return &Service{
		bookingRepo: deps.Bookings,
		invoiceRepo: deps.Invoices,
		slotRepo:    deps.Slots,
		routeRepo:   deps.Routes,
		capacity:    deps.Capacity,
		audit:       deps.Audit,
		notifier:    deps.Notifier,
		txManager:   deps.TxManager,
		clock:       deps.Clock,
		metrics:     deps.Metrics,
		holdTTL:     holdTTL,
		tracer:      tracing.Tracer("github.com/m04kA/SMC-TourBookingService/internal/service/bookings"),
		logger:      logger,
	}
}

// transition зафиксированный переход брони: снимки до и после
type transition struct {
	actor   string
	action  string
	before  domain.Booking
	after   domain.Booking
	at      time.Time
	payload map[string]interface{}
}

func newTransition(actor, action string, before domain.Booking, after *domain.Booking, at time.Time, payload map[string]interface{}) *transition {
	if actor == "" {
		actor = domain.AnonymousActor
	}
	return &transition{
		actor:   actor,
		action:  action,
		before:  before,
		after:   *after,
		at:      at,
		payload: payload,
	}
}

func (t *transition) auditEvent() domain.AuditEvent {
	after := bookingSnapshot(&t.after)
	for k, v := range t.payload {
		after[k] = v
	}
	return domain.AuditEvent{
		Actor:      t.actor,
		Action:     t.action,
		EntityType: domain.EntityBooking,
		EntityID:   t.after.ID,
		Before:     bookingSnapshot(&t.before),
		After:      after,
		CreatedAt:  t.at,
	}
}

func (t *transition) bookingEvent() domain.BookingEvent {
	return domain.BookingEvent{
		Action:        t.action,
		BookingID:     t.after.ID,
		BookingCode:   t.after.Code,
		SlotID:        t.after.SlotID,
		Qty:           t.after.Qty,
		FromState:     t.before.State,
		ToState:       t.after.State,
		CustomerID:    t.after.CustomerID,
		CustomerPhone: t.after.CustomerPhone,
		OccurredAt:    t.at,
	}
}

func bookingSnapshot(b *domain.Booking) map[string]interface{} {
	snap := map[string]interface{}{
		"state":  string(b.State),
		"slotId": b.SlotID,
		"qty":    b.Qty,
	}
	if b.HoldExpiresAt != nil {
		snap["holdExpiresAt"] = b.HoldExpiresAt.UTC().Format(time.RFC3339Nano)
	}
	if b.CancelReason != nil {
		snap["cancelReason"] = string(*b.CancelReason)
	}
	if b.PaymentRef != nil {
		snap["paymentRef"] = *b.PaymentRef
	}
	return snap
}

// lockBooking читает бронь с блокировкой строки, первой в порядке блокировок
func (s *Service) lockBooking(ctx context.Context, op string, id int64) (*domain.Booking, error) {
	booking, err := s.bookingRepo.GetByIDForUpdate(ctx, id)
	if err != nil {
		if errors.Is(err, bookingRepo.ErrBookingNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrBookingNotFound, id)
		}
		return nil, fmt.Errorf("%w: %s - lock booking: %w", ErrInternal, op, err)
	}
	return booking, nil
}

func (s *Service) saveBooking(ctx context.Context, op string, booking *domain.Booking) error {
	if err := s.bookingRepo.UpdateState(ctx, booking); err != nil {
		return fmt.Errorf("%w: %s - update booking: %w", ErrInternal, op, err)
	}
	return nil
}

// commit пишет аудит перехода внутри транзакции
func (s *Service) commit(ctx context.Context, t *transition) {
	s.audit.Record(ctx, t.auditEvent())
}

// afterCommit метрики и уведомления, только после успешного коммита
func (s *Service) afterCommit(ctx context.Context, t *transition) {
	if t == nil {
		return
	}
	if s.metrics != nil {
		s.metrics.IncTransition(string(t.before.State), string(t.after.State))
	}
	if s.notifier != nil {
		s.notifier.Notify(ctx, t.bookingEvent())
	}
}

func mapCapacityError(op string, err error) error {
	switch {
	case errors.Is(err, capacity.ErrInsufficientCapacity):
		return fmt.Errorf("%w: %s - %w", ErrInsufficientCapacity, op, err)
	case errors.Is(err, capacity.ErrSlotNotFound):
		return fmt.Errorf("%w: %s - %w", ErrSlotNotFound, op, err)
	case errors.Is(err, capacity.ErrInvalidCapacityState):
		return fmt.Errorf("%w: %s - %w", ErrConflict, op, err)
	default:
		return fmt.Errorf("%w: %s - capacity: %w", ErrInternal, op, err)
	}
}

// isClientError ошибки, которые не требуют внимания дежурного
func isClientError(err error) bool {
	return errors.Is(err, ErrBookingNotFound) ||
		errors.Is(err, ErrSlotNotFound) ||
		errors.Is(err, ErrRouteNotFound) ||
		errors.Is(err, ErrInvoiceNotFound) ||
		errors.Is(err, ErrConflict) ||
		errors.Is(err, ErrHoldExpired) ||
		errors.Is(err, ErrInsufficientCapacity) ||
		errors.Is(err, ErrInvalidInput)
}

func (s *Service) logFailure(op string, bookingID int64, err error) {
	if isClientError(err) {
		s.logger.Warn("%s: booking id=%d rejected: %v", op, bookingID, err)
		return
	}
	s.logger.Error("%s: booking id=%d failed: %v", op, bookingID, err)
}

func (s *Service) startSpan(ctx context.Context, name string, bookingID int64) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, name, trace.WithAttributes(attribute.Int64("booking.id", bookingID)))
}

func finishSpan(span trace.Span, err error) {
	if err != nil && !isClientError(err) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
