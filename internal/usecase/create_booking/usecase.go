package create_booking

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	bookingRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/booking"
	routeRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/route"
	slotRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/slot"
)

// maxCodeAttempts попытки подобрать свободный код брони
const maxCodeAttempts = 5

// UseCase use case для создания черновика брони.
// Черновик места не удерживает: емкость проверяется при переводе в hold.
type UseCase struct {
	bookingRepo  BookingRepository
	slotRepo     SlotRepository
	routeRepo    RouteRepository
	audit        AuditRecorder
	txManager    TransactionManager
	timeProvider TimeProvider
	maxQty       int
	logger       Logger
}

// NewUseCase создает новый экземпляр use case
func NewUseCase(
	bookingRepo BookingRepository,
	slotRepo SlotRepository,
	routeRepo RouteRepository,
	audit AuditRecorder,
	txManager TransactionManager,
	timeProvider TimeProvider,
	maxQty int,
	logger Logger,
) *UseCase {
	if maxQty <= 0 {
		maxQty = domain.DefaultMaxQty
	}
	return &UseCase{
		bookingRepo:  bookingRepo,
		slotRepo:     slotRepo,
		routeRepo:    routeRepo,
		audit:        audit,
		txManager:    txManager,
		timeProvider: timeProvider,
		maxQty:       maxQty,
		logger:       logger,
	}
}

// Execute выполняет use case создания брони
func (uc *UseCase) Execute(ctx context.Context, req *Request) (*Response, error) {
	uc.logger.Info("CreateBooking: slot=%d, qty=%d, customer=%s", req.SlotID, req.Qty, req.CustomerID)

	// 1. Валидация входных данных
	if err := validateRequest(req, uc.maxQty); err != nil {
		uc.logger.Warn("CreateBooking: validation failed: %v", err)
		return nil, err
	}

	// 2. Код брони случайный; при коллизии транзакция повторяется с новым кодом
	for attempt := 1; attempt <= maxCodeAttempts; attempt++ {
		code, err := newBookingCode()
		if err != nil {
			uc.logger.Error("CreateBooking: failed to generate code: %v", err)
			return nil, fmt.Errorf("%w: generate booking code: %v", ErrInternal, err)
		}

		result, err := uc.create(ctx, req, code)
		if errors.Is(err, bookingRepo.ErrDuplicateCode) {
			uc.logger.Warn("CreateBooking: code collision on attempt %d", attempt)
			continue
		}
		if err != nil {
			return nil, err
		}

		uc.logger.Info("CreateBooking: created booking id=%d code=%s", result.ID, result.Code)
		return toResponse(result), nil
	}

	uc.logger.Error("CreateBooking: no free booking code after %d attempts", maxCodeAttempts)
	return nil, fmt.Errorf("%w: no free booking code after %d attempts", ErrInternal, maxCodeAttempts)
}

func (uc *UseCase) create(ctx context.Context, req *Request, code string) (*domain.Booking, error) {
	var result *domain.Booking

	err := uc.txManager.DoSerializable(ctx, func(txCtx context.Context) error {
		// 2.1. Слот и маршрут
		slot, err := uc.slotRepo.GetByID(txCtx, req.SlotID)
		if err != nil {
			if errors.Is(err, slotRepo.ErrSlotNotFound) {
				uc.logger.Warn("CreateBooking: slot id=%d not found", req.SlotID)
				return ErrSlotNotFound
			}
			uc.logger.Error("CreateBooking: failed to get slot id=%d: %v", req.SlotID, err)
			return fmt.Errorf("%w: failed to get slot: %w", ErrInternal, err)
		}

		route, err := uc.routeRepo.GetByID(txCtx, slot.RouteID)
		if err != nil {
			if errors.Is(err, routeRepo.ErrRouteNotFound) {
				return fmt.Errorf("%w: route id=%d of slot id=%d is missing", ErrSlotNotBookable, slot.RouteID, slot.ID)
			}
			uc.logger.Error("CreateBooking: failed to get route id=%d: %v", slot.RouteID, err)
			return fmt.Errorf("%w: failed to get route: %w", ErrInternal, err)
		}

		now := uc.timeProvider.Now()

		// 2.2. Слот должен быть в продаже и вмещать запрошенное количество
		if err := validateSlot(slot, route, req.Qty, now); err != nil {
			uc.logger.Warn("CreateBooking: slot validation failed: %v", err)
			return err
		}

		// 2.3. Создаем черновик
		created, err := uc.bookingRepo.Create(txCtx, &domain.Booking{
			Code:          code,
			SlotID:        slot.ID,
			Qty:           req.Qty,
			State:         domain.StateDraft,
			CustomerID:    strings.TrimSpace(req.CustomerID),
			CustomerName:  strings.TrimSpace(req.CustomerName),
			CustomerPhone: req.CustomerPhone,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
		if err != nil {
			if errors.Is(err, bookingRepo.ErrDuplicateCode) {
				return err
			}
			uc.logger.Error("CreateBooking: failed to create booking: %v", err)
			return fmt.Errorf("%w: failed to create booking: %w", ErrInternal, err)
		}

		uc.audit.Record(txCtx, domain.AuditEvent{
			Actor:      req.Actor,
			Action:     domain.ActionBookingCreated,
			EntityType: domain.EntityBooking,
			EntityID:   created.ID,
			After: map[string]interface{}{
				"state":      string(created.State),
				"slotId":     created.SlotID,
				"qty":        created.Qty,
				"code":       created.Code,
				"customerId": created.CustomerID,
			},
			CreatedAt: now,
		})

		result = created
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func toResponse(b *domain.Booking) *Response {
	return &Response{
		ID:            b.ID,
		Code:          b.Code,
		SlotID:        b.SlotID,
		Qty:           b.Qty,
		State:         string(b.State),
		CustomerID:    b.CustomerID,
		CustomerName:  b.CustomerName,
		CustomerPhone: b.CustomerPhone,
		CreatedAt:     b.CreatedAt,
		UpdatedAt:     b.UpdatedAt,
	}
}
