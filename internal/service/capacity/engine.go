package capacity

import (
	"context"
	"errors"
	"fmt"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	slotRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/slot"
	"github.com/m04kA/SMC-TourBookingService/pkg/dbmetrics"
)

const (
	opHold    = "hold"
	opConfirm = "confirm"
	opRelease = "release"
)

// Engine удерживает, подтверждает и освобождает места слота.
// Каждая операция читает слот под эксклюзивной блокировкой строки
// в транзакции вызывающего кода, поэтому изменения счетчиков
// фиксируются вместе с изменением брони или не фиксируются вовсе.
type Engine struct {
	slots   SlotRepository
	clock   TimeProvider
	metrics Metrics
	logger  Logger
}

// NewEngine создает движок вместимости. metrics может быть nil.
func NewEngine(slots SlotRepository, clock TimeProvider, metrics Metrics, logger Logger) *Engine {
	return &Engine{
		slots:   slots,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Hold удерживает qty мест: capacityHeld += qty
func (e *Engine) Hold(ctx context.Context, slotID int64, qty int) error {
	if err := e.precheck(ctx, qty); err != nil {
		return e.fail(opHold, err)
	}

	slot, err := e.lockSlot(ctx, slotID)
	if err != nil {
		return e.fail(opHold, err)
	}

	available := slot.Remaining()
	if available < qty {
		e.logger.Warn("Hold: insufficient capacity slot=%d requested=%d available=%d", slotID, qty, available)
		return e.fail(opHold, fmt.Errorf("%w: slot=%d requested=%d available=%d", ErrInsufficientCapacity, slotID, qty, available))
	}

	if err := e.slots.UpdateCapacity(ctx, slotID, slot.CapacityHeld+qty, slot.CapacityConfirmed, e.clock.Now()); err != nil {
		e.logger.Error("Hold: failed to update slot=%d: %v", slotID, err)
		return e.fail(opHold, fmt.Errorf("%w: Hold - update slot: %w", ErrInternal, err))
	}

	e.logger.Info("Hold: slot=%d held=%d->%d", slotID, slot.CapacityHeld, slot.CapacityHeld+qty)
	e.ok(opHold)
	return nil
}

// Confirm переводит qty мест из удержанных в подтвержденные
func (e *Engine) Confirm(ctx context.Context, slotID int64, qty int) error {
	if err := e.precheck(ctx, qty); err != nil {
		return e.fail(opConfirm, err)
	}

	slot, err := e.lockSlot(ctx, slotID)
	if err != nil {
		return e.fail(opConfirm, err)
	}

	if slot.CapacityHeld < qty {
		e.logger.Warn("Confirm: slot=%d holds %d, cannot confirm %d", slotID, slot.CapacityHeld, qty)
		return e.fail(opConfirm, fmt.Errorf("%w: slot=%d held=%d requested=%d", ErrInvalidCapacityState, slotID, slot.CapacityHeld, qty))
	}

	if err := e.slots.UpdateCapacity(ctx, slotID, slot.CapacityHeld-qty, slot.CapacityConfirmed+qty, e.clock.Now()); err != nil {
		e.logger.Error("Confirm: failed to update slot=%d: %v", slotID, err)
		return e.fail(opConfirm, fmt.Errorf("%w: Confirm - update slot: %w", ErrInternal, err))
	}

	e.logger.Info("Confirm: slot=%d confirmed=%d->%d", slotID, slot.CapacityConfirmed, slot.CapacityConfirmed+qty)
	e.ok(opConfirm)
	return nil
}

// Release освобождает до qty удержанных мест, не опускаясь ниже нуля.
// Отсутствующий слот не ошибка: бронь все равно должна дойти до терминального состояния.
func (e *Engine) Release(ctx context.Context, slotID int64, qty int) error {
	if err := e.precheck(ctx, qty); err != nil {
		return e.fail(opRelease, err)
	}

	slot, err := e.lockSlot(ctx, slotID)
	if errors.Is(err, ErrSlotNotFound) {
		e.logger.Warn("Release: slot=%d not found, nothing to release", slotID)
		e.count(opRelease, "slot_missing")
		return nil
	}
	if err != nil {
		return e.fail(opRelease, err)
	}

	released := min(qty, slot.CapacityHeld)
	if released < qty {
		e.logger.Warn("Release: slot=%d holds only %d of %d requested", slotID, slot.CapacityHeld, qty)
	}
	if released == 0 {
		e.ok(opRelease)
		return nil
	}

	if err := e.slots.UpdateCapacity(ctx, slotID, slot.CapacityHeld-released, slot.CapacityConfirmed, e.clock.Now()); err != nil {
		e.logger.Error("Release: failed to update slot=%d: %v", slotID, err)
		return e.fail(opRelease, fmt.Errorf("%w: Release - update slot: %w", ErrInternal, err))
	}

	e.logger.Info("Release: slot=%d held=%d->%d", slotID, slot.CapacityHeld, slot.CapacityHeld-released)
	e.ok(opRelease)
	return nil
}

func (e *Engine) precheck(ctx context.Context, qty int) error {
	if !dbmetrics.IsInTransaction(ctx) {
		return ErrTransactionRequired
	}
	if qty <= 0 {
		return fmt.Errorf("%w: got %d", ErrInvalidQuantity, qty)
	}
	return nil
}

func (e *Engine) lockSlot(ctx context.Context, slotID int64) (*domain.Slot, error) {
	slot, err := e.slots.GetByIDForUpdate(ctx, slotID)
	if errors.Is(err, slotRepo.ErrSlotNotFound) {
		return nil, fmt.Errorf("%w: id=%d", ErrSlotNotFound, slotID)
	}
	if err != nil {
		e.logger.Error("lockSlot: failed to lock slot=%d: %v", slotID, err)
		return nil, fmt.Errorf("%w: lock slot: %w", ErrInternal, err)
	}
	return slot, nil
}

func (e *Engine) ok(op string) {
	e.count(op, "ok")
}

func (e *Engine) fail(op string, err error) error {
	outcome := "error"
	switch {
	case errors.Is(err, ErrInsufficientCapacity):
		outcome = "insufficient"
	case errors.Is(err, ErrInvalidCapacityState):
		outcome = "invalid_state"
	case errors.Is(err, ErrSlotNotFound):
		outcome = "not_found"
	}
	e.count(op, outcome)
	return err
}

func (e *Engine) count(op, outcome string) {
	if e.metrics != nil {
		e.metrics.IncCapacityOp(op, outcome)
	}
}
