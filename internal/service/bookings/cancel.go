package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	invoiceRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/invoice"
	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings/models"
)

// Cancel hold|invoice → cancel по запросу клиента или оператора.
// Причина expired зарезервирована за свипером.
func (s *Service) Cancel(ctx context.Context, req *models.CancelRequest) (resp *models.BookingDetailsResponse, err error) {
	ctx, span := s.startSpan(ctx, "bookings.Cancel", req.BookingID)
	defer func() { finishSpan(span, err) }()

	reason, ok := domain.ParseCancelReason(req.Reason)
	if !ok || reason == domain.CancelExpired {
		err = fmt.Errorf("%w: reason must be %s or %s", ErrInvalidInput, domain.CancelUserRequest, domain.CancelOpsRequest)
		s.logFailure("Cancel", req.BookingID, err)
		return nil, err
	}

	s.logger.Info("Cancel: booking id=%d reason=%s actor=%s", req.BookingID, reason, req.Actor)

	var t *transition
	err = s.txManager.DoSerializable(ctx, func(txCtx context.Context) error {
		t, resp = nil, nil

		booking, err := s.lockBooking(txCtx, "Cancel", req.BookingID)
		if err != nil {
			return err
		}
		if !booking.CanTransitionTo(domain.StateCancel) {
			return fmt.Errorf("%w: Cancel - booking id=%d is %s", ErrConflict, booking.ID, booking.State)
		}

		var inv *domain.Invoice
		t, inv, err = s.cancelLocked(txCtx, "Cancel", booking, reason, req.Actor, domain.ActionBookingCancelled)
		if err != nil {
			return err
		}

		resp = &models.BookingDetailsResponse{
			Booking: models.FromDomainBooking(booking),
			Invoice: models.FromDomainInvoice(inv),
		}
		return nil
	})
	if err != nil {
		s.logFailure("Cancel", req.BookingID, err)
		return nil, err
	}

	s.afterCommit(ctx, t)
	s.logger.Info("Cancel: booking id=%d cancelled from %s", req.BookingID, t.before.State)
	return resp, nil
}

// cancelLocked освобождает удержанные места, переводит бронь в cancel
// и аннулирует невыплаченный счет. Бронь уже заблокирована вызывающим кодом.
// Удержание сохраняется до confirm, поэтому места освобождаются и из invoice.
func (s *Service) cancelLocked(
	ctx context.Context,
	op string,
	booking *domain.Booking,
	reason domain.CancelReason,
	actor, action string,
) (*transition, *domain.Invoice, error) {
	inv, err := s.invoiceRepo.GetByBookingIDForUpdate(ctx, booking.ID)
	if err != nil {
		if !errors.Is(err, invoiceRepo.ErrInvoiceNotFound) {
			return nil, nil, fmt.Errorf("%w: %s - lock invoice: %w", ErrInternal, op, err)
		}
		inv = nil
	}

	if booking.HoldsCapacity() {
		if err := s.capacity.Release(ctx, booking.SlotID, booking.Qty); err != nil {
			return nil, nil, mapCapacityError(op, err)
		}
	}

	before := *booking
	now := s.clock.Now()
	booking.State = domain.StateCancel
	booking.CancelReason = &reason
	booking.HoldExpiresAt = nil
	booking.UpdatedAt = now
	if err := s.saveBooking(ctx, op, booking); err != nil {
		return nil, nil, err
	}

	payload := map[string]interface{}{"reason": string(reason)}
	if inv != nil {
		payload["invoiceNumber"] = inv.Number
		if inv.Status == domain.InvoiceIssued {
			if err := s.invoiceRepo.MarkVoid(ctx, inv.ID, now); err != nil {
				return nil, nil, fmt.Errorf("%w: %s - void invoice: %w", ErrInternal, op, err)
			}
			inv.Status = domain.InvoiceVoid
			inv.VoidedAt = &now
			inv.UpdatedAt = now
		}
	}

	t := newTransition(actor, action, before, booking, now, payload)
	s.commit(ctx, t)
	return t, inv, nil
}
