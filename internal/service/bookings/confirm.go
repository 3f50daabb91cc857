package bookings

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	invoiceRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/invoice"
	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings/models"
)

// Confirm invoice → confirm: оплата получена, удержанные места становятся проданными
func (s *Service) Confirm(ctx context.Context, req *models.ConfirmRequest) (resp *models.BookingDetailsResponse, err error) {
	ctx, span := s.startSpan(ctx, "bookings.Confirm", req.BookingID)
	defer func() { finishSpan(span, err) }()

	paymentRef := strings.TrimSpace(req.PaymentRef)
	if paymentRef == "" || len(paymentRef) > domain.MaxPaymentRefLength {
		err = fmt.Errorf("%w: paymentRef must be 1..%d characters", ErrInvalidInput, domain.MaxPaymentRefLength)
		s.logFailure("Confirm", req.BookingID, err)
		return nil, err
	}

	s.logger.Info("Confirm: booking id=%d actor=%s", req.BookingID, req.Actor)

	var t *transition
	err = s.txManager.DoSerializable(ctx, func(txCtx context.Context) error {
		t, resp = nil, nil

		booking, err := s.lockBooking(txCtx, "Confirm", req.BookingID)
		if err != nil {
			return err
		}
		if !booking.CanTransitionTo(domain.StateConfirm) {
			return fmt.Errorf("%w: Confirm - booking id=%d is %s", ErrConflict, booking.ID, booking.State)
		}

		inv, err := s.invoiceRepo.GetByBookingIDForUpdate(txCtx, booking.ID)
		if err != nil {
			if errors.Is(err, invoiceRepo.ErrInvoiceNotFound) {
				return fmt.Errorf("%w: booking id=%d", ErrInvoiceNotFound, booking.ID)
			}
			return fmt.Errorf("%w: Confirm - lock invoice: %w", ErrInternal, err)
		}
		if inv.Status != domain.InvoiceIssued {
			return fmt.Errorf("%w: Confirm - invoice %s is %s", ErrConflict, inv.Number, inv.Status)
		}

		if err := s.capacity.Confirm(txCtx, booking.SlotID, booking.Qty); err != nil {
			return mapCapacityError("Confirm", err)
		}

		before := *booking
		now := s.clock.Now()
		booking.State = domain.StateConfirm
		booking.PaymentRef = &paymentRef
		booking.UpdatedAt = now
		if err := s.saveBooking(txCtx, "Confirm", booking); err != nil {
			return err
		}

		if err := s.invoiceRepo.MarkPaid(txCtx, inv.ID, now); err != nil {
			return fmt.Errorf("%w: Confirm - mark invoice paid: %w", ErrInternal, err)
		}
		inv.Status = domain.InvoicePaid
		inv.PaidAt = &now
		inv.UpdatedAt = now

		t = newTransition(req.Actor, domain.ActionBookingConfirmed, before, booking, now, map[string]interface{}{
			"invoiceNumber": inv.Number,
		})
		s.commit(txCtx, t)

		resp = &models.BookingDetailsResponse{
			Booking: models.FromDomainBooking(booking),
			Invoice: models.FromDomainInvoice(inv),
		}
		return nil
	})
	if err != nil {
		s.logFailure("Confirm", req.BookingID, err)
		return nil, err
	}

	s.afterCommit(ctx, t)
	s.logger.Info("Confirm: booking id=%d confirmed, payment=%s", req.BookingID, paymentRef)
	return resp, nil
}
