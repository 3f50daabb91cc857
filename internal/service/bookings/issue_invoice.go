package bookings

import (
	"context"
	"errors"
	"fmt"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	invoiceRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/invoice"
	routeRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/route"
	slotRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/slot"
	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings/models"
)

// IssueInvoice hold → invoice. Повторный вызов возвращает уже выставленный счет без изменений.
func (s *Service) IssueInvoice(ctx context.Context, req *models.TransitionRequest) (resp *models.IssueInvoiceResponse, err error) {
	ctx, span := s.startSpan(ctx, "bookings.IssueInvoice", req.BookingID)
	defer func() { finishSpan(span, err) }()

	s.logger.Info("IssueInvoice: booking id=%d actor=%s", req.BookingID, req.Actor)

	var t *transition
	err = s.txManager.DoSerializable(ctx, func(txCtx context.Context) error {
		t, resp = nil, nil

		booking, err := s.lockBooking(txCtx, "IssueInvoice", req.BookingID)
		if err != nil {
			return err
		}

		existing, err := s.invoiceRepo.GetByBookingIDForUpdate(txCtx, booking.ID)
		switch {
		case err == nil:
			resp = &models.IssueInvoiceResponse{
				Booking: models.FromDomainBooking(booking),
				Invoice: models.FromDomainInvoice(existing),
				Created: false,
			}
			return nil
		case !errors.Is(err, invoiceRepo.ErrInvoiceNotFound):
			return fmt.Errorf("%w: IssueInvoice - lock invoice: %w", ErrInternal, err)
		}

		if !booking.CanTransitionTo(domain.StateInvoice) {
			return fmt.Errorf("%w: IssueInvoice - booking id=%d is %s", ErrConflict, booking.ID, booking.State)
		}
		now := s.clock.Now()
		if booking.IsHoldExpired(now) {
			return fmt.Errorf("%w: IssueInvoice - booking id=%d hold expired at %s",
				ErrHoldExpired, booking.ID, booking.HoldExpiresAt.Format(domain.TimeFormat))
		}

		route, err := s.routeForSlot(txCtx, booking.SlotID)
		if err != nil {
			return err
		}

		inv, err := s.invoiceRepo.Create(txCtx, &domain.Invoice{
			BookingID: booking.ID,
			Number:    domain.InvoiceNumber(booking.ID, now),
			Amount:    domain.InvoiceAmount(route.PricePerSeat, booking.Qty),
			Currency:  route.Currency,
			Status:    domain.InvoiceIssued,
			IssuedAt:  now,
			UpdatedAt: now,
		})
		if err != nil {
			if errors.Is(err, invoiceRepo.ErrInvoiceExists) {
				return fmt.Errorf("%w: IssueInvoice - %w", ErrConflict, err)
			}
			return fmt.Errorf("%w: IssueInvoice - create invoice: %w", ErrInternal, err)
		}

		before := *booking
		booking.State = domain.StateInvoice
		booking.HoldExpiresAt = nil
		booking.UpdatedAt = now
		if err := s.saveBooking(txCtx, "IssueInvoice", booking); err != nil {
			return err
		}

		t = newTransition(req.Actor, domain.ActionBookingInvoiceIssued, before, booking, now, map[string]interface{}{
			"invoiceNumber": inv.Number,
			"amount":        inv.Amount.StringFixed(2),
			"currency":      inv.Currency,
		})
		s.commit(txCtx, t)

		resp = &models.IssueInvoiceResponse{
			Booking: models.FromDomainBooking(booking),
			Invoice: models.FromDomainInvoice(inv),
			Created: true,
		}
		return nil
	})
	if err != nil {
		s.logFailure("IssueInvoice", req.BookingID, err)
		return nil, err
	}

	s.afterCommit(ctx, t)
	s.logger.Info("IssueInvoice: booking id=%d invoice=%s created=%t", req.BookingID, resp.Invoice.Number, resp.Created)
	return resp, nil
}

// routeForSlot цена и валюта берутся из маршрута слота
func (s *Service) routeForSlot(ctx context.Context, slotID int64) (*domain.Route, error) {
	slot, err := s.slotRepo.GetByID(ctx, slotID)
	if err != nil {
		if errors.Is(err, slotRepo.ErrSlotNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrSlotNotFound, slotID)
		}
		return nil, fmt.Errorf("%w: IssueInvoice - get slot: %w", ErrInternal, err)
	}
	route, err := s.routeRepo.GetByID(ctx, slot.RouteID)
	if err != nil {
		if errors.Is(err, routeRepo.ErrRouteNotFound) {
			return nil, fmt.Errorf("%w: id=%d", ErrRouteNotFound, slot.RouteID)
		}
		return nil, fmt.Errorf("%w: IssueInvoice - get route: %w", ErrInternal, err)
	}
	return route, nil
}
