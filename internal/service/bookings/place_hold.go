package bookings

import (
	"context"
	"fmt"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings/models"
)

// PlaceHold draft → hold: удерживает места слота на holdTTL
func (s *Service) PlaceHold(ctx context.Context, req *models.TransitionRequest) (resp *models.BookingResponse, err error) {
	ctx, span := s.startSpan(ctx, "bookings.PlaceHold", req.BookingID)
	defer func() { finishSpan(span, err) }()

	s.logger.Info("PlaceHold: booking id=%d actor=%s", req.BookingID, req.Actor)

	var t *transition
	err = s.txManager.DoSerializable(ctx, func(txCtx context.Context) error {
		t = nil

		booking, err := s.lockBooking(txCtx, "PlaceHold", req.BookingID)
		if err != nil {
			return err
		}
		if !booking.CanTransitionTo(domain.StateHold) {
			return fmt.Errorf("%w: PlaceHold - booking id=%d is %s", ErrConflict, booking.ID, booking.State)
		}

		if err := s.capacity.Hold(txCtx, booking.SlotID, booking.Qty); err != nil {
			return mapCapacityError("PlaceHold", err)
		}

		before := *booking
		now := s.clock.Now()
		expiresAt := now.Add(s.holdTTL)
		booking.State = domain.StateHold
		booking.HoldExpiresAt = &expiresAt
		booking.UpdatedAt = now
		if err := s.saveBooking(txCtx, "PlaceHold", booking); err != nil {
			return err
		}

		t = newTransition(req.Actor, domain.ActionBookingPlacedOnHold, before, booking, now, nil)
		s.commit(txCtx, t)
		return nil
	})
	if err != nil {
		s.logFailure("PlaceHold", req.BookingID, err)
		return nil, err
	}

	s.afterCommit(ctx, t)
	s.logger.Info("PlaceHold: booking id=%d on hold until %s", t.after.ID, t.after.HoldExpiresAt.Format(domain.TimeFormat))
	return models.FromDomainBooking(&t.after), nil
}
