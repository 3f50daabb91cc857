package bookings

import (
	"context"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings/models"
)

// ExpireHold снимает просроченное удержание от имени свипера.
// Условие перепроверяется под блокировкой: бронь, успевшая уйти в invoice
// или отмененная параллельно, не трогается и возвращается с Expired=false.
func (s *Service) ExpireHold(ctx context.Context, bookingID int64) (resp *models.ExpireResult, err error) {
	ctx, span := s.startSpan(ctx, "bookings.ExpireHold", bookingID)
	defer func() { finishSpan(span, err) }()

	var t *transition
	err = s.txManager.DoSerializable(ctx, func(txCtx context.Context) error {
		t, resp = nil, nil

		booking, err := s.lockBooking(txCtx, "ExpireHold", bookingID)
		if err != nil {
			return err
		}
		if !booking.IsHoldExpired(s.clock.Now()) {
			resp = &models.ExpireResult{Expired: false, Booking: models.FromDomainBooking(booking)}
			return nil
		}

		t, _, err = s.cancelLocked(txCtx, "ExpireHold", booking, domain.CancelExpired,
			domain.SystemActorSweeper, domain.ActionBookingHoldExpired)
		if err != nil {
			return err
		}
		resp = &models.ExpireResult{Expired: true, Booking: models.FromDomainBooking(booking)}
		return nil
	})
	if err != nil {
		s.logFailure("ExpireHold", bookingID, err)
		return nil, err
	}

	if !resp.Expired {
		s.logger.Info("ExpireHold: booking id=%d skipped, state=%s", bookingID, resp.Booking.State)
		return resp, nil
	}

	s.afterCommit(ctx, t)
	s.logger.Info("ExpireHold: booking id=%d hold expired, %d seats released", bookingID, t.after.Qty)
	return resp, nil
}
