package sweep_expired_holds

import (
	"context"
	"fmt"
)

const defaultBatchSize = 100

// UseCase use case для снятия просроченных удержаний
type UseCase struct {
	bookingRepo  BookingRepository
	bookings     BookingService
	timeProvider TimeProvider
	batchSize    int
	metrics      Metrics
	logger       Logger
}

// NewUseCase создает новый экземпляр use case
func NewUseCase(
	bookingRepo BookingRepository,
	bookings BookingService,
	timeProvider TimeProvider,
	batchSize int,
	metrics Metrics,
	logger Logger,
) *UseCase {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	return &UseCase{
		bookingRepo:  bookingRepo,
		bookings:     bookings,
		timeProvider: timeProvider,
		batchSize:    batchSize,
		metrics:      metrics,
		logger:       logger,
	}
}

// Execute выполняет один проход по всем просроченным удержаниям страницами по batchSize.
// Каждая бронь снимается отдельно, ошибка по одной брони не останавливает остальные,
// а упавшие брони не мешают дойти до следующих страниц.
func (uc *UseCase) Execute(ctx context.Context) (*Result, error) {
	now := uc.timeProvider.Now()
	result := &Result{}

	var afterID int64
	for {
		if ctx.Err() != nil {
			uc.logger.Warn("SweepExpiredHolds: interrupted: %v", ctx.Err())
			uc.finish(result)
			return result, nil
		}

		// 1. Следующая страница кандидатов
		candidates, err := uc.bookingRepo.ListExpiredHolds(ctx, now, afterID, uc.batchSize)
		if err != nil {
			uc.logger.Error("SweepExpiredHolds: failed to list expired holds after id=%d: %v", afterID, err)
			uc.record(result)
			return nil, fmt.Errorf("%w: failed to list expired holds: %w", ErrInternal, err)
		}

		// 2. Снимаем удержания по одному
		for _, booking := range candidates {
			if ctx.Err() != nil {
				uc.logger.Warn("SweepExpiredHolds: interrupted: %v", ctx.Err())
				uc.finish(result)
				return result, nil
			}
			afterID = booking.ID

			res, err := uc.bookings.ExpireHold(ctx, booking.ID)
			switch {
			case err != nil:
				result.Failed++
				uc.logger.Error("SweepExpiredHolds: booking id=%d: %v", booking.ID, err)
			case res.Expired:
				result.Expired++
			default:
				result.Skipped++
			}
		}

		if len(candidates) < uc.batchSize {
			break
		}
	}

	uc.finish(result)
	return result, nil
}

func (uc *UseCase) finish(result *Result) {
	uc.record(result)
	if result.Expired+result.Skipped+result.Failed > 0 {
		uc.logger.Info("SweepExpiredHolds: expired=%d, skipped=%d, failed=%d",
			result.Expired, result.Skipped, result.Failed)
	}
}

func (uc *UseCase) record(result *Result) {
	if uc.metrics == nil {
		return
	}
	uc.metrics.AddSweeperResult("expired", result.Expired)
	uc.metrics.AddSweeperResult("skipped", result.Skipped)
	uc.metrics.AddSweeperResult("failed", result.Failed)
}
