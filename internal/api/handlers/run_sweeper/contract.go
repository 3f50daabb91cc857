package run_sweeper

import (
	"context"

	sweepExpiredHolds "github.com/m04kA/SMC-TourBookingService/internal/usecase/sweep_expired_holds"
)

type SweepUseCase interface {
	Execute(ctx context.Context) (*sweepExpiredHolds.Result, error)
}

type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}
