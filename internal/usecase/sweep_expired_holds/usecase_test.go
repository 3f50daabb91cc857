package sweep_expired_holds

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	bookingRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/booking"
	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings/models"
	"github.com/m04kA/SMC-TourBookingService/internal/testutil"
	"github.com/m04kA/SMC-TourBookingService/pkg/clock"
	"github.com/m04kA/SMC-TourBookingService/pkg/logger"
)

type stubService struct {
	results map[int64]*models.ExpireResult
	errs    map[int64]error
	calls   []int64
}

func (s *stubService) ExpireHold(_ context.Context, id int64) (*models.ExpireResult, error) {
	s.calls = append(s.calls, id)
	if err, ok := s.errs[id]; ok {
		return nil, err
	}
	if res, ok := s.results[id]; ok {
		return res, nil
	}
	return &models.ExpireResult{Expired: true}, nil
}

type recordingMetrics struct {
	counts map[string]int
}

func (m *recordingMetrics) AddSweeperResult(result string, n int) {
	m.counts[result] += n
}

type failingRepo struct{}

func (failingRepo) ListExpiredHolds(context.Context, time.Time, int64, int) ([]*domain.Booking, error) {
	return nil, errors.New("db down")
}

func TestSweep_CountsOutcomesAndContinuesOnFailure(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	routeID := db.InsertRoute(t, "BAY", "30.00", true)
	slotID := db.InsertSlot(t, routeID, now.Add(48*time.Hour), 20, 6, 0)

	expiredAt := now.Add(-time.Minute)
	freshAt := now.Add(time.Minute)
	first := db.InsertBooking(t, domain.Booking{SlotID: slotID, Qty: 2, State: domain.StateHold, HoldExpiresAt: &expiredAt})
	second := db.InsertBooking(t, domain.Booking{SlotID: slotID, Qty: 2, State: domain.StateHold, HoldExpiresAt: &expiredAt})
	third := db.InsertBooking(t, domain.Booking{SlotID: slotID, Qty: 1, State: domain.StateHold, HoldExpiresAt: &expiredAt})
	db.InsertBooking(t, domain.Booking{SlotID: slotID, Qty: 1, State: domain.StateHold, HoldExpiresAt: &freshAt})

	svc := &stubService{
		results: map[int64]*models.ExpireResult{second: {Expired: false}},
		errs:    map[int64]error{third: errors.New("serialization")},
	}
	m := &recordingMetrics{counts: map[string]int{}}
	uc := NewUseCase(bookingRepo.NewRepository(db.Wrapped, db.Builder), svc, clock.NewManual(now), 10, m, logger.NewNop())

	res, err := uc.Execute(context.Background())
	require.NoError(t, err)

	assert.ElementsMatch(t, []int64{first, second, third}, svc.calls)
	assert.Equal(t, &Result{Expired: 1, Skipped: 1, Failed: 1}, res)
	assert.Equal(t, map[string]int{"expired": 1, "skipped": 1, "failed": 1}, m.counts)
}

func TestSweep_PagesThroughAllExpiredHolds(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	routeID := db.InsertRoute(t, "BAY", "30.00", true)
	slotID := db.InsertSlot(t, routeID, now.Add(48*time.Hour), 20, 7, 0)

	expiredAt := now.Add(-time.Hour)
	var ids []int64
	for i := 0; i < 7; i++ {
		ids = append(ids, db.InsertBooking(t, domain.Booking{SlotID: slotID, Qty: 1, State: domain.StateHold, HoldExpiresAt: &expiredAt}))
	}

	svc := &stubService{}
	uc := NewUseCase(bookingRepo.NewRepository(db.Wrapped, db.Builder), svc, clock.NewManual(now), 3, nil, logger.NewNop())

	res, err := uc.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ids, svc.calls)
	assert.Equal(t, 7, res.Expired)
}

func TestSweep_FailingHoldsDoNotStarveLaterOnes(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	routeID := db.InsertRoute(t, "BAY", "30.00", true)
	slotID := db.InsertSlot(t, routeID, now.Add(48*time.Hour), 20, 4, 0)

	expiredAt := now.Add(-time.Hour)
	stuckA := db.InsertBooking(t, domain.Booking{SlotID: slotID, Qty: 1, State: domain.StateHold, HoldExpiresAt: &expiredAt})
	stuckB := db.InsertBooking(t, domain.Booking{SlotID: slotID, Qty: 1, State: domain.StateHold, HoldExpiresAt: &expiredAt})
	laterA := db.InsertBooking(t, domain.Booking{SlotID: slotID, Qty: 1, State: domain.StateHold, HoldExpiresAt: &expiredAt})
	laterB := db.InsertBooking(t, domain.Booking{SlotID: slotID, Qty: 1, State: domain.StateHold, HoldExpiresAt: &expiredAt})

	// застрявшие брони остаются в hold и занимают первую страницу на каждом проходе
	svc := &stubService{errs: map[int64]error{
		stuckA: errors.New("serialization"),
		stuckB: errors.New("serialization"),
	}}
	uc := NewUseCase(bookingRepo.NewRepository(db.Wrapped, db.Builder), svc, clock.NewManual(now), 2, nil, logger.NewNop())

	for pass := 0; pass < 2; pass++ {
		svc.calls = nil
		res, err := uc.Execute(context.Background())
		require.NoError(t, err)
		assert.Equal(t, []int64{stuckA, stuckB, laterA, laterB}, svc.calls)
		assert.Equal(t, 2, res.Failed)
		assert.Equal(t, 2, res.Expired)
	}
}

func TestSweep_StopsWhenContextCancelled(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	routeID := db.InsertRoute(t, "BAY", "30.00", true)
	slotID := db.InsertSlot(t, routeID, now.Add(48*time.Hour), 20, 1, 0)

	expiredAt := now.Add(-time.Hour)
	db.InsertBooking(t, domain.Booking{SlotID: slotID, Qty: 1, State: domain.StateHold, HoldExpiresAt: &expiredAt})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	svc := &stubService{}
	uc := NewUseCase(bookingRepo.NewRepository(db.Wrapped, db.Builder), svc, clock.NewManual(now), 10, nil, logger.NewNop())

	res, err := uc.Execute(ctx)
	require.NoError(t, err)
	assert.Empty(t, svc.calls)
	assert.Zero(t, res.Expired)
}

func TestSweep_ListFailure(t *testing.T) {
	uc := NewUseCase(failingRepo{}, &stubService{}, clock.NewSystem(), 10, nil, logger.NewNop())

	_, err := uc.Execute(context.Background())
	require.ErrorIs(t, err, ErrInternal)
}
