package slots

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	routeRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/route"
	slotRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/slot"
	"github.com/m04kA/SMC-TourBookingService/internal/testutil"
	"github.com/m04kA/SMC-TourBookingService/pkg/clock"
	"github.com/m04kA/SMC-TourBookingService/pkg/logger"
)

func TestService_GetSlot(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	routeID := db.InsertRoute(t, "ISLAND", "25.50", true)
	slotID := db.InsertSlot(t, routeID, now.Add(24*time.Hour), 12, 3, 4)

	svc := NewService(
		slotRepo.NewRepository(db.Wrapped, db.Builder),
		routeRepo.NewRepository(db.Wrapped, db.Builder),
		clock.NewManual(now),
		logger.NewNop(),
	)

	resp, err := svc.GetSlot(context.Background(), slotID)
	require.NoError(t, err)

	assert.Equal(t, slotID, resp.ID)
	assert.Equal(t, "ISLAND", resp.RouteCode)
	assert.Equal(t, 12, resp.CapacityTotal)
	assert.Equal(t, 3, resp.CapacityHeld)
	assert.Equal(t, 4, resp.CapacityConfirmed)
	assert.Equal(t, 5, resp.Remaining)
	assert.Equal(t, "25.5", resp.PricePerSeat.String())
	assert.Equal(t, "EUR", resp.Currency)
	assert.True(t, resp.OnSale)

	_, err = svc.GetSlot(context.Background(), slotID+1)
	require.ErrorIs(t, err, ErrSlotNotFound)
}

func TestService_GetSlotStartedIsNotOnSale(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	now := time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)
	routeID := db.InsertRoute(t, "ISLAND", "25.50", true)
	slotID := db.InsertSlot(t, routeID, now.Add(-time.Hour), 12, 0, 0)

	svc := NewService(
		slotRepo.NewRepository(db.Wrapped, db.Builder),
		routeRepo.NewRepository(db.Wrapped, db.Builder),
		clock.NewManual(now),
		logger.NewNop(),
	)

	resp, err := svc.GetSlot(context.Background(), slotID)
	require.NoError(t, err)
	assert.False(t, resp.OnSale)
}
