package create_booking

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	auditRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/audit"
	bookingRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/booking"
	routeRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/route"
	slotRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/slot"
	"github.com/m04kA/SMC-TourBookingService/internal/service/audit"
	"github.com/m04kA/SMC-TourBookingService/internal/testutil"
	"github.com/m04kA/SMC-TourBookingService/pkg/clock"
	"github.com/m04kA/SMC-TourBookingService/pkg/logger"
	"github.com/m04kA/SMC-TourBookingService/pkg/txmanager"
)

var testNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type testEnv struct {
	db       *testutil.DB
	uc       *UseCase
	audits   *auditRepo.Repository
	routeID  int64
	slotID   int64
	pastSlot int64
}

func newTestEnv(t *testing.T, routeActive bool) *testEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	log := logger.NewNop()

	routeID := db.InsertRoute(t, "CANYON", "80.00", routeActive)
	slotID := db.InsertSlot(t, routeID, testNow.Add(24*time.Hour), 6, 0, 0)
	pastSlot := db.InsertSlot(t, routeID, testNow.Add(-time.Hour), 6, 0, 0)

	audits := auditRepo.NewRepository(db.Wrapped, db.Builder)
	uc := NewUseCase(
		bookingRepo.NewRepository(db.Wrapped, db.Builder),
		slotRepo.NewRepository(db.Wrapped, db.Builder),
		routeRepo.NewRepository(db.Wrapped, db.Builder),
		audit.NewTolerant(audits, nil, log),
		txmanager.NewTransactionManager(db.Wrapped),
		clock.NewManual(testNow),
		4,
		log,
	)

	return &testEnv{db: db, uc: uc, audits: audits, routeID: routeID, slotID: slotID, pastSlot: pastSlot}
}

func validRequest(slotID int64) *Request {
	return &Request{
		SlotID:       slotID,
		Qty:          2,
		CustomerID:   "cust-42",
		CustomerName: "  Ada Lovelace ",
		Actor:        "cust-42",
	}
}

func TestCreateBooking_Success(t *testing.T) {
	env := newTestEnv(t, true)
	phone := "+15550100"
	req := validRequest(env.slotID)
	req.CustomerPhone = &phone

	resp, err := env.uc.Execute(context.Background(), req)
	require.NoError(t, err)

	assert.NotZero(t, resp.ID)
	assert.Len(t, resp.Code, domain.BookingCodeLength)
	assert.Equal(t, string(domain.StateDraft), resp.State)
	assert.Equal(t, "Ada Lovelace", resp.CustomerName)
	require.NotNil(t, resp.CustomerPhone)
	assert.Equal(t, phone, *resp.CustomerPhone)
	assert.True(t, resp.CreatedAt.Equal(testNow))

	// черновик места не занимает
	_, held, confirmed := env.db.SlotCounters(t, env.slotID)
	assert.Zero(t, held)
	assert.Zero(t, confirmed)

	events, err := env.audits.ListByEntity(context.Background(), domain.EntityBooking, resp.ID)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, domain.ActionBookingCreated, events[0].Action)
	assert.Equal(t, "cust-42", events[0].Actor)
}

func TestCreateBooking_UniqueCodes(t *testing.T) {
	env := newTestEnv(t, true)

	seen := make(map[string]struct{})
	for i := 0; i < 10; i++ {
		resp, err := env.uc.Execute(context.Background(), validRequest(env.slotID))
		require.NoError(t, err)
		_, dup := seen[resp.Code]
		assert.False(t, dup)
		seen[resp.Code] = struct{}{}
	}
	assert.Equal(t, 10, env.db.CountRows(t, "bookings"))
}

func TestCreateBooking_Validation(t *testing.T) {
	env := newTestEnv(t, true)

	tests := []struct {
		name   string
		mutate func(r *Request)
	}{
		{name: "zero slot", mutate: func(r *Request) { r.SlotID = 0 }},
		{name: "zero qty", mutate: func(r *Request) { r.Qty = 0 }},
		{name: "qty above max", mutate: func(r *Request) { r.Qty = 5 }},
		{name: "empty customer", mutate: func(r *Request) { r.CustomerID = "  " }},
		{name: "long customer", mutate: func(r *Request) { r.CustomerID = string(make([]byte, 65)) }},
		{name: "empty name", mutate: func(r *Request) { r.CustomerName = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validRequest(env.slotID)
			tt.mutate(req)
			_, err := env.uc.Execute(context.Background(), req)
			require.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Zero(t, env.db.CountRows(t, "bookings"))
}

func TestCreateBooking_SlotChecks(t *testing.T) {
	t.Run("missing slot", func(t *testing.T) {
		env := newTestEnv(t, true)
		_, err := env.uc.Execute(context.Background(), validRequest(env.slotID+100))
		require.ErrorIs(t, err, ErrSlotNotFound)
	})

	t.Run("started slot", func(t *testing.T) {
		env := newTestEnv(t, true)
		_, err := env.uc.Execute(context.Background(), validRequest(env.pastSlot))
		require.ErrorIs(t, err, ErrSlotNotBookable)
	})

	t.Run("inactive route", func(t *testing.T) {
		env := newTestEnv(t, false)
		_, err := env.uc.Execute(context.Background(), validRequest(env.slotID))
		require.ErrorIs(t, err, ErrSlotNotBookable)
	})

	t.Run("qty above slot capacity", func(t *testing.T) {
		env := newTestEnv(t, true)
		small := env.db.InsertSlot(t, env.routeID, testNow.Add(48*time.Hour), 1, 0, 0)
		_, err := env.uc.Execute(context.Background(), validRequest(small))
		require.ErrorIs(t, err, ErrInvalidInput)
	})
}
