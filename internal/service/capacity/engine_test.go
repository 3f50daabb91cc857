package capacity

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	slotRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/slot"
	"github.com/m04kA/SMC-TourBookingService/internal/testutil"
	"github.com/m04kA/SMC-TourBookingService/pkg/clock"
	"github.com/m04kA/SMC-TourBookingService/pkg/logger"
	"github.com/m04kA/SMC-TourBookingService/pkg/txmanager"
)

type engineEnv struct {
	db     *testutil.DB
	engine *Engine
	tx     *txmanager.Manager
	slotID int64
}

func newEngineEnv(t *testing.T, total, held, confirmed int) *engineEnv {
	t.Helper()
	db := testutil.NewSQLiteDB(t)
	routeID := db.InsertRoute(t, "R1", "100.00", true)
	slotID := db.InsertSlot(t, routeID, time.Now().Add(48*time.Hour), total, held, confirmed)

	return &engineEnv{
		db:     db,
		engine: NewEngine(slotRepo.NewRepository(db.Wrapped, db.Builder), clock.NewSystem(), nil, logger.NewNop()),
		tx:     txmanager.NewTransactionManager(db.Wrapped),
		slotID: slotID,
	}
}

func (e *engineEnv) inTx(t *testing.T, fn func(ctx context.Context) error) error {
	t.Helper()
	return e.tx.DoSerializable(context.Background(), fn)
}

func TestEngine_Hold(t *testing.T) {
	env := newEngineEnv(t, 5, 1, 1)

	err := env.inTx(t, func(ctx context.Context) error {
		return env.engine.Hold(ctx, env.slotID, 3)
	})
	require.NoError(t, err)

	total, held, confirmed := env.db.SlotCounters(t, env.slotID)
	assert.Equal(t, 5, total)
	assert.Equal(t, 4, held)
	assert.Equal(t, 1, confirmed)
}

func TestEngine_HoldInsufficientCapacity(t *testing.T) {
	env := newEngineEnv(t, 5, 2, 2)

	err := env.inTx(t, func(ctx context.Context) error {
		return env.engine.Hold(ctx, env.slotID, 2)
	})
	require.ErrorIs(t, err, ErrInsufficientCapacity)

	_, held, confirmed := env.db.SlotCounters(t, env.slotID)
	assert.Equal(t, 2, held)
	assert.Equal(t, 2, confirmed)
}

func TestEngine_HoldMissingSlot(t *testing.T) {
	env := newEngineEnv(t, 5, 0, 0)

	err := env.inTx(t, func(ctx context.Context) error {
		return env.engine.Hold(ctx, env.slotID+100, 1)
	})
	require.ErrorIs(t, err, ErrSlotNotFound)
}

func TestEngine_RequiresTransaction(t *testing.T) {
	env := newEngineEnv(t, 5, 0, 0)

	require.ErrorIs(t, env.engine.Hold(context.Background(), env.slotID, 1), ErrTransactionRequired)
	require.ErrorIs(t, env.engine.Confirm(context.Background(), env.slotID, 1), ErrTransactionRequired)
	require.ErrorIs(t, env.engine.Release(context.Background(), env.slotID, 1), ErrTransactionRequired)
}

func TestEngine_RejectsNonPositiveQuantity(t *testing.T) {
	env := newEngineEnv(t, 5, 0, 0)

	err := env.inTx(t, func(ctx context.Context) error {
		return env.engine.Hold(ctx, env.slotID, 0)
	})
	require.ErrorIs(t, err, ErrInvalidQuantity)
}

func TestEngine_Confirm(t *testing.T) {
	env := newEngineEnv(t, 5, 3, 0)

	err := env.inTx(t, func(ctx context.Context) error {
		return env.engine.Confirm(ctx, env.slotID, 2)
	})
	require.NoError(t, err)

	_, held, confirmed := env.db.SlotCounters(t, env.slotID)
	assert.Equal(t, 1, held)
	assert.Equal(t, 2, confirmed)
}

func TestEngine_ConfirmMoreThanHeld(t *testing.T) {
	env := newEngineEnv(t, 5, 1, 0)

	err := env.inTx(t, func(ctx context.Context) error {
		return env.engine.Confirm(ctx, env.slotID, 2)
	})
	require.ErrorIs(t, err, ErrInvalidCapacityState)

	_, held, confirmed := env.db.SlotCounters(t, env.slotID)
	assert.Equal(t, 1, held)
	assert.Equal(t, 0, confirmed)
}

func TestEngine_ReleaseFloorsAtZero(t *testing.T) {
	env := newEngineEnv(t, 5, 2, 1)

	for i := 0; i < 2; i++ {
		err := env.inTx(t, func(ctx context.Context) error {
			return env.engine.Release(ctx, env.slotID, 2)
		})
		require.NoError(t, err)

		_, held, confirmed := env.db.SlotCounters(t, env.slotID)
		assert.Equal(t, 0, held)
		assert.Equal(t, 1, confirmed)
	}

	err := env.inTx(t, func(ctx context.Context) error {
		return env.engine.Release(ctx, env.slotID, 5)
	})
	require.NoError(t, err)
	_, held, _ := env.db.SlotCounters(t, env.slotID)
	assert.Equal(t, 0, held)
}

func TestEngine_ReleaseMissingSlotIsNoop(t *testing.T) {
	env := newEngineEnv(t, 5, 0, 0)

	err := env.inTx(t, func(ctx context.Context) error {
		return env.engine.Release(ctx, env.slotID+100, 1)
	})
	require.NoError(t, err)
}

func TestEngine_RollbackKeepsCounters(t *testing.T) {
	env := newEngineEnv(t, 5, 0, 0)

	err := env.inTx(t, func(ctx context.Context) error {
		if err := env.engine.Hold(ctx, env.slotID, 2); err != nil {
			return err
		}
		return env.engine.Hold(ctx, env.slotID, 4)
	})
	require.ErrorIs(t, err, ErrInsufficientCapacity)

	_, held, _ := env.db.SlotCounters(t, env.slotID)
	assert.Equal(t, 0, held, "failed transaction must not leave a partial hold")
}
