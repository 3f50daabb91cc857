package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-TourBookingService/pkg/clock"
	"github.com/m04kA/SMC-TourBookingService/pkg/logger"
)

func newTestLimiter(t *testing.T, failOpen bool) (*Limiter, *clock.Manual, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() { _ = client.Close() })

	clk := clock.NewManual(time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC))
	return NewLimiter(client, "test", clk, failOpen, nil, logger.NewNop()), clk, mr
}

func TestLimiter_AdmitsUpToLimit(t *testing.T) {
	limiter, clk, _ := newTestLimiter(t, true)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		require.NoError(t, limiter.Admit(ctx, "10.0.0.1", 3, time.Minute))
		clk.Advance(time.Second)
	}

	err := limiter.Admit(ctx, "10.0.0.1", 3, time.Minute)
	require.ErrorIs(t, err, ErrRateLimited)

	var limited *RateLimitedError
	require.True(t, errors.As(err, &limited))
	// самый старый запрос был 3 секунды назад
	assert.Equal(t, 57*time.Second, limited.RetryAfter)
}

func TestLimiter_IdentifiersAreIndependent(t *testing.T) {
	limiter, _, _ := newTestLimiter(t, true)
	ctx := context.Background()

	require.NoError(t, limiter.Admit(ctx, "a", 1, time.Minute))
	require.ErrorIs(t, limiter.Admit(ctx, "a", 1, time.Minute), ErrRateLimited)
	require.NoError(t, limiter.Admit(ctx, "b", 1, time.Minute))
}

func TestLimiter_WindowSlides(t *testing.T) {
	limiter, clk, _ := newTestLimiter(t, true)
	ctx := context.Background()

	require.NoError(t, limiter.Admit(ctx, "ip", 2, 10*time.Second))
	require.NoError(t, limiter.Admit(ctx, "ip", 2, 10*time.Second))
	require.ErrorIs(t, limiter.Admit(ctx, "ip", 2, 10*time.Second), ErrRateLimited)

	clk.Advance(11 * time.Second)
	require.NoError(t, limiter.Admit(ctx, "ip", 2, 10*time.Second))
}

func TestLimiter_RetryAfterHasFloor(t *testing.T) {
	limiter, clk, _ := newTestLimiter(t, true)
	ctx := context.Background()

	require.NoError(t, limiter.Admit(ctx, "ip", 1, time.Second))
	clk.Advance(900 * time.Millisecond)

	var limited *RateLimitedError
	require.True(t, errors.As(limiter.Admit(ctx, "ip", 1, time.Second), &limited))
	assert.Equal(t, time.Second, limited.RetryAfter)
}

func TestLimiter_SetsKeyExpiry(t *testing.T) {
	limiter, _, mr := newTestLimiter(t, true)

	require.NoError(t, limiter.Admit(context.Background(), "ip", 5, 30*time.Second))
	assert.Equal(t, 30*time.Second, mr.TTL("test:ratelimit:ip"))
}

func TestLimiter_StoreFailurePolicy(t *testing.T) {
	open, _, mrOpen := newTestLimiter(t, true)
	mrOpen.Close()
	require.NoError(t, open.Admit(context.Background(), "ip", 1, time.Minute))

	closed, _, mrClosed := newTestLimiter(t, false)
	mrClosed.Close()
	require.ErrorIs(t, closed.Admit(context.Background(), "ip", 1, time.Minute), ErrStoreUnavailable)
}
