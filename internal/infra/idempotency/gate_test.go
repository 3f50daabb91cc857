package idempotency

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-TourBookingService/pkg/logger"
)

func newTestGate(t *testing.T) (*Gate, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewGate(client, "test", 10*time.Second, 10*time.Minute, nil, logger.NewNop()), mr
}

func okOperation(calls *int32, status int, body string) Operation {
	return func(context.Context) (Response, error) {
		atomic.AddInt32(calls, 1)
		return Response{Status: status, Body: []byte(body), ContentType: "application/json"}, nil
	}
}

func TestGate_ReplaysStoredResponse(t *testing.T) {
	gate, mr := newTestGate(t)
	ctx := context.Background()
	var calls int32

	first, err := gate.Execute(ctx, "hold:1", "key-1", okOperation(&calls, http.StatusOK, `{"state":"hold"}`))
	require.NoError(t, err)
	assert.False(t, first.Replayed)

	second, err := gate.Execute(ctx, "hold:1", "key-1", okOperation(&calls, http.StatusOK, `{"state":"other"}`))
	require.NoError(t, err)
	assert.True(t, second.Replayed)
	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, "application/json", second.ContentType)
	assert.EqualValues(t, 1, calls)

	respKey := "test:resp:" + keyHash("hold:1", "key-1")
	assert.True(t, mr.Exists(respKey))
	assert.Equal(t, 10*time.Minute, mr.TTL(respKey))
	assert.False(t, mr.Exists("test:lock:"+keyHash("hold:1", "key-1")), "lock must be released")
}

func TestGate_ScopesAreIndependent(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()
	var calls int32

	_, err := gate.Execute(ctx, "hold:1", "same-key", okOperation(&calls, http.StatusOK, "a"))
	require.NoError(t, err)
	resp, err := gate.Execute(ctx, "hold:2", "same-key", okOperation(&calls, http.StatusOK, "b"))
	require.NoError(t, err)

	assert.False(t, resp.Replayed)
	assert.Equal(t, []byte("b"), resp.Body)
	assert.EqualValues(t, 2, calls)
}

func TestGate_RequiresKey(t *testing.T) {
	gate, _ := newTestGate(t)
	var calls int32

	_, err := gate.Execute(context.Background(), "hold:1", "", okOperation(&calls, http.StatusOK, "x"))
	require.ErrorIs(t, err, ErrKeyRequired)
	assert.EqualValues(t, 0, calls)
}

func TestGate_RejectsConcurrentDuplicate(t *testing.T) {
	gate, mr := newTestGate(t)
	var calls int32

	lockKey := "test:lock:" + keyHash("confirm:7", "dup")
	require.NoError(t, mr.Set(lockKey, "someone-else"))

	_, err := gate.Execute(context.Background(), "confirm:7", "dup", okOperation(&calls, http.StatusOK, "x"))
	require.ErrorIs(t, err, ErrRequestInProgress)
	assert.EqualValues(t, 0, calls)

	got, err := mr.Get(lockKey)
	require.NoError(t, err)
	assert.Equal(t, "someone-else", got, "foreign lock must not be released")
}

func TestGate_CachesConflictButNotServerErrors(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()
	var calls int32

	_, err := gate.Execute(ctx, "invoice:3", "k409", okOperation(&calls, http.StatusConflict, "conflict"))
	require.NoError(t, err)
	replay, err := gate.Execute(ctx, "invoice:3", "k409", okOperation(&calls, http.StatusOK, "ok"))
	require.NoError(t, err)
	assert.True(t, replay.Replayed)
	assert.Equal(t, http.StatusConflict, replay.Status)

	_, err = gate.Execute(ctx, "invoice:3", "k500", okOperation(&calls, http.StatusInternalServerError, "boom"))
	require.NoError(t, err)
	retry, err := gate.Execute(ctx, "invoice:3", "k500", okOperation(&calls, http.StatusOK, "ok"))
	require.NoError(t, err)
	assert.False(t, retry.Replayed)
	assert.Equal(t, http.StatusOK, retry.Status)

	assert.EqualValues(t, 3, calls)
}

func TestGate_OperationErrorIsNotCached(t *testing.T) {
	gate, _ := newTestGate(t)
	ctx := context.Background()
	boom := errors.New("boom")

	_, err := gate.Execute(ctx, "hold:9", "k", func(context.Context) (Response, error) {
		return Response{}, boom
	})
	require.ErrorIs(t, err, boom)

	var calls int32
	resp, err := gate.Execute(ctx, "hold:9", "k", okOperation(&calls, http.StatusOK, "ok"))
	require.NoError(t, err)
	assert.False(t, resp.Replayed)
	assert.EqualValues(t, 1, calls)
}

func TestGate_FailsOpenWhenStoreUnavailable(t *testing.T) {
	gate, mr := newTestGate(t)
	mr.Close()
	var calls int32

	resp, err := gate.Execute(context.Background(), "hold:1", "k", okOperation(&calls, http.StatusOK, "ok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.EqualValues(t, 1, calls)
}
