package smsgateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
	"github.com/m04kA/SMC-TourBookingService/pkg/logger"
)

func phone(s string) *string { return &s }

func TestClient_PublishConfirmed(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(SendResponse{ID: "sms-1", Status: "queued"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "TOURS", time.Second, logger.NewNop())
	err := client.Publish(context.Background(), domain.BookingEvent{
		Action:        domain.ActionBookingConfirmed,
		BookingCode:   "AB12CD34",
		Qty:           2,
		CustomerPhone: phone("+10000000000"),
	})
	require.NoError(t, err)

	assert.Equal(t, "+10000000000", got.To)
	assert.Equal(t, "TOURS", got.From)
	assert.Contains(t, got.Text, "AB12CD34")
}

func TestClient_PublishSkipsIrrelevantEvents(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "TOURS", time.Second, logger.NewNop())
	ctx := context.Background()

	require.NoError(t, client.Publish(ctx, domain.BookingEvent{Action: domain.ActionBookingPlacedOnHold, CustomerPhone: phone("+1")}))
	require.NoError(t, client.Publish(ctx, domain.BookingEvent{Action: domain.ActionBookingConfirmed}))
	assert.EqualValues(t, 0, calls)
}

func TestClient_SendErrors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{name: "rejected", status: http.StatusBadRequest, body: `{"code":400,"message":"bad number"}`, wantErr: ErrRejected},
		{name: "gateway failure", status: http.StatusBadGateway, body: "upstream", wantErr: ErrInvalidResponse},
		{name: "malformed body", status: http.StatusOK, body: "not json", wantErr: ErrInvalidResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			client := NewClient(srv.URL, "TOURS", time.Second, logger.NewNop())
			_, err := client.Send(context.Background(), Message{To: "+1", Text: "hi"})
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestClient_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	url := srv.URL
	srv.Close()

	client := NewClient(url, "TOURS", 200*time.Millisecond, logger.NewNop())
	err := client.Publish(context.Background(), domain.BookingEvent{
		Action:        domain.ActionBookingHoldExpired,
		BookingCode:   "X",
		CustomerPhone: phone("+1"),
	})
	require.ErrorIs(t, err, ErrInternal)
}
