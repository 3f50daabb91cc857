package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cancelBookingHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/cancel_booking"
	confirmBookingHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/confirm_booking"
	createBookingHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/create_booking"
	getAvailableSlotsHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/get_available_slots"
	getBookingHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/get_booking"
	getCustomerBookingsHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/get_customer_bookings"
	getSlotHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/get_slot"
	getSlotBookingsHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/get_slot_bookings"
	issueInvoiceHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/issue_invoice"
	placeHoldHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/place_hold"
	runSweeperHandler "github.com/m04kA/SMC-TourBookingService/internal/api/handlers/run_sweeper"
	"github.com/m04kA/SMC-TourBookingService/internal/infra/idempotency"
	"github.com/m04kA/SMC-TourBookingService/internal/infra/ratelimit"
	auditRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/audit"
	bookingRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/booking"
	invoiceRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/invoice"
	routeRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/route"
	slotRepo "github.com/m04kA/SMC-TourBookingService/internal/infra/storage/slot"
	"github.com/m04kA/SMC-TourBookingService/internal/service/audit"
	"github.com/m04kA/SMC-TourBookingService/internal/service/bookings"
	"github.com/m04kA/SMC-TourBookingService/internal/service/capacity"
	"github.com/m04kA/SMC-TourBookingService/internal/service/notify"
	"github.com/m04kA/SMC-TourBookingService/internal/service/slots"
	"github.com/m04kA/SMC-TourBookingService/internal/testutil"
	createBookingUC "github.com/m04kA/SMC-TourBookingService/internal/usecase/create_booking"
	getAvailableSlotsUC "github.com/m04kA/SMC-TourBookingService/internal/usecase/get_available_slots"
	sweepExpiredHoldsUC "github.com/m04kA/SMC-TourBookingService/internal/usecase/sweep_expired_holds"
	"github.com/m04kA/SMC-TourBookingService/pkg/clock"
	"github.com/m04kA/SMC-TourBookingService/pkg/logger"
	"github.com/m04kA/SMC-TourBookingService/pkg/txmanager"
)

const (
	testOrigin = "https://tours.example.com"
	testSecret = "sweep-secret"
)

var testNow = time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC)

type apiEnv struct {
	server  *httptest.Server
	db      *testutil.DB
	clock   *clock.Manual
	routeID int64
	slotID  int64
}

func newAPIEnv(t *testing.T, capacityTotal, rateLimit int) *apiEnv {
	t.Helper()

	log := logger.NewNop()
	db := testutil.NewSQLiteDB(t)
	clk := clock.NewManual(testNow)

	routeID := db.InsertRoute(t, "LAKE", "49.90", true)
	slotID := db.InsertSlot(t, routeID, testNow.Add(72*time.Hour), capacityTotal, 0, 0)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	bookingRepository := bookingRepo.NewRepository(db.Wrapped, db.Builder)
	slotRepository := slotRepo.NewRepository(db.Wrapped, db.Builder)
	routeRepository := routeRepo.NewRepository(db.Wrapped, db.Builder)
	auditRecorder := audit.NewTolerant(auditRepo.NewRepository(db.Wrapped, db.Builder), nil, log)
	txMgr := txmanager.NewTransactionManager(db.Wrapped, txmanager.WithMaxAttempts(10))
	notifier := notify.NewMulti(nil, log)
	t.Cleanup(func() { _ = notifier.Close(context.Background()) })

	bookingSvc := bookings.NewService(bookings.Dependencies{
		Bookings:  bookingRepository,
		Invoices:  invoiceRepo.NewRepository(db.Wrapped, db.Builder),
		Slots:     slotRepository,
		Routes:    routeRepository,
		Capacity:  capacity.NewEngine(slotRepository, clk, nil, log),
		Audit:     auditRecorder,
		Notifier:  notifier,
		TxManager: txMgr,
		Clock:     clk,
	}, 30*time.Minute, log)

	createUC := createBookingUC.NewUseCase(bookingRepository, slotRepository, routeRepository,
		auditRecorder, txMgr, clk, 10, log)
	availabilityUC := getAvailableSlotsUC.NewUseCase(routeRepository, slotRepository, log)
	sweepUC := sweepExpiredHoldsUC.NewUseCase(bookingRepository, bookingSvc, clk, 50, nil, log)
	slotSvc := slots.NewService(slotRepository, routeRepository, clk, log)

	router := NewRouter(Handlers{
		CreateBooking:       createBookingHandler.NewHandler(createUC, log).Handle,
		GetBooking:          getBookingHandler.NewHandler(bookingSvc, log).Handle,
		PlaceHold:           placeHoldHandler.NewHandler(bookingSvc, log).Handle,
		IssueInvoice:        issueInvoiceHandler.NewHandler(bookingSvc, log).Handle,
		ConfirmBooking:      confirmBookingHandler.NewHandler(bookingSvc, log).Handle,
		CancelBooking:       cancelBookingHandler.NewHandler(bookingSvc, log).Handle,
		GetAvailableSlots:   getAvailableSlotsHandler.NewHandler(availabilityUC, log).Handle,
		GetCustomerBookings: getCustomerBookingsHandler.NewHandler(bookingSvc, log).Handle,
		GetSlot:             getSlotHandler.NewHandler(slotSvc, log).Handle,
		GetSlotBookings:     getSlotBookingsHandler.NewHandler(bookingSvc, log).Handle,
		RunSweeper:          runSweeperHandler.NewHandler(sweepUC, testSecret, log).Handle,
	}, Options{
		Limiter:         ratelimit.NewLimiter(rdb, "test", clk, true, nil, log),
		RateLimit:       rateLimit,
		RateLimitWindow: time.Minute,
		Idempotency:     idempotency.NewGate(rdb, "test", 10*time.Second, 10*time.Minute, nil, log),
		PublicOrigin:    testOrigin,
		Logger:          log,
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &apiEnv{server: server, db: db, clock: clk, routeID: routeID, slotID: slotID}
}

type call struct {
	method  string
	path    string
	body    interface{}
	headers map[string]string
}

func (e *apiEnv) do(t *testing.T, c call) (*http.Response, []byte) {
	t.Helper()

	var body bytes.Buffer
	if c.body != nil {
		require.NoError(t, json.NewEncoder(&body).Encode(c.body))
	}
	req, err := http.NewRequest(c.method, e.server.URL+c.path, &body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if c.method != http.MethodGet {
		req.Header.Set("Origin", testOrigin)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var out bytes.Buffer
	_, err = out.ReadFrom(resp.Body)
	require.NoError(t, err)
	return resp, out.Bytes()
}

func decode(t *testing.T, raw []byte) map[string]interface{} {
	t.Helper()
	var v map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

func (e *apiEnv) createBooking(t *testing.T, qty int) int64 {
	t.Helper()
	resp, raw := e.do(t, call{
		method: http.MethodPost,
		path:   "/api/v1/bookings",
		body: map[string]interface{}{
			"slotId":       e.slotID,
			"qty":          qty,
			"customerId":   "cust-1",
			"customerName": "Grace Hopper",
		},
		headers: map[string]string{"X-User-ID": "cust-1"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	return int64(decode(t, raw)["id"].(float64))
}

func idem(key string) map[string]string {
	return map[string]string{"Idempotency-Key": key}
}

func TestAPI_BookingLifecycle(t *testing.T) {
	env := newAPIEnv(t, 10, 100)
	id := env.createBooking(t, 3)

	holdPath := fmt.Sprintf("/api/v1/bookings/%d/hold", id)
	resp, first := env.do(t, call{method: http.MethodPost, path: holdPath, headers: idem("hold-1")})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(first))
	assert.Equal(t, "hold", decode(t, first)["state"])
	assert.Empty(t, resp.Header.Get("Idempotent-Replayed"))

	// повтор с тем же ключом отдает сохраненный ответ и не занимает места повторно
	resp, replay := env.do(t, call{method: http.MethodPost, path: holdPath, headers: idem("hold-1")})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("Idempotent-Replayed"))
	assert.JSONEq(t, string(first), string(replay))
	_, held, _ := env.db.SlotCounters(t, env.slotID)
	assert.Equal(t, 3, held)

	invoicePath := fmt.Sprintf("/api/v1/bookings/%d/invoice", id)
	resp, raw := env.do(t, call{method: http.MethodPost, path: invoicePath, headers: idem("inv-1")})
	require.Equal(t, http.StatusCreated, resp.StatusCode, string(raw))
	invoice := decode(t, raw)["invoice"].(map[string]interface{})
	assert.Equal(t, "149.7", invoice["amount"])

	resp, raw = env.do(t, call{method: http.MethodPost, path: invoicePath, headers: idem("inv-2")})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, false, decode(t, raw)["created"])

	resp, raw = env.do(t, call{
		method:  http.MethodPost,
		path:    fmt.Sprintf("/api/v1/bookings/%d/confirm", id),
		body:    map[string]string{"paymentRef": "pay-777"},
		headers: idem("confirm-1"),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, raw = env.do(t, call{method: http.MethodGet, path: fmt.Sprintf("/api/v1/bookings/%d", id)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	details := decode(t, raw)
	assert.Equal(t, "confirm", details["booking"].(map[string]interface{})["state"])
	assert.Equal(t, "paid", details["invoice"].(map[string]interface{})["status"])

	code := details["booking"].(map[string]interface{})["code"].(string)
	resp, raw = env.do(t, call{method: http.MethodGet, path: "/api/v1/bookings/" + code})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, float64(id), decode(t, raw)["booking"].(map[string]interface{})["id"])

	_, held, confirmed := env.db.SlotCounters(t, env.slotID)
	assert.Equal(t, 0, held)
	assert.Equal(t, 3, confirmed)

	resp, raw = env.do(t, call{method: http.MethodGet, path: "/api/v1/customers/cust-1/bookings?state=confirm"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Len(t, decode(t, raw)["bookings"], 1)

	resp, raw = env.do(t, call{method: http.MethodGet, path: fmt.Sprintf("/api/v1/slots/%d", env.slotID)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(7), decode(t, raw)["remaining"])
}

func TestAPI_ErrorMapping(t *testing.T) {
	env := newAPIEnv(t, 2, 100)
	id := env.createBooking(t, 2)
	other := env.createBooking(t, 1)

	holdPath := func(id int64) string { return fmt.Sprintf("/api/v1/bookings/%d/hold", id) }

	tests := []struct {
		name   string
		call   call
		status int
		code   string
	}{
		{
			name:   "missing idempotency key",
			call:   call{method: http.MethodPost, path: holdPath(id)},
			status: http.StatusBadRequest,
			code:   "idempotency_key_required",
		},
		{
			name:   "unknown booking",
			call:   call{method: http.MethodGet, path: "/api/v1/bookings/9999"},
			status: http.StatusNotFound,
			code:   "not_found",
		},
		{
			name:   "malformed booking reference",
			call:   call{method: http.MethodGet, path: "/api/v1/bookings/abc"},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "invoice on draft",
			call:   call{method: http.MethodPost, path: fmt.Sprintf("/api/v1/bookings/%d/invoice", id), headers: idem("inv-draft")},
			status: http.StatusConflict,
			code:   "conflict",
		},
		{
			name:   "cancel with reserved reason",
			call:   call{method: http.MethodPost, path: fmt.Sprintf("/api/v1/bookings/%d/cancel", id), body: map[string]string{"reason": "expired"}},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "foreign origin",
			call:   call{method: http.MethodPost, path: holdPath(id), headers: map[string]string{"Origin": "https://evil.example.com", "Idempotency-Key": "x"}},
			status: http.StatusForbidden,
			code:   "forbidden_origin",
		},
		{
			name:   "bad availability range",
			call:   call{method: http.MethodGet, path: fmt.Sprintf("/api/v1/routes/%d/availability?from=yesterday&to=today", env.routeID)},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
		{
			name:   "create with zero qty",
			call:   call{method: http.MethodPost, path: "/api/v1/bookings", body: map[string]interface{}{"slotId": env.slotID, "qty": 0, "customerId": "c", "customerName": "n"}},
			status: http.StatusBadRequest,
			code:   "validation_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, raw := env.do(t, tt.call)
			require.Equal(t, tt.status, resp.StatusCode, string(raw))
			assert.Equal(t, tt.code, decode(t, raw)["code"])
		})
	}

	t.Run("insufficient capacity", func(t *testing.T) {
		resp, raw := env.do(t, call{method: http.MethodPost, path: holdPath(id), headers: idem("h-a")})
		require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

		resp, raw = env.do(t, call{method: http.MethodPost, path: holdPath(other), headers: idem("h-b")})
		require.Equal(t, http.StatusConflict, resp.StatusCode, string(raw))
		assert.Equal(t, "insufficient_capacity", decode(t, raw)["code"])
	})
}

func TestAPI_Availability(t *testing.T) {
	env := newAPIEnv(t, 4, 100)
	from := testNow.Format(time.RFC3339)
	to := testNow.Add(7 * 24 * time.Hour).Format(time.RFC3339)

	resp, raw := env.do(t, call{
		method: http.MethodGet,
		path:   fmt.Sprintf("/api/v1/routes/%d/availability?from=%s&to=%s", env.routeID, from, to),
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	slotsList := decode(t, raw)["slots"].([]interface{})
	require.Len(t, slotsList, 1)
	assert.Equal(t, float64(4), slotsList[0].(map[string]interface{})["remaining"])
}

func TestAPI_RateLimit(t *testing.T) {
	env := newAPIEnv(t, 4, 2)
	path := fmt.Sprintf("/api/v1/slots/%d", env.slotID)

	for i := 0; i < 2; i++ {
		resp, _ := env.do(t, call{method: http.MethodGet, path: path})
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "2", resp.Header.Get("X-RateLimit-Limit"))
	}

	resp, raw := env.do(t, call{method: http.MethodGet, path: path})
	require.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", decode(t, raw)["code"])
	assert.Equal(t, "60", resp.Header.Get("Retry-After"))

	// другой клиент считается отдельно
	resp, _ = env.do(t, call{method: http.MethodGet, path: path, headers: map[string]string{"X-Forwarded-For": "203.0.113.9"}})
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestAPI_Sweeper(t *testing.T) {
	env := newAPIEnv(t, 5, 100)
	id := env.createBooking(t, 2)

	resp, raw := env.do(t, call{method: http.MethodPost, path: fmt.Sprintf("/api/v1/bookings/%d/hold", id), headers: idem("h")})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))

	resp, _ = env.do(t, call{method: http.MethodPost, path: "/internal/v1/holds/sweep", headers: map[string]string{"X-Sweeper-Secret": "wrong"}})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	env.clock.Advance(31 * time.Minute)

	resp, raw = env.do(t, call{method: http.MethodPost, path: "/internal/v1/holds/sweep", headers: map[string]string{"X-Sweeper-Secret": testSecret}})
	require.Equal(t, http.StatusOK, resp.StatusCode, string(raw))
	assert.Equal(t, float64(1), decode(t, raw)["expired"])

	_, held, _ := env.db.SlotCounters(t, env.slotID)
	assert.Zero(t, held)

	resp, raw = env.do(t, call{method: http.MethodGet, path: fmt.Sprintf("/api/v1/bookings/%d", id)})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	booking := decode(t, raw)["booking"].(map[string]interface{})
	assert.Equal(t, "cancel", booking["state"])
	assert.Equal(t, "expired", booking["cancelReason"])
}

func TestAPI_Health(t *testing.T) {
	env := newAPIEnv(t, 1, 100)
	resp, raw := env.do(t, call{method: http.MethodGet, path: "/health"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", decode(t, raw)["status"])
}
