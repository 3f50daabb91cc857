package api

import (
	"net/http"
	"time"

	"github.com/go-chi/cors"
	"github.com/gorilla/mux"

	"github.com/m04kA/SMC-TourBookingService/internal/api/handlers"
	"github.com/m04kA/SMC-TourBookingService/internal/api/middleware"
)

// Handlers обработчики маршрутов
type Handlers struct {
	CreateBooking       http.HandlerFunc
	GetBooking          http.HandlerFunc
	PlaceHold           http.HandlerFunc
	IssueInvoice        http.HandlerFunc
	ConfirmBooking      http.HandlerFunc
	CancelBooking       http.HandlerFunc
	GetAvailableSlots   http.HandlerFunc
	GetCustomerBookings http.HandlerFunc
	GetSlot             http.HandlerFunc
	GetSlotBookings     http.HandlerFunc
	RunSweeper          http.HandlerFunc
}

// Options инфраструктура маршрутизатора
type Options struct {
	// Metrics nil отключает HTTP метрики
	Metrics     middleware.HTTPMetrics
	MetricsPath string
	// MetricsHandler отдает метрики Prometheus, если задан
	MetricsHandler http.Handler

	// Limiter nil отключает ограничение частоты
	Limiter         middleware.Admitter
	RateLimit       int
	RateLimitWindow time.Duration

	Idempotency middleware.IdempotencyGate

	// PublicOrigin пустой отключает проверку origin и CORS
	PublicOrigin string

	Logger middleware.Logger
}

// NewRouter собирает HTTP маршруты сервиса
func NewRouter(h Handlers, opts Options) http.Handler {
	r := mux.NewRouter()

	r.Use(middleware.Recover(opts.Logger))
	r.Use(middleware.Tracing)
	if opts.Metrics != nil {
		r.Use(middleware.Metrics(opts.Metrics))
	}
	r.Use(middleware.Actor)

	r.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		handlers.RespondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	if opts.MetricsHandler != nil && opts.MetricsPath != "" {
		r.Handle(opts.MetricsPath, opts.MetricsHandler).Methods(http.MethodGet)
	}

	// ============================================================
	// PUBLIC API
	// ============================================================
	api := r.PathPrefix("/api/v1").Subrouter()
	if opts.Limiter != nil {
		api.Use(middleware.RateLimit(opts.Limiter, opts.RateLimit, opts.RateLimitWindow, opts.Logger))
	}
	api.Use(middleware.TrustedOrigin(opts.PublicOrigin, opts.Logger))

	idempotent := middleware.Idempotency(opts.Idempotency, opts.Logger)

	// --- Каталог ---
	api.HandleFunc("/routes/{routeId:[0-9]+}/availability", h.GetAvailableSlots).Methods(http.MethodGet)
	api.HandleFunc("/slots/{slotId:[0-9]+}", h.GetSlot).Methods(http.MethodGet)
	api.HandleFunc("/slots/{slotId:[0-9]+}/bookings", h.GetSlotBookings).Methods(http.MethodGet)

	// --- Бронирования ---
	api.HandleFunc("/bookings", h.CreateBooking).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{bookingId}", h.GetBooking).Methods(http.MethodGet)
	api.Handle("/bookings/{bookingId:[0-9]+}/hold", idempotent(h.PlaceHold)).Methods(http.MethodPost)
	api.Handle("/bookings/{bookingId:[0-9]+}/invoice", idempotent(h.IssueInvoice)).Methods(http.MethodPost)
	api.Handle("/bookings/{bookingId:[0-9]+}/confirm", idempotent(h.ConfirmBooking)).Methods(http.MethodPost)
	api.HandleFunc("/bookings/{bookingId:[0-9]+}/cancel", h.CancelBooking).Methods(http.MethodPost)
	api.HandleFunc("/customers/{customerId}/bookings", h.GetCustomerBookings).Methods(http.MethodGet)

	// ============================================================
	// INTERNAL (защищено X-Sweeper-Secret)
	// ============================================================
	internal := r.PathPrefix("/internal/v1").Subrouter()
	internal.HandleFunc("/holds/sweep", h.RunSweeper).Methods(http.MethodPost)

	if opts.PublicOrigin == "" {
		return r
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{opts.PublicOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Content-Type", middleware.UserIDHeader, middleware.IdempotencyKeyHeader},
		ExposedHeaders: []string{"Retry-After", "X-RateLimit-Limit", middleware.ReplayedHeader},
		MaxAge:         300,
	})(r)
}
