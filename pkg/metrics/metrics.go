package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics набор метрик сервиса.
// Все методы безопасно вызывать на nil: так метрики отключаются целиком.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests *prometheus.CounterVec
	httpDuration *prometheus.HistogramVec

	dbQueryDuration *prometheus.HistogramVec
	dbOpenConns     prometheus.Gauge
	dbInUseConns    prometheus.Gauge
	dbIdleConns     prometheus.Gauge
	dbWaitCount     prometheus.Gauge

	txOutcomes *prometheus.CounterVec
	txRetries  prometheus.Counter

	capacityOps         *prometheus.CounterVec
	bookingTransitions  *prometheus.CounterVec
	idempotencyOutcomes *prometheus.CounterVec
	rateLimitRejections prometheus.Counter
	sweeperResults      *prometheus.CounterVec
	auditFailures       prometheus.Counter
	notifyFailures      *prometheus.CounterVec
}

// New создает набор метрик в собственном реестре
func New(serviceName string) *Metrics {
	constLabels := prometheus.Labels{"service": serviceName}
	m := &Metrics{
		registry: prometheus.NewRegistry(),

		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "HTTP requests by method, route and status code.",
			ConstLabels: constLabels,
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency.",
			ConstLabels: constLabels,
			Buckets:     prometheus.DefBuckets,
		}, []string{"method", "route"}),

		dbQueryDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "db_query_duration_seconds",
			Help:        "Database statement latency.",
			ConstLabels: constLabels,
			Buckets:     []float64{.001, .0025, .005, .01, .025, .05, .1, .25, .5, 1},
		}, []string{"operation"}),
		dbOpenConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_open_connections", Help: "Open connections in the pool.", ConstLabels: constLabels,
		}),
		dbInUseConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_in_use_connections", Help: "Connections currently in use.", ConstLabels: constLabels,
		}),
		dbIdleConns: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_idle_connections", Help: "Idle connections in the pool.", ConstLabels: constLabels,
		}),
		dbWaitCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "db_wait_count", Help: "Total number of connections waited for.", ConstLabels: constLabels,
		}),

		txOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "db_transactions_total",
			Help:        "Finished transactions by outcome.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		txRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "db_transaction_retries_total",
			Help:        "Transaction attempts retried after a serialization failure.",
			ConstLabels: constLabels,
		}),

		capacityOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "capacity_operations_total",
			Help:        "Capacity engine operations by kind and outcome.",
			ConstLabels: constLabels,
		}, []string{"op", "outcome"}),
		bookingTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "booking_transitions_total",
			Help:        "Committed booking state transitions.",
			ConstLabels: constLabels,
		}, []string{"from", "to"}),
		idempotencyOutcomes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "idempotency_requests_total",
			Help:        "Idempotency gate decisions.",
			ConstLabels: constLabels,
		}, []string{"outcome"}),
		rateLimitRejections: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "rate_limit_rejections_total",
			Help:        "Requests rejected by the rate limiter.",
			ConstLabels: constLabels,
		}),
		sweeperResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "hold_sweeper_bookings_total",
			Help:        "Bookings processed by the hold-expiry sweeper.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		auditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "audit_write_failures_total",
			Help:        "Audit events that could not be written.",
			ConstLabels: constLabels,
		}),
		notifyFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "notification_failures_total",
			Help:        "Failed booking notifications by notifier.",
			ConstLabels: constLabels,
		}, []string{"notifier"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests, m.httpDuration,
		m.dbQueryDuration, m.dbOpenConns, m.dbInUseConns, m.dbIdleConns, m.dbWaitCount,
		m.txOutcomes, m.txRetries,
		m.capacityOps, m.bookingTransitions, m.idempotencyOutcomes,
		m.rateLimitRejections, m.sweeperResults, m.auditFailures, m.notifyFailures,
	)

	return m
}

// Handler HTTP-обработчик для экспорта метрик
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry реестр, для тестов
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(method, route, statusLabel(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) ObserveQuery(operation string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.dbQueryDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

// SetPoolStats обновляет метрики пула соединений
func (m *Metrics) SetPoolStats(open, inUse, idle int, waitCount int64) {
	if m == nil {
		return
	}
	m.dbOpenConns.Set(float64(open))
	m.dbInUseConns.Set(float64(inUse))
	m.dbIdleConns.Set(float64(idle))
	m.dbWaitCount.Set(float64(waitCount))
}

func (m *Metrics) IncTx(outcome string) {
	if m == nil {
		return
	}
	m.txOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncTxRetry() {
	if m == nil {
		return
	}
	m.txRetries.Inc()
}

func (m *Metrics) IncCapacityOp(op, outcome string) {
	if m == nil {
		return
	}
	m.capacityOps.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) IncTransition(from, to string) {
	if m == nil {
		return
	}
	m.bookingTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) IncIdempotency(outcome string) {
	if m == nil {
		return
	}
	m.idempotencyOutcomes.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncRateLimited() {
	if m == nil {
		return
	}
	m.rateLimitRejections.Inc()
}

func (m *Metrics) AddSweeperResult(result string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.sweeperResults.WithLabelValues(result).Add(float64(n))
}

func (m *Metrics) IncAuditFailure() {
	if m == nil {
		return
	}
	m.auditFailures.Inc()
}

func (m *Metrics) IncNotifyFailure(notifier string) {
	if m == nil {
		return
	}
	m.notifyFailures.WithLabelValues(notifier).Inc()
}

func statusLabel(status int) string {
	if status == 0 {
		return strconv.Itoa(http.StatusOK)
	}
	return strconv.Itoa(status)
}
