package txmanager

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/m04kA/SMC-TourBookingService/pkg/dbmetrics"
	"github.com/m04kA/SMC-TourBookingService/pkg/metrics"
)

// DefaultMaxAttempts рассчитан на конкуренцию за один слот под REPEATABLE READ:
// коммит победителя дает 40001 всем, кто ждал FOR UPDATE, поэтому
// N одновременных участников в худшем случае требуют N попыток.
const (
	DefaultMaxAttempts  = 10
	DefaultInitialDelay = 20 * time.Millisecond
	DefaultMaxDelay     = 500 * time.Millisecond
)

var (
	// ErrSerialization транзакция не прошла после всех попыток
	ErrSerialization = errors.New("txmanager: serialization failure")

	// ErrBeginTx не удалось открыть транзакцию
	ErrBeginTx = errors.New("txmanager: failed to begin transaction")

	// ErrCommit не удалось зафиксировать транзакцию
	ErrCommit = errors.New("txmanager: failed to commit transaction")
)

// Beginner источник транзакций (*dbmetrics.DB)
type Beginner interface {
	BeginTx(ctx context.Context, opts *sql.TxOptions) (dbmetrics.TxExecutor, error)
}

// Logger интерфейс для логирования
type Logger interface {
	Info(format string, v ...interface{})
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// Manager открывает транзакции и кладет их в контекст.
// Вложенный вызов переиспользует уже открытую транзакцию.
type Manager struct {
	db           Beginner
	isolation    sql.IsolationLevel
	maxAttempts  int
	initialDelay time.Duration
	maxDelay     time.Duration
	retryable    func(error) bool
	metrics      *metrics.Metrics
	logger       Logger
}

// Option настройка менеджера
type Option func(*Manager)

// WithIsolation уровень изоляции для DoSerializable (по умолчанию REPEATABLE READ)
func WithIsolation(level sql.IsolationLevel) Option {
	return func(m *Manager) { m.isolation = level }
}

// WithMaxAttempts число попыток для DoSerializable
func WithMaxAttempts(n int) Option {
	return func(m *Manager) {
		if n > 0 {
			m.maxAttempts = n
		}
	}
}

// WithBackoff границы экспоненциальной задержки между попытками
func WithBackoff(initial, max time.Duration) Option {
	return func(m *Manager) {
		m.initialDelay = initial
		m.maxDelay = max
	}
}

// WithRetryable подменяет детектор ошибок сериализации
func WithRetryable(fn func(error) bool) Option {
	return func(m *Manager) { m.retryable = fn }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Manager) { m.metrics = mt }
}

func WithLogger(l Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewTransactionManager создает менеджер транзакций
func NewTransactionManager(db Beginner, opts ...Option) *Manager {
	m := &Manager{
		db:           db,
		isolation:    sql.LevelRepeatableRead,
		maxAttempts:  DefaultMaxAttempts,
		initialDelay: DefaultInitialDelay,
		maxDelay:     DefaultMaxDelay,
		retryable:    IsSerializationFailure,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Do выполняет fn в транзакции с уровнем изоляции по умолчанию, без повторов
func (m *Manager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, &sql.TxOptions{}, fn)
}

// DoReadOnly выполняет fn в транзакции только для чтения
func (m *Manager) DoReadOnly(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.run(ctx, &sql.TxOptions{ReadOnly: true}, fn)
}

// DoSerializable выполняет fn на повышенном уровне изоляции.
// При конфликте сериализации транзакция повторяется целиком
// с экспоненциальной задержкой и джиттером. Если попытки кончились,
// возвращается исходная ошибка, обёрнутая в ErrSerialization.
func (m *Manager) DoSerializable(ctx context.Context, fn func(ctx context.Context) error) error {
	if dbmetrics.IsInTransaction(ctx) {
		return fn(ctx)
	}

	opts := &sql.TxOptions{Isolation: m.isolation}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = m.initialDelay
	policy.MaxInterval = m.maxDelay
	policy.Multiplier = 2
	policy.RandomizationFactor = 0.5
	policy.MaxElapsedTime = 0

	attempt := 0
	var lastErr error
	operation := func() error {
		attempt++
		err := m.run(ctx, opts, fn)
		if err == nil {
			return nil
		}
		lastErr = err
		if !m.retryable(err) {
			return backoff.Permanent(err)
		}
		if attempt < m.maxAttempts {
			m.metrics.IncTxRetry()
			if m.logger != nil {
				m.logger.Warn("DoSerializable: serialization conflict, retrying attempt=%d/%d: %v", attempt+1, m.maxAttempts, err)
			}
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(m.maxAttempts-1)), ctx)
	if err := backoff.Retry(operation, b); err != nil {
		if m.retryable(err) {
			m.metrics.IncTx("exhausted")
			if m.logger != nil {
				m.logger.Error("DoSerializable: giving up after %d attempts: %v", attempt, err)
			}
			return fmt.Errorf("%w: after %d attempts: %w", ErrSerialization, attempt, err)
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			if lastErr != nil && !errors.Is(lastErr, err) {
				return errors.Join(err, lastErr)
			}
		}
		return err
	}
	return nil
}

func (m *Manager) run(ctx context.Context, opts *sql.TxOptions, fn func(ctx context.Context) error) (err error) {
	if dbmetrics.IsInTransaction(ctx) {
		return fn(ctx)
	}

	tx, err := m.db.BeginTx(ctx, opts)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrBeginTx, err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			m.metrics.IncTx("rollback")
			panic(p)
		}
	}()

	if err = fn(dbmetrics.WithTx(ctx, tx)); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) && m.logger != nil {
			m.logger.Error("txmanager: rollback failed: %v", rbErr)
		}
		m.metrics.IncTx("rollback")
		return err
	}

	if err = tx.Commit(); err != nil {
		m.metrics.IncTx("commit_failed")
		return fmt.Errorf("%w: %w", ErrCommit, err)
	}

	m.metrics.IncTx("commit")
	return nil
}
