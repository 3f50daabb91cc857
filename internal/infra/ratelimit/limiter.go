package ratelimit

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// slidingWindow атомарно: записать запрос, выбросить вышедшие из окна,
// посчитать оставшиеся, продлить ключ и вернуть время самого старого запроса.
// Отклоненные запросы тоже остаются в окне.
var slidingWindow = redis.NewScript(`
local key = KEYS[1]
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])

redis.call('ZADD', key, ARGV[1], ARGV[3])
redis.call('ZREMRANGEBYSCORE', key, '-inf', now - window)
local count = redis.call('ZCARD', key)
redis.call('PEXPIRE', key, window)

local oldest = redis.call('ZRANGE', key, 0, 0, 'WITHSCORES')
return {count, oldest[2]}
`)

// TimeProvider источник текущего времени
type TimeProvider interface {
	Now() time.Time
}

// Metrics счетчик отказов
type Metrics interface {
	IncRateLimited()
}

// Logger интерфейс для логирования
type Logger interface {
	Warn(format string, v ...interface{})
	Error(format string, v ...interface{})
}

// Limiter ограничитель со скользящим окном на Redis sorted set
type Limiter struct {
	client   *redis.Client
	prefix   string
	clock    TimeProvider
	failOpen bool
	metrics  Metrics
	logger   Logger
}

// NewLimiter создает ограничитель. failOpen пропускает запросы при недоступном Redis.
func NewLimiter(client *redis.Client, prefix string, clock TimeProvider, failOpen bool, metrics Metrics, logger Logger) *Limiter {
	return &Limiter{
		client:   client,
		prefix:   prefix,
		clock:    clock,
		failOpen: failOpen,
		metrics:  metrics,
		logger:   logger,
	}
}

// Admit учитывает запрос identifier и решает, пропустить ли его.
// Больше limit запросов за window → *RateLimitedError.
func (l *Limiter) Admit(ctx context.Context, identifier string, limit int, window time.Duration) error {
	now := l.clock.Now()
	nowMs := now.UnixMilli()
	windowMs := window.Milliseconds()
	key := l.prefix + ":ratelimit:" + identifier
	member := strconv.FormatInt(nowMs, 10) + "-" + uuid.NewString()

	res, err := slidingWindow.Run(ctx, l.client, []string{key}, nowMs, windowMs, member).Slice()
	if err != nil {
		return l.storeFailure(identifier, err)
	}
	count, oldestMs, err := parseWindow(res)
	if err != nil {
		return l.storeFailure(identifier, err)
	}

	if count <= int64(limit) {
		return nil
	}

	retryAfter := time.Duration(windowMs-(nowMs-oldestMs)) * time.Millisecond
	if retryAfter < time.Second {
		retryAfter = time.Second
	}
	if l.metrics != nil {
		l.metrics.IncRateLimited()
	}
	l.logger.Warn("RateLimit: identifier=%s exceeded %d requests per %s, retry after %s", identifier, limit, window, retryAfter)
	return &RateLimitedError{RetryAfter: retryAfter}
}

func (l *Limiter) storeFailure(identifier string, err error) error {
	if l.failOpen {
		l.logger.Warn("RateLimit: store unavailable, admitting identifier=%s: %v", identifier, err)
		return nil
	}
	l.logger.Error("RateLimit: store unavailable, rejecting identifier=%s: %v", identifier, err)
	return fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
}

func parseWindow(res []interface{}) (count int64, oldestMs int64, err error) {
	if len(res) != 2 {
		return 0, 0, fmt.Errorf("unexpected script reply of %d elements", len(res))
	}
	count, ok := res[0].(int64)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected count type %T", res[0])
	}
	raw, ok := res[1].(string)
	if !ok {
		return 0, 0, fmt.Errorf("unexpected score type %T", res[1])
	}
	score, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("parse oldest score %q: %w", raw, err)
	}
	return count, int64(score), nil
}
