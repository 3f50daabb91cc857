package ratelimit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRateLimited превышен лимит запросов в окне
	ErrRateLimited = errors.New("ratelimit: rate limited")

	// ErrStoreUnavailable Redis недоступен, а политика fail-closed
	ErrStoreUnavailable = errors.New("ratelimit: store unavailable")
)

// RateLimitedError отказ с временем, через которое имеет смысл повторить
type RateLimitedError struct {
	RetryAfter time.Duration
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("%s: retry after %s", ErrRateLimited, e.RetryAfter)
}

// Is позволяет проверять errors.Is(err, ErrRateLimited)
func (e *RateLimitedError) Is(target error) bool {
	return target == ErrRateLimited
}
