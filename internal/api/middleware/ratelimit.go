package middleware

import (
	"errors"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/m04kA/SMC-TourBookingService/internal/api/handlers"
	"github.com/m04kA/SMC-TourBookingService/internal/infra/ratelimit"
)

const (
	msgRateLimited        = "слишком много запросов, повторите позже"
	msgLimiterUnavailable = "сервис временно недоступен"
)

// RateLimit ограничивает частоту запросов с одного IP
func RateLimit(limiter Admitter, limit int, window time.Duration, logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(limit))

			ip := ClientIP(r)
			err := limiter.Admit(r.Context(), ip, limit, window)
			if err == nil {
				next.ServeHTTP(w, r)
				return
			}

			var limited *ratelimit.RateLimitedError
			switch {
			case errors.As(err, &limited):
				logger.Warn("%s %s - Rate limited: ip=%s, retry_after=%s", r.Method, r.URL.Path, ip, limited.RetryAfter)
				handlers.RespondRateLimited(w, limited.RetryAfter, msgRateLimited)
			case errors.Is(err, ratelimit.ErrRateLimited):
				handlers.RespondRateLimited(w, window, msgRateLimited)
			default:
				logger.Error("%s %s - Rate limiter unavailable: %v", r.Method, r.URL.Path, err)
				handlers.RespondServiceUnavailable(w, msgLimiterUnavailable)
			}
		})
	}
}

// ClientIP адрес клиента: первый из X-Forwarded-For, затем X-Real-IP, затем RemoteAddr
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}
	if ip := strings.TrimSpace(r.Header.Get("X-Real-IP")); ip != "" {
		return ip
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
