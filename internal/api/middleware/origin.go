package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/m04kA/SMC-TourBookingService/internal/api/handlers"
)

const msgForbiddenOrigin = "запрос с недоверенного источника"

// TrustedOrigin пропускает изменяющие запросы только с публичного origin.
// Origin берется из заголовка Origin, иначе из Referer. Пустой publicOrigin отключает проверку.
func TrustedOrigin(publicOrigin string, logger Logger) func(http.Handler) http.Handler {
	expected := strings.TrimRight(strings.ToLower(publicOrigin), "/")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if expected == "" || isSafeMethod(r.Method) {
				next.ServeHTTP(w, r)
				return
			}

			origin := requestOrigin(r)
			if origin != expected {
				logger.Warn("%s %s - Forbidden origin: %q", r.Method, r.URL.Path, origin)
				handlers.RespondForbiddenOrigin(w, msgForbiddenOrigin)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func isSafeMethod(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return true
	}
	return false
}

func requestOrigin(r *http.Request) string {
	if origin := r.Header.Get("Origin"); origin != "" && origin != "null" {
		return strings.TrimRight(strings.ToLower(origin), "/")
	}
	if ref := r.Header.Get("Referer"); ref != "" {
		if u, err := url.Parse(ref); err == nil && u.Scheme != "" && u.Host != "" {
			return strings.ToLower(u.Scheme + "://" + u.Host)
		}
	}
	return ""
}
