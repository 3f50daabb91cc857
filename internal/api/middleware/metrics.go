package middleware

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"
)

// Metrics считает запросы и латентность по шаблону маршрута
func Metrics(m HTTPMetrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			started := time.Now()
			sw := newStatusWriter(w)

			next.ServeHTTP(sw, r)

			m.ObserveHTTP(r.Method, routeTemplate(r), sw.status, time.Since(started))
		})
	}
}

// routeTemplate шаблон пути без значений переменных, чтобы не раздувать кардинальность
func routeTemplate(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}
