package middleware

import (
	"context"
	"errors"
	"net/http"

	"github.com/m04kA/SMC-TourBookingService/internal/api/handlers"
	"github.com/m04kA/SMC-TourBookingService/internal/infra/idempotency"
)

const (
	// IdempotencyKeyHeader ключ идемпотентности от клиента
	IdempotencyKeyHeader = "Idempotency-Key"
	// ReplayedHeader выставляется, если ответ взят из кеша
	ReplayedHeader = "Idempotent-Replayed"

	msgKeyRequired       = "требуется заголовок Idempotency-Key"
	msgRequestInProgress = "запрос с этим ключом уже выполняется"
)

// Idempotency выполняет обработчик через гейт: повтор с тем же ключом
// получает сохраненный ответ, параллельный повтор получает 409.
// Область ключа - метод и путь запроса.
func Idempotency(gate IdempotencyGate, logger Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get(IdempotencyKeyHeader)
			scope := r.Method + " " + r.URL.Path

			var rec *recorder
			resp, err := gate.Execute(r.Context(), scope, key, func(ctx context.Context) (idempotency.Response, error) {
				rec = newRecorder()
				next.ServeHTTP(rec, r.WithContext(ctx))
				return idempotency.Response{
					Status:      rec.status,
					Body:        rec.body.Bytes(),
					ContentType: rec.header.Get("Content-Type"),
				}, nil
			})
			if err != nil {
				switch {
				case errors.Is(err, idempotency.ErrKeyRequired):
					logger.Warn("%s %s - Missing idempotency key", r.Method, r.URL.Path)
					handlers.RespondError(w, http.StatusBadRequest, handlers.CodeIdempotencyKeyRequired, msgKeyRequired)
				case errors.Is(err, idempotency.ErrRequestInProgress):
					handlers.RespondError(w, http.StatusConflict, handlers.CodeRequestInProgress, msgRequestInProgress)
				default:
					logger.Error("%s %s - Idempotency gate failed: %v", r.Method, r.URL.Path, err)
					handlers.RespondInternalError(w)
				}
				return
			}

			if rec != nil && !resp.Replayed {
				for name, values := range rec.header {
					w.Header()[name] = values
				}
			}
			if resp.ContentType != "" {
				w.Header().Set("Content-Type", resp.ContentType)
			}
			if resp.Replayed {
				w.Header().Set(ReplayedHeader, "true")
			}
			w.WriteHeader(resp.Status)
			_, _ = w.Write(resp.Body)
		})
	}
}
