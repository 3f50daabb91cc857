package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/m04kA/SMC-TourBookingService/internal/domain"
)

// UserIDHeader заголовок с идентификатором вызывающего
const UserIDHeader = "X-User-ID"

type actorKey struct{}

// Actor кладет в контекст идентификатор вызывающего для аудита
func Actor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		actor := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if actor == "" || len(actor) > domain.MaxCustomerIDLength {
			actor = domain.AnonymousActor
		}
		next.ServeHTTP(w, r.WithContext(WithActor(r.Context(), actor)))
	})
}

// WithActor контекст с указанным actor
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// GetActor actor из контекста, по умолчанию anonymous
func GetActor(ctx context.Context) string {
	if actor, ok := ctx.Value(actorKey{}).(string); ok && actor != "" {
		return actor
	}
	return domain.AnonymousActor
}
