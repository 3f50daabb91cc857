package run_sweeper

import (
	"crypto/subtle"
	"net/http"

	"github.com/m04kA/SMC-TourBookingService/internal/api/handlers"
)

// SecretHeader общий секрет планировщика, запускающего свипер
const SecretHeader = "X-Sweeper-Secret"

const msgUnauthorized = "неверный секрет свипера"

type Handler struct {
	useCase SweepUseCase
	secret  []byte
	logger  Logger
}

// NewHandler создает обработчик. Пустой secret запрещает внешний запуск.
func NewHandler(useCase SweepUseCase, secret string, logger Logger) *Handler {
	return &Handler{
		useCase: useCase,
		secret:  []byte(secret),
		logger:  logger,
	}
}

// Handle POST /internal/v1/holds/sweep
func (h *Handler) Handle(w http.ResponseWriter, r *http.Request) {
	provided := []byte(r.Header.Get(SecretHeader))
	if len(h.secret) == 0 || subtle.ConstantTimeCompare(provided, h.secret) != 1 {
		h.logger.Warn("POST /holds/sweep - Unauthorized sweep attempt from %s", r.RemoteAddr)
		handlers.RespondUnauthorized(w, msgUnauthorized)
		return
	}

	result, err := h.useCase.Execute(r.Context())
	if err != nil {
		h.logger.Error("POST /holds/sweep - Sweep failed: %v", err)
		handlers.RespondInternalError(w)
		return
	}

	handlers.RespondJSON(w, http.StatusOK, result)
}
