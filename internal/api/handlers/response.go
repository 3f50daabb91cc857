package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"
)

// Коды ошибок во внешних ответах
const (
	CodeValidation             = "validation_error"
	CodeIdempotencyKeyRequired = "idempotency_key_required"
	CodeNotFound               = "not_found"
	CodeConflict               = "conflict"
	CodeInsufficientCapacity   = "insufficient_capacity"
	CodeRequestInProgress      = "request_in_progress"
	CodeRateLimited            = "rate_limited"
	CodeForbiddenOrigin        = "forbidden_origin"
	CodeUnauthorized           = "unauthorized"
	CodeServiceUnavailable     = "service_unavailable"
	CodeInternal               = "internal_error"
)

const msgInternalError = "внутренняя ошибка сервера"

// ErrorResponse тело ответа с ошибкой
type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// RespondJSON пишет data в формате JSON с указанным статусом
func RespondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data == nil {
		return
	}
	_ = json.NewEncoder(w).Encode(data)
}

// RespondError пишет ошибку {code, message}
func RespondError(w http.ResponseWriter, status int, code, message string) {
	RespondJSON(w, status, ErrorResponse{Code: code, Message: message})
}

func RespondBadRequest(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusBadRequest, CodeValidation, message)
}

func RespondNotFound(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusNotFound, CodeNotFound, message)
}

func RespondConflict(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusConflict, CodeConflict, message)
}

func RespondInsufficientCapacity(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusConflict, CodeInsufficientCapacity, message)
}

func RespondUnauthorized(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusUnauthorized, CodeUnauthorized, message)
}

func RespondForbiddenOrigin(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusForbidden, CodeForbiddenOrigin, message)
}

func RespondServiceUnavailable(w http.ResponseWriter, message string) {
	RespondError(w, http.StatusServiceUnavailable, CodeServiceUnavailable, message)
}

// RespondRateLimited 429 с Retry-After в целых секундах (с округлением вверх)
func RespondRateLimited(w http.ResponseWriter, retryAfter time.Duration, message string) {
	seconds := int((retryAfter + time.Second - 1) / time.Second)
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	RespondError(w, http.StatusTooManyRequests, CodeRateLimited, message)
}

func RespondInternalError(w http.ResponseWriter) {
	RespondError(w, http.StatusInternalServerError, CodeInternal, msgInternalError)
}
