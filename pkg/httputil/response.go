package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	apperrors "github.com/MetallVersion/foodstuffs-rating-backend/pkg/errors"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/logger"
	"github.com/MetallVersion/foodstuffs-rating-backend/pkg/validator"
)

// Response is the standard JSON response envelope.
type Response struct {
	Data  any            `json:"data,omitempty"`
	Error *ErrorResponse `json:"error,omitempty"`
}

// ErrorResponse represents an error in the standard response format.
type ErrorResponse struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Fields    map[string]string `json:"fields,omitempty"`
	RequestID string            `json:"request_id,omitempty"`
}

var kindStatus = map[apperrors.Kind]int{
	apperrors.KindInvalidGrant:         http.StatusBadRequest,
	apperrors.KindUnsupportedGrantType: http.StatusBadRequest,
	apperrors.KindInvalidInput:         http.StatusBadRequest,
	apperrors.KindInvalidToken:         http.StatusUnauthorized,
	apperrors.KindUnauthorized:         http.StatusUnauthorized,
	apperrors.KindNotFound:             http.StatusNotFound,
	apperrors.KindConflict:             http.StatusConflict,
	apperrors.KindTooManyRequests:      http.StatusTooManyRequests,
	apperrors.KindInternal:             http.StatusInternalServerError,
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperrors.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// WriteJSON writes v as JSON with the given status code.
func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent; nothing meaningful can be done if encoding fails.
	_ = json.NewEncoder(w).Encode(v)
}

// LoggerFor returns the request-scoped logger when one is mounted, else fallback.
func LoggerFor(r *http.Request, fallback *slog.Logger) *slog.Logger {
	if l := logger.FromContext(r.Context()); l != slog.Default() || fallback == nil {
		return l
	}
	return fallback
}

// WriteError writes err in the standard envelope. Internal errors are logged
// and their detail withheld from the client.
func WriteError(w http.ResponseWriter, r *http.Request, err error, fallback *slog.Logger) {
	kind := apperrors.KindOf(err)
	status := StatusFor(kind)
	body := &ErrorResponse{
		Code:      kind.Code(),
		Message:   "an internal error occurred",
		RequestID: logger.CorrelationIDFromContext(r.Context()),
	}

	var appErr *apperrors.AppError
	switch {
	case kind == apperrors.KindInternal:
		LoggerFor(r, fallback).ErrorContext(r.Context(), "internal error",
			slog.String("error", err.Error()),
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
		)
	case errors.As(err, &appErr):
		body.Message = appErr.Message
	default:
		body.Message = err.Error()
	}

	WriteJSON(w, status, Response{Error: body})
}

// WriteValidationError writes a 400 response with field-level errors when err
// is a validator.ValidationError.
func WriteValidationError(w http.ResponseWriter, err error) {
	var valErr *validator.ValidationError
	if errors.As(err, &valErr) {
		WriteJSON(w, http.StatusBadRequest, Response{
			Error: &ErrorResponse{
				Code:    "validation_error",
				Message: "request validation failed",
				Fields:  valErr.Fields(),
			},
		})
		return
	}

	WriteJSON(w, http.StatusBadRequest, Response{
		Error: &ErrorResponse{Code: apperrors.KindInvalidInput.Code(), Message: err.Error()},
	})
}
