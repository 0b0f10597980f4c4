package response

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/mydiary/mall-server/internal/domain"
	"github.com/mydiary/mall-server/pkg/logger"
)

// ErrorResponse is the JSON body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
	Field string `json:"field,omitempty"`
}

const (
	CodeInvalidInput       = "INVALID_INPUT"
	CodeUnauthorized       = "UNAUTHORIZED"
	CodeForbidden          = "FORBIDDEN"
	CodeNotFound           = "NOT_FOUND"
	CodeConflict           = "CONFLICT"
	CodeGone               = "GONE"
	CodeRateLimit          = "RATE_LIMIT_EXCEEDED"
	CodeInternalError      = "INTERNAL_ERROR"
	CodeInvalidCredentials = "INVALID_CREDENTIALS"
	CodeAlreadyLoggedIn    = "ALREADY_LOGGED_IN"
	CodeEmailNotVerified   = "EMAIL_NOT_VERIFIED"
)

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response", "error", err)
	}
}

func WriteError(w http.ResponseWriter, status int, message, code string) {
	WriteJSON(w, status, ErrorResponse{Error: message, Code: code})
}

// FromError maps a service error onto a status and code. Anything unrecognised
// is logged with the request context and answered with a generic 500.
func FromError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *domain.ValidationError
	switch {
	case errors.As(err, &ve):
		msg := ve.Reason
		if ve.Field != "" {
			msg = ve.Field + " " + ve.Reason
		}
		WriteJSON(w, http.StatusBadRequest, ErrorResponse{Error: msg, Code: CodeInvalidInput, Field: ve.Field})
	case errors.Is(err, domain.ErrInvalidCredentials):
		WriteError(w, http.StatusUnauthorized, domain.ErrInvalidCredentials.Error(), CodeInvalidCredentials)
	case errors.Is(err, domain.ErrAlreadyLoggedIn):
		WriteError(w, http.StatusConflict, domain.ErrAlreadyLoggedIn.Error(), CodeAlreadyLoggedIn)
	case errors.Is(err, domain.ErrEmailNotVerified):
		WriteError(w, http.StatusForbidden, domain.ErrEmailNotVerified.Error(), CodeEmailNotVerified)
	case errors.Is(err, domain.ErrUnauthorized):
		Unauthorized(w, "authentication required")
	case errors.Is(err, domain.ErrForbidden):
		Forbidden(w, detail(err, domain.ErrForbidden))
	case errors.Is(err, domain.ErrNotFound):
		NotFound(w, "not found")
	case errors.Is(err, domain.ErrConflict):
		Conflict(w, detail(err, domain.ErrConflict))
	case errors.Is(err, domain.ErrGone):
		WriteError(w, http.StatusGone, detail(err, domain.ErrGone), CodeGone)
	default:
		logger.ErrorContext(r.Context(), "Request failed", "method", r.Method, "path", r.URL.Path, "error", err)
		InternalError(w, "internal server error")
	}
}

// detail strips the sentinel suffix from a wrapped error, leaving the caller's context.
func detail(err, sentinel error) string {
	msg := strings.TrimSuffix(err.Error(), ": "+sentinel.Error())
	if msg == "" {
		return sentinel.Error()
	}
	return msg
}

func BadRequest(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, message, CodeInvalidInput)
}

func Unauthorized(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnauthorized, message, CodeUnauthorized)
}

func Forbidden(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusForbidden, message, CodeForbidden)
}

func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, message, CodeNotFound)
}

func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, message, CodeInternalError)
}

func RateLimit(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusTooManyRequests, message, CodeRateLimit)
}

func Conflict(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, message, CodeConflict)
}
