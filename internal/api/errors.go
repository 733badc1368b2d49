package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/prodev-core/internal/dbaccess"
	"github.com/nerrad567/prodev-core/internal/user"
)

// Error represents a structured error response.
type Error struct {
	Status  int    `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Common error codes.
const (
	ErrCodeBadRequest  = "bad_request"
	ErrCodeNotFound    = "not_found"
	ErrCodeConflict    = "conflict"
	ErrCodeInternal    = "internal_error"
	ErrCodeValidation  = "validation_error"
	ErrCodeUnavailable = "unavailable"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes a structured error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, Error{
		Status:  status,
		Code:    code,
		Message: message,
	})
}

// writeBadRequest writes a 400 error response.
func writeBadRequest(w http.ResponseWriter, message string) {
	writeError(w, http.StatusBadRequest, ErrCodeBadRequest, message)
}

// writeInternalError writes a 500 error response.
func writeInternalError(w http.ResponseWriter, message string) {
	writeError(w, http.StatusInternalServerError, ErrCodeInternal, message)
}

// writeUserError maps repository errors onto HTTP responses. Conflicts are
// checked before validation because they also carry dbaccess.ErrValidation.
func (s *Server) writeUserError(w http.ResponseWriter, r *http.Request, op string, err error) {
	switch {
	case errors.Is(err, user.ErrUserNotFound):
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "user not found")
	case errors.Is(err, user.ErrUserExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "user_id already exists")
	case errors.Is(err, user.ErrEmailExists):
		writeError(w, http.StatusConflict, ErrCodeConflict, "email already in use")
	case errors.Is(err, user.ErrInvalidUser), errors.Is(err, dbaccess.ErrValidation):
		writeError(w, http.StatusBadRequest, ErrCodeValidation, err.Error())
	case errors.Is(err, dbaccess.ErrTransientQuery),
		errors.Is(err, dbaccess.ErrConnection),
		errors.Is(err, context.DeadlineExceeded):
		s.logger.Warn(op+" unavailable", "error", err, "request_id", requestIDFrom(r.Context()))
		writeError(w, http.StatusServiceUnavailable, ErrCodeUnavailable, "store temporarily unavailable, retry later")
	default:
		s.logger.Error(op+" failed", "error", err, "request_id", requestIDFrom(r.Context()))
		writeInternalError(w, op+" failed")
	}
}
