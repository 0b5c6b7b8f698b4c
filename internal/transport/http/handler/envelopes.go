package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/catalog-reviews/internal/domain"
)

// MessageEnvelope is the generic response wrapper. Field names the offending
// input on validation errors.
type MessageEnvelope struct {
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
	Field   string `json:"field,omitempty"`
}

// SignupEnvelope wraps signup responses. Warning is set when the account
// exists but the confirmation code could not be delivered.
type SignupEnvelope struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Warning  string `json:"warning,omitempty"`
}

// TokenEnvelope wraps a freshly issued bearer token.
type TokenEnvelope struct {
	Token string `json:"token"`
}

// UsersPageEnvelope wraps one page of the user directory.
type UsersPageEnvelope struct {
	Data       []domain.User `json:"data"`
	NextCursor string        `json:"next_cursor,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, MessageEnvelope{Error: msg})
}

func decodeJSON(r *http.Request, v interface{}) error {
	return json.NewDecoder(r.Body).Decode(v)
}

// statusFor maps a service error onto its HTTP status.
func statusFor(err error) int {
	switch {
	// Checked before ErrForbidden, which it unwraps to.
	case errors.Is(err, domain.ErrRoleChangeForbidden):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrValidation), errors.Is(err, domain.ErrInvalidCredentials):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// writeServiceError renders err with the status statusFor picks. Internal
// failures are logged and never echoed to the client.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		slog.ErrorContext(r.Context(), "request failed", "method", r.Method, "path", r.URL.Path, "err", err)
		writeError(w, status, "internal server error")
		return
	}
	var fe *domain.FieldError
	if errors.As(err, &fe) {
		writeJSON(w, status, MessageEnvelope{Error: fe.Message, Field: fe.Field})
		return
	}
	if errors.Is(err, domain.ErrInvalidCredentials) {
		writeError(w, status, domain.ErrInvalidCredentials.Error())
		return
	}
	writeError(w, status, err.Error())
}
