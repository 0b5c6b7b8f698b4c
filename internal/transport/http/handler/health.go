package handler

import (
	"context"
	"log/slog"
	"net/http"
)

// HealthHandler handles liveness and readiness checks.
type HealthHandler struct {
	ready func(ctx context.Context) error
}

// NewHealthHandler returns a handler whose readiness check calls ready.
// A nil ready is always ready.
func NewHealthHandler(ready func(ctx context.Context) error) *HealthHandler {
	return &HealthHandler{ready: ready}
}

func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ok"})
}

func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	if h.ready != nil {
		if err := h.ready(r.Context()); err != nil {
			slog.WarnContext(r.Context(), "readiness check failed", "err", err)
			writeError(w, http.StatusServiceUnavailable, "store unavailable")
			return
		}
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Message: "ready"})
}
