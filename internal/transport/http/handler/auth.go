package handler

import (
	"net/http"

	"github.com/catalog-reviews/internal/application/auth"
	"github.com/catalog-reviews/internal/domain"
)

// AuthHandler handles passwordless signup and code-for-token exchange.
type AuthHandler struct {
	svc auth.Service
}

func NewAuthHandler(svc auth.Service) *AuthHandler { return &AuthHandler{svc: svc} }

func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := h.svc.Signup(r.Context(), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	env := SignupEnvelope{Username: res.User.Username, Email: res.User.Email}
	if res.NotifyErr != nil {
		env.Warning = "confirmation code could not be delivered, sign up again to resend"
	}
	writeJSON(w, http.StatusOK, env)
}

func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	var req domain.TokenRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	token, err := h.svc.Exchange(r.Context(), req.Username, req.ConfirmationCode)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokenEnvelope{Token: token})
}
