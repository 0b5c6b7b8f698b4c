package handler

import (
	"net/http"

	"github.com/catalog-reviews/internal/application/review"
	"github.com/catalog-reviews/internal/domain"
	"github.com/catalog-reviews/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// ReviewHandler handles reviews nested under a title.
type ReviewHandler struct {
	svc review.Service
}

func NewReviewHandler(svc review.Service) *ReviewHandler { return &ReviewHandler{svc: svc} }

func (h *ReviewHandler) List(w http.ResponseWriter, r *http.Request) {
	reviews, err := h.svc.List(r.Context(), chi.URLParam(r, "titleID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if reviews == nil {
		reviews = []domain.Review{}
	}
	writeJSON(w, http.StatusOK, reviews)
}

func (h *ReviewHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UserFromContext(r.Context())
	var in domain.ReviewInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rv, err := h.svc.Create(r.Context(), actor, chi.URLParam(r, "titleID"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

func (h *ReviewHandler) Get(w http.ResponseWriter, r *http.Request) {
	rv, err := h.svc.Get(r.Context(), chi.URLParam(r, "titleID"), chi.URLParam(r, "reviewID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

func (h *ReviewHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UserFromContext(r.Context())
	var req domain.UpdateReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	rv, err := h.svc.Update(r.Context(), actor, chi.URLParam(r, "titleID"), chi.URLParam(r, "reviewID"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

func (h *ReviewHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UserFromContext(r.Context())
	if err := h.svc.Delete(r.Context(), actor, chi.URLParam(r, "titleID"), chi.URLParam(r, "reviewID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
