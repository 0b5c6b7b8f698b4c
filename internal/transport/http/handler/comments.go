package handler

import (
	"net/http"

	"github.com/catalog-reviews/internal/application/comment"
	"github.com/catalog-reviews/internal/domain"
	"github.com/catalog-reviews/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// CommentHandler handles comments nested under a review.
type CommentHandler struct {
	svc comment.Service
}

func NewCommentHandler(svc comment.Service) *CommentHandler { return &CommentHandler{svc: svc} }

func (h *CommentHandler) List(w http.ResponseWriter, r *http.Request) {
	comments, err := h.svc.List(r.Context(), chi.URLParam(r, "titleID"), chi.URLParam(r, "reviewID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	writeJSON(w, http.StatusOK, comments)
}

func (h *CommentHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UserFromContext(r.Context())
	var in domain.CommentInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := h.svc.Create(r.Context(), actor, chi.URLParam(r, "titleID"), chi.URLParam(r, "reviewID"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (h *CommentHandler) Get(w http.ResponseWriter, r *http.Request) {
	c, err := h.svc.Get(r.Context(), chi.URLParam(r, "titleID"), chi.URLParam(r, "reviewID"), chi.URLParam(r, "commentID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CommentHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UserFromContext(r.Context())
	var in domain.CommentInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	c, err := h.svc.Update(r.Context(), actor,
		chi.URLParam(r, "titleID"), chi.URLParam(r, "reviewID"), chi.URLParam(r, "commentID"), in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (h *CommentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UserFromContext(r.Context())
	err := h.svc.Delete(r.Context(), actor, chi.URLParam(r, "titleID"), chi.URLParam(r, "reviewID"), chi.URLParam(r, "commentID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
