package handler

import (
	"net/http"
	"strconv"

	"github.com/catalog-reviews/internal/application/title"
	"github.com/catalog-reviews/internal/domain"
	"github.com/catalog-reviews/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
)

// TitleHandler handles catalog title endpoints. Reads are public; writes are
// authorized by the title service.
type TitleHandler struct {
	svc title.Service
}

func NewTitleHandler(svc title.Service) *TitleHandler { return &TitleHandler{svc: svc} }

func (h *TitleHandler) List(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f := title.Filter{
		Category: q.Get("category"),
		Genre:    q.Get("genre"),
		Name:     q.Get("name"),
	}
	if raw := q.Get("year"); raw != "" {
		year, err := strconv.Atoi(raw)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, MessageEnvelope{Error: "must be an integer", Field: "year"})
			return
		}
		f.Year = year
	}
	titles, err := h.svc.List(r.Context(), f)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, titles)
}

func (h *TitleHandler) Create(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UserFromContext(r.Context())
	var in domain.TitleInput
	if err := decodeJSON(r, &in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := h.svc.Create(r.Context(), actor, in)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *TitleHandler) Get(w http.ResponseWriter, r *http.Request) {
	t, err := h.svc.Get(r.Context(), chi.URLParam(r, "titleID"))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TitleHandler) Update(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UserFromContext(r.Context())
	var req domain.UpdateTitleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	t, err := h.svc.Update(r.Context(), actor, chi.URLParam(r, "titleID"), req)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (h *TitleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	actor, _ := middleware.UserFromContext(r.Context())
	if err := h.svc.Delete(r.Context(), actor, chi.URLParam(r, "titleID")); err != nil {
		writeServiceError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
