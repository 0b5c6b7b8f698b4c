package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/catalog-reviews/internal/application/title"
	"github.com/catalog-reviews/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockTitleSvc struct{ mock.Mock }

func (m *mockTitleSvc) viewResult(args mock.Arguments) (*domain.TitleView, error) {
	if v, _ := args.Get(0).(*domain.TitleView); v != nil {
		return v, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockTitleSvc) Create(ctx context.Context, actor *domain.User, in domain.TitleInput) (*domain.TitleView, error) {
	return m.viewResult(m.Called(ctx, actor, in))
}

func (m *mockTitleSvc) Get(ctx context.Context, titleID string) (*domain.TitleView, error) {
	return m.viewResult(m.Called(ctx, titleID))
}

func (m *mockTitleSvc) List(ctx context.Context, f title.Filter) ([]domain.TitleView, error) {
	args := m.Called(ctx, f)
	return args.Get(0).([]domain.TitleView), args.Error(1)
}

func (m *mockTitleSvc) Update(ctx context.Context, actor *domain.User, titleID string, req domain.UpdateTitleRequest) (*domain.TitleView, error) {
	return m.viewResult(m.Called(ctx, actor, titleID, req))
}

func (m *mockTitleSvc) Delete(ctx context.Context, actor *domain.User, titleID string) error {
	return m.Called(ctx, actor, titleID).Error(0)
}

type mockReviewSvc struct{ mock.Mock }

func (m *mockReviewSvc) reviewResult(args mock.Arguments) (*domain.Review, error) {
	if rv, _ := args.Get(0).(*domain.Review); rv != nil {
		return rv, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockReviewSvc) Create(ctx context.Context, actor *domain.User, titleID string, in domain.ReviewInput) (*domain.Review, error) {
	return m.reviewResult(m.Called(ctx, actor, titleID, in))
}

func (m *mockReviewSvc) Get(ctx context.Context, titleID, reviewID string) (*domain.Review, error) {
	return m.reviewResult(m.Called(ctx, titleID, reviewID))
}

func (m *mockReviewSvc) List(ctx context.Context, titleID string) ([]domain.Review, error) {
	args := m.Called(ctx, titleID)
	rvs, _ := args.Get(0).([]domain.Review)
	return rvs, args.Error(1)
}

func (m *mockReviewSvc) Update(ctx context.Context, actor *domain.User, titleID, reviewID string, req domain.UpdateReviewRequest) (*domain.Review, error) {
	return m.reviewResult(m.Called(ctx, actor, titleID, reviewID, req))
}

func (m *mockReviewSvc) Delete(ctx context.Context, actor *domain.User, titleID, reviewID string) error {
	return m.Called(ctx, actor, titleID, reviewID).Error(0)
}

func (m *mockReviewSvc) Rating(ctx context.Context, titleID string) (*float64, error) {
	args := m.Called(ctx, titleID)
	r, _ := args.Get(0).(*float64)
	return r, args.Error(1)
}

func (m *mockReviewSvc) DeleteByTitle(ctx context.Context, titleID string) error {
	return m.Called(ctx, titleID).Error(0)
}

func TestTitleList_FiltersFromQuery(t *testing.T) {
	svc := &mockTitleSvc{}
	want := title.Filter{Category: "film", Genre: "drama", Name: "god", Year: 1972}
	svc.On("List", mock.Anything, want).Return([]domain.TitleView{{Title: domain.Title{TitleID: "t1", Name: "The Godfather"}}}, nil)
	h := NewTitleHandler(svc)

	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/titles?category=film&genre=drama&name=god&year=1972", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestTitleList_BadYear(t *testing.T) {
	h := NewTitleHandler(&mockTitleSvc{})
	rr := httptest.NewRecorder()
	h.List(rr, httptest.NewRequest(http.MethodGet, "/api/v1/titles?year=recent", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "year", decodeBody(t, rr)["field"])
}

func TestTitleGet_RatingNullWhenUnreviewed(t *testing.T) {
	svc := &mockTitleSvc{}
	svc.On("Get", mock.Anything, "t1").Return(&domain.TitleView{Title: domain.Title{TitleID: "t1", Name: "Stalker", Genres: []string{}}}, nil)
	h := NewTitleHandler(svc)

	rr := httptest.NewRecorder()
	h.Get(rr, withParams(httptest.NewRequest(http.MethodGet, "/api/v1/titles/t1", nil), "titleID", "t1"))

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody(t, rr)
	rating, present := resp["rating"]
	assert.True(t, present)
	assert.Nil(t, rating)
}

func TestTitleDelete_AnonymousIs401(t *testing.T) {
	svc := &mockTitleSvc{}
	svc.On("Delete", mock.Anything, (*domain.User)(nil), "t1").Return(fmt.Errorf("delete title: %w", domain.ErrUnauthorized))
	h := NewTitleHandler(svc)

	rr := httptest.NewRecorder()
	h.Delete(rr, withParams(httptest.NewRequest(http.MethodDelete, "/api/v1/titles/t1", nil), "titleID", "t1"))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestReviewCreate_SecondReviewIs409(t *testing.T) {
	svc := &mockReviewSvc{}
	in := domain.ReviewInput{Text: "again", Score: 7}
	svc.On("Create", mock.Anything, alice, "t1", in).Return(nil, fmt.Errorf("review: %w", domain.ErrConflict))
	h := NewReviewHandler(svc)

	body, _ := json.Marshal(in)
	rr := httptest.NewRecorder()
	h.Create(rr, withParams(asUser(alice, http.MethodPost, "/api/v1/titles/t1/reviews", body), "titleID", "t1"))
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestReviewCreate_HappyPath(t *testing.T) {
	svc := &mockReviewSvc{}
	in := domain.ReviewInput{Text: "great", Score: 9}
	svc.On("Create", mock.Anything, alice, "t1", in).
		Return(&domain.Review{ReviewID: "r1", TitleID: "t1", AuthorID: "u1", Author: "alice", Text: "great", Score: 9}, nil)
	h := NewReviewHandler(svc)

	body, _ := json.Marshal(in)
	rr := httptest.NewRecorder()
	h.Create(rr, withParams(asUser(alice, http.MethodPost, "/api/v1/titles/t1/reviews", body), "titleID", "t1"))

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "alice", resp["author"])
	_, leaksAuthorID := resp["author_id"]
	assert.False(t, leaksAuthorID)
}

func TestReviewList_EmptyIsArray(t *testing.T) {
	svc := &mockReviewSvc{}
	svc.On("List", mock.Anything, "t1").Return(nil, nil)
	h := NewReviewHandler(svc)

	rr := httptest.NewRecorder()
	h.List(rr, withParams(httptest.NewRequest(http.MethodGet, "/api/v1/titles/t1/reviews", nil), "titleID", "t1"))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
}

func TestReviewDelete_NoContent(t *testing.T) {
	svc := &mockReviewSvc{}
	svc.On("Delete", mock.Anything, alice, "t1", "r1").Return(nil)
	h := NewReviewHandler(svc)

	r := withParams(asUser(alice, http.MethodDelete, "/api/v1/titles/t1/reviews/r1", nil), "titleID", "t1", "reviewID", "r1")
	rr := httptest.NewRecorder()
	h.Delete(rr, r)
	assert.Equal(t, http.StatusNoContent, rr.Code)
	svc.AssertExpectations(t)
}
