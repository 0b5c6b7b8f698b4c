package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/catalog-reviews/internal/domain"
	"github.com/catalog-reviews/internal/transport/http/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockUserSvc struct{ mock.Mock }

func (m *mockUserSvc) userResult(args mock.Arguments) (*domain.User, error) {
	if u, _ := args.Get(0).(*domain.User); u != nil {
		return u, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockUserSvc) Find(ctx context.Context, username string) (*domain.User, error) {
	return m.userResult(m.Called(ctx, username))
}

func (m *mockUserSvc) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return m.userResult(m.Called(ctx, email))
}

func (m *mockUserSvc) Get(ctx context.Context, userID string) (*domain.User, error) {
	return m.userResult(m.Called(ctx, userID))
}

func (m *mockUserSvc) Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	return m.userResult(m.Called(ctx, req))
}

func (m *mockUserSvc) SetRole(ctx context.Context, actor *domain.User, username string, role domain.Role) (*domain.User, error) {
	return m.userResult(m.Called(ctx, actor, username, role))
}

func (m *mockUserSvc) Update(ctx context.Context, actor *domain.User, username string, req domain.UpdateUserRequest) (*domain.User, error) {
	return m.userResult(m.Called(ctx, actor, username, req))
}

func (m *mockUserSvc) UpdateSelf(ctx context.Context, actor *domain.User, req domain.UpdateUserRequest) (*domain.User, error) {
	return m.userResult(m.Called(ctx, actor, req))
}

func (m *mockUserSvc) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	return m.Called(ctx, userID, at).Error(0)
}

func (m *mockUserSvc) List(ctx context.Context, search string, limit int, cursor string) ([]domain.User, string, error) {
	args := m.Called(ctx, search, limit, cursor)
	return args.Get(0).([]domain.User), args.String(1), args.Error(2)
}

// --- helpers ---

// asUser builds a request carrying u as the authenticated caller.
func asUser(u *domain.User, method, target string, body []byte) *http.Request {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, target, bytes.NewReader(body))
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	if u != nil {
		r = r.WithContext(middleware.WithUser(r.Context(), u))
	}
	return r
}

// withParams injects chi URL params into the request context.
func withParams(r *http.Request, kv ...string) *http.Request {
	rctx := chi.NewRouteContext()
	for i := 0; i+1 < len(kv); i += 2 {
		rctx.URLParams.Add(kv[i], kv[i+1])
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&out))
	return out
}

var (
	alice = &domain.User{UserID: "u1", Username: "alice", Email: "alice@example.com", Role: domain.RoleUser}
	root  = &domain.User{UserID: "a1", Username: "root", Email: "root@example.com", Role: domain.RoleAdmin}
)

// --- Me tests ---

func TestMe_MissingUser(t *testing.T) {
	h := NewUserHandler(&mockUserSvc{})
	rr := httptest.NewRecorder()
	h.Me(rr, httptest.NewRequest(http.MethodGet, "/api/v1/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestMe_ReturnsProfileWithoutInternalFields(t *testing.T) {
	h := NewUserHandler(&mockUserSvc{})
	rr := httptest.NewRecorder()
	h.Me(rr, asUser(alice, http.MethodGet, "/api/v1/users/me", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	resp := decodeBody(t, rr)
	assert.Equal(t, "alice", resp["username"])
	assert.Equal(t, "user", resp["role"])
	_, hasID := resp["user_id"]
	assert.False(t, hasID)
}

func TestUpdateMe_RoleChangeIs400(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("UpdateSelf", mock.Anything, alice, mock.Anything).Return(nil, domain.ErrRoleChangeForbidden)
	h := NewUserHandler(svc)

	body := []byte(`{"role":"admin"}`)
	rr := httptest.NewRecorder()
	h.UpdateMe(rr, asUser(alice, http.MethodPatch, "/api/v1/users/me", body))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "role change forbidden", decodeBody(t, rr)["error"])
	svc.AssertExpectations(t)
}

func TestUpdateMe_InvalidBody(t *testing.T) {
	h := NewUserHandler(&mockUserSvc{})
	rr := httptest.NewRecorder()
	h.UpdateMe(rr, asUser(alice, http.MethodPatch, "/api/v1/users/me", []byte("not-json")))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestUpdateMe_HappyPath(t *testing.T) {
	svc := &mockUserSvc{}
	bio := "film buff"
	updated := *alice
	updated.Bio = bio
	svc.On("UpdateSelf", mock.Anything, alice, domain.UpdateUserRequest{Bio: &bio}).Return(&updated, nil)
	h := NewUserHandler(svc)

	body, _ := json.Marshal(domain.UpdateUserRequest{Bio: &bio})
	rr := httptest.NewRecorder()
	h.UpdateMe(rr, asUser(alice, http.MethodPatch, "/api/v1/users/me", body))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, bio, decodeBody(t, rr)["bio"])
	svc.AssertExpectations(t)
}

// --- directory tests ---

func TestList_PassesQueryThrough(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("List", mock.Anything, "ali", 2, "c1").Return([]domain.User{*alice}, "c2", nil)
	h := NewUserHandler(svc)

	rr := httptest.NewRecorder()
	h.List(rr, asUser(root, http.MethodGet, "/api/v1/users?search=ali&limit=2&cursor=c1", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp UsersPageEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "alice", resp.Data[0].Username)
	assert.Equal(t, "c2", resp.NextCursor)
	svc.AssertExpectations(t)
}

func TestList_BadLimit(t *testing.T) {
	h := NewUserHandler(&mockUserSvc{})
	rr := httptest.NewRecorder()
	h.List(rr, asUser(root, http.MethodGet, "/api/v1/users?limit=abc", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "limit", decodeBody(t, rr)["field"])
}

func TestCreate_FieldErrorCarriesField(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("Create", mock.Anything, mock.Anything).Return(nil, domain.NewFieldError("email", "email already registered"))
	h := NewUserHandler(svc)

	body := []byte(`{"username":"bob","email":"alice@example.com"}`)
	rr := httptest.NewRecorder()
	h.Create(rr, asUser(root, http.MethodPost, "/api/v1/users", body))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	resp := decodeBody(t, rr)
	assert.Equal(t, "email", resp["field"])
	assert.Equal(t, "email already registered", resp["error"])
}

func TestCreate_HappyPath(t *testing.T) {
	svc := &mockUserSvc{}
	req := domain.CreateUserRequest{Username: "mod", Email: "mod@example.com", Role: domain.RoleModerator}
	svc.On("Create", mock.Anything, req).Return(&domain.User{UserID: "m1", Username: "mod", Role: domain.RoleModerator}, nil)
	h := NewUserHandler(svc)

	body, _ := json.Marshal(req)
	rr := httptest.NewRecorder()
	h.Create(rr, asUser(root, http.MethodPost, "/api/v1/users", body))

	assert.Equal(t, http.StatusCreated, rr.Code)
	assert.Equal(t, "moderator", decodeBody(t, rr)["role"])
	svc.AssertExpectations(t)
}

func TestGet_NotFound(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("Find", mock.Anything, "ghost").Return(nil, domain.ErrNotFound)
	h := NewUserHandler(svc)

	r := withParams(asUser(root, http.MethodGet, "/api/v1/users/ghost", nil), "username", "ghost")
	rr := httptest.NewRecorder()
	h.Get(rr, r)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSetRole_PassesActorAndRole(t *testing.T) {
	svc := &mockUserSvc{}
	promoted := *alice
	promoted.Role = domain.RoleModerator
	svc.On("SetRole", mock.Anything, root, "alice", domain.RoleModerator).Return(&promoted, nil)
	h := NewUserHandler(svc)

	r := withParams(asUser(root, http.MethodPut, "/api/v1/users/alice/role", []byte(`{"role":"moderator"}`)), "username", "alice")
	rr := httptest.NewRecorder()
	h.SetRole(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "moderator", decodeBody(t, rr)["role"])
	svc.AssertExpectations(t)
}

func TestSetRole_ForbiddenMapsTo403(t *testing.T) {
	svc := &mockUserSvc{}
	svc.On("SetRole", mock.Anything, alice, "root", domain.RoleUser).Return(nil, domain.ErrForbidden)
	h := NewUserHandler(svc)

	r := withParams(asUser(alice, http.MethodPut, "/api/v1/users/root/role", []byte(`{"role":"user"}`)), "username", "root")
	rr := httptest.NewRecorder()
	h.SetRole(rr, r)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}
