package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/catalog-reviews/internal/domain"
	"github.com/catalog-reviews/internal/pkg/id"
	"github.com/catalog-reviews/internal/pkg/validate"
	"github.com/catalog-reviews/internal/policy"
)

// Attribute names used in partial update maps.
const (
	fieldRole        = "role"
	fieldLastLoginAt = "last_login_at"
)

const (
	defaultPageSize = 50
	maxPageSize     = 100
)

type Service interface {
	Find(ctx context.Context, username string) (*domain.User, error)
	FindByEmail(ctx context.Context, email string) (*domain.User, error)
	Get(ctx context.Context, userID string) (*domain.User, error)
	Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	SetRole(ctx context.Context, actor *domain.User, username string, role domain.Role) (*domain.User, error)
	Update(ctx context.Context, actor *domain.User, username string, req domain.UpdateUserRequest) (*domain.User, error)
	UpdateSelf(ctx context.Context, actor *domain.User, req domain.UpdateUserRequest) (*domain.User, error)
	RecordLogin(ctx context.Context, userID string, at time.Time) error
	List(ctx context.Context, search string, limit int, cursor string) ([]domain.User, string, error)
}

type userStore interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	Replace(ctx context.Context, prev, next *domain.User) error
	List(ctx context.Context, search string, limit int32, cursor string) ([]domain.User, string, error)
}

type service struct {
	repo userStore
	now  func() time.Time
}

type ServiceDeps struct {
	UserRepo userStore
	Now      func() time.Time // optional; defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: deps.UserRepo, now: now}
}

func (s *service) Find(ctx context.Context, username string) (*domain.User, error) {
	return s.repo.GetByUsername(ctx, username)
}

func (s *service) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	return s.repo.GetByEmail(ctx, NormalizeEmail(email))
}

func (s *service) Get(ctx context.Context, userID string) (*domain.User, error) {
	return s.repo.Get(ctx, userID)
}

// Create registers a user. Submitting the exact (username, email) pair of an
// existing account returns that account instead of failing, so signup can be
// repeated to get a fresh confirmation code.
func (s *service) Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	req.Email = NormalizeEmail(req.Email)
	if req.Role == "" {
		req.Role = domain.RoleUser
	}

	// A lost race against a concurrent signup for the same pair surfaces as
	// ErrConflict from the store; the second pass then finds the winner.
	for attempt := 0; attempt < 2; attempt++ {
		existing, err := s.existingPair(ctx, req.Username, req.Email)
		if err != nil || existing != nil {
			return existing, err
		}

		now := s.now().UTC()
		u := &domain.User{
			UserID:    id.New(),
			Username:  req.Username,
			Email:     req.Email,
			Role:      req.Role,
			Bio:       req.Bio,
			FirstName: req.FirstName,
			LastName:  req.LastName,
			CreatedAt: now,
			UpdatedAt: now,
		}
		err = s.repo.Create(ctx, u)
		if err == nil {
			slog.InfoContext(ctx, "user created", "user_id", u.UserID, "username", u.Username)
			return u, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return nil, err
		}
	}
	return nil, fmt.Errorf("concurrent signup for %q: %w", req.Username, domain.ErrConflict)
}

// existingPair returns the user owning exactly (username, email), nil if
// neither is taken, or a field error if only one of them is.
func (s *service) existingPair(ctx context.Context, username, email string) (*domain.User, error) {
	byName, err := s.repo.GetByUsername(ctx, username)
	switch {
	case err == nil:
		if byName.Email == email {
			return byName, nil
		}
		return nil, domain.NewFieldError("username", "a user with that username already exists")
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	_, err = s.repo.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, domain.NewFieldError("email", "a user with that email already exists")
	case !errors.Is(err, domain.ErrNotFound):
		return nil, err
	}
	return nil, nil
}

func (s *service) SetRole(ctx context.Context, actor *domain.User, username string, role domain.Role) (*domain.User, error) {
	if !role.Valid() {
		return nil, domain.NewFieldError("role", "must be one of user, moderator, admin")
	}
	target, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	res := policy.Resource{Kind: policy.KindUserAccount, OwnerID: target.UserID, RoleChange: role != target.Role}
	if err := policy.Enforce(ctx, policy.ActorFromUser(actor), http.MethodPut, res); err != nil {
		return nil, err
	}
	if role == target.Role {
		return target, nil
	}
	if err := s.repo.Update(ctx, target.UserID, map[string]interface{}{fieldRole: role}); err != nil {
		return nil, err
	}
	slog.InfoContext(ctx, "role changed", "user_id", target.UserID, "from", target.Role, "to", role)
	return s.repo.Get(ctx, target.UserID)
}

// Update is the admin path: any field of any account, including the role.
func (s *service) Update(ctx context.Context, actor *domain.User, username string, req domain.UpdateUserRequest) (*domain.User, error) {
	target, err := s.repo.GetByUsername(ctx, username)
	if err != nil {
		return nil, err
	}
	res := policy.Resource{Kind: policy.KindUserAccount, OwnerID: target.UserID, RoleChange: roleChanges(target, req)}
	return s.apply(ctx, actor, target, res, req)
}

// UpdateSelf is the "me" path. Submitting a role different from the current
// one fails with domain.ErrRoleChangeForbidden, whatever the caller's role.
func (s *service) UpdateSelf(ctx context.Context, actor *domain.User, req domain.UpdateUserRequest) (*domain.User, error) {
	if actor == nil {
		return nil, fmt.Errorf("authentication required: %w", domain.ErrUnauthorized)
	}
	res := policy.Resource{Kind: policy.KindUserAccount, OwnerID: actor.UserID, Self: true, RoleChange: roleChanges(actor, req)}
	return s.apply(ctx, actor, actor, res, req)
}

func roleChanges(u *domain.User, req domain.UpdateUserRequest) bool {
	return req.Role != nil && *req.Role != u.Role
}

func (s *service) apply(ctx context.Context, actor, target *domain.User, res policy.Resource, req domain.UpdateUserRequest) (*domain.User, error) {
	if err := policy.Enforce(ctx, policy.ActorFromUser(actor), http.MethodPatch, res); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}

	next := *target
	if req.Username != nil && *req.Username != target.Username {
		if _, err := s.repo.GetByUsername(ctx, *req.Username); err == nil {
			return nil, domain.NewFieldError("username", "a user with that username already exists")
		}
		next.Username = *req.Username
	}
	if req.Email != nil {
		email := NormalizeEmail(*req.Email)
		if email != target.Email {
			if _, err := s.repo.GetByEmail(ctx, email); err == nil {
				return nil, domain.NewFieldError("email", "a user with that email already exists")
			}
			next.Email = email
		}
	}
	if req.Role != nil {
		next.Role = *req.Role
	}
	if req.Bio != nil {
		next.Bio = *req.Bio
	}
	if req.FirstName != nil {
		next.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		next.LastName = *req.LastName
	}
	if next == *target {
		return target, nil
	}
	next.UpdatedAt = s.now().UTC()
	if err := s.repo.Replace(ctx, target, &next); err != nil {
		return nil, err
	}
	return &next, nil
}

// RecordLogin stamps a successful code exchange. Changing last_login_at also
// invalidates every confirmation code issued before it.
func (s *service) RecordLogin(ctx context.Context, userID string, at time.Time) error {
	return s.repo.Update(ctx, userID, map[string]interface{}{fieldLastLoginAt: at.UTC()})
}

func (s *service) List(ctx context.Context, search string, limit int, cursor string) ([]domain.User, string, error) {
	if limit < 1 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return s.repo.List(ctx, search, int32(limit), cursor)
}

// NormalizeEmail lower-cases the domain part and trims surrounding space.
func NormalizeEmail(email string) string {
	email = strings.TrimSpace(email)
	at := strings.LastIndex(email, "@")
	if at < 0 {
		return email
	}
	return email[:at+1] + strings.ToLower(email[at+1:])
}
