package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/catalog-reviews/internal/domain"
	jwtinfra "github.com/catalog-reviews/internal/infrastructure/jwt"
	"github.com/catalog-reviews/internal/pkg/validate"
)

// SignupResult is the outcome of a signup. NotifyErr is set when the account
// exists but the confirmation code could not be delivered.
type SignupResult struct {
	User      *domain.User
	NotifyErr error
}

type Service interface {
	Signup(ctx context.Context, req domain.SignupRequest) (*SignupResult, error)
	Exchange(ctx context.Context, username, code string) (string, error)
	Authenticate(ctx context.Context, token string) (*domain.User, error)
}

// Notifier delivers a confirmation code to an email address.
type Notifier interface {
	Notify(ctx context.Context, email, code string) error
}

type userStore interface {
	Create(ctx context.Context, req domain.CreateUserRequest) (*domain.User, error)
	Find(ctx context.Context, username string) (*domain.User, error)
	RecordLogin(ctx context.Context, userID string, at time.Time) error
}

type codeIssuer interface {
	Make(u *domain.User) string
	Check(u *domain.User, code string) bool
	Fingerprint(u *domain.User) string
	FingerprintMatches(u *domain.User, fp string) bool
}

type tokenProvider interface {
	Sign(username, fingerprint string) (string, error)
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

type service struct {
	users    userStore
	codes    codeIssuer
	tokens   tokenProvider
	notifier Notifier
	now      func() time.Time
}

type ServiceDeps struct {
	Users    userStore
	Codes    codeIssuer
	Tokens   tokenProvider
	Notifier Notifier
	Now      func() time.Time // optional; defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		users:    deps.Users,
		codes:    deps.Codes,
		tokens:   deps.Tokens,
		notifier: deps.Notifier,
		now:      now,
	}
}

// Signup creates the account, or finds it again for a repeated identical
// signup, and sends a fresh confirmation code. A delivery failure does not
// undo the account; it is reported in SignupResult.NotifyErr.
func (s *service) Signup(ctx context.Context, req domain.SignupRequest) (*SignupResult, error) {
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	u, err := s.users.Create(ctx, domain.CreateUserRequest{Username: req.Username, Email: req.Email})
	if err != nil {
		return nil, err
	}
	res := &SignupResult{User: u}
	if err := s.notifier.Notify(ctx, u.Email, s.codes.Make(u)); err != nil {
		slog.WarnContext(ctx, "confirmation code not delivered", "user_id", u.UserID, "err", err)
		res.NotifyErr = err
	}
	return res, nil
}

// Exchange trades a confirmation code for a bearer token. Unknown usernames
// and wrong codes both yield domain.ErrInvalidCredentials. A successful
// exchange records the login, which invalidates the code just used.
func (s *service) Exchange(ctx context.Context, username, code string) (string, error) {
	u, err := s.users.Find(ctx, username)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			return "", err
		}
		// Same work as a real check so timing does not reveal the miss.
		s.codes.Check(&domain.User{Username: username}, code)
		return "", domain.ErrInvalidCredentials
	}
	if !s.codes.Check(u, code) {
		slog.InfoContext(ctx, "confirmation code rejected", "user_id", u.UserID)
		return "", domain.ErrInvalidCredentials
	}
	if err := s.users.RecordLogin(ctx, u.UserID, s.now()); err != nil {
		return "", fmt.Errorf("record login: %w", err)
	}
	token, err := s.tokens.Sign(u.Username, s.codes.Fingerprint(u))
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Authenticate resolves a bearer token to the current user record. The role
// always comes from the store, never from the token.
func (s *service) Authenticate(ctx context.Context, token string) (*domain.User, error) {
	claims, err := s.tokens.Verify(token)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", domain.ErrUnauthorized)
	}
	u, err := s.users.Find(ctx, claims.Username)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("token subject no longer exists: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	if !s.codes.FingerprintMatches(u, claims.Fingerprint) {
		return nil, fmt.Errorf("token was issued for a previous account state: %w", domain.ErrUnauthorized)
	}
	return u, nil
}
