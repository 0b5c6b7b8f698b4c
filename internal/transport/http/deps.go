package http

import (
	"context"

	"github.com/catalog-reviews/internal/application/auth"
	"github.com/catalog-reviews/internal/domain"
	jwtinfra "github.com/catalog-reviews/internal/infrastructure/jwt"
)

// UserRepository is the minimal interface the router requires from a user store.
type UserRepository interface {
	Create(ctx context.Context, u *domain.User) error
	Get(ctx context.Context, userID string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
	Update(ctx context.Context, userID string, updates map[string]interface{}) error
	// Replace swaps a whole user record, moving username/email uniqueness
	// markers when they change. It fails with ErrConflict on a stale prev.
	Replace(ctx context.Context, prev, next *domain.User) error
	List(ctx context.Context, search string, limit int32, cursor string) ([]domain.User, string, error)
}

// TitleRepository is the minimal interface the router requires from a title store.
type TitleRepository interface {
	Create(ctx context.Context, t *domain.Title) error
	Get(ctx context.Context, titleID string) (*domain.Title, error)
	List(ctx context.Context) ([]domain.Title, error)
	Update(ctx context.Context, titleID string, updates map[string]interface{}) error
	Delete(ctx context.Context, titleID string) error
}

// ReviewRepository is the minimal interface the router requires from a review store.
// Create must be an atomic insert-if-absent on (title_id, author_id).
type ReviewRepository interface {
	Create(ctx context.Context, rv *domain.Review) error
	Get(ctx context.Context, reviewID string) (*domain.Review, error)
	ListByTitle(ctx context.Context, titleID string) ([]domain.Review, error)
	Update(ctx context.Context, rv *domain.Review, updates map[string]interface{}) error
	Delete(ctx context.Context, rv *domain.Review) error
}

// CommentRepository is the minimal interface the router requires from a comment store.
type CommentRepository interface {
	Create(ctx context.Context, parent *domain.Review, c *domain.Comment) error
	Get(ctx context.Context, reviewID, commentID string) (*domain.Comment, error)
	ListByReview(ctx context.Context, reviewID string) ([]domain.Comment, error)
	Update(ctx context.Context, reviewID, commentID string, updates map[string]interface{}) error
	Delete(ctx context.Context, reviewID, commentID string) error
	DeleteByReview(ctx context.Context, reviewID string) error
}

// CodeIssuer derives and checks confirmation codes and token fingerprints.
type CodeIssuer interface {
	Make(u *domain.User) string
	Check(u *domain.User, code string) bool
	Fingerprint(u *domain.User) string
	FingerprintMatches(u *domain.User, fp string) bool
}

// TokenProvider signs and verifies bearer tokens.
type TokenProvider interface {
	Sign(username, fingerprint string) (string, error)
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// Deps holds all infrastructure dependencies for the router.
type Deps struct {
	UserRepo    UserRepository
	TitleRepo   TitleRepository
	ReviewRepo  ReviewRepository
	CommentRepo CommentRepository
	Codes       CodeIssuer
	Tokens      TokenProvider
	Notifier    auth.Notifier

	// Ready reports whether the store is reachable; nil means always ready.
	Ready func(ctx context.Context) error
}
