package comment

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/catalog-reviews/internal/domain"
	"github.com/catalog-reviews/internal/pkg/id"
	"github.com/catalog-reviews/internal/pkg/validate"
	"github.com/catalog-reviews/internal/policy"
)

const fieldText = "text"

type Service interface {
	Create(ctx context.Context, actor *domain.User, titleID, reviewID string, in domain.CommentInput) (*domain.Comment, error)
	Get(ctx context.Context, titleID, reviewID, commentID string) (*domain.Comment, error)
	List(ctx context.Context, titleID, reviewID string) ([]domain.Comment, error)
	Update(ctx context.Context, actor *domain.User, titleID, reviewID, commentID string, in domain.CommentInput) (*domain.Comment, error)
	Delete(ctx context.Context, actor *domain.User, titleID, reviewID, commentID string) error
}

type commentStore interface {
	Create(ctx context.Context, parent *domain.Review, c *domain.Comment) error
	Get(ctx context.Context, reviewID, commentID string) (*domain.Comment, error)
	ListByReview(ctx context.Context, reviewID string) ([]domain.Comment, error)
	Update(ctx context.Context, reviewID, commentID string, updates map[string]interface{}) error
	Delete(ctx context.Context, reviewID, commentID string) error
}

type reviewLookup interface {
	Get(ctx context.Context, titleID, reviewID string) (*domain.Review, error)
}

type service struct {
	comments commentStore
	reviews  reviewLookup
	now      func() time.Time
}

type ServiceDeps struct {
	CommentRepo commentStore
	Reviews     reviewLookup
	Now         func() time.Time // optional; defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{comments: deps.CommentRepo, reviews: deps.Reviews, now: now}
}

func (s *service) Create(ctx context.Context, actor *domain.User, titleID, reviewID string, in domain.CommentInput) (*domain.Comment, error) {
	if err := policy.Enforce(ctx, policy.ActorFromUser(actor), http.MethodPost, policy.Resource{Kind: policy.KindComment}); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	parent, err := s.reviews.Get(ctx, titleID, reviewID)
	if err != nil {
		return nil, err
	}
	c := &domain.Comment{
		CommentID: id.New(),
		ReviewID:  parent.ReviewID,
		TitleID:   parent.TitleID,
		AuthorID:  actor.UserID,
		Author:    actor.Username,
		Text:      in.Text,
		PubDate:   s.now().UTC(),
	}
	if err := s.comments.Create(ctx, parent, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get resolves the full title/review/comment path; any broken link is domain.ErrNotFound.
func (s *service) Get(ctx context.Context, titleID, reviewID, commentID string) (*domain.Comment, error) {
	if _, err := s.reviews.Get(ctx, titleID, reviewID); err != nil {
		return nil, err
	}
	c, err := s.comments.Get(ctx, reviewID, commentID)
	if err != nil {
		return nil, err
	}
	if c.TitleID != "" && c.TitleID != titleID {
		return nil, fmt.Errorf("comment not found: %w", domain.ErrNotFound)
	}
	return c, nil
}

func (s *service) List(ctx context.Context, titleID, reviewID string) ([]domain.Comment, error) {
	if _, err := s.reviews.Get(ctx, titleID, reviewID); err != nil {
		return nil, err
	}
	return s.comments.ListByReview(ctx, reviewID)
}

func (s *service) Update(ctx context.Context, actor *domain.User, titleID, reviewID, commentID string, in domain.CommentInput) (*domain.Comment, error) {
	c, err := s.Get(ctx, titleID, reviewID, commentID)
	if err != nil {
		return nil, err
	}
	res := policy.Resource{Kind: policy.KindComment, OwnerID: c.AuthorID}
	if err := policy.Enforce(ctx, policy.ActorFromUser(actor), http.MethodPatch, res); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := s.comments.Update(ctx, reviewID, commentID, map[string]interface{}{fieldText: in.Text}); err != nil {
		return nil, err
	}
	c.Text = in.Text
	return c, nil
}

func (s *service) Delete(ctx context.Context, actor *domain.User, titleID, reviewID, commentID string) error {
	c, err := s.Get(ctx, titleID, reviewID, commentID)
	if err != nil {
		return err
	}
	res := policy.Resource{Kind: policy.KindComment, OwnerID: c.AuthorID}
	if err := policy.Enforce(ctx, policy.ActorFromUser(actor), http.MethodDelete, res); err != nil {
		return err
	}
	return s.comments.Delete(ctx, reviewID, commentID)
}
