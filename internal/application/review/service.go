// Package review guards the one-review-per-author-and-title rule and derives
// title ratings from the current set of reviews.
package review

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/catalog-reviews/internal/domain"
	"github.com/catalog-reviews/internal/pkg/id"
	"github.com/catalog-reviews/internal/pkg/validate"
	"github.com/catalog-reviews/internal/policy"
)

const (
	fieldText  = "text"
	fieldScore = "score"
)

type Service interface {
	Create(ctx context.Context, actor *domain.User, titleID string, in domain.ReviewInput) (*domain.Review, error)
	Get(ctx context.Context, titleID, reviewID string) (*domain.Review, error)
	List(ctx context.Context, titleID string) ([]domain.Review, error)
	Update(ctx context.Context, actor *domain.User, titleID, reviewID string, req domain.UpdateReviewRequest) (*domain.Review, error)
	Delete(ctx context.Context, actor *domain.User, titleID, reviewID string) error
	Rating(ctx context.Context, titleID string) (*float64, error)
	DeleteByTitle(ctx context.Context, titleID string) error
}

type reviewStore interface {
	Create(ctx context.Context, rv *domain.Review) error
	Get(ctx context.Context, reviewID string) (*domain.Review, error)
	ListByTitle(ctx context.Context, titleID string) ([]domain.Review, error)
	Update(ctx context.Context, rv *domain.Review, updates map[string]interface{}) error
	Delete(ctx context.Context, rv *domain.Review) error
}

type titleLookup interface {
	Get(ctx context.Context, titleID string) (*domain.Title, error)
}

type commentCleaner interface {
	DeleteByReview(ctx context.Context, reviewID string) error
}

type service struct {
	reviews  reviewStore
	titles   titleLookup
	comments commentCleaner
	now      func() time.Time
}

type ServiceDeps struct {
	ReviewRepo  reviewStore
	TitleRepo   titleLookup
	CommentRepo commentCleaner
	Now         func() time.Time // optional; defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		reviews:  deps.ReviewRepo,
		titles:   deps.TitleRepo,
		comments: deps.CommentRepo,
		now:      now,
	}
}

// Create adds the actor's review of a title. The score is checked before any
// write; the store's insert-if-absent on (title, author) makes a second
// review, including a concurrent one, fail with domain.ErrConflict.
func (s *service) Create(ctx context.Context, actor *domain.User, titleID string, in domain.ReviewInput) (*domain.Review, error) {
	if err := policy.Enforce(ctx, policy.ActorFromUser(actor), http.MethodPost, policy.Resource{Kind: policy.KindReview}); err != nil {
		return nil, err
	}
	if err := validate.Score(in.Score); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	rv := &domain.Review{
		ReviewID: id.New(),
		TitleID:  titleID,
		AuthorID: actor.UserID,
		Author:   actor.Username,
		Text:     in.Text,
		Score:    in.Score,
		PubDate:  s.now().UTC(),
	}
	if err := s.reviews.Create(ctx, rv); err != nil {
		return nil, err
	}
	return rv, nil
}

// Get returns a review only when it belongs to titleID.
func (s *service) Get(ctx context.Context, titleID, reviewID string) (*domain.Review, error) {
	rv, err := s.reviews.Get(ctx, reviewID)
	if err != nil {
		return nil, err
	}
	if rv.TitleID != titleID {
		return nil, fmt.Errorf("review not found: %w", domain.ErrNotFound)
	}
	return rv, nil
}

func (s *service) List(ctx context.Context, titleID string) ([]domain.Review, error) {
	if _, err := s.titles.Get(ctx, titleID); err != nil {
		return nil, err
	}
	return s.reviews.ListByTitle(ctx, titleID)
}

func (s *service) Update(ctx context.Context, actor *domain.User, titleID, reviewID string, req domain.UpdateReviewRequest) (*domain.Review, error) {
	rv, err := s.Get(ctx, titleID, reviewID)
	if err != nil {
		return nil, err
	}
	res := policy.Resource{Kind: policy.KindReview, OwnerID: rv.AuthorID}
	if err := policy.Enforce(ctx, policy.ActorFromUser(actor), http.MethodPatch, res); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.Score != nil {
		if err := validate.Score(*req.Score); err != nil {
			return nil, err
		}
		updates[fieldScore] = *req.Score
		rv.Score = *req.Score
	}
	if req.Text != nil {
		updates[fieldText] = *req.Text
		rv.Text = *req.Text
	}
	if len(updates) == 0 {
		return rv, nil
	}
	if err := s.reviews.Update(ctx, rv, updates); err != nil {
		return nil, err
	}
	return rv, nil
}

// Delete removes a review and then its comments.
func (s *service) Delete(ctx context.Context, actor *domain.User, titleID, reviewID string) error {
	rv, err := s.Get(ctx, titleID, reviewID)
	if err != nil {
		return err
	}
	res := policy.Resource{Kind: policy.KindReview, OwnerID: rv.AuthorID}
	if err := policy.Enforce(ctx, policy.ActorFromUser(actor), http.MethodDelete, res); err != nil {
		return err
	}
	return s.remove(ctx, rv)
}

func (s *service) remove(ctx context.Context, rv *domain.Review) error {
	if err := s.reviews.Delete(ctx, rv); err != nil {
		return err
	}
	if err := s.comments.DeleteByReview(ctx, rv.ReviewID); err != nil {
		return fmt.Errorf("delete comments of review %s: %w", rv.ReviewID, err)
	}
	return nil
}

// Rating is the mean score of the title's current reviews, or nil when it
// has none. It is computed on every call and never stored.
func (s *service) Rating(ctx context.Context, titleID string) (*float64, error) {
	reviews, err := s.reviews.ListByTitle(ctx, titleID)
	if err != nil {
		return nil, err
	}
	return Mean(reviews), nil
}

// Mean averages review scores; nil for an empty slice.
func Mean(reviews []domain.Review) *float64 {
	if len(reviews) == 0 {
		return nil
	}
	total := 0
	for _, rv := range reviews {
		total += rv.Score
	}
	mean := float64(total) / float64(len(reviews))
	return &mean
}

// DeleteByTitle cascades a title deletion to its reviews and their comments.
// The caller has already removed the title, so no new review can appear.
func (s *service) DeleteByTitle(ctx context.Context, titleID string) error {
	reviews, err := s.reviews.ListByTitle(ctx, titleID)
	if err != nil {
		return err
	}
	for i := range reviews {
		if err := s.remove(ctx, &reviews[i]); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	if len(reviews) > 0 {
		slog.InfoContext(ctx, "cascaded title deletion", "title_id", titleID, "reviews", len(reviews))
	}
	return nil
}
