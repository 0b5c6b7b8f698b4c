package title

import (
	"context"
	"fmt"
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
	fieldName        = "name"
	fieldYear        = "year"
	fieldDescription = "description"
	fieldCategory    = "category"
	fieldGenres      = "genres"
)

// Filter narrows a title listing. Zero fields match everything.
type Filter struct {
	Category string
	Genre    string
	Name     string // case-insensitive substring
	Year     int
}

type Service interface {
	Create(ctx context.Context, actor *domain.User, in domain.TitleInput) (*domain.TitleView, error)
	Get(ctx context.Context, titleID string) (*domain.TitleView, error)
	List(ctx context.Context, f Filter) ([]domain.TitleView, error)
	Update(ctx context.Context, actor *domain.User, titleID string, req domain.UpdateTitleRequest) (*domain.TitleView, error)
	Delete(ctx context.Context, actor *domain.User, titleID string) error
}

type titleStore interface {
	Create(ctx context.Context, t *domain.Title) error
	Get(ctx context.Context, titleID string) (*domain.Title, error)
	List(ctx context.Context) ([]domain.Title, error)
	Update(ctx context.Context, titleID string, updates map[string]interface{}) error
	Delete(ctx context.Context, titleID string) error
}

// reviews is the slice of the review service titles depend on.
type reviews interface {
	Rating(ctx context.Context, titleID string) (*float64, error)
	DeleteByTitle(ctx context.Context, titleID string) error
}

type service struct {
	repo    titleStore
	reviews reviews
	now     func() time.Time
}

type ServiceDeps struct {
	TitleRepo titleStore
	Reviews   reviews
	Now       func() time.Time // optional; defaults to time.Now
}

func NewService(deps ServiceDeps) Service {
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &service{repo: deps.TitleRepo, reviews: deps.Reviews, now: now}
}

func (s *service) Create(ctx context.Context, actor *domain.User, in domain.TitleInput) (*domain.TitleView, error) {
	if err := policy.Enforce(ctx, policy.ActorFromUser(actor), http.MethodPost, policy.Resource{Kind: policy.KindTitle}); err != nil {
		return nil, err
	}
	if err := validate.Struct(in); err != nil {
		return nil, err
	}
	if err := s.checkYear(in.Year); err != nil {
		return nil, err
	}
	now := s.now().UTC()
	t := &domain.Title{
		TitleID:     id.New(),
		Name:        in.Name,
		Year:        in.Year,
		Description: in.Description,
		Category:    in.Category,
		Genres:      in.Genres,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Genres == nil {
		t.Genres = []string{}
	}
	if err := s.repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return &domain.TitleView{Title: *t}, nil
}

func (s *service) checkYear(year int) error {
	if year > s.now().Year() {
		return domain.NewFieldError("year", "cannot be in the future")
	}
	return nil
}

func (s *service) Get(ctx context.Context, titleID string) (*domain.TitleView, error) {
	t, err := s.repo.Get(ctx, titleID)
	if err != nil {
		return nil, err
	}
	return s.view(ctx, t)
}

func (s *service) view(ctx context.Context, t *domain.Title) (*domain.TitleView, error) {
	rating, err := s.reviews.Rating(ctx, t.TitleID)
	if err != nil {
		return nil, fmt.Errorf("rating for %s: %w", t.TitleID, err)
	}
	return &domain.TitleView{Title: *t, Rating: rating}, nil
}

func (s *service) List(ctx context.Context, f Filter) ([]domain.TitleView, error) {
	titles, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]domain.TitleView, 0, len(titles))
	for i := range titles {
		if !f.matches(&titles[i]) {
			continue
		}
		v, err := s.view(ctx, &titles[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *v)
	}
	return out, nil
}

func (f Filter) matches(t *domain.Title) bool {
	if f.Category != "" && !strings.EqualFold(t.Category, f.Category) {
		return false
	}
	if f.Year != 0 && t.Year != f.Year {
		return false
	}
	if f.Name != "" && !strings.Contains(strings.ToLower(t.Name), strings.ToLower(f.Name)) {
		return false
	}
	if f.Genre != "" {
		for _, g := range t.Genres {
			if strings.EqualFold(g, f.Genre) {
				return true
			}
		}
		return false
	}
	return true
}

func (s *service) Update(ctx context.Context, actor *domain.User, titleID string, req domain.UpdateTitleRequest) (*domain.TitleView, error) {
	if err := policy.Enforce(ctx, policy.ActorFromUser(actor), http.MethodPatch, policy.Resource{Kind: policy.KindTitle}); err != nil {
		return nil, err
	}
	if err := validate.Struct(req); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{}
	if req.Name != nil {
		if *req.Name == "" {
			return nil, domain.NewFieldError("name", "this field may not be blank")
		}
		updates[fieldName] = *req.Name
	}
	if req.Year != nil {
		if err := s.checkYear(*req.Year); err != nil {
			return nil, err
		}
		updates[fieldYear] = *req.Year
	}
	if req.Description != nil {
		updates[fieldDescription] = *req.Description
	}
	if req.Category != nil {
		updates[fieldCategory] = *req.Category
	}
	if req.Genres != nil {
		updates[fieldGenres] = *req.Genres
	}
	if len(updates) > 0 {
		if err := s.repo.Update(ctx, titleID, updates); err != nil {
			return nil, err
		}
	}
	return s.Get(ctx, titleID)
}

// Delete removes the title first, so no review can be added while its
// reviews and comments are cascaded away.
func (s *service) Delete(ctx context.Context, actor *domain.User, titleID string) error {
	if err := policy.Enforce(ctx, policy.ActorFromUser(actor), http.MethodDelete, policy.Resource{Kind: policy.KindTitle}); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, titleID); err != nil {
		return err
	}
	return s.reviews.DeleteByTitle(ctx, titleID)
}
