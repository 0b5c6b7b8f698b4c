// Package memory is an in-process storage backend with the same semantics as
// the DynamoDB repositories. It backs STORE_BACKEND=memory and the tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/catalog-reviews/internal/domain"
)

// Store holds every table behind one lock so cross-table conditions
// (title exists, review exists) are checked atomically with the write.
type Store struct {
	mu sync.RWMutex

	users     map[string]domain.User
	usernames map[string]string // username -> user_id
	emails    map[string]string // email -> user_id
	titles    map[string]domain.Title
	reviews   map[string]domain.Review // review_id -> review
	authored  map[string]string        // title_id|author_id -> review_id
	comments  map[string]domain.Comment
}

func NewStore() *Store {
	return &Store{
		users:     make(map[string]domain.User),
		usernames: make(map[string]string),
		emails:    make(map[string]string),
		titles:    make(map[string]domain.Title),
		reviews:   make(map[string]domain.Review),
		authored:  make(map[string]string),
		comments:  make(map[string]domain.Comment),
	}
}

func (s *Store) Users() *UserRepo       { return &UserRepo{s: s} }
func (s *Store) Titles() *TitleRepo     { return &TitleRepo{s: s} }
func (s *Store) Reviews() *ReviewRepo   { return &ReviewRepo{s: s} }
func (s *Store) Comments() *CommentRepo { return &CommentRepo{s: s} }

// ── Users ─────────────────────────────────────────────────────────────────────

type UserRepo struct{ s *Store }

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.UserID]; ok {
		return fmt.Errorf("user already exists: %w", domain.ErrConflict)
	}
	if _, ok := s.usernames[u.Username]; ok {
		return fmt.Errorf("username already taken: %w", domain.ErrConflict)
	}
	if _, ok := s.emails[u.Email]; ok {
		return fmt.Errorf("email already registered: %w", domain.ErrConflict)
	}
	s.users[u.UserID] = *u
	s.usernames[u.Username] = u.UserID
	s.emails[u.Email] = u.UserID
	return nil
}

func (r *UserRepo) Get(_ context.Context, userID string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.get(userID)
}

func (r *UserRepo) get(userID string) (*domain.User, error) {
	u, ok := r.s.users[userID]
	if !ok {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	return &u, nil
}

func (r *UserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.get(r.s.usernames[username])
}

func (r *UserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return r.get(r.s.emails[email])
}

// Replace swaps prev for next if the stored user is unchanged since prev was read.
func (r *UserRepo) Replace(_ context.Context, prev, next *domain.User) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.users[prev.UserID]
	if !ok || !cur.UpdatedAt.Equal(prev.UpdatedAt) {
		return fmt.Errorf("user was modified concurrently: %w", domain.ErrConflict)
	}
	if next.Username != cur.Username {
		if _, taken := s.usernames[next.Username]; taken {
			return fmt.Errorf("username already taken: %w", domain.ErrConflict)
		}
	}
	if next.Email != cur.Email {
		if _, taken := s.emails[next.Email]; taken {
			return fmt.Errorf("email already registered: %w", domain.ErrConflict)
		}
	}
	delete(s.usernames, cur.Username)
	delete(s.emails, cur.Email)
	s.usernames[next.Username] = next.UserID
	s.emails[next.Email] = next.UserID
	s.users[next.UserID] = *next
	return nil
}

// Update supports the fields services patch directly.
func (r *UserRepo) Update(_ context.Context, userID string, updates map[string]interface{}) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[userID]
	if !ok {
		return fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	for k, v := range updates {
		switch k {
		case "last_login_at":
			t := v.(time.Time)
			u.LastLoginAt = &t
		case "role":
			u.Role = v.(domain.Role)
		case "bio":
			u.Bio = v.(string)
		case "first_name":
			u.FirstName = v.(string)
		case "last_name":
			u.LastName = v.(string)
		default:
			return fmt.Errorf("unsupported user field %q", k)
		}
	}
	u.UpdatedAt = time.Now().UTC()
	s.users[userID] = u
	return nil
}

// List pages through users ordered by username. search matches a username
// substring regardless of case. The cursor is the last username of the
// previous page.
func (r *UserRepo) List(_ context.Context, search string, limit int32, cursor string) ([]domain.User, string, error) {
	r.s.mu.RLock()
	search = strings.ToLower(search)
	var all []domain.User
	for _, u := range r.s.users {
		if search != "" && !strings.Contains(strings.ToLower(u.Username), search) {
			continue
		}
		if cursor != "" && u.Username <= cursor {
			continue
		}
		all = append(all, u)
	}
	r.s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].Username < all[j].Username })
	if limit <= 0 || int(limit) >= len(all) {
		return all, "", nil
	}
	page := all[:limit]
	return page, page[len(page)-1].Username, nil
}

// ── Titles ────────────────────────────────────────────────────────────────────

type TitleRepo struct{ s *Store }

func (r *TitleRepo) Create(_ context.Context, t *domain.Title) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.titles[t.TitleID]; ok {
		return fmt.Errorf("title already exists: %w", domain.ErrConflict)
	}
	r.s.titles[t.TitleID] = *t
	return nil
}

func (r *TitleRepo) Get(_ context.Context, titleID string) (*domain.Title, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.titles[titleID]
	if !ok {
		return nil, fmt.Errorf("title not found: %w", domain.ErrNotFound)
	}
	return &t, nil
}

func (r *TitleRepo) List(_ context.Context) ([]domain.Title, error) {
	r.s.mu.RLock()
	out := make([]domain.Title, 0, len(r.s.titles))
	for _, t := range r.s.titles {
		out = append(out, t)
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *TitleRepo) Update(_ context.Context, titleID string, updates map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.titles[titleID]
	if !ok {
		return fmt.Errorf("title not found: %w", domain.ErrNotFound)
	}
	for k, v := range updates {
		switch k {
		case "name":
			t.Name = v.(string)
		case "year":
			t.Year = v.(int)
		case "description":
			t.Description = v.(string)
		case "category":
			t.Category = v.(string)
		case "genres":
			t.Genres = v.([]string)
		default:
			return fmt.Errorf("unsupported title field %q", k)
		}
	}
	t.UpdatedAt = time.Now().UTC()
	r.s.titles[titleID] = t
	return nil
}

func (r *TitleRepo) Delete(_ context.Context, titleID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.titles[titleID]; !ok {
		return fmt.Errorf("title not found: %w", domain.ErrNotFound)
	}
	delete(r.s.titles, titleID)
	return nil
}

// ── Reviews ───────────────────────────────────────────────────────────────────

type ReviewRepo struct{ s *Store }

func authorKey(titleID, authorID string) string { return titleID + "|" + authorID }

// Create is an insert-if-absent on (title_id, author_id).
func (r *ReviewRepo) Create(_ context.Context, rv *domain.Review) error {
	s := r.s
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.titles[rv.TitleID]; !ok {
		return fmt.Errorf("title not found: %w", domain.ErrNotFound)
	}
	key := authorKey(rv.TitleID, rv.AuthorID)
	if _, ok := s.authored[key]; ok {
		return fmt.Errorf("review already exists for this title: %w", domain.ErrConflict)
	}
	s.authored[key] = rv.ReviewID
	s.reviews[rv.ReviewID] = *rv
	return nil
}

func (r *ReviewRepo) Get(_ context.Context, reviewID string) (*domain.Review, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rv, ok := r.s.reviews[reviewID]
	if !ok {
		return nil, fmt.Errorf("review not found: %w", domain.ErrNotFound)
	}
	return &rv, nil
}

func (r *ReviewRepo) ListByTitle(_ context.Context, titleID string) ([]domain.Review, error) {
	r.s.mu.RLock()
	var out []domain.Review
	for _, rv := range r.s.reviews {
		if rv.TitleID == titleID {
			out = append(out, rv)
		}
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].PubDate.After(out[j].PubDate) })
	return out, nil
}

func (r *ReviewRepo) Update(_ context.Context, rv *domain.Review, updates map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.reviews[rv.ReviewID]
	if !ok {
		return fmt.Errorf("review not found: %w", domain.ErrNotFound)
	}
	for k, v := range updates {
		switch k {
		case "text":
			cur.Text = v.(string)
		case "score":
			cur.Score = v.(int)
		default:
			return fmt.Errorf("unsupported review field %q", k)
		}
	}
	r.s.reviews[rv.ReviewID] = cur
	return nil
}

func (r *ReviewRepo) Delete(_ context.Context, rv *domain.Review) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.reviews[rv.ReviewID]; !ok {
		return fmt.Errorf("review not found: %w", domain.ErrNotFound)
	}
	delete(r.s.reviews, rv.ReviewID)
	delete(r.s.authored, authorKey(rv.TitleID, rv.AuthorID))
	return nil
}

// ── Comments ──────────────────────────────────────────────────────────────────

type CommentRepo struct{ s *Store }

func (r *CommentRepo) Create(_ context.Context, parent *domain.Review, c *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.reviews[parent.ReviewID]; !ok {
		return fmt.Errorf("review not found: %w", domain.ErrNotFound)
	}
	if _, ok := r.s.comments[c.CommentID]; ok {
		return fmt.Errorf("comment already exists: %w", domain.ErrConflict)
	}
	r.s.comments[c.CommentID] = *c
	return nil
}

func (r *CommentRepo) Get(_ context.Context, reviewID, commentID string) (*domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.comments[commentID]
	if !ok || c.ReviewID != reviewID {
		return nil, fmt.Errorf("comment not found: %w", domain.ErrNotFound)
	}
	return &c, nil
}

func (r *CommentRepo) ListByReview(_ context.Context, reviewID string) ([]domain.Comment, error) {
	r.s.mu.RLock()
	var out []domain.Comment
	for _, c := range r.s.comments {
		if c.ReviewID == reviewID {
			out = append(out, c)
		}
	}
	r.s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CommentID > out[j].CommentID })
	return out, nil
}

func (r *CommentRepo) Update(_ context.Context, reviewID, commentID string, updates map[string]interface{}) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.comments[commentID]
	if !ok || c.ReviewID != reviewID {
		return fmt.Errorf("comment not found: %w", domain.ErrNotFound)
	}
	for k, v := range updates {
		switch k {
		case "text":
			c.Text = v.(string)
		default:
			return fmt.Errorf("unsupported comment field %q", k)
		}
	}
	r.s.comments[commentID] = c
	return nil
}

func (r *CommentRepo) Delete(_ context.Context, reviewID, commentID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.comments[commentID]
	if !ok || c.ReviewID != reviewID {
		return fmt.Errorf("comment not found: %w", domain.ErrNotFound)
	}
	delete(r.s.comments, commentID)
	return nil
}

func (r *CommentRepo) DeleteByReview(_ context.Context, reviewID string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, c := range r.s.comments {
		if c.ReviewID == reviewID {
			delete(r.s.comments, id)
		}
	}
	return nil
}
