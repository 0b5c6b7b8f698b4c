package memory

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/catalog-reviews/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUserRepo_UniqueUsernameAndEmail(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()
	require.NoError(t, users.Create(ctx, &domain.User{UserID: "u1", Username: "alice", Email: "a@x.io"}))

	err := users.Create(ctx, &domain.User{UserID: "u2", Username: "alice", Email: "b@x.io"})
	assert.ErrorIs(t, err, domain.ErrConflict)
	err = users.Create(ctx, &domain.User{UserID: "u3", Username: "bob", Email: "a@x.io"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	got, err := users.GetByEmail(ctx, "a@x.io")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.Username)
}

func TestUserRepo_Replace_StaleAndRename(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()
	now := time.Now().UTC()
	u := &domain.User{UserID: "u1", Username: "alice", Email: "a@x.io", UpdatedAt: now}
	require.NoError(t, users.Create(ctx, u))

	next := *u
	next.Username = "alicia"
	next.UpdatedAt = now.Add(time.Second)
	require.NoError(t, users.Replace(ctx, u, &next))

	_, err := users.GetByUsername(ctx, "alice")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = users.GetByUsername(ctx, "alicia")
	assert.NoError(t, err)

	// u is now stale.
	again := *u
	again.Bio = "x"
	assert.ErrorIs(t, users.Replace(ctx, u, &again), domain.ErrConflict)
}

func TestUserRepo_List_Pages(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()
	for i, name := range []string{"carol", "alice", "bob"} {
		require.NoError(t, users.Create(ctx, &domain.User{
			UserID: string(rune('a' + i)), Username: name, Email: name + "@x.io",
		}))
	}
	page, next, err := users.List(ctx, "", 2, "")
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "alice", page[0].Username)
	assert.Equal(t, "bob", next)

	page, next, err = users.List(ctx, "", 2, next)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, "carol", page[0].Username)
	assert.Empty(t, next)
}

func TestUserRepo_List_SearchIgnoresCase(t *testing.T) {
	ctx := context.Background()
	users := NewStore().Users()
	for i, name := range []string{"DaveGrohl", "davina", "erin"} {
		require.NoError(t, users.Create(ctx, &domain.User{
			UserID: string(rune('a' + i)), Username: name, Email: name + "@x.io",
		}))
	}
	page, _, err := users.List(ctx, "DAV", 10, "")
	require.NoError(t, err)
	require.Len(t, page, 2)
	assert.Equal(t, "DaveGrohl", page[0].Username)
	assert.Equal(t, "davina", page[1].Username)
}

func TestReviewRepo_RequiresTitle(t *testing.T) {
	err := NewStore().Reviews().Create(context.Background(), &domain.Review{ReviewID: "r1", TitleID: "missing", AuthorID: "u1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReviewRepo_ConcurrentCreate_OneWinner(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Titles().Create(ctx, &domain.Title{TitleID: "t1", Name: "Dune"}))

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = s.Reviews().Create(ctx, &domain.Review{
				ReviewID: string(rune('A' + i)), TitleID: "t1", AuthorID: "u1", Score: 5,
			})
		}(i)
	}
	wg.Wait()

	wins := 0
	for _, err := range errs {
		if err == nil {
			wins++
			continue
		}
		assert.ErrorIs(t, err, domain.ErrConflict)
	}
	assert.Equal(t, 1, wins)

	reviews, err := s.Reviews().ListByTitle(ctx, "t1")
	require.NoError(t, err)
	assert.Len(t, reviews, 1)
}

func TestReviewRepo_DeleteFreesAuthorSlot(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	require.NoError(t, s.Titles().Create(ctx, &domain.Title{TitleID: "t1"}))
	rv := &domain.Review{ReviewID: "r1", TitleID: "t1", AuthorID: "u1"}
	require.NoError(t, s.Reviews().Create(ctx, rv))
	require.NoError(t, s.Reviews().Delete(ctx, rv))

	assert.NoError(t, s.Reviews().Create(ctx, &domain.Review{ReviewID: "r2", TitleID: "t1", AuthorID: "u1"}))
}

func TestCommentRepo_ParentAndCascade(t *testing.T) {
	ctx := context.Background()
	s := NewStore()
	rv := &domain.Review{ReviewID: "r1", TitleID: "t1", AuthorID: "u1"}

	err := s.Comments().Create(ctx, rv, &domain.Comment{CommentID: "c1", ReviewID: "r1"})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Titles().Create(ctx, &domain.Title{TitleID: "t1"}))
	require.NoError(t, s.Reviews().Create(ctx, rv))
	require.NoError(t, s.Comments().Create(ctx, rv, &domain.Comment{CommentID: "c1", ReviewID: "r1"}))
	require.NoError(t, s.Comments().Create(ctx, rv, &domain.Comment{CommentID: "c2", ReviewID: "r1"}))

	list, err := s.Comments().ListByReview(ctx, "r1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c2", list[0].CommentID)

	_, err = s.Comments().Get(ctx, "other", "c1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.Comments().DeleteByReview(ctx, "r1"))
	list, err = s.Comments().ListByReview(ctx, "r1")
	require.NoError(t, err)
	assert.Empty(t, list)
}
