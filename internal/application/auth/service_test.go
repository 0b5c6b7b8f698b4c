package auth

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/catalog-reviews/internal/application/user"
	"github.com/catalog-reviews/internal/domain"
	"github.com/catalog-reviews/internal/infrastructure/memory"
	jwtinfra "github.com/catalog-reviews/internal/infrastructure/jwt"
	"github.com/catalog-reviews/internal/pkg/confirmcode"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type mockNotifier struct{ mock.Mock }

func (m *mockNotifier) Notify(ctx context.Context, email, code string) error {
	return m.Called(ctx, email, code).Error(0)
}

// --- helpers ---

type fixture struct {
	svc      Service
	users    user.Service
	codes    *confirmcode.Generator
	notifier *mockNotifier
	clock    *time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	clock := &now
	tick := func() time.Time {
		*clock = clock.Add(time.Second)
		return *clock
	}

	codes, err := confirmcode.New("test-secret", nil, confirmcode.WithClock(tick))
	require.NoError(t, err)
	tokens, err := jwtinfra.NewEphemeralProvider(0)
	require.NoError(t, err)
	users := user.NewService(user.ServiceDeps{UserRepo: store.Users(), Now: tick})
	notifier := &mockNotifier{}

	return &fixture{
		svc: NewService(ServiceDeps{
			Users:    users,
			Codes:    codes,
			Tokens:   tokens,
			Notifier: notifier,
			Now:      tick,
		}),
		users:    users,
		codes:    codes,
		notifier: notifier,
		clock:    clock,
	}
}

// signup runs a signup and returns the code that was delivered.
func (f *fixture) signup(t *testing.T, username, email string) (*SignupResult, string) {
	t.Helper()
	var code string
	f.notifier.On("Notify", mock.Anything, email, mock.Anything).
		Run(func(args mock.Arguments) { code = args.String(2) }).
		Return(nil).Once()
	res, err := f.svc.Signup(context.Background(), domain.SignupRequest{Username: username, Email: email})
	require.NoError(t, err)
	require.NotEmpty(t, code)
	return res, code
}

// --- Signup ---

func TestSignup_CreatesAndNotifies(t *testing.T) {
	f := newFixture(t)
	res, _ := f.signup(t, "alice", "alice@example.com")

	assert.Equal(t, "alice", res.User.Username)
	assert.Equal(t, domain.RoleUser, res.User.Role)
	assert.NoError(t, res.NotifyErr)
	f.notifier.AssertExpectations(t)
}

func TestSignup_RepeatIsIdempotent(t *testing.T) {
	f := newFixture(t)
	first, _ := f.signup(t, "alice", "alice@example.com")
	second, _ := f.signup(t, "alice", "alice@example.com")
	assert.Equal(t, first.User.UserID, second.User.UserID)
}

func TestSignup_NotifyFailureKeepsUser(t *testing.T) {
	f := newFixture(t)
	f.notifier.On("Notify", mock.Anything, "alice@example.com", mock.Anything).Return(errors.New("smtp down"))

	res, err := f.svc.Signup(context.Background(), domain.SignupRequest{Username: "alice", Email: "alice@example.com"})
	require.NoError(t, err)
	assert.EqualError(t, res.NotifyErr, "smtp down")

	_, err = f.users.Find(context.Background(), "alice")
	assert.NoError(t, err)
}

func TestSignup_Validation(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Signup(context.Background(), domain.SignupRequest{Username: "me", Email: "me@example.com"})
	assert.ErrorIs(t, err, domain.ErrValidation)
	f.notifier.AssertNotCalled(t, "Notify", mock.Anything, mock.Anything, mock.Anything)
}

// --- Exchange ---

func TestExchange_HappyPath(t *testing.T) {
	f := newFixture(t)
	_, code := f.signup(t, "alice", "alice@example.com")

	token, err := f.svc.Exchange(context.Background(), "alice", code)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	u, err := f.users.Find(context.Background(), "alice")
	require.NoError(t, err)
	assert.True(t, u.Verified())
}

func TestExchange_CodeIsSingleUse(t *testing.T) {
	f := newFixture(t)
	_, code := f.signup(t, "alice", "alice@example.com")

	_, err := f.svc.Exchange(context.Background(), "alice", code)
	require.NoError(t, err)
	_, err = f.svc.Exchange(context.Background(), "alice", code)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestExchange_NewSignupCodeWorksAfterLogin(t *testing.T) {
	f := newFixture(t)
	_, first := f.signup(t, "alice", "alice@example.com")
	_, err := f.svc.Exchange(context.Background(), "alice", first)
	require.NoError(t, err)

	_, second := f.signup(t, "alice", "alice@example.com")
	_, err = f.svc.Exchange(context.Background(), "alice", second)
	assert.NoError(t, err)
}

func TestExchange_UnknownUserAndWrongCodeLookAlike(t *testing.T) {
	f := newFixture(t)
	f.signup(t, "alice", "alice@example.com")

	_, errUnknown := f.svc.Exchange(context.Background(), "nobody", "abc-123")
	_, errWrong := f.svc.Exchange(context.Background(), "alice", "abc-123")
	require.Error(t, errUnknown)
	require.Error(t, errWrong)
	assert.ErrorIs(t, errUnknown, domain.ErrInvalidCredentials)
	assert.Equal(t, errUnknown.Error(), errWrong.Error())
}

func TestExchange_EmailChangeInvalidatesCode(t *testing.T) {
	f := newFixture(t)
	res, code := f.signup(t, "alice", "alice@example.com")

	email := "alice@new.example.com"
	_, err := f.users.UpdateSelf(context.Background(), res.User, domain.UpdateUserRequest{Email: &email})
	require.NoError(t, err)

	_, err = f.svc.Exchange(context.Background(), "alice", code)
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

// --- Authenticate ---

func TestAuthenticate_ResolvesCurrentRole(t *testing.T) {
	f := newFixture(t)
	_, code := f.signup(t, "alice", "alice@example.com")
	token, err := f.svc.Exchange(context.Background(), "alice", code)
	require.NoError(t, err)

	admin, err := f.users.Create(context.Background(), domain.CreateUserRequest{Username: "root", Email: "root@x.io", Role: domain.RoleAdmin})
	require.NoError(t, err)
	_, err = f.users.SetRole(context.Background(), admin, "alice", domain.RoleModerator)
	require.NoError(t, err)

	u, err := f.svc.Authenticate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleModerator, u.Role)
}

func TestAuthenticate_Rejections(t *testing.T) {
	f := newFixture(t)
	res, code := f.signup(t, "alice", "alice@example.com")
	token, err := f.svc.Exchange(context.Background(), "alice", code)
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, domain.ErrUnauthorized)

	u, err := f.users.Find(context.Background(), res.User.Username)
	require.NoError(t, err)
	email := "alice@elsewhere.io"
	_, err = f.users.UpdateSelf(context.Background(), u, domain.UpdateUserRequest{Email: &email})
	require.NoError(t, err)

	_, err = f.svc.Authenticate(context.Background(), token)
	assert.ErrorIs(t, err, domain.ErrUnauthorized)
}
