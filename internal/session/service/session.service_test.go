package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"blogcore/internal/backend"
	"blogcore/internal/backend/memory"
	"blogcore/internal/session/model"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*SessionService, *memory.Backend) {
	b := memory.New()
	return NewSessionService(b.Accounts), b
}

func requireAuthKind(t *testing.T, err error, kind backend.Kind) {
	t.Helper()
	var authErr *AuthError
	require.True(t, errors.As(err, &authErr), "expected *AuthError, got %T: %v", err, err)
	assert.Equal(t, kind, authErr.Kind)
}

func TestCreateAccount_LogsIn(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	user, err := svc.CreateAccount(ctx, "a@x.com", "pw123456", "A")
	require.NoError(t, err)
	assert.Equal(t, "a@x.com", user.Email)
	assert.Equal(t, "A", user.Name)
	_, err = uuid.Parse(user.ID)
	assert.NoError(t, err)

	current := svc.GetCurrentUser(ctx)
	require.NotNil(t, current)
	assert.Equal(t, user.ID, current.ID)
}

func TestCreateAccount_Errors(t *testing.T) {
	svc, b := newTestService()
	ctx := context.Background()
	_, err := svc.CreateAccount(ctx, "a@x.com", "pw123456", "A")
	require.NoError(t, err)

	_, err = svc.CreateAccount(ctx, "a@x.com", "pw123456", "Again")
	requireAuthKind(t, err, backend.KindConflict)

	_, err = svc.CreateAccount(ctx, "b@x.com", "short", "B")
	requireAuthKind(t, err, backend.KindValidation)

	_, err = svc.CreateAccount(ctx, "  ", "pw123456", "B")
	requireAuthKind(t, err, backend.KindValidation)

	b.SetOffline(true)
	_, err = svc.CreateAccount(ctx, "c@x.com", "pw123456", "C")
	requireAuthKind(t, err, backend.KindNetwork)
}

func TestCreateAccount_UsesFreshIDs(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, err := svc.CreateAccount(ctx, "a@x.com", "pw123456", "A")
	require.NoError(t, err)
	b, err := svc.CreateAccount(ctx, "b@x.com", "pw123456", "B")
	require.NoError(t, err)
	assert.NotEqual(t, a.ID, b.ID)
}

func TestLogin(t *testing.T) {
	svc, b := newTestService()
	ctx := context.Background()
	_, err := b.Accounts.Create(ctx, "u-1", "a@x.com", "pw123456", "A")
	require.NoError(t, err)

	_, err = svc.Login(ctx, "a@x.com", "wrong-password")
	requireAuthKind(t, err, backend.KindInvalidCredentials)
	assert.Nil(t, svc.GetCurrentUser(ctx))

	user, err := svc.Login(ctx, "a@x.com", "pw123456")
	require.NoError(t, err)
	assert.Equal(t, "u-1", user.ID)

	b.SetOffline(true)
	_, err = svc.Login(ctx, "a@x.com", "pw123456")
	requireAuthKind(t, err, backend.KindNetwork)
}

func TestSessionProperty_LoginUntilLogout(t *testing.T) {
	credentials := []struct{ email, password string }{
		{"a@x.com", "pw123456"},
		{"someone.else@example.org", "correct horse battery"},
		{"UPPER@X.COM", "12345678"},
	}
	for _, c := range credentials {
		t.Run(c.email, func(t *testing.T) {
			svc, _ := newTestService()
			ctx := context.Background()

			created, err := svc.CreateAccount(ctx, c.email, c.password, "n")
			require.NoError(t, err)
			require.NoError(t, svc.Logout(ctx))
			require.Nil(t, svc.GetCurrentUser(ctx))

			user, err := svc.Login(ctx, c.email, c.password)
			require.NoError(t, err)
			assert.Equal(t, created.ID, user.ID)

			for range 3 {
				current := svc.GetCurrentUser(ctx)
				require.NotNil(t, current)
				assert.Equal(t, user.ID, current.ID)
			}

			require.NoError(t, svc.Logout(ctx))
			assert.Nil(t, svc.GetCurrentUser(ctx))
		})
	}
}

func TestGetCurrentUser_SwallowsErrors(t *testing.T) {
	svc, b := newTestService()
	ctx := context.Background()
	_, err := svc.CreateAccount(ctx, "a@x.com", "pw123456", "A")
	require.NoError(t, err)

	b.SetOffline(true)
	assert.Nil(t, svc.GetCurrentUser(ctx))

	_, err = svc.CurrentUser(ctx)
	requireAuthKind(t, err, backend.KindNetwork)

	b.SetOffline(false)
	assert.NotNil(t, svc.GetCurrentUser(ctx))
}

func TestCurrentUser_NoSession(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.CurrentUser(context.Background())
	requireAuthKind(t, err, backend.KindUnauthorized)
}

func TestLogout_Errors(t *testing.T) {
	svc, b := newTestService()
	ctx := context.Background()
	_, err := svc.CreateAccount(ctx, "a@x.com", "pw123456", "A")
	require.NoError(t, err)

	b.SetOffline(true)
	requireAuthKind(t, svc.Logout(ctx), backend.KindNetwork)

	b.SetOffline(false)
	require.NoError(t, svc.Logout(ctx))
	requireAuthKind(t, svc.Logout(ctx), backend.KindUnauthorized)
}

func TestCreateJWT(t *testing.T) {
	now := time.Now().Truncate(time.Second)
	b := memory.New(memory.WithClock(func() time.Time { return now }), memory.WithJWTTTL(15*time.Minute))
	svc := NewSessionService(b.Accounts)
	ctx := context.Background()

	_, err := svc.CreateJWT(ctx)
	requireAuthKind(t, err, backend.KindUnauthorized)

	user, err := svc.CreateAccount(ctx, "a@x.com", "pw123456", "A")
	require.NoError(t, err)

	token, err := svc.CreateJWT(ctx)
	require.NoError(t, err)
	assert.NotEmpty(t, token.Raw)
	assert.Equal(t, user.ID, token.UserID)
	assert.NotEmpty(t, token.SessionID)
	assert.True(t, token.ExpiresAt.Equal(now.Add(15*time.Minute)))
	assert.Equal(t, 15*time.Minute, TokenTTL(token, now))
}

type staticJWTAccounts struct {
	backend.Accounts
	token string
}

func (a staticJWTAccounts) CreateJWT(context.Context) (string, error) { return a.token, nil }

func TestCreateJWT_MalformedToken(t *testing.T) {
	svc := NewSessionService(staticJWTAccounts{token: "not-a-jwt"})
	_, err := svc.CreateJWT(context.Background())
	requireAuthKind(t, err, backend.KindUnknown)
}

func TestTokenTTL(t *testing.T) {
	now := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	assert.Zero(t, TokenTTL(nil, now))
	assert.Zero(t, TokenTTL(&model.Token{}, now))
	assert.Zero(t, TokenTTL(&model.Token{ExpiresAt: now.Add(-time.Minute)}, now))
	assert.Equal(t, time.Minute, TokenTTL(&model.Token{ExpiresAt: now.Add(time.Minute)}, now))
}

func TestAuthError(t *testing.T) {
	cause := backend.Errorf(backend.KindConflict, "account.create", "exists")
	err := authError("create_account", cause)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "create_account")

	err = authError("login", context.DeadlineExceeded)
	requireAuthKind(t, err, backend.KindNetwork)
}
