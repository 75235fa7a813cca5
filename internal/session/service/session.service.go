package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"blogcore/internal/backend"
	"blogcore/internal/session/model"
	"blogcore/pkg/logger"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Gateway is the session capability set used by the boot sequence and the
// HTTP handlers.
type Gateway interface {
	CreateAccount(ctx context.Context, email, password, name string) (*model.User, error)
	Login(ctx context.Context, email, password string) (*model.User, error)
	// GetCurrentUser never fails: any error is logged and reported as no user.
	GetCurrentUser(ctx context.Context) *model.User
	Logout(ctx context.Context) error
}

// AuthError is returned by every session mutation.
type AuthError struct {
	Kind backend.Kind
	Op   string
	Err  error
}

func (e *AuthError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("session %s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("session %s: %v", e.Op, e.Err)
}

func (e *AuthError) Unwrap() error { return e.Err }

func authError(op string, err error) error {
	kind := backend.KindOf(err)
	if kind == backend.KindUnknown && (errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)) {
		kind = backend.KindNetwork
	}
	return &AuthError{Kind: kind, Op: op, Err: err}
}

// SessionService implements Gateway on top of a backend.Accounts adapter.
type SessionService struct {
	Accounts backend.Accounts
	newID    func() string
}

func NewSessionService(accounts backend.Accounts) *SessionService {
	return &SessionService{Accounts: accounts, newID: uuid.NewString}
}

// CreateAccount registers a new identity under a fresh unique id and logs
// in with the same credentials.
func (s *SessionService) CreateAccount(ctx context.Context, email, password, name string) (*model.User, error) {
	const op = "create_account"
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, &AuthError{Kind: backend.KindValidation, Op: op, Err: errors.New("email and password are required")}
	}

	if _, err := s.Accounts.Create(ctx, s.newID(), email, password, name); err != nil {
		logger.Sugar.Errorf("Failed to create account for %s: %v", email, err)
		return nil, authError(op, err)
	}
	return s.Login(ctx, email, password)
}

// Login establishes a session and returns its owner.
func (s *SessionService) Login(ctx context.Context, email, password string) (*model.User, error) {
	const op = "login"
	if _, err := s.Accounts.CreateEmailSession(ctx, strings.TrimSpace(email), password); err != nil {
		return nil, authError(op, err)
	}
	acc, err := s.Accounts.Get(ctx)
	if err != nil {
		logger.Sugar.Errorf("Session created but account lookup failed: %v", err)
		return nil, authError(op, err)
	}
	return model.FromAccount(acc), nil
}

func (s *SessionService) GetCurrentUser(ctx context.Context) *model.User {
	user, err := s.CurrentUser(ctx)
	if err != nil {
		if !backend.IsKind(err, backend.KindUnauthorized) {
			logger.Sugar.Warnf("Could not resolve current user, treating as logged out: %v", err)
		}
		return nil
	}
	return user
}

// CurrentUser is the strict form of GetCurrentUser. A missing session is
// reported as backend.KindUnauthorized.
func (s *SessionService) CurrentUser(ctx context.Context) (*model.User, error) {
	acc, err := s.Accounts.Get(ctx)
	if err != nil {
		return nil, authError("current_user", err)
	}
	return model.FromAccount(acc), nil
}

// Logout ends every session of the current identity.
func (s *SessionService) Logout(ctx context.Context) error {
	if err := s.Accounts.DeleteSessions(ctx); err != nil {
		logger.Sugar.Errorf("Failed to delete sessions: %v", err)
		return authError("logout", err)
	}
	return nil
}

type tokenClaims struct {
	UserID    string `json:"userId"`
	SessionID string `json:"sessionId"`
	jwt.RegisteredClaims
}

// CreateJWT obtains a short-lived token for the current session. The
// signature is not checked: the backend keeps the key, and the token is only
// ever presented back to it.
func (s *SessionService) CreateJWT(ctx context.Context) (*model.Token, error) {
	const op = "create_jwt"
	raw, err := s.Accounts.CreateJWT(ctx)
	if err != nil {
		return nil, authError(op, err)
	}

	var claims tokenClaims
	if _, _, err := jwt.NewParser().ParseUnverified(raw, &claims); err != nil {
		return nil, &AuthError{Kind: backend.KindUnknown, Op: op, Err: fmt.Errorf("parse token: %w", err)}
	}

	token := &model.Token{Raw: raw, UserID: claims.UserID, SessionID: claims.SessionID}
	if claims.ExpiresAt != nil {
		token.ExpiresAt = claims.ExpiresAt.Time
	}
	return token, nil
}

// TokenTTL reports how long the token stays valid from now; zero when it has
// no expiry or has already expired.
func TokenTTL(token *model.Token, now time.Time) time.Duration {
	if token == nil || token.ExpiresAt.IsZero() {
		return 0
	}
	return max(token.ExpiresAt.Sub(now), 0)
}

var _ Gateway = (*SessionService)(nil)
