package memory

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"

	"blogcore/internal/backend"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type accountRecord struct {
	account      backend.Account
	passwordHash []byte
}

type sessionRecord struct {
	info backend.SessionInfo
}

// Accounts implements backend.Accounts. The process holds at most one
// current session, as a cookie jar would.
type Accounts struct {
	mu       sync.RWMutex
	byID     map[string]*accountRecord
	byEmail  map[string]*accountRecord
	sessions map[string]*sessionRecord
	current  string

	opts    options
	offline *atomic.Bool
}

func newAccounts(o options, offline *atomic.Bool) *Accounts {
	return &Accounts{
		byID:     make(map[string]*accountRecord),
		byEmail:  make(map[string]*accountRecord),
		sessions: make(map[string]*sessionRecord),
		opts:     o,
		offline:  offline,
	}
}

func (a *Accounts) Create(_ context.Context, id, email, password, name string) (*backend.Account, error) {
	const op = "account.create"
	if err := checkOnline(a.offline, op); err != nil {
		return nil, err
	}
	if !backend.ValidID(id) {
		return nil, backend.Errorf(backend.KindValidation, op, "invalid user id %q", id)
	}
	email = strings.ToLower(strings.TrimSpace(email))
	if !validEmail(email) {
		return nil, backend.Errorf(backend.KindValidation, op, "invalid email address")
	}
	if len(password) < minPasswordLength {
		return nil, backend.Errorf(backend.KindValidation, op, "password must be at least %d characters", minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), a.opts.passwordCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, backend.Errorf(backend.KindValidation, op, "password is too long")
		}
		return nil, backend.Wrap(backend.KindUnknown, op, err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, ok := a.byID[id]; ok {
		return nil, backend.Errorf(backend.KindConflict, op, "a user with the same id already exists")
	}
	if _, ok := a.byEmail[email]; ok {
		return nil, backend.Errorf(backend.KindConflict, op, "a user with the same email already exists")
	}

	rec := &accountRecord{
		account: backend.Account{
			ID:        id,
			Email:     email,
			Name:      name,
			CreatedAt: a.opts.now(),
		},
		passwordHash: hash,
	}
	a.byID[id] = rec
	a.byEmail[email] = rec

	acc := rec.account
	return &acc, nil
}

func (a *Accounts) CreateEmailSession(_ context.Context, email, password string) (*backend.SessionInfo, error) {
	const op = "account.login"
	if err := checkOnline(a.offline, op); err != nil {
		return nil, err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	rec, ok := a.byEmail[strings.ToLower(strings.TrimSpace(email))]
	if !ok || bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(password)) != nil {
		return nil, backend.Errorf(backend.KindInvalidCredentials, op, "invalid credentials")
	}

	sess := &sessionRecord{info: backend.SessionInfo{
		ID:        uuid.NewString(),
		UserID:    rec.account.ID,
		ExpiresAt: a.opts.now().Add(defaultSession),
	}}
	a.sessions[sess.info.ID] = sess
	a.current = sess.info.ID

	info := sess.info
	return &info, nil
}

func (a *Accounts) Get(_ context.Context) (*backend.Account, error) {
	const op = "account.get"
	if err := checkOnline(a.offline, op); err != nil {
		return nil, err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	rec, err := a.currentAccount(op)
	if err != nil {
		return nil, err
	}
	acc := rec.account
	return &acc, nil
}

func (a *Accounts) DeleteSessions(_ context.Context) error {
	const op = "account.delete_sessions"
	if err := checkOnline(a.offline, op); err != nil {
		return err
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	rec, err := a.currentAccount(op)
	if err != nil {
		return err
	}
	a.revokeLocked(rec.account.ID)
	return nil
}

func (a *Accounts) CreateJWT(_ context.Context) (string, error) {
	const op = "account.create_jwt"
	if err := checkOnline(a.offline, op); err != nil {
		return "", err
	}

	a.mu.RLock()
	defer a.mu.RUnlock()

	rec, err := a.currentAccount(op)
	if err != nil {
		return "", err
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId":    rec.account.ID,
		"sessionId": a.current,
		"exp":       a.opts.now().Add(a.opts.jwtTTL).Unix(),
	})
	signed, err := token.SignedString(a.opts.signingKey)
	if err != nil {
		return "", backend.Wrap(backend.KindUnknown, op, err)
	}
	return signed, nil
}

// RevokeSessions ends every session of userID, as a logout on another device
// would.
func (a *Accounts) RevokeSessions(userID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.revokeLocked(userID)
}

// SetEmailVerified flips the verification flag of an existing user.
func (a *Accounts) SetEmailVerified(userID string, verified bool) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	rec, ok := a.byID[userID]
	if ok {
		rec.account.EmailVerified = verified
	}
	return ok
}

func (a *Accounts) revokeLocked(userID string) {
	for id, sess := range a.sessions {
		if sess.info.UserID == userID {
			delete(a.sessions, id)
		}
	}
	if _, ok := a.sessions[a.current]; !ok {
		a.current = ""
	}
}

// currentAccount resolves the current session; callers hold a.mu.
func (a *Accounts) currentAccount(op string) (*accountRecord, error) {
	sess, ok := a.sessions[a.current]
	if !ok || a.opts.now().After(sess.info.ExpiresAt) {
		return nil, backend.Errorf(backend.KindUnauthorized, op, "no active session")
	}
	rec, ok := a.byID[sess.info.UserID]
	if !ok {
		return nil, backend.Errorf(backend.KindUnauthorized, op, "session owner no longer exists")
	}
	return rec, nil
}

func validEmail(email string) bool {
	at := strings.IndexByte(email, '@')
	return at > 0 && at < len(email)-1 && !strings.ContainsAny(email, " \t")
}

var _ backend.Accounts = (*Accounts)(nil)
