package remote

import (
	"context"
	"errors"
	"net/http"

	"blogcore/internal/backend"
)

type accountResponse struct {
	ID                string `json:"$id"`
	CreatedAt         string `json:"$createdAt"`
	Email             string `json:"email"`
	Name              string `json:"name"`
	EmailVerification bool   `json:"emailVerification"`
}

func (a accountResponse) toAccount() *backend.Account {
	return &backend.Account{
		ID:            a.ID,
		Email:         a.Email,
		Name:          a.Name,
		EmailVerified: a.EmailVerification,
		CreatedAt:     parseTime(a.CreatedAt),
	}
}

type sessionResponse struct {
	ID     string `json:"$id"`
	UserID string `json:"userId"`
	Expire string `json:"expire"`
}

// Accounts implements backend.Accounts.
type Accounts struct {
	client *Client
}

func NewAccounts(client *Client) *Accounts {
	return &Accounts{client: client}
}

func (a *Accounts) Create(ctx context.Context, id, email, password, name string) (*backend.Account, error) {
	body := map[string]string{
		"userId":   id,
		"email":    email,
		"password": password,
		"name":     name,
	}
	var resp accountResponse
	if err := a.client.doJSON(ctx, "account.create", http.MethodPost, "/account", nil, body, &resp); err != nil {
		return nil, err
	}
	return resp.toAccount(), nil
}

func (a *Accounts) CreateEmailSession(ctx context.Context, email, password string) (*backend.SessionInfo, error) {
	body := map[string]string{
		"email":    email,
		"password": password,
	}
	var resp sessionResponse
	err := a.client.doJSON(ctx, "account.login", http.MethodPost, "/account/sessions/email", nil, body, &resp)
	if err != nil {
		// a rejected login is always a credentials problem, whatever the
		// backend's error type says
		var be *backend.Error
		if errors.As(err, &be) && be.Kind == backend.KindUnauthorized {
			be.Kind = backend.KindInvalidCredentials
		}
		return nil, err
	}
	return &backend.SessionInfo{
		ID:        resp.ID,
		UserID:    resp.UserID,
		ExpiresAt: parseTime(resp.Expire),
	}, nil
}

func (a *Accounts) Get(ctx context.Context) (*backend.Account, error) {
	var resp accountResponse
	if err := a.client.doJSON(ctx, "account.get", http.MethodGet, "/account", nil, nil, &resp); err != nil {
		return nil, err
	}
	return resp.toAccount(), nil
}

func (a *Accounts) DeleteSessions(ctx context.Context) error {
	return a.client.doJSON(ctx, "account.delete_sessions", http.MethodDelete, "/account/sessions", nil, nil, nil)
}

func (a *Accounts) CreateJWT(ctx context.Context) (string, error) {
	var resp struct {
		JWT string `json:"jwt"`
	}
	if err := a.client.doJSON(ctx, "account.create_jwt", http.MethodPost, "/account/jwt", nil, nil, &resp); err != nil {
		return "", err
	}
	if resp.JWT == "" {
		return "", backend.Errorf(backend.KindUnknown, "account.create_jwt", "backend returned an empty token")
	}
	return resp.JWT, nil
}

var _ backend.Accounts = (*Accounts)(nil)
