// Package boot connects the session gateway to the auth store: it resolves
// the session at start-up and dispatches the result of every session
// mutation.
package boot

import (
	"context"

	"blogcore/internal/session/model"
	"blogcore/internal/session/service"
	"blogcore/pkg/logger"
)

// Dispatcher is the write side of the auth store.
type Dispatcher interface {
	Login(user model.User)
	Logout()
}

// Restore resolves the current session and dispatches Login or Logout. It
// never fails; an unreachable backend counts as logged out.
func Restore(ctx context.Context, gw service.Gateway, st Dispatcher) *model.User {
	user := gw.GetCurrentUser(ctx)
	if user == nil {
		logger.Sugar.Info("No active session, starting logged out")
		st.Logout()
		return nil
	}
	logger.Sugar.Infof("Restored session for %s", user.Email)
	st.Login(*user)
	return user
}

// SignUp creates an account, which also logs it in, and dispatches Login.
// The store is left untouched on failure.
func SignUp(ctx context.Context, gw service.Gateway, st Dispatcher, req model.CreateAccountRequest) (*model.User, error) {
	user, err := gw.CreateAccount(ctx, req.Email, req.Password, req.Name)
	if err != nil {
		return nil, err
	}
	st.Login(*user)
	return user, nil
}

// SignIn logs in and dispatches Login.
func SignIn(ctx context.Context, gw service.Gateway, st Dispatcher, req model.LoginRequest) (*model.User, error) {
	user, err := gw.Login(ctx, req.Email, req.Password)
	if err != nil {
		return nil, err
	}
	st.Login(*user)
	return user, nil
}

// SignOut ends every session and dispatches Logout. If the backend call
// fails the store keeps the authenticated state.
func SignOut(ctx context.Context, gw service.Gateway, st Dispatcher) error {
	if err := gw.Logout(ctx); err != nil {
		return err
	}
	st.Logout()
	return nil
}
