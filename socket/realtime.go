package socket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"blogcore/internal/session/model"
	"blogcore/pkg/logger"

	"github.com/gorilla/websocket"
)

const (
	defaultRetryDelay    = 30 * time.Second
	defaultRefreshMargin = time.Minute
	minRefresh           = 5 * time.Second
)

// TokenSource issues the session JWT presented to the realtime endpoint.
type TokenSource interface {
	CreateJWT(ctx context.Context) (*model.Token, error)
}

// LogoutDispatcher is the part of the auth store the listener writes to.
type LogoutDispatcher interface {
	Logout()
}

// Event is one account event delivered by the backend.
type Event struct {
	Events    []string        `json:"events"`
	Channels  []string        `json:"channels"`
	Timestamp string          `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// Listener keeps a websocket open to the backend's realtime endpoint on the
// account channel and logs the process out when the current session is
// deleted elsewhere. It reconnects with a fresh token before the old one
// expires.
type Listener struct {
	endpoint  string
	projectID string
	tokens    TokenSource
	store     LogoutDispatcher
	dialer    *websocket.Dialer

	retryDelay    time.Duration
	refreshMargin time.Duration
	minRefresh    time.Duration
	pingInterval  time.Duration
	onEvent       func(Event)
	now           func() time.Time
}

type ListenerOption func(*Listener)

// WithJar presents the session cookies from jar on every dial.
func WithJar(jar http.CookieJar) ListenerOption {
	return func(l *Listener) { l.dialer.Jar = jar }
}

func WithRetryDelay(d time.Duration) ListenerOption {
	return func(l *Listener) { l.retryDelay = d }
}

// WithRefreshMargin sets how long before token expiry the listener
// reconnects.
func WithRefreshMargin(d time.Duration) ListenerOption {
	return func(l *Listener) { l.refreshMargin = d }
}

func WithPingInterval(d time.Duration) ListenerOption {
	return func(l *Listener) { l.pingInterval = d }
}

// WithEventHandler is called for every account event, after the logout
// check.
func WithEventHandler(fn func(Event)) ListenerOption {
	return func(l *Listener) { l.onEvent = fn }
}

func NewListener(endpoint, projectID string, tokens TokenSource, st LogoutDispatcher, opts ...ListenerOption) *Listener {
	l := &Listener{
		endpoint:  strings.TrimRight(endpoint, "/"),
		projectID: projectID,
		tokens:    tokens,
		store:     st,
		dialer: &websocket.Dialer{
			Proxy:            http.ProxyFromEnvironment,
			HandshakeTimeout: 15 * time.Second,
		},
		retryDelay:    defaultRetryDelay,
		refreshMargin: defaultRefreshMargin,
		minRefresh:    minRefresh,
		pingInterval:  pingInterval,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// URL derives the realtime websocket URL from the HTTP endpoint.
func (l *Listener) URL(token string) (string, error) {
	u, err := url.Parse(l.endpoint)
	if err != nil {
		return "", fmt.Errorf("parse endpoint: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	default:
		return "", fmt.Errorf("unsupported endpoint scheme %q", u.Scheme)
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/realtime"
	q := url.Values{}
	q.Set("project", l.projectID)
	q.Add("channels[]", "account")
	q.Set("token", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// Run connects and reconnects until ctx is done.
func (l *Listener) Run(ctx context.Context) error {
	for {
		token, err := l.tokens.CreateJWT(ctx)
		if err == nil {
			err = l.listen(ctx, token)
			if err == nil {
				// token refresh: reconnect straight away
				continue
			}
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		logger.Sugar.Warnf("Realtime connection unavailable, retrying in %s: %v", l.retryDelay, err)

		timer := time.NewTimer(l.retryDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// listen serves one connection. It returns nil when the token is about to
// expire and the caller should reconnect.
func (l *Listener) listen(ctx context.Context, token *model.Token) error {
	u, err := l.URL(token.Raw)
	if err != nil {
		return err
	}
	header := http.Header{}
	header.Set("X-Project-ID", l.projectID)

	conn, _, err := l.dialer.DialContext(ctx, u, header)
	if err != nil {
		return fmt.Errorf("dial realtime: %w", err)
	}
	defer conn.Close()
	logger.Sugar.Infof("Realtime connected for user %s", token.UserID)

	readErr := make(chan error, 1)
	go func() { readErr <- l.readPump(conn, token) }()

	ticker := time.NewTicker(l.pingInterval)
	defer ticker.Stop()

	var refresh <-chan time.Time
	if !token.ExpiresAt.IsZero() {
		wait := max(token.ExpiresAt.Sub(l.now())-l.refreshMargin, l.minRefresh)
		timer := time.NewTimer(wait)
		defer timer.Stop()
		refresh = timer.C
	}

	for {
		select {
		case <-ctx.Done():
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-refresh:
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, "token refresh"), time.Now().Add(writeWait))
			return nil
		case <-ticker.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return fmt.Errorf("ping: %w", err)
			}
		}
	}
}

func (l *Listener) readPump(conn *websocket.Conn, token *model.Token) error {
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				return errors.New("realtime connection closed by server")
			}
			return fmt.Errorf("read realtime: %w", err)
		}

		var env envelope
		if err := json.Unmarshal(raw, &env); err != nil {
			logger.Sugar.Errorf("Error unmarshalling realtime message: %v", err)
			continue
		}

		switch env.Type {
		case "event":
			var ev Event
			if err := json.Unmarshal(env.Data, &ev); err != nil {
				logger.Sugar.Errorf("Error unmarshalling realtime event: %v", err)
				continue
			}
			l.handle(ev, token)
		case "error":
			logger.Sugar.Warnf("Realtime error from backend: %s", string(env.Data))
		}
	}
}

func (l *Listener) handle(ev Event, token *model.Token) {
	for _, name := range ev.Events {
		if endsSession(name, token) {
			logger.Sugar.Infof("Session ended remotely (%s), logging out", name)
			l.store.Logout()
			break
		}
	}
	if l.onEvent != nil {
		l.onEvent(ev)
	}
}

// endsSession reports whether an event name of the form
// users.<user>.sessions.<session>.delete deletes the token's session.
func endsSession(name string, token *model.Token) bool {
	parts := strings.Split(name, ".")
	if len(parts) != 5 || parts[0] != "users" || parts[2] != "sessions" || parts[4] != "delete" {
		return false
	}
	if parts[1] != "*" && token.UserID != "" && parts[1] != token.UserID {
		return false
	}
	return parts[3] == "*" || token.SessionID == "" || parts[3] == token.SessionID
}
