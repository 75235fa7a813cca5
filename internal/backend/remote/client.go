// Package remote is the REST adapter for the hosted backend. It implements
// backend.Accounts, backend.Documents and backend.Files over HTTP and keeps
// the session cookie in a jar shared by all three.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"blogcore/internal/backend"
)

const projectHeader = "X-Project-ID"

// Config identifies the backend and the resources used on it.
type Config struct {
	Endpoint     string
	ProjectID    string
	DatabaseID   string
	CollectionID string
	BucketID     string
	Timeout      time.Duration
}

// Client is the shared HTTP transport for the adapter.
type Client struct {
	httpClient *http.Client
	cfg        Config
}

// New creates a client with its own cookie jar.
func New(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("remote: endpoint is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("remote: cookie jar: %w", err)
	}

	return &Client{
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
			Jar:     jar,
		},
		cfg: cfg,
	}, nil
}

// Jar exposes the session cookie jar so other transports (realtime) can
// present the same session.
func (c *Client) Jar() http.CookieJar {
	return c.httpClient.Jar
}

// Endpoint returns the normalized backend base URL.
func (c *Client) Endpoint() string {
	return c.cfg.Endpoint
}

// ProjectID returns the configured project identifier.
func (c *Client) ProjectID() string {
	return c.cfg.ProjectID
}

// apiError is the backend's error envelope.
type apiError struct {
	Message string `json:"message"`
	Code    int    `json:"code"`
	Type    string `json:"type"`
}

func (c *Client) doJSON(ctx context.Context, op, method, path string, query url.Values, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return backend.Wrap(backend.KindValidation, op, fmt.Errorf("encode request body: %w", err))
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := c.newRequest(ctx, method, path, query, bodyReader)
	if err != nil {
		return backend.Wrap(backend.KindValidation, op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(op, req, result)
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := c.cfg.Endpoint + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(projectHeader, c.cfg.ProjectID)
	return req, nil
}

func (c *Client) do(op string, req *http.Request, result any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return backend.Wrap(backend.KindNetwork, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(op, resp)
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return backend.Wrap(backend.KindNetwork, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

func decodeError(op string, resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var envelope apiError
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Message == "" {
		envelope.Message = strings.TrimSpace(string(raw))
		if envelope.Message == "" {
			envelope.Message = http.StatusText(resp.StatusCode)
		}
	}

	return &backend.Error{
		Kind:    kindForStatus(resp.StatusCode, envelope.Type),
		Op:      op,
		Message: envelope.Message,
		Err:     fmt.Errorf("status %d (%s)", resp.StatusCode, envelope.Type),
	}
}

func kindForStatus(status int, errType string) backend.Kind {
	switch {
	case status == http.StatusBadRequest:
		return backend.KindValidation
	case status == http.StatusUnauthorized:
		if errType == "user_invalid_credentials" {
			return backend.KindInvalidCredentials
		}
		return backend.KindUnauthorized
	case status == http.StatusForbidden:
		return backend.KindUnauthorized
	case status == http.StatusNotFound:
		return backend.KindNotFound
	case status == http.StatusConflict:
		return backend.KindConflict
	case status == http.StatusTooManyRequests, status >= 500:
		// transient: the caller sees it the same way as a dropped connection
		return backend.KindNetwork
	default:
		return backend.KindUnknown
	}
}

// parseTime reads the backend's RFC 3339 timestamps; malformed values yield
// the zero time.
func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
