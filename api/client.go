// Package api is the HTTP client for the OnyxPrism backend.
//
// Every endpoint has its own method. Database-scoped methods take the
// database id as an explicit argument; nothing is injected into request
// bodies behind the caller's back.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/onyxprism/prism/apperr"
	"github.com/onyxprism/prism/applog"
	"github.com/onyxprism/prism/session"
)

// ErrUnauthorized is wrapped by the error returned for any 401 answer to
// an authenticated request. By the time the caller sees it the session
// has been cleared.
var ErrUnauthorized = errors.New("unauthorized")

const (
	msgNoToken    = "No access token found. Please sign in."
	msgNoDatabase = "Please connect a database first."
	msgExpired    = "You have been logged out. Please sign in again."
	msgBadFormat  = "Invalid response format from server."
)

// Client talks to one backend origin on behalf of one session.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	store          *session.Store
	onUnauthorized func()
	userAgent      string
	timeout        time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default *http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the per-request timeout. It applies to the client
// given by WithHTTPClient too, without modifying the caller's value.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.timeout = d }
}

// WithUnauthorizedHandler registers fn to run after a 401 has cleared the
// session. The TUI uses it to return to the sign-in screen.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// WithUserAgent sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// New creates a client for baseURL backed by store.
func New(baseURL string, store *session.Store, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		store:      store,
		userAgent:  "onyxprism-cli",
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.timeout > 0 {
		hc := *c.httpClient
		hc.Timeout = c.timeout
		c.httpClient = &hc
	}
	return c
}

// Session returns the store the client reads its token from.
func (c *Client) Session() *session.Store {
	return c.store
}

// ScopedDatabaseID returns the connected database id, or "".
func (c *Client) ScopedDatabaseID() string {
	return c.store.ConnectedDatabaseID()
}

// call describes one request.
type call struct {
	method   string
	path     string
	public   bool // no Authorization header (login, signup)
	body     interface{}
	out      interface{}
	failure  string // shown when the server gives no message
	offline  string // shown when no response arrives
	hasDBArg bool
	dbID     string
}

func (c *Client) do(ctx context.Context, r call) error {
	var auth string
	if !r.public {
		auth = c.store.Authorization()
		if auth == "" {
			return apperr.New(apperr.KindAuth, msgNoToken)
		}
	}
	if r.hasDBArg && r.dbID == "" {
		return apperr.Validation(msgNoDatabase)
	}

	var reader io.Reader
	if r.body != nil {
		payload, err := json.Marshal(r.body)
		if err != nil {
			return apperr.Wrap(err, apperr.KindInternal, "encode request")
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, r.method, c.baseURL+r.path, reader)
	if err != nil {
		return apperr.Wrap(err, apperr.KindInternal, "build request")
	}
	reqID := uuid.NewString()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	if auth != "" {
		req.Header.Set("Authorization", auth)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		applog.L().Warn("request failed",
			zap.String("method", r.method),
			zap.String("path", r.path),
			zap.String("request_id", reqID),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return apperr.Wrap(err, apperr.KindNetwork, r.offline)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	applog.L().Debug("request",
		zap.String("method", r.method),
		zap.String("path", r.path),
		zap.Int("status", resp.StatusCode),
		zap.String("request_id", reqID),
		zap.Duration("elapsed", time.Since(start)))
	if err != nil {
		return apperr.Wrap(err, apperr.KindNetwork, r.offline)
	}

	if resp.StatusCode == http.StatusUnauthorized && !r.public {
		c.expire()
		return &apperr.Error{
			Kind:    apperr.KindAuth,
			Message: msgExpired,
			Status:  resp.StatusCode,
			Cause:   ErrUnauthorized,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(respBody)
		if msg == "" {
			msg = r.failure
		}
		applog.Error("%s %s: %d %s", r.method, r.path, resp.StatusCode, msg)
		return apperr.Server(resp.StatusCode, msg)
	}

	if r.out == nil {
		return nil
	}
	if err := json.Unmarshal(respBody, r.out); err != nil {
		return &apperr.Error{Kind: apperr.KindServer, Message: msgBadFormat, Status: resp.StatusCode, Cause: err}
	}
	return nil
}

// expire performs the forced logout that follows any 401.
func (c *Client) expire() {
	if err := c.store.Clear(); err != nil {
		applog.Error("clear session after 401: %v", err)
	}
	applog.Event("auth", "401 from backend, session cleared")
	if c.onUnauthorized != nil {
		c.onUnauthorized()
	}
}

// errorMessage extracts the message of a FastAPI error body:
// {"detail": "..."}, {"detail": [{"msg": "..."}]} or {"message": "..."}.
func errorMessage(body []byte) string {
	var e struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err != nil {
		return ""
	}

	if len(e.Detail) > 0 {
		var s string
		if err := json.Unmarshal(e.Detail, &s); err == nil && s != "" {
			return s
		}
		var list []struct {
			Msg string        `json:"msg"`
			Loc []interface{} `json:"loc"`
		}
		if err := json.Unmarshal(e.Detail, &list); err == nil && len(list) > 0 && list[0].Msg != "" {
			if n := len(list[0].Loc); n > 0 {
				return fmt.Sprintf("%v: %s", list[0].Loc[n-1], list[0].Msg)
			}
			return list[0].Msg
		}
	}
	return e.Message
}
