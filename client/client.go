// Package client is the browser-side session manager as a Go library: it
// holds the access token in memory, keeps the refresh and CSRF cookies in a
// jar, and refreshes silently when the API answers 401.
package client

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

	"github.com/webmitra3-cloud/webmitra.tech/services/logging"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultCSRFHeader = "X-CSRF-Token"

	pathCSRF    = "/auth/csrf"
	pathLogin   = "/auth/login"
	pathRefresh = "/auth/refresh"
	pathLogout  = "/auth/logout"
	pathMe      = "/auth/me"

	maxBodyBytes = 1 << 20
)

var ErrSessionExpired = errors.New("session expired")

type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("api error %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// IsCSRF reports whether the server refused the request's CSRF token.
func (e *APIError) IsCSRF() bool {
	if e.StatusCode != http.StatusForbidden {
		return false
	}
	return strings.HasPrefix(e.Code, "CSRF_") || strings.Contains(strings.ToUpper(e.Message), "CSRF")
}

type User struct {
	ID    string `json:"_id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

type Request struct {
	Method string
	Path   string
	Body   any
	Header http.Header
}

type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
}

func (r *Response) Decode(v any) error {
	return json.Unmarshal(r.Body, v)
}

type Client struct {
	base        string
	http        *http.Client
	store       TokenStore
	coordinator *Coordinator
	csrfFlight  singleflight.Group
	csrfHeader  string
	onExpired   func()
	logger      *logging.Service
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

func WithTokenStore(store TokenStore) Option {
	return func(c *Client) { c.store = store }
}

func WithCSRFHeader(name string) Option {
	return func(c *Client) { c.csrfHeader = name }
}

// WithSessionExpired registers a hook run after a failed silent refresh has
// cleared the session, typically to route the user to the login screen.
func WithSessionExpired(fn func()) Option {
	return func(c *Client) { c.onExpired = fn }
}

func WithLogger(logger *logging.Service) Option {
	return func(c *Client) { c.logger = logger }
}

// New builds a client for the API mounted at baseURL, e.g.
// "https://api.webmitra.tech/api".
func New(baseURL string, opts ...Option) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid base url %q: scheme and host are required", baseURL)
	}

	c := &Client{
		base:        strings.TrimRight(u.String(), "/"),
		store:       NewMemoryStore(),
		coordinator: NewCoordinator(),
		csrfHeader:  DefaultCSRFHeader,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http == nil {
		c.http = &http.Client{}
	}
	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	c.logger = c.logger.Named("client")

	return c, nil
}

func (c *Client) Store() TokenStore {
	return c.store
}

// Do sends req with the session attached. A CSRF refusal is retried once
// with a fresh token. A 401 outside the auth endpoints triggers one shared
// silent refresh and a single retry; if the refresh fails the session is
// cleared and ErrSessionExpired returned.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	resp, sentToken, err := c.send(ctx, req, true)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusForbidden && isMutating(req.Method) && asAPIError(resp).IsCSRF() {
		c.logger.Debug("csrf token refused, refetching", zap.String("path", req.Path))
		c.store.SetCSRFToken("")
		if resp, sentToken, err = c.send(ctx, req, true); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode == http.StatusUnauthorized && !isAuthPath(req.Path) {
		current := c.store.AccessToken()
		switch {
		case current != "" && current != sentToken:
			// refreshed by someone else since this request was sent
		case current == "" && sentToken != "":
			// cleared by a failed refresh or a logout
			return nil, ErrSessionExpired
		default:
			if _, err := c.coordinator.RunExclusive(ctx, c.refreshFrom(sentToken)); err != nil {
				if ctx.Err() != nil {
					return nil, ctx.Err()
				}
				c.expire(err)
				return nil, ErrSessionExpired
			}
		}
		if resp, _, err = c.send(ctx, req, true); err != nil {
			return nil, err
		}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		return resp, asAPIError(resp)
	}
	return resp, nil
}

func (c *Client) FetchCSRF(ctx context.Context) (string, error) {
	resp, _, err := c.send(ctx, &Request{Method: http.MethodGet, Path: pathCSRF}, false)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", asAPIError(resp)
	}

	var body struct {
		CSRFToken string `json:"csrfToken"`
	}
	if err := resp.Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode csrf response: %w", err)
	}
	c.store.SetCSRFToken(body.CSRFToken)
	return body.CSRFToken, nil
}

func (c *Client) Login(ctx context.Context, email, password string) (*User, error) {
	resp, err := c.Do(ctx, &Request{
		Method: http.MethodPost,
		Path:   pathLogin,
		Body:   map[string]string{"email": email, "password": password},
	})
	if err != nil {
		return nil, err
	}

	var body struct {
		User        User   `json:"user"`
		AccessToken string `json:"accessToken"`
		CSRFToken   string `json:"csrfToken"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode login response: %w", err)
	}

	c.store.SetAccessToken(body.AccessToken)
	c.store.SetCSRFToken(body.CSRFToken)
	return &body.User, nil
}

// Logout always clears local state; server-side failures are only logged.
func (c *Client) Logout(ctx context.Context) {
	_, err := c.Do(ctx, &Request{Method: http.MethodPost, Path: pathLogout})
	if err != nil {
		c.logger.Debug("logout request failed", zap.Error(err))
	}
	c.store.Clear()
}

func (c *Client) Me(ctx context.Context) (*User, error) {
	resp, err := c.Do(ctx, &Request{Method: http.MethodGet, Path: pathMe})
	if err != nil {
		return nil, err
	}

	var body struct {
		User User `json:"user"`
	}
	if err := resp.Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode profile: %w", err)
	}
	return &body.User, nil
}

// Refresh rotates the session explicitly, e.g. to restore it on startup.
func (c *Client) Refresh(ctx context.Context) error {
	_, err := c.coordinator.RunExclusive(ctx, c.refresh)
	return err
}

// refreshFrom skips the network when another refresh already replaced the
// token the failed request carried.
func (c *Client) refreshFrom(stale string) func(context.Context) (string, error) {
	return func(ctx context.Context) (string, error) {
		if current := c.store.AccessToken(); current != "" && current != stale {
			return current, nil
		}
		return c.refresh(ctx)
	}
}

func (c *Client) refresh(ctx context.Context) (string, error) {
	req := &Request{Method: http.MethodPost, Path: pathRefresh}
	resp, _, err := c.send(ctx, req, true)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", asAPIError(resp)
	}

	var body struct {
		AccessToken string `json:"accessToken"`
		CSRFToken   string `json:"csrfToken"`
	}
	if err := resp.Decode(&body); err != nil {
		return "", fmt.Errorf("failed to decode refresh response: %w", err)
	}
	if body.AccessToken == "" {
		return "", errors.New("refresh response carried no access token")
	}

	c.store.SetAccessToken(body.AccessToken)
	c.store.SetCSRFToken(body.CSRFToken)
	c.logger.Debug("session refreshed")
	return body.AccessToken, nil
}

func (c *Client) expire(cause error) {
	c.logger.Info("session expired", zap.Error(cause))
	c.store.Clear()
	if c.onExpired != nil {
		c.onExpired()
	}
}

// send performs one round trip and reports the access token it attached.
func (c *Client) send(ctx context.Context, req *Request, ensureCSRF bool) (*Response, string, error) {
	if ensureCSRF && isMutating(req.Method) {
		if err := c.ensureCSRF(ctx); err != nil {
			return nil, "", err
		}
	}

	var body io.Reader
	if req.Body != nil {
		data, err := json.Marshal(req.Body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(data)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.base+req.Path, body)
	if err != nil {
		return nil, "", err
	}
	for name, values := range req.Header {
		for _, v := range values {
			httpReq.Header.Add(name, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	accessToken := c.store.AccessToken()
	if accessToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+accessToken)
	}
	if csrfToken := c.store.CSRFToken(); csrfToken != "" && isMutating(req.Method) {
		httpReq.Header.Set(c.csrfHeader, csrfToken)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, accessToken, err
	}
	defer httpResp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(httpResp.Body, maxBodyBytes))
	if err != nil {
		return nil, accessToken, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Header:     httpResp.Header,
		Body:       data,
	}, accessToken, nil
}

func (c *Client) ensureCSRF(ctx context.Context) error {
	if c.store.CSRFToken() != "" {
		return nil
	}
	_, err, _ := c.csrfFlight.Do("csrf", func() (any, error) {
		if token := c.store.CSRFToken(); token != "" {
			return token, nil
		}
		return c.FetchCSRF(ctx)
	})
	return err
}

func asAPIError(resp *Response) *APIError {
	apiErr := &APIError{StatusCode: resp.StatusCode}
	var body struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	}
	if err := json.Unmarshal(resp.Body, &body); err == nil {
		apiErr.Message = body.Message
		apiErr.Code = body.Code
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	default:
		return false
	}
}

func isAuthPath(path string) bool {
	return path == pathLogin || path == pathRefresh
}
