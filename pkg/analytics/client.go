// Package analytics provides a Go client for the Google Analytics v3
// management and core reporting APIs.
//
// A Client holds one set of OAuth2 credentials. Calls rejected with 401
// trigger a single refresh-token exchange followed by one retry; the
// refreshed token is handed to caller-supplied hooks for persistence.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// DefaultBaseURL is prefixed to endpoints that are not absolute URLs.
const DefaultBaseURL = "https://www.googleapis.com/"

// TokenUpdateFunc is notified after a successful token refresh. It
// receives the client so it can read the new access token and expiry.
type TokenUpdateFunc func(ctx context.Context, c *Client) error

// Tokens holds the OAuth2 tokens of a session. Empty fields are absent.
type Tokens struct {
	AccessToken  string
	RefreshToken string
	Expires      time.Time
}

// ClientCredentials identifies the OAuth2 application.
type ClientCredentials struct {
	ID     string
	Secret string
}

// Config describes a session. Every field is optional.
type Config struct {
	Tokens        *Tokens
	Client        *ClientCredentials
	OnTokenUpdate TokenUpdateFunc
}

// Client is an authenticated Analytics API session.
type Client struct {
	BaseURL    string
	HTTPClient *http.Client
	Exchanger  TokenExchanger

	mu            sync.Mutex
	accessToken   string
	refreshToken  string
	expires       time.Time
	clientID      string
	clientSecret  string
	onTokenUpdate TokenUpdateFunc

	logger  *slog.Logger
	limiter *rate.Limiter
	now     func() time.Time
}

// NewClient creates a session from the given configuration.
func NewClient(cfg Config) *Client {
	c := &Client{
		BaseURL: DefaultBaseURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		Exchanger: NewOAuth2Exchanger(DefaultTokenURL),
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
	}
	c.Configure(cfg)
	return c
}

// Configure applies a partial configuration. Fields left empty keep
// their current values.
func (c *Client) Configure(cfg Config) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if t := cfg.Tokens; t != nil {
		if t.AccessToken != "" {
			c.accessToken = t.AccessToken
		}
		if t.RefreshToken != "" {
			c.refreshToken = t.RefreshToken
		}
		if !t.Expires.IsZero() {
			c.expires = t.Expires
		}
	}
	if cc := cfg.Client; cc != nil {
		if cc.ID != "" {
			c.clientID = cc.ID
		}
		if cc.Secret != "" {
			c.clientSecret = cc.Secret
		}
	}
	if cfg.OnTokenUpdate != nil {
		c.onTokenUpdate = cfg.OnTokenUpdate
	}
}

// AccessToken returns the current access token.
func (c *Client) AccessToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken
}

// RefreshToken returns the refresh token.
func (c *Client) RefreshToken() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshToken
}

// Expires returns the expiry of the current access token.
func (c *Client) Expires() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.expires
}

// ClientID returns the OAuth2 client id.
func (c *Client) ClientID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.clientID
}

// WithBaseURL overrides the API base used for relative endpoints.
func (c *Client) WithBaseURL(baseURL string) *Client {
	c.BaseURL = baseURL
	return c
}

// WithHTTPClient sets the HTTP client used for API calls.
func (c *Client) WithHTTPClient(hc *http.Client) *Client {
	c.HTTPClient = hc
	return c
}

// WithExchanger sets the refresh-token exchanger.
func (c *Client) WithExchanger(e TokenExchanger) *Client {
	c.Exchanger = e
	return c
}

// WithLogger sets the logger. A nil logger discards output.
func (c *Client) WithLogger(l *slog.Logger) *Client {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	c.logger = l
	return c
}

// WithRateLimiter throttles outgoing API calls. The token exchange is
// not throttled.
func (c *Client) WithRateLimiter(l *rate.Limiter) *Client {
	c.limiter = l
	return c
}

// WithClock overrides the time source used for report date defaults.
func (c *Client) WithClock(now func() time.Time) *Client {
	c.now = now
	return c
}

// Get performs a GET call with params encoded in the query string.
func (c *Client) Get(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	return c.Call(ctx, endpoint, http.MethodGet, params)
}

// Post performs a POST call with params sent form-encoded.
func (c *Client) Post(ctx context.Context, endpoint string, params map[string]string) (json.RawMessage, error) {
	return c.Call(ctx, endpoint, http.MethodPost, params)
}

// Call performs one authenticated API call. A 401 response triggers a
// token refresh and exactly one retry. If the refresh fails, the
// original 401 error is returned.
//
// A 2xx response with an empty body returns a nil payload.
func (c *Client) Call(ctx context.Context, endpoint, method string, params map[string]string) (json.RawMessage, error) {
	return c.call(ctx, endpoint, method, params, false)
}

func (c *Client) call(ctx context.Context, endpoint, method string, params map[string]string, isRetry bool) (json.RawMessage, error) {
	c.mu.Lock()
	token, refreshToken := c.accessToken, c.refreshToken
	c.mu.Unlock()

	if token == "" && refreshToken == "" {
		return nil, &ConfigurationError{Message: "missing access token and refresh token"}
	}

	target := c.resolve(endpoint)
	logger := c.logger.With("call_id", uuid.NewString(), "method", method, "url", target, "retry", isRetry)

	status, body, err := c.doOnce(ctx, method, target, params, token)
	if err != nil {
		logger.Debug("api call failed", "error", err)
		return nil, err
	}
	logger.Debug("api call", "status", status)

	if status >= 200 && status < 300 {
		if len(bytes.TrimSpace(body)) == 0 {
			return nil, nil
		}
		if !json.Valid(body) {
			return nil, &TransportError{Op: "decode response", Err: errors.New("invalid JSON body")}
		}
		return json.RawMessage(body), nil
	}

	apiErr := newAPIError(status, body)
	if status != http.StatusUnauthorized || isRetry {
		return nil, apiErr
	}

	if _, err := c.Refresh(ctx, nil); err != nil {
		logger.Warn("token refresh failed, returning original error", "error", err)
		return nil, apiErr
	}

	return c.call(ctx, endpoint, method, params, true)
}

// resolve turns a relative endpoint into an absolute URL.
func (c *Client) resolve(endpoint string) string {
	if strings.HasPrefix(endpoint, "https://") || strings.HasPrefix(endpoint, "http://") {
		return endpoint
	}
	return strings.TrimSuffix(c.BaseURL, "/") + "/" + strings.TrimPrefix(endpoint, "/")
}

// doOnce performs a single HTTP request and returns the status and body.
func (c *Client) doOnce(ctx context.Context, method, target string, params map[string]string, token string) (int, []byte, error) {
	if method == "" {
		method = http.MethodGet
	}
	method = strings.ToUpper(method)

	u, err := url.Parse(target)
	if err != nil {
		return 0, nil, &TransportError{Op: "create request", Err: err}
	}

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	var body io.Reader
	switch method {
	case http.MethodGet, http.MethodDelete, http.MethodHead:
		if len(values) > 0 {
			q := u.Query()
			for k, v := range values {
				q[k] = v
			}
			u.RawQuery = q.Encode()
		}
	default:
		body = strings.NewReader(values.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return 0, nil, &TransportError{Op: "create request", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, &TransportError{Op: "rate limit", Err: err}
		}
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return 0, nil, &TransportError{Op: "request failed", Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, &TransportError{Op: "read response", Err: err}
	}

	return resp.StatusCode, data, nil
}
