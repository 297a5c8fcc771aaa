package analytics

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

// fakeExchanger records refresh exchanges and returns a canned result.
type fakeExchanger struct {
	calls        int
	token        *Token
	err          error
	clientID     string
	clientSecret string
	refreshToken string
}

func (f *fakeExchanger) ExchangeRefreshToken(_ context.Context, clientID, clientSecret, refreshToken string) (*Token, error) {
	f.calls++
	f.clientID, f.clientSecret, f.refreshToken = clientID, clientSecret, refreshToken
	if f.err != nil {
		return nil, f.err
	}
	return f.token, nil
}

func newTestClient(serverURL string, ex TokenExchanger) *Client {
	return NewClient(Config{
		Tokens: &Tokens{AccessToken: "old-token", RefreshToken: "refresh-token"},
		Client: &ClientCredentials{ID: "client-id", Secret: "client-secret"},
	}).WithBaseURL(serverURL).WithExchanger(ex)
}

func TestNewClient_Defaults(t *testing.T) {
	client := NewClient(Config{})

	assert.Equal(t, DefaultBaseURL, client.BaseURL)
	assert.Equal(t, 30*time.Second, client.HTTPClient.Timeout)
	assert.IsType(t, &OAuth2Exchanger{}, client.Exchanger)
	assert.Empty(t, client.AccessToken())
	assert.True(t, client.Expires().IsZero())
}

func TestClient_Configure_IsAdditive(t *testing.T) {
	expires := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	client := NewClient(Config{
		Tokens: &Tokens{AccessToken: "a1", RefreshToken: "r1", Expires: expires},
		Client: &ClientCredentials{ID: "id1", Secret: "s1"},
	})

	client.Configure(Config{Tokens: &Tokens{AccessToken: "a2"}})
	client.Configure(Config{Client: &ClientCredentials{Secret: "s2"}})

	assert.Equal(t, "a2", client.AccessToken())
	assert.Equal(t, "r1", client.RefreshToken())
	assert.Equal(t, expires, client.Expires())
	assert.Equal(t, "id1", client.ClientID())
	assert.Equal(t, "s2", client.clientSecret)
}

func TestClient_Call_MissingTokens(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	client := NewClient(Config{}).WithBaseURL(server.URL)
	_, err := client.Call(context.Background(), "analytics/v3/management/accounts", http.MethodGet, nil)

	var cfgErr *ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestClient_Call_RefreshTokenOnlyIsEnough(t *testing.T) {
	ex := &fakeExchanger{token: &Token{AccessToken: "new-token"}}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer new-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(Config{
		Tokens: &Tokens{RefreshToken: "refresh-token"},
		Client: &ClientCredentials{ID: "client-id", Secret: "client-secret"},
	}).WithBaseURL(server.URL).WithExchanger(ex)

	payload, err := client.Get(context.Background(), "test", nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true}`, string(payload))
	assert.Equal(t, 1, ex.calls)
}

func TestClient_Call_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodGet, r.Method)
		assert.Equal(t, "/analytics/v3/management/accounts", r.URL.Path)
		assert.Equal(t, "Bearer old-token", r.Header.Get("Authorization"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"items": []}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, &fakeExchanger{})
	payload, err := client.Call(context.Background(), "/analytics/v3/management/accounts", "get", nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"items": []}`, string(payload))
}

func TestClient_Call_AbsoluteEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/absolute", r.URL.Path)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient("https://unused.invalid/", &fakeExchanger{})
	_, err := client.Get(context.Background(), server.URL+"/absolute", nil)

	require.NoError(t, err)
}

func TestClient_resolve(t *testing.T) {
	client := NewClient(Config{})

	tests := []struct {
		endpoint string
		want     string
	}{
		{"analytics/v3/data/ga", "https://www.googleapis.com/analytics/v3/data/ga"},
		{"/analytics/v3/data/ga", "https://www.googleapis.com/analytics/v3/data/ga"},
		{"https://example.com/x", "https://example.com/x"},
		{"http://example.com/x", "http://example.com/x"},
	}

	for _, tt := range tests {
		t.Run(tt.endpoint, func(t *testing.T) {
			assert.Equal(t, tt.want, client.resolve(tt.endpoint))
		})
	}
}

func TestClient_Get_ParamsInQuery(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "ga:1", r.URL.Query().Get("ids"))
		assert.Equal(t, "ga:day", r.URL.Query().Get("dimensions"))
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, &fakeExchanger{})
	_, err := client.Get(context.Background(), "data", map[string]string{"ids": "ga:1", "dimensions": "ga:day"})

	require.NoError(t, err)
}

func TestClient_Post_ParamsFormEncoded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "Home", r.PostForm.Get("name"))

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"1"}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, &fakeExchanger{})
	payload, err := client.Post(context.Background(), "things", map[string]string{"name": "Home"})

	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"1"}`, string(payload))
}

func TestClient_Call_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	client := newTestClient(server.URL, &fakeExchanger{})
	payload, err := client.Get(context.Background(), "test", nil)

	require.NoError(t, err)
	assert.Nil(t, payload)
}

func TestClient_Call_InvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := newTestClient(server.URL, &fakeExchanger{})
	_, err := client.Get(context.Background(), "test", nil)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "decode response", transportErr.Op)
}

func TestClient_Call_APIErrorNotRetried(t *testing.T) {
	tests := []struct {
		name        string
		statusCode  int
		body        string
		wantMessage string
	}{
		{
			name:        "forbidden",
			statusCode:  http.StatusForbidden,
			body:        `{"error":{"code":403,"message":"User does not have permission"}}`,
			wantMessage: "User does not have permission",
		},
		{
			name:       "not found without body",
			statusCode: http.StatusNotFound,
		},
		{
			name:       "server error with text body",
			statusCode: http.StatusInternalServerError,
			body:       "boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var hits int32
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				atomic.AddInt32(&hits, 1)
				w.WriteHeader(tt.statusCode)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			ex := &fakeExchanger{}
			client := newTestClient(server.URL, ex)
			_, err := client.Get(context.Background(), "test", nil)

			var apiErr *APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.statusCode, apiErr.StatusCode)
			assert.Equal(t, tt.body, apiErr.Body)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
			assert.Zero(t, ex.calls)
		})
	}
}

func TestClient_Call_RefreshesOn401AndRetries(t *testing.T) {
	var tokens []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth := r.Header.Get("Authorization")
		tokens = append(tokens, auth)
		if auth != "Bearer new-token" {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
			return
		}
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer server.Close()

	ex := &fakeExchanger{token: &Token{AccessToken: "new-token", Expires: time.Now().Add(time.Hour)}}
	client := newTestClient(server.URL, ex)

	payload, err := client.Get(context.Background(), "test", nil)

	require.NoError(t, err)
	assert.JSONEq(t, `{"items":[]}`, string(payload))
	assert.Equal(t, 1, ex.calls)
	assert.Equal(t, []string{"Bearer old-token", "Bearer new-token"}, tokens)
	assert.Equal(t, "client-id", ex.clientID)
	assert.Equal(t, "client-secret", ex.clientSecret)
	assert.Equal(t, "refresh-token", ex.refreshToken)
}

func TestClient_Call_SecondUnauthorizedIsTerminal(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	ex := &fakeExchanger{token: &Token{AccessToken: "new-token"}}
	client := newTestClient(server.URL, ex)

	_, err := client.Get(context.Background(), "test", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsUnauthorized())
	assert.Equal(t, 1, ex.calls)
	assert.Equal(t, int32(2), atomic.LoadInt32(&hits))
}

func TestClient_Call_RefreshFailureReturnsOriginalError(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"code":401,"message":"Invalid Credentials"}}`))
	}))
	defer server.Close()

	ex := &fakeExchanger{err: &AuthError{Err: errors.New("invalid_grant")}}
	client := newTestClient(server.URL, ex)

	_, err := client.Get(context.Background(), "test", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnauthorized, apiErr.StatusCode)
	assert.Equal(t, "Invalid Credentials", apiErr.Message)

	var authErr *AuthError
	assert.False(t, errors.As(err, &authErr))
	assert.Equal(t, 1, ex.calls)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
	assert.Equal(t, "old-token", client.AccessToken())
}

func TestClient_Call_401WithoutClientCredentials(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	ex := &fakeExchanger{}
	client := NewClient(Config{
		Tokens: &Tokens{AccessToken: "old-token", RefreshToken: "refresh-token"},
	}).WithBaseURL(server.URL).WithExchanger(ex)

	_, err := client.Get(context.Background(), "test", nil)

	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.True(t, apiErr.IsUnauthorized())
	assert.Zero(t, ex.calls)
}

func TestClient_Call_NetworkErrorNotRetried(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close()

	ex := &fakeExchanger{}
	client := newTestClient(server.URL, ex)

	_, err := client.Get(context.Background(), "test", nil)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "request failed", transportErr.Op)
	assert.Zero(t, ex.calls)
}

func TestClient_Call_ContextCancellation(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, &fakeExchanger{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := client.Get(ctx, "test", nil)

	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClient_Call_RateLimiterError(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
	}))
	defer server.Close()

	// A zero burst limiter can never grant a token.
	client := newTestClient(server.URL, &fakeExchanger{}).WithRateLimiter(rate.NewLimiter(1, 0))

	_, err := client.Get(context.Background(), "test", nil)

	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	assert.Equal(t, "rate limit", transportErr.Op)
	assert.Zero(t, atomic.LoadInt32(&hits))
}

func TestClient_Call_RateLimiterAllows(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		assert.Empty(t, body)
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := newTestClient(server.URL, &fakeExchanger{}).WithRateLimiter(rate.NewLimiter(rate.Inf, 1))

	_, err := client.Get(context.Background(), "test", nil)

	require.NoError(t, err)
}
