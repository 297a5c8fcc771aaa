package analytics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"golang.org/x/oauth2"
)

// DefaultTokenURL is Google's OAuth2 token endpoint.
const DefaultTokenURL = "https://oauth2.googleapis.com/token"

// Token is the result of a refresh-token exchange.
type Token struct {
	AccessToken string
	Expires     time.Time
}

// TokenExchanger mints a new access token from a refresh token.
// Implementations return *AuthError when the exchange is rejected.
type TokenExchanger interface {
	ExchangeRefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*Token, error)
}

// OAuth2Exchanger performs the refresh_token grant with golang.org/x/oauth2.
type OAuth2Exchanger struct {
	TokenURL   string
	HTTPClient *http.Client
}

// NewOAuth2Exchanger creates an exchanger for the given token endpoint.
func NewOAuth2Exchanger(tokenURL string) *OAuth2Exchanger {
	return &OAuth2Exchanger{
		TokenURL: tokenURL,
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// ExchangeRefreshToken implements TokenExchanger.
func (e *OAuth2Exchanger) ExchangeRefreshToken(ctx context.Context, clientID, clientSecret, refreshToken string) (*Token, error) {
	cfg := &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		Endpoint: oauth2.Endpoint{
			TokenURL:  e.TokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
	}
	if e.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, e.HTTPClient)
	}

	tok, err := cfg.TokenSource(ctx, &oauth2.Token{RefreshToken: refreshToken}).Token()
	if err != nil {
		return nil, &AuthError{Err: err}
	}

	return &Token{
		AccessToken: tok.AccessToken,
		Expires:     tok.Expiry,
	}, nil
}

// Refresh exchanges the refresh token for a new access token.
//
// On success the access token and expiry are replaced together, then the
// configured OnTokenUpdate hook and onRefreshed (if non-nil) are called in
// that order. A hook error is returned as is.
func (c *Client) Refresh(ctx context.Context, onRefreshed TokenUpdateFunc) (*Token, error) {
	c.mu.Lock()
	refreshToken := c.refreshToken
	clientID, clientSecret := c.clientID, c.clientSecret
	hook := c.onTokenUpdate
	c.mu.Unlock()

	if refreshToken == "" {
		return nil, &ConfigurationError{Message: "missing refresh token"}
	}
	if clientID == "" || clientSecret == "" {
		return nil, &ConfigurationError{Message: "missing client credentials"}
	}
	if hook == nil {
		c.logger.Debug("no token update hook configured, refreshed token will not be persisted unless onRefreshed stores it")
	}

	tok, err := c.Exchanger.ExchangeRefreshToken(ctx, clientID, clientSecret, refreshToken)
	if err != nil {
		var authErr *AuthError
		if !errors.As(err, &authErr) {
			err = &AuthError{Err: err}
		}
		return nil, err
	}

	c.mu.Lock()
	c.accessToken, c.expires = tok.AccessToken, tok.Expires
	c.mu.Unlock()

	c.logger.Debug("access token refreshed", "expires", tok.Expires)

	if hook != nil {
		if err := hook(ctx, c); err != nil {
			return nil, err
		}
	}
	if onRefreshed != nil {
		if err := onRefreshed(ctx, c); err != nil {
			return nil, err
		}
	}

	return tok, nil
}
