package auth

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"golang.org/x/time/rate"

	"github.com/jonandersen/gan/internal/config"
	"github.com/jonandersen/gan/internal/keyring"
	"github.com/jonandersen/gan/pkg/analytics"
)

// ErrNotConfigured explains how to provide credentials.
var ErrNotConfigured = fmt.Errorf("CLI not configured. Run: gan configure\nOr set %s and %s environment variables",
	keyring.EnvClientSecret, keyring.EnvRefreshToken)

// SessionOptions holds the dependencies of NewSession.
type SessionOptions struct {
	Config    *config.Config
	Store     keyring.Store
	CachePath string
	Logger    *slog.Logger
}

// PersistTo returns a token update hook that writes the session's
// current access token to the cache file at path. Write failures are
// logged and ignored since the refreshed token is still usable.
func PersistTo(path string, logger *slog.Logger) analytics.TokenUpdateFunc {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return func(_ context.Context, c *analytics.Client) error {
		token := &CachedToken{AccessToken: c.AccessToken()}
		if exp := c.Expires(); !exp.IsZero() {
			token.ExpiresAt = exp.Unix()
		}
		if err := SaveToken(path, token); err != nil {
			logger.Warn("failed to cache access token", "path", path, "error", err)
			return nil
		}
		logger.Debug("cached access token", "path", path, "expires_at", token.ExpiresAt)
		return nil
	}
}

// NewSession builds an Analytics client from the configured client id,
// the keyring secrets and the cached access token. Refreshed tokens are
// written back to the cache.
func NewSession(opts SessionOptions) (*analytics.Client, error) {
	cfg := opts.Config
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	secret, err := keyring.Lookup(opts.Store, keyring.KeyClientSecret)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve client secret: %w", err)
	}
	refreshToken, err := keyring.Lookup(opts.Store, keyring.KeyRefreshToken)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve refresh token: %w", err)
	}

	tokens := &analytics.Tokens{RefreshToken: refreshToken}
	if cached, err := LoadToken(opts.CachePath); err == nil && cached.IsValid() {
		tokens.AccessToken = cached.AccessToken
		tokens.Expires = cached.Expires()
	}

	if tokens.AccessToken == "" && tokens.RefreshToken == "" {
		return nil, ErrNotConfigured
	}

	client := analytics.NewClient(analytics.Config{
		Tokens:        tokens,
		Client:        &analytics.ClientCredentials{ID: cfg.ClientID, Secret: secret},
		OnTokenUpdate: PersistTo(opts.CachePath, logger),
	}).
		WithBaseURL(cfg.APIBaseURL).
		WithExchanger(analytics.NewOAuth2Exchanger(cfg.TokenURL)).
		WithLogger(logger)

	if cfg.RequestsPerSecond > 0 {
		burst := int(math.Max(1, math.Floor(cfg.RequestsPerSecond)))
		client.WithRateLimiter(rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), burst))
	}

	return client, nil
}
