// Package auth persists refreshed access tokens for the CLI and builds
// authenticated Analytics sessions from the keyring and token cache.
package auth

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"time"
)

// CachedToken is an access token persisted between CLI invocations.
type CachedToken struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// IsValid returns true if the token is set and has not expired. A zero
// ExpiresAt means the expiry is unknown and the token is used as is.
func (t *CachedToken) IsValid() bool {
	if t.AccessToken == "" {
		return false
	}
	return t.ExpiresAt == 0 || t.ExpiresAt > time.Now().Unix()
}

// Expires returns the expiry as a time, zero when unknown.
func (t *CachedToken) Expires() time.Time {
	if t.ExpiresAt == 0 {
		return time.Time{}
	}
	return time.Unix(t.ExpiresAt, 0)
}

// SaveToken writes a token to the cache file.
// Creates parent directories if needed with 0700 permissions.
// The file is written with 0600 permissions.
func SaveToken(path string, token *CachedToken) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := json.Marshal(token)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// LoadToken reads a token from the cache file.
func LoadToken(path string) (*CachedToken, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var token CachedToken
	if err := json.Unmarshal(data, &token); err != nil {
		return nil, err
	}
	return &token, nil
}

// DeleteToken removes the token cache file.
// Returns nil if the file doesn't exist.
func DeleteToken(path string) error {
	err := os.Remove(path)
	if err != nil && errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return err
}

// TokenCachePath returns the path to the token cache file.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/gan.
func TokenCachePath() string {
	var configDir string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		configDir = filepath.Join(xdg, "gan")
	} else {
		home, _ := os.UserHomeDir()
		configDir = filepath.Join(home, ".config", "gan")
	}
	return filepath.Join(configDir, ".token_cache")
}
