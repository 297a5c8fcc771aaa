// Package keyring stores the OAuth2 client secret and refresh token in
// the operating system keyring.
package keyring

import (
	"errors"
	"os"

	gokeyring "github.com/zalando/go-keyring"
)

const (
	// ServiceName is the keyring service under which gan stores secrets.
	ServiceName = "io.github.jonandersen.gan"

	// KeyClientSecret is the keyring key for the OAuth2 client secret.
	KeyClientSecret = "client_secret"

	// KeyRefreshToken is the keyring key for the OAuth2 refresh token.
	KeyRefreshToken = "refresh_token"

	// EnvClientSecret overrides the stored client secret.
	EnvClientSecret = "GAN_CLIENT_SECRET"

	// EnvRefreshToken overrides the stored refresh token.
	EnvRefreshToken = "GAN_REFRESH_TOKEN"
)

// envOverrides maps keyring keys to the environment variables that take
// precedence over them in CI/headless environments.
var envOverrides = map[string]string{
	KeyClientSecret: EnvClientSecret,
	KeyRefreshToken: EnvRefreshToken,
}

// ErrNotFound is returned when a secret is not found in the keyring.
var ErrNotFound = errors.New("secret not found")

// Store provides an interface for secure secret storage.
type Store interface {
	Get(service, key string) (string, error)
	Set(service, key, value string) error
	Delete(service, key string) error
}

// SystemStore implements Store using the system keyring.
type SystemStore struct{}

// NewSystemStore creates a new system keyring store.
func NewSystemStore() *SystemStore {
	return &SystemStore{}
}

// Get retrieves a secret from the system keyring.
func (s *SystemStore) Get(service, key string) (string, error) {
	secret, err := gokeyring.Get(service, key)
	if err != nil {
		if errors.Is(err, gokeyring.ErrNotFound) {
			return "", ErrNotFound
		}
		return "", err
	}
	return secret, nil
}

// Set stores a secret in the system keyring.
func (s *SystemStore) Set(service, key, value string) error {
	return gokeyring.Set(service, key, value)
}

// Delete removes a secret. Deleting a missing secret is not an error.
func (s *SystemStore) Delete(service, key string) error {
	err := gokeyring.Delete(service, key)
	if err != nil && errors.Is(err, gokeyring.ErrNotFound) {
		return nil
	}
	return err
}

// EnvStore wraps another Store and checks environment variables first.
type EnvStore struct {
	underlying Store
}

// NewEnvStore creates a new EnvStore wrapping the given store.
func NewEnvStore(underlying Store) *EnvStore {
	return &EnvStore{underlying: underlying}
}

// Get returns the environment override for key if set, otherwise the
// underlying secret.
func (e *EnvStore) Get(service, key string) (string, error) {
	if env, ok := envOverrides[key]; ok {
		if v := os.Getenv(env); v != "" {
			return v, nil
		}
	}
	return e.underlying.Get(service, key)
}

// Set stores a secret in the underlying store.
func (e *EnvStore) Set(service, key, value string) error {
	return e.underlying.Set(service, key, value)
}

// Delete removes a secret from the underlying store.
func (e *EnvStore) Delete(service, key string) error {
	return e.underlying.Delete(service, key)
}

// Lookup returns the secret for key, mapping ErrNotFound to "".
func Lookup(store Store, key string) (string, error) {
	v, err := store.Get(ServiceName, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	return v, err
}
