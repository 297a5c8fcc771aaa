// Package config loads and saves the gan CLI configuration file.
package config

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultAPIBaseURL is the Google APIs root.
	DefaultAPIBaseURL = "https://www.googleapis.com/"

	// DefaultTokenURL is Google's OAuth2 token endpoint.
	DefaultTokenURL = "https://oauth2.googleapis.com/token"

	// DefaultRequestsPerSecond matches the per-user Analytics API quota.
	DefaultRequestsPerSecond = 10.0

	// DefaultLogFormat is used for --verbose output.
	DefaultLogFormat = "text"
)

// Config holds the CLI configuration. Secrets are kept in the keyring.
type Config struct {
	ClientID          string  `yaml:"client_id"`
	APIBaseURL        string  `yaml:"api_base_url"`
	TokenURL          string  `yaml:"token_url"`
	DefaultProfile    string  `yaml:"default_profile"`
	TrackingID        string  `yaml:"tracking_id"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	LogFormat         string  `yaml:"log_format"`
}

// DefaultConfig returns a configuration populated with defaults.
func DefaultConfig() *Config {
	return &Config{
		APIBaseURL:        DefaultAPIBaseURL,
		TokenURL:          DefaultTokenURL,
		RequestsPerSecond: DefaultRequestsPerSecond,
		LogFormat:         DefaultLogFormat,
	}
}

// Load reads the configuration at path. A missing file yields the
// defaults; fields absent from the file keep their default values.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return nil, err
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.TokenURL == "" {
		cfg.TokenURL = DefaultTokenURL
	}
	if cfg.LogFormat == "" {
		cfg.LogFormat = DefaultLogFormat
	}
	return cfg, nil
}

// Save writes cfg to path with 0600 permissions, creating parent
// directories with 0700.
func Save(path string, cfg *Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0600)
}

// ConfigDir returns the gan configuration directory.
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config/gan.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "gan")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "gan")
}

// ConfigPath returns the path to the configuration file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.yaml")
}
