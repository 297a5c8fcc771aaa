package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/jonandersen/gan/internal/auth"
	"github.com/jonandersen/gan/internal/config"
	"github.com/jonandersen/gan/internal/keyring"
	"github.com/jonandersen/gan/internal/logging"
	"github.com/jonandersen/gan/internal/output"
	"github.com/jonandersen/gan/pkg/analytics"
)

// sessionOptions holds the dependencies shared by commands that talk to
// the Analytics API. Tests fill it directly; production commands fill it
// in PreRunE through loadSession.
type sessionOptions struct {
	cfg       *config.Config
	newClient func() (*analytics.Client, error)
	jsonMode  bool
}

func (o *sessionOptions) formatter(cmd *cobra.Command) *output.Formatter {
	return output.New(cmd.OutOrStdout(), o.jsonMode)
}

func (o *sessionOptions) config() *config.Config {
	if o.cfg == nil {
		return config.DefaultConfig()
	}
	return o.cfg
}

func (o *sessionOptions) client() (*analytics.Client, error) {
	if o.newClient == nil {
		return nil, auth.ErrNotConfigured
	}
	return o.newClient()
}

// configPath returns the --config value or the default location.
func configPath() string {
	if configFile != "" {
		return configFile
	}
	return config.ConfigPath()
}

// newLogger returns a debug logger on stderr with --verbose, otherwise a
// logger that only reports warnings.
func newLogger(cmd *cobra.Command, cfg *config.Config) *slog.Logger {
	level := "warn"
	if verbose {
		level = "debug"
	}
	return logging.New(logging.Options{
		Level:  level,
		Format: cfg.LogFormat,
		Writer: cmd.ErrOrStderr(),
	})
}

// loadSession returns a PreRunE that populates opts with production
// dependencies: the config file, the system keyring and the token cache.
func loadSession(opts *sessionOptions) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(configPath())
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		logger := newLogger(cmd, cfg)
		opts.cfg = cfg
		opts.jsonMode = GetJSONMode()
		opts.newClient = func() (*analytics.Client, error) {
			return auth.NewSession(auth.SessionOptions{
				Config:    cfg,
				Store:     keyring.NewEnvStore(keyring.NewSystemStore()),
				CachePath: auth.TokenCachePath(),
				Logger:    logger,
			})
		}
		return nil
	}
}
