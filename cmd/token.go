package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonandersen/gan/internal/auth"
	"github.com/jonandersen/gan/internal/output"
	"github.com/jonandersen/gan/pkg/analytics"
)

// tokenOptions holds the dependencies of the token subcommands.
type tokenOptions struct {
	sessionOptions
	cachePath string
}

type tokenStatus struct {
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
	Valid       bool   `json:"valid"`
}

func newTokenCmd(opts *tokenOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Manage the cached access token",
	}
	cmd.AddCommand(newTokenRefreshCmd(opts))
	cmd.AddCommand(newTokenShowCmd(opts))
	return cmd
}

func newTokenRefreshCmd(opts *tokenOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Exchange the refresh token for a new access token",
		Long: `Exchange the stored refresh token for a new access token and write it
to the token cache. Commands do this on their own when the API rejects the
cached token; use this to check the stored credentials.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenRefresh(cmd, opts)
		},
	}
	cmd.SilenceUsage = true
	return cmd
}

func runTokenRefresh(cmd *cobra.Command, opts *tokenOptions) error {
	client, err := opts.client()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	_, err = client.Refresh(ctx, func(_ context.Context, c *analytics.Client) error {
		status := tokenStatus{AccessToken: maskToken(c.AccessToken()), Valid: true}
		if exp := c.Expires(); !exp.IsZero() {
			status.ExpiresAt = exp.Unix()
		}
		f := opts.formatter(cmd)
		if f.JSONMode {
			return f.JSON(status)
		}
		_, err := fmt.Fprintf(cmd.OutOrStdout(), "Access token refreshed (expires %s)\n", output.Timestamp(status.ExpiresAt))
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to refresh token: %w", err)
	}
	return nil
}

func newTokenShowCmd(opts *tokenOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the cached access token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTokenShow(cmd, opts)
		},
	}
	cmd.SilenceUsage = true
	return cmd
}

func runTokenShow(cmd *cobra.Command, opts *tokenOptions) error {
	cached, err := auth.LoadToken(opts.cachePath)
	if errors.Is(err, os.ErrNotExist) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No cached access token. Run: gan token refresh")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read token cache: %w", err)
	}

	status := tokenStatus{
		AccessToken: maskToken(cached.AccessToken),
		ExpiresAt:   cached.ExpiresAt,
		Valid:       cached.IsValid(),
	}

	valid := "no"
	if status.Valid {
		valid = "yes"
	}
	return opts.formatter(cmd).Records([]string{"Access Token", "Expires", "Valid"},
		[][]string{{status.AccessToken, output.Timestamp(status.ExpiresAt), valid}}, status)
}

// maskToken keeps the first and last four characters of a token.
func maskToken(token string) string {
	if len(token) <= 12 {
		return "****"
	}
	return token[:4] + "..." + token[len(token)-4:]
}

func init() {
	opts := &tokenOptions{cachePath: auth.TokenCachePath()}
	cmd := newTokenCmd(opts)
	cmd.PersistentPreRunE = loadSession(&opts.sessionOptions)
	rootCmd.AddCommand(cmd)
}
