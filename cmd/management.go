package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jonandersen/gan/internal/output"
)

const apiTimeout = 60 * time.Second

// newAccountsCmd creates the accounts command with the given options.
func newAccountsCmd(opts *sessionOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "accounts",
		Short: "List Analytics accounts",
		Long: `List the Google Analytics accounts the configured user can access.

Examples:
  gan accounts
  gan accounts --json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccounts(cmd, opts)
		},
	}
	cmd.SilenceUsage = true
	return cmd
}

func runAccounts(cmd *cobra.Command, opts *sessionOptions) error {
	client, err := opts.client()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()

	accounts, err := client.GetAccounts(ctx)
	if err != nil {
		return fmt.Errorf("failed to fetch accounts: %w", err)
	}

	f := opts.formatter(cmd)
	if len(accounts) == 0 && !f.JSONMode {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No accounts found")
		return nil
	}

	rows := make([][]string, 0, len(accounts))
	for _, a := range accounts {
		rows = append(rows, []string{a.ID, a.Name, output.Timestamp(a.CreatedAt), output.Timestamp(a.UpdatedAt)})
	}
	return f.Records([]string{"ID", "Name", "Created", "Updated"}, rows, accounts)
}

// newPropertiesCmd creates the properties command with the given options.
func newPropertiesCmd(opts *sessionOptions) *cobra.Command {
	var accountID string

	cmd := &cobra.Command{
		Use:   "properties",
		Short: "List web properties",
		Long: `List web properties of an account, or of all accounts.

Examples:
  gan properties
  gan properties --account 12345678`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProperties(cmd, opts, accountID)
		},
	}
	cmd.Flags().StringVarP(&accountID, "account", "a", "", "Account ID (default: all accounts)")
	cmd.SilenceUsage = true
	return cmd
}

func runProperties(cmd *cobra.Command, opts *sessionOptions, accountID string) error {
	client, err := opts.client()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()

	properties, err := client.GetProperties(ctx, accountID)
	if err != nil {
		return fmt.Errorf("failed to fetch properties: %w", err)
	}

	f := opts.formatter(cmd)
	if len(properties) == 0 && !f.JSONMode {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No properties found")
		return nil
	}

	rows := make([][]string, 0, len(properties))
	for _, p := range properties {
		rows = append(rows, []string{p.ID, p.Name, p.AccountID, p.WebsiteURL, output.Timestamp(p.UpdatedAt)})
	}
	return f.Records([]string{"ID", "Name", "Account", "Website", "Updated"}, rows, properties)
}

// newProfilesCmd creates the profiles command with the given options.
func newProfilesCmd(opts *sessionOptions) *cobra.Command {
	var propertyID, accountID string

	cmd := &cobra.Command{
		Use:     "profiles",
		Aliases: []string{"views"},
		Short:   "List views (profiles)",
		Long: `List the views (profiles) of a web property. Without flags all views
of all properties are listed. The ID column is what "gan report" expects.

Examples:
  gan profiles
  gan profiles --property UA-12345678-1
  gan profiles --property UA-12345678-1 --account 12345678`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runProfiles(cmd, opts, propertyID, accountID)
		},
	}
	cmd.Flags().StringVarP(&propertyID, "property", "p", "", "Web property ID (default: all properties)")
	cmd.Flags().StringVarP(&accountID, "account", "a", "", "Account ID (default: all accounts)")
	cmd.SilenceUsage = true
	return cmd
}

func runProfiles(cmd *cobra.Command, opts *sessionOptions, propertyID, accountID string) error {
	client, err := opts.client()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()

	profiles, err := client.GetProfiles(ctx, propertyID, accountID)
	if err != nil {
		return fmt.Errorf("failed to fetch profiles: %w", err)
	}

	f := opts.formatter(cmd)
	if len(profiles) == 0 && !f.JSONMode {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No profiles found")
		return nil
	}

	rows := make([][]string, 0, len(profiles))
	for _, p := range profiles {
		rows = append(rows, []string{p.ID, p.Name, p.PropertyID, p.AccountID, output.Timestamp(p.UpdatedAt)})
	}
	return f.Records([]string{"ID", "Name", "Property", "Account", "Updated"}, rows, profiles)
}

func init() {
	for _, newCmd := range []func(*sessionOptions) *cobra.Command{
		newAccountsCmd,
		newPropertiesCmd,
		newProfilesCmd,
	} {
		opts := &sessionOptions{}
		c := newCmd(opts)
		c.PreRunE = loadSession(opts)
		rootCmd.AddCommand(c)
	}
}
