package cmd

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/jonandersen/gan/internal/auth"
	"github.com/jonandersen/gan/internal/config"
	"github.com/jonandersen/gan/internal/keyring"
	"github.com/jonandersen/gan/pkg/analytics"
)

// passwordReader abstracts terminal password input for testing.
type passwordReader interface {
	ReadPassword() (string, error)
	IsTerminal() bool
}

// terminalReader reads passwords from the terminal using golang.org/x/term.
type terminalReader struct {
	fd int
}

func newTerminalReader(fd int) *terminalReader {
	return &terminalReader{fd: fd}
}

func (r *terminalReader) ReadPassword() (string, error) {
	password, err := term.ReadPassword(r.fd)
	if err != nil {
		return "", err
	}
	return string(password), nil
}

func (r *terminalReader) IsTerminal() bool {
	return term.IsTerminal(r.fd)
}

// prompter abstracts interactive menu selection for testing.
type prompter interface {
	SelectOption(options []string) (int, error)
	ReadLine(prompt string) (string, error)
}

// terminalPrompter implements prompter on top of a shared line scanner.
type terminalPrompter struct {
	scanner *bufio.Scanner
	writer  io.Writer
}

func newTerminalPrompter(r io.Reader, w io.Writer) *terminalPrompter {
	return &terminalPrompter{scanner: bufio.NewScanner(r), writer: w}
}

func (p *terminalPrompter) SelectOption(options []string) (int, error) {
	for {
		if !p.scanner.Scan() {
			if err := p.scanner.Err(); err != nil {
				return 0, err
			}
			return 0, errors.New("no input")
		}
		idx, err := strconv.Atoi(strings.TrimSpace(p.scanner.Text()))
		if err != nil || idx < 1 || idx > len(options) {
			_, _ = fmt.Fprintf(p.writer, "Please enter a number between 1 and %d: ", len(options))
			continue
		}
		return idx - 1, nil
	}
}

func (p *terminalPrompter) ReadLine(prompt string) (string, error) {
	_, _ = fmt.Fprint(p.writer, prompt)
	if !p.scanner.Scan() {
		return "", p.scanner.Err()
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}

// configureOptions holds dependencies for the configure command.
type configureOptions struct {
	configPath     string
	cachePath      string
	store          keyring.Store
	passwordReader passwordReader
	prompt         prompter
}

func (o *configureOptions) path() string {
	if o.configPath != "" {
		return o.configPath
	}
	return configPath()
}

// loadConfig returns the saved configuration, or defaults if it cannot be read.
func (o *configureOptions) loadConfig() *config.Config {
	cfg, err := config.Load(o.path())
	if err != nil {
		return config.DefaultConfig()
	}
	return cfg
}

type configureFlags struct {
	clientID   string
	profile    string
	trackingID string
}

// newConfigureCmd creates the configure command with the given options.
func newConfigureCmd(opts *configureOptions) *cobra.Command {
	var flags configureFlags

	cmd := &cobra.Command{
		Use:   "configure",
		Short: "Configure OAuth2 credentials",
		Long: `Configure the CLI with an OAuth2 client and refresh token for the
Google Analytics API.

The client secret and refresh token are entered without echo and stored in
the system keyring. The client ID and defaults are saved to the config file.

Examples:
  gan configure
  gan configure --client-id 1234.apps.googleusercontent.com --profile 987654`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runConfigure(cmd, opts, flags)
		},
	}

	cmd.Flags().StringVar(&flags.clientID, "client-id", "", "OAuth2 client ID")
	cmd.Flags().StringVar(&flags.profile, "profile", "", "Default view (profile) ID for reports")
	cmd.Flags().StringVar(&flags.trackingID, "tracking-id", "", "Default tracking ID for snippets (UA-XXXXX-X)")
	cmd.SilenceUsage = true

	return cmd
}

var reconfigureMenuOptions = []string{
	"Select different default view",
	"Configure new credentials",
	"View current configuration",
	"Clear credentials",
}

func runConfigure(cmd *cobra.Command, opts *configureOptions, flags configureFlags) error {
	if !opts.passwordReader.IsTerminal() {
		return fmt.Errorf("configure requires an interactive terminal\nRun this command directly in your terminal (not piped or in a script)")
	}

	refreshToken, err := keyring.Lookup(opts.store, keyring.KeyRefreshToken)
	if err != nil {
		return fmt.Errorf("failed to read keyring: %w", err)
	}

	if refreshToken != "" {
		return runReconfigureMenu(cmd, opts, flags)
	}
	return runInitialSetup(cmd, opts, flags)
}

func runReconfigureMenu(cmd *cobra.Command, opts *configureOptions, flags configureFlags) error {
	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out, "CLI is already configured. What would you like to do?")
	_, _ = fmt.Fprintln(out)
	for i, opt := range reconfigureMenuOptions {
		_, _ = fmt.Fprintf(out, "  %d. %s\n", i+1, opt)
	}
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprint(out, "Select option: ")

	choice, err := opts.prompt.SelectOption(reconfigureMenuOptions)
	if err != nil {
		return fmt.Errorf("failed to read selection: %w", err)
	}

	switch choice {
	case 0:
		return runSelectProfile(cmd, opts)
	case 1:
		return runInitialSetup(cmd, opts, flags)
	case 2:
		return runViewConfiguration(cmd, opts)
	case 3:
		return runClearCredentials(cmd, opts)
	default:
		return fmt.Errorf("invalid selection")
	}
}

// runInitialSetup prompts for credentials, validates them with a token
// refresh and stores them.
func runInitialSetup(cmd *cobra.Command, opts *configureOptions, flags configureFlags) error {
	out := cmd.OutOrStdout()
	cfg := opts.loadConfig()

	clientID := flags.clientID
	if clientID == "" {
		line, err := opts.prompt.ReadLine("Enter your OAuth2 client ID: ")
		if err != nil {
			return fmt.Errorf("failed to read client ID: %w", err)
		}
		clientID = line
	}
	if clientID == "" {
		return fmt.Errorf("client ID cannot be empty")
	}

	clientSecret, err := readSecret(cmd, opts, "client secret")
	if err != nil {
		return err
	}
	refreshToken, err := readSecret(cmd, opts, "refresh token")
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	client := analytics.NewClient(analytics.Config{
		Tokens:        &analytics.Tokens{RefreshToken: refreshToken},
		Client:        &analytics.ClientCredentials{ID: clientID, Secret: clientSecret},
		OnTokenUpdate: auth.PersistTo(opts.cachePath, nil),
	}).
		WithBaseURL(cfg.APIBaseURL).
		WithExchanger(analytics.NewOAuth2Exchanger(cfg.TokenURL))

	if _, err := client.Refresh(ctx, nil); err != nil {
		return fmt.Errorf("failed to validate credentials: %w", err)
	}

	if err := opts.store.Set(keyring.ServiceName, keyring.KeyClientSecret, clientSecret); err != nil {
		return fmt.Errorf("failed to store client secret in keyring: %w", err)
	}
	if err := opts.store.Set(keyring.ServiceName, keyring.KeyRefreshToken, refreshToken); err != nil {
		return fmt.Errorf("failed to store refresh token in keyring: %w", err)
	}

	cfg.ClientID = clientID
	if flags.trackingID != "" {
		cfg.TrackingID = flags.trackingID
	}
	if flags.profile != "" {
		cfg.DefaultProfile = flags.profile
	} else {
		selected, err := promptProfileSelection(cmd, opts, client)
		if err != nil {
			// Non-fatal: the default view can be chosen later.
			_, _ = fmt.Fprintf(out, "Note: Could not fetch views: %v\n", err)
		} else if selected != "" {
			cfg.DefaultProfile = selected
		}
	}

	if err := config.Save(opts.path(), cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	_, _ = fmt.Fprintln(out, "Configuration saved successfully!")
	return nil
}

func readSecret(cmd *cobra.Command, opts *configureOptions, name string) (string, error) {
	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Enter your %s: ", name)
	value, err := opts.passwordReader.ReadPassword()
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", name, err)
	}
	_, _ = fmt.Fprintln(cmd.OutOrStdout())

	if value == "" {
		return "", fmt.Errorf("%s cannot be empty", name)
	}
	return value, nil
}

// promptProfileSelection lists all views and returns the chosen ID, or ""
// when the user skips or there is nothing to choose from.
func promptProfileSelection(cmd *cobra.Command, opts *configureOptions, client *analytics.Client) (string, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	profiles, err := client.GetProfiles(ctx, "", "")
	if err != nil {
		return "", err
	}
	if len(profiles) == 0 {
		return "", nil
	}

	out := cmd.OutOrStdout()
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Select a default view:")

	options := make([]string, 0, len(profiles)+1)
	for i, p := range profiles {
		text := fmt.Sprintf("%s %s (%s)", p.ID, p.Name, p.PropertyID)
		options = append(options, text)
		_, _ = fmt.Fprintf(out, "  %d. %s\n", i+1, text)
	}
	options = append(options, "Skip")
	_, _ = fmt.Fprintf(out, "  %d. Skip\n", len(profiles)+1)
	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprint(out, "Select view: ")

	choice, err := opts.prompt.SelectOption(options)
	if err != nil {
		return "", err
	}
	if choice >= len(profiles) {
		return "", nil
	}
	return profiles[choice].ID, nil
}

func runSelectProfile(cmd *cobra.Command, opts *configureOptions) error {
	cfg := opts.loadConfig()

	client, err := auth.NewSession(auth.SessionOptions{
		Config:    cfg,
		Store:     opts.store,
		CachePath: opts.cachePath,
	})
	if err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	selected, err := promptProfileSelection(cmd, opts, client)
	if err != nil {
		return fmt.Errorf("failed to select view: %w", err)
	}
	if selected == "" {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No view selected.")
		return nil
	}

	cfg.DefaultProfile = selected
	if err := config.Save(opts.path(), cfg); err != nil {
		return fmt.Errorf("failed to save configuration: %w", err)
	}

	_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Default view set to: %s\n", selected)
	return nil
}

func runViewConfiguration(cmd *cobra.Command, opts *configureOptions) error {
	cfg := opts.loadConfig()
	out := cmd.OutOrStdout()

	_, _ = fmt.Fprintln(out)
	_, _ = fmt.Fprintln(out, "Current Configuration:")
	_, _ = fmt.Fprintln(out, "----------------------")

	_, _ = fmt.Fprintf(out, "Client ID: %s\n", orNotSet(cfg.ClientID))
	_, _ = fmt.Fprintf(out, "Client secret: %s\n", configuredState(opts.store, keyring.KeyClientSecret))
	_, _ = fmt.Fprintf(out, "Refresh token: %s\n", configuredState(opts.store, keyring.KeyRefreshToken))
	_, _ = fmt.Fprintf(out, "Default view: %s\n", orNotSet(cfg.DefaultProfile))
	_, _ = fmt.Fprintf(out, "Tracking ID: %s\n", orNotSet(cfg.TrackingID))
	_, _ = fmt.Fprintf(out, "API base URL: %s\n", cfg.APIBaseURL)
	_, _ = fmt.Fprintf(out, "Token URL: %s\n", cfg.TokenURL)
	_, _ = fmt.Fprintf(out, "Requests per second: %g\n", cfg.RequestsPerSecond)

	return nil
}

func configuredState(store keyring.Store, key string) string {
	if v, err := keyring.Lookup(store, key); err == nil && v != "" {
		return "Configured"
	}
	return "Not configured"
}

func orNotSet(s string) string {
	if s == "" {
		return "Not set"
	}
	return s
}

// runClearCredentials removes the keyring secrets and the token cache.
func runClearCredentials(cmd *cobra.Command, opts *configureOptions) error {
	for _, key := range []string{keyring.KeyClientSecret, keyring.KeyRefreshToken} {
		if err := opts.store.Delete(keyring.ServiceName, key); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to clear %s: %w", key, err)
		}
	}
	if err := auth.DeleteToken(opts.cachePath); err != nil {
		return fmt.Errorf("failed to remove token cache: %w", err)
	}

	_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Credentials cleared successfully.")
	return nil
}

func init() {
	rootCmd.AddCommand(newConfigureCmd(&configureOptions{
		cachePath:      auth.TokenCachePath(),
		store:          keyring.NewEnvStore(keyring.NewSystemStore()),
		passwordReader: newTerminalReader(int(os.Stdin.Fd())),
		prompt:         newTerminalPrompter(os.Stdin, os.Stdout),
	}))
}
