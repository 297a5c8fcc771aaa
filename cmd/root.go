package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var Version = "dev"

var (
	// jsonOutput controls whether output is formatted as JSON
	jsonOutput bool

	// verbose enables debug logging to stderr
	verbose bool

	// configFile overrides the default configuration path
	configFile string
)

var rootCmd = &cobra.Command{
	Use:     "gan",
	Short:   "Google Analytics reporting CLI",
	Long:    `A CLI for listing Google Analytics accounts, properties and views, and querying reports.`,
	Version: Version,
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&jsonOutput, "json", "j", false, "Output in JSON format")
	rootCmd.PersistentFlags().BoolVar(&verbose, "verbose", false, "Log API calls to stderr")
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default $XDG_CONFIG_HOME/gan/config.yaml)")
}

// SetVersion sets the version reported by --version.
func SetVersion(v string) {
	Version = v
	rootCmd.Version = v
}

// GetJSONMode returns whether JSON output mode is enabled.
func GetJSONMode() bool {
	return jsonOutput
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
