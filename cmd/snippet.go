package cmd

import (
	"github.com/spf13/cobra"

	"github.com/jonandersen/gan/pkg/analytics"
)

// newSnippetCmd creates the snippet command. It needs no credentials.
func newSnippetCmd(opts *sessionOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "snippet [TRACKING_ID]",
		Short: "Print the page tracking snippet",
		Long: `Print the asynchronous ga.js tracking snippet for a web property.
The tracking ID defaults to tracking_id from the config file.

Examples:
  gan snippet UA-12345678-1
  gan snippet > tracking.html`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			trackingID := opts.config().TrackingID
			if len(args) == 1 {
				trackingID = args[0]
			}

			snippet, err := analytics.TrackingSnippet(trackingID)
			if err != nil {
				return err
			}
			return opts.formatter(cmd).Text("snippet", snippet)
		},
	}
	cmd.SilenceUsage = true
	return cmd
}

func init() {
	opts := &sessionOptions{}
	cmd := newSnippetCmd(opts)
	cmd.PreRunE = loadSession(opts)
	rootCmd.AddCommand(cmd)
}
