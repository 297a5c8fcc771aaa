package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

type reportFlags struct {
	startDate  string
	endDate    string
	metrics    string
	dimensions string
	params     []string
}

// query returns the flag values as report parameters. Unset flags are
// left out so the client defaults apply.
func (f reportFlags) query() (map[string]string, error) {
	query := make(map[string]string)
	for _, p := range f.params {
		k, v, ok := strings.Cut(p, "=")
		if !ok || k == "" {
			return nil, fmt.Errorf("invalid --param %q: expected key=value", p)
		}
		query[k] = v
	}
	for k, v := range map[string]string{
		"start-date": f.startDate,
		"end-date":   f.endDate,
		"metrics":    f.metrics,
		"dimensions": f.dimensions,
	} {
		if v != "" {
			query[k] = v
		}
	}
	return query, nil
}

// newReportCmd creates the report command with the given options.
func newReportCmd(opts *sessionOptions) *cobra.Command {
	var flags reportFlags

	cmd := &cobra.Command{
		Use:   "report [PROFILE_ID]",
		Short: "Query the core reporting API",
		Long: `Query report rows for a view (profile). The view defaults to
default_profile from the config file.

Without flags the report covers the 31 days ending yesterday with
ga:visits by ga:day.

Examples:
  gan report 987654
  gan report --start-date 2024-01-01 --end-date 2024-01-31
  gan report 987654 --metrics ga:sessions,ga:pageviews --dimensions ga:date
  gan report 987654 --param sort=-ga:sessions --param max-results=10`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			profileID := opts.config().DefaultProfile
			if len(args) == 1 {
				profileID = args[0]
			}
			return runReport(cmd, opts, profileID, flags)
		},
	}

	cmd.Flags().StringVar(&flags.startDate, "start-date", "", "First day of the report (YYYY-MM-DD, default 31 days ago)")
	cmd.Flags().StringVar(&flags.endDate, "end-date", "", "Last day of the report (YYYY-MM-DD, default yesterday)")
	cmd.Flags().StringVarP(&flags.metrics, "metrics", "m", "", "Comma separated metrics (default ga:visits)")
	cmd.Flags().StringVarP(&flags.dimensions, "dimensions", "d", "", "Comma separated dimensions (default ga:day)")
	cmd.Flags().StringArrayVar(&flags.params, "param", nil, "Extra query parameter as key=value (repeatable)")
	cmd.SilenceUsage = true

	return cmd
}

func runReport(cmd *cobra.Command, opts *sessionOptions, profileID string, flags reportFlags) error {
	if profileID == "" {
		return fmt.Errorf("no view specified\nPass a PROFILE_ID or set a default with: gan configure --profile PROFILE_ID")
	}

	query, err := flags.query()
	if err != nil {
		return err
	}

	client, err := opts.client()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), apiTimeout)
	defer cancel()

	rows, err := client.GetReport(ctx, profileID, query)
	if err != nil {
		return fmt.Errorf("failed to fetch report: %w", err)
	}

	f := opts.formatter(cmd)
	if f.JSONMode {
		return f.JSON(rows)
	}
	if len(rows) == 0 {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No rows found")
		return nil
	}

	effective := client.ReportParams(profileID, query)
	headers := append(splitList(effective["dimensions"]), splitList(effective["metrics"])...)

	table := make([][]string, 0, len(rows))
	for _, raw := range rows {
		var cells []any
		if err := json.Unmarshal(raw, &cells); err != nil {
			return fmt.Errorf("failed to decode report row: %w", err)
		}
		row := make([]string, len(cells))
		for i, c := range cells {
			row[i] = fmt.Sprint(c)
		}
		table = append(table, row)
	}

	return f.Table(headers, table)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func init() {
	opts := &sessionOptions{}
	cmd := newReportCmd(opts)
	cmd.PreRunE = loadSession(opts)
	rootCmd.AddCommand(cmd)
}
