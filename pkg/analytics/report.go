package analytics

import (
	"context"
	"encoding/json"
	"strings"
	"time"
)

const (
	// ProfilePrefix namespaces profile ids in the reporting API.
	ProfilePrefix = "ga:"

	// DefaultMetrics is requested when the caller sets no metrics.
	DefaultMetrics = "ga:visits"

	// DefaultDimensions is requested when the caller sets no dimensions.
	DefaultDimensions = "ga:day"

	reportDateLayout = "2006-01-02"
)

type reportResponse struct {
	Rows []json.RawMessage `json:"rows"`
}

// GetReport queries the core reporting API for a profile.
//
// Without params the report covers the 31 days ending yesterday with
// ga:visits by ga:day. Caller params replace only the keys they set.
// Rows are returned as sent by the API; a report without rows yields an
// empty slice.
func (c *Client) GetReport(ctx context.Context, profileID string, params map[string]string) ([]json.RawMessage, error) {
	query := c.ReportParams(profileID, params)

	var resp reportResponse
	if err := c.getJSON(ctx, "analytics/v3/data/ga", query, &resp); err != nil {
		return nil, err
	}

	if resp.Rows == nil {
		return []json.RawMessage{}, nil
	}
	return resp.Rows, nil
}

// ReportParams returns the query GetReport would send: computed defaults
// overlaid with params.
func (c *Client) ReportParams(profileID string, params map[string]string) map[string]string {
	if !strings.HasPrefix(profileID, ProfilePrefix) {
		profileID = ProfilePrefix + profileID
	}

	now := c.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	query := map[string]string{
		"ids":        profileID,
		"start-date": today.AddDate(0, 0, -31).Format(reportDateLayout),
		"end-date":   today.AddDate(0, 0, -1).Format(reportDateLayout),
		"metrics":    DefaultMetrics,
		"dimensions": DefaultDimensions,
	}
	for k, v := range params {
		query[k] = v
	}
	return query
}
