package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"
)

// AllResources is the wildcard id matching every account or property.
const AllResources = "~all"

// Account is a normalized Analytics account.
type Account struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	UpdatedAt int64  `json:"updated_at"`
	CreatedAt int64  `json:"created_at"`
}

// Property is a normalized web property.
type Property struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AccountID  string `json:"account_id"`
	WebsiteURL string `json:"website_url"`
	UpdatedAt  int64  `json:"updated_at"`
	CreatedAt  int64  `json:"created_at"`
}

// Profile is a normalized view (profile) of a web property.
type Profile struct {
	ID                 string `json:"id"`
	Name               string `json:"name"`
	AccountID          string `json:"account_id"`
	PropertyID         string `json:"property_id"`
	InternalPropertyID string `json:"internal_property_id"`
	UpdatedAt          int64  `json:"updated_at"`
	CreatedAt          int64  `json:"created_at"`
}

type accountItem struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Created string `json:"created"`
	Updated string `json:"updated"`
}

type propertyItem struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	AccountID  string `json:"accountId"`
	WebsiteURL string `json:"websiteUrl"`
	Created    string `json:"created"`
	Updated    string `json:"updated"`
}

type profileItem struct {
	ID                    string `json:"id"`
	Name                  string `json:"name"`
	AccountID             string `json:"accountId"`
	WebPropertyID         string `json:"webPropertyId"`
	InternalWebPropertyID string `json:"internalWebPropertyId"`
	Created               string `json:"created"`
	Updated               string `json:"updated"`
}

type itemsResponse[T any] struct {
	Items []T `json:"items"`
}

// GetAccounts lists the accounts visible to the authenticated user.
func (c *Client) GetAccounts(ctx context.Context) ([]Account, error) {
	var resp itemsResponse[accountItem]
	if err := c.getJSON(ctx, "analytics/v3/management/accounts", nil, &resp); err != nil {
		return nil, err
	}

	accounts := make([]Account, 0, len(resp.Items))
	for _, item := range resp.Items {
		accounts = append(accounts, Account{
			ID:        item.ID,
			Name:      item.Name,
			UpdatedAt: parseTimestamp(item.Updated),
			CreatedAt: parseTimestamp(item.Created),
		})
	}
	return accounts, nil
}

// GetProperties lists the web properties of an account. An empty
// accountID lists the properties of every account.
func (c *Client) GetProperties(ctx context.Context, accountID string) ([]Property, error) {
	path := fmt.Sprintf("analytics/v3/management/accounts/%s/webproperties", pathID(accountID))

	var resp itemsResponse[propertyItem]
	if err := c.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, err
	}

	properties := make([]Property, 0, len(resp.Items))
	for _, item := range resp.Items {
		properties = append(properties, Property{
			ID:         item.ID,
			Name:       item.Name,
			AccountID:  item.AccountID,
			WebsiteURL: item.WebsiteURL,
			UpdatedAt:  parseTimestamp(item.Updated),
			CreatedAt:  parseTimestamp(item.Created),
		})
	}
	return properties, nil
}

// GetProfiles lists the views of a web property. Empty ids match all.
func (c *Client) GetProfiles(ctx context.Context, propertyID, accountID string) ([]Profile, error) {
	path := fmt.Sprintf("analytics/v3/management/accounts/%s/webproperties/%s/profiles",
		pathID(accountID), pathID(propertyID))

	var resp itemsResponse[profileItem]
	if err := c.getJSON(ctx, path, nil, &resp); err != nil {
		return nil, err
	}

	profiles := make([]Profile, 0, len(resp.Items))
	for _, item := range resp.Items {
		profiles = append(profiles, Profile{
			ID:                 item.ID,
			Name:               item.Name,
			AccountID:          item.AccountID,
			PropertyID:         item.WebPropertyID,
			InternalPropertyID: item.InternalWebPropertyID,
			UpdatedAt:          parseTimestamp(item.Updated),
			CreatedAt:          parseTimestamp(item.Created),
		})
	}
	return profiles, nil
}

// getJSON issues a GET and decodes the payload into target. A missing
// payload is reported as an "empty response" APIError.
func (c *Client) getJSON(ctx context.Context, endpoint string, params map[string]string, target any) error {
	payload, err := c.Get(ctx, endpoint, params)
	if err != nil {
		return err
	}

	trimmed := bytes.TrimSpace(payload)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return emptyResponseError()
	}

	if err := json.Unmarshal(trimmed, target); err != nil {
		return &TransportError{Op: "decode response", Err: err}
	}
	return nil
}

func pathID(id string) string {
	if id == "" {
		return AllResources
	}
	return url.PathEscape(id)
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// parseTimestamp converts an API timestamp to Unix seconds. Values that
// cannot be parsed yield 0.
func parseTimestamp(s string) int64 {
	if s == "" {
		return 0
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Unix()
		}
	}
	return 0
}
