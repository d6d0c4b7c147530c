// CLAUDE:SUMMARY One method per backend endpoint: requests, trackings, history, quota and the public portal.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/hazyhaar/jurimon/horosafe"
)

// SearchBody is the search part of a create-request body.
type SearchBody struct {
	SearchType   string         `json:"search_type"`
	SearchKey    string         `json:"search_key"`
	SearchParams map[string]any `json:"search_params"`
	ResponseType string         `json:"response_type,omitempty"`
	OnDemand     *bool          `json:"on_demand,omitempty"`
}

// CreateRequestBody is POST /judit/requests.
type CreateRequestBody struct {
	Search  SearchBody `json:"search"`
	JuditIA []string   `json:"judit_ia,omitempty"`
}

// CreateRequestResponse carries either the saved request or nothing, in
// which case the caller re-fetches the list.
type CreateRequestResponse struct {
	Saved     json.RawMessage `json:"saved,omitempty"`
	Responses json.RawMessage `json:"responses,omitempty"`
}

// TrackingBody is POST /judit/trackings.
type TrackingBody struct {
	Search             SearchBody `json:"search"`
	Recurrence         int        `json:"recurrence"`
	NotificationEmails []string   `json:"notification_emails,omitempty"`
	StepTerms          []string   `json:"step_terms,omitempty"`
	WithAttachments    bool       `json:"with_attachments"`
	HourRange          int        `json:"hour_range"`
}

// Quota is GET /publications/external/judit/quota.
type Quota struct {
	Usage struct {
		Used int `json:"used"`
	} `json:"usage"`
	Plan struct {
		MaxQueries int `json:"maxQueries"`
	} `json:"plan"`
	Blocked bool `json:"blocked"`
}

// PublicLookupBody is POST /publications/external/judit-public.
type PublicLookupBody struct {
	SearchType string `json:"search_type"`
	SearchKey  string `json:"search_key"`
}

func pathID(op, id string) (string, error) {
	if err := horosafe.ValidateIdentifier(id); err != nil {
		return "", fmt.Errorf("client: %s: %w: %v", op, ErrInvalidID, err)
	}
	return url.PathEscape(id), nil
}

// CreateRequest issues a one-shot or on-demand query.
func (c *Client) CreateRequest(ctx context.Context, body CreateRequestBody) (*CreateRequestResponse, error) {
	if body.Search.SearchParams == nil {
		body.Search.SearchParams = map[string]any{}
	}
	raw, err := c.do(ctx, "create_request", http.MethodPost, "/judit/requests", body)
	if err != nil {
		return nil, err
	}
	var out CreateRequestResponse
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &out); err != nil {
			// A bare request object is the saved record.
			out.Saved = raw
		}
	}
	return &out, nil
}

// ListRequests returns the tenant's requests.
func (c *Client) ListRequests(ctx context.Context) (json.RawMessage, error) {
	return c.do(ctx, "list_requests", http.MethodGet, "/judit/requests", nil)
}

// GetRequest returns one request with its result.
func (c *Client) GetRequest(ctx context.Context, id string) (json.RawMessage, error) {
	p, err := pathID("get_request", id)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, "get_request", http.MethodGet, "/judit/requests/"+p, nil)
}

// RefreshRequest re-executes a request server side.
func (c *Client) RefreshRequest(ctx context.Context, id string) (json.RawMessage, error) {
	p, err := pathID("refresh_request", id)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, "refresh_request", http.MethodPost, "/judit/requests/"+p+"/refresh", nil)
}

// CreateTracking registers a recurring tracking.
func (c *Client) CreateTracking(ctx context.Context, body TrackingBody) (json.RawMessage, error) {
	if body.Search.SearchParams == nil {
		body.Search.SearchParams = map[string]any{}
	}
	return c.do(ctx, "create_tracking", http.MethodPost, "/judit/trackings", body)
}

// ListTrackings returns all trackings; forceSync asks the backend to pull
// fresh statuses from the provider first.
func (c *Client) ListTrackings(ctx context.Context, forceSync bool) (json.RawMessage, error) {
	path := "/judit/trackings"
	if forceSync {
		path += "?forceSync=true"
	}
	return c.do(ctx, "list_trackings", http.MethodGet, path, nil)
}

// PauseTracking pauses a tracking.
func (c *Client) PauseTracking(ctx context.Context, id string) (json.RawMessage, error) {
	return c.trackingAction(ctx, "pause_tracking", id, "/pause")
}

// ResumeTracking resumes a paused tracking.
func (c *Client) ResumeTracking(ctx context.Context, id string) (json.RawMessage, error) {
	return c.trackingAction(ctx, "resume_tracking", id, "/resume")
}

func (c *Client) trackingAction(ctx context.Context, op, id, suffix string) (json.RawMessage, error) {
	p, err := pathID(op, id)
	if err != nil {
		return nil, err
	}
	return c.do(ctx, op, http.MethodPost, "/judit/trackings/"+p+suffix, nil)
}

// DeleteTracking deletes a tracking.
func (c *Client) DeleteTracking(ctx context.Context, id string) error {
	p, err := pathID("delete_tracking", id)
	if err != nil {
		return err
	}
	_, err = c.do(ctx, "delete_tracking", http.MethodDelete, "/judit/trackings/"+p, nil)
	return err
}

// TrackingHistory fetches one history page.
func (c *Client) TrackingHistory(ctx context.Context, id string, page, pageSize int, forceSync bool) (json.RawMessage, error) {
	op := "tracking_history"
	if forceSync {
		op = "tracking_history_force"
	}
	p, err := pathID(op, id)
	if err != nil {
		return nil, err
	}
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	if forceSync {
		q.Set("forceSync", "true")
	}
	return c.do(ctx, op, http.MethodGet, "/judit/trackings/"+p+"/history?"+q.Encode(), nil)
}

// Quota returns the tenant usage snapshot.
func (c *Client) Quota(ctx context.Context) (*Quota, error) {
	raw, err := c.do(ctx, "quota", http.MethodGet, "/publications/external/judit/quota", nil)
	if err != nil {
		return nil, err
	}
	var q Quota
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("client: quota: decode: %w", err)
		}
	}
	return &q, nil
}

// PublicLookup is the unauthenticated client-portal query.
func (c *Client) PublicLookup(ctx context.Context, body PublicLookupBody) (json.RawMessage, error) {
	return c.do(ctx, "public_lookup", http.MethodPost, "/publications/external/judit-public", body)
}

// PublicHistory is the client-portal history lookup.
func (c *Client) PublicHistory(ctx context.Context, searchType, searchKey string, page, pageSize int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("search_type", searchType)
	q.Set("search_key", searchKey)
	q.Set("page", strconv.Itoa(page))
	q.Set("page_size", strconv.Itoa(pageSize))
	return c.do(ctx, "public_history", http.MethodGet, "/publications/external/judit-public/history?"+q.Encode(), nil)
}
