// CLAUDE:SUMMARY Maps backend request/tracking records (any key casing, optional wrappers) onto cache rows, and rows onto public types.
package judit

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/hazyhaar/jurimon/judit/internal/normalize"
	"github.com/hazyhaar/jurimon/judit/internal/store"
)

var (
	requestIDKeys    = normalize.Aliases{"request_id", "requestId", "id"}
	trackingIDKeys   = normalize.Aliases{"tracking_id", "trackingId", "id"}
	searchTypeKeys   = normalize.Aliases{"search_type", "searchType"}
	searchValueKeys  = normalize.Aliases{"search_key", "searchKey"}
	createdKeys      = normalize.Aliases{"created_at", "createdAt"}
	updatedKeys      = normalize.Aliases{"updated_at", "updatedAt"}
	webhookKeys      = normalize.Aliases{"last_webhook_received_at", "lastWebhookReceivedAt"}
	resultKeys       = normalize.Aliases{"result", "responses"}
	requestListKeys  = normalize.Aliases{"requests", "data", "items", "page_data"}
	trackingListKeys = normalize.Aliases{"trackings", "data", "items", "page_data"}
)

func decodeObject(raw json.RawMessage) map[string]any {
	var m map[string]any
	if json.Unmarshal(raw, &m) != nil {
		return nil
	}
	// {"data": {...}} and {"saved": {...}} wrappers around a single record.
	for _, k := range []string{"data", "saved", "request", "tracking"} {
		if inner, ok := m[k].(map[string]any); ok && len(m) == 1 {
			return inner
		}
	}
	return m
}

func decodeList(raw json.RawMessage, keys normalize.Aliases) []map[string]any {
	var v any
	if json.Unmarshal(raw, &v) != nil {
		return nil
	}
	var items []any
	switch x := v.(type) {
	case []any:
		items = x
	case map[string]any:
		items = keys.Slice(x)
	}
	out := make([]map[string]any, 0, len(items))
	for _, it := range items {
		if m, ok := it.(map[string]any); ok {
			out = append(out, m)
		}
	}
	return out
}

// searchOf reads the search object, falling back to flat keys.
func searchOf(m map[string]any) (map[string]any, SearchKey) {
	s, _ := m["search"].(map[string]any)
	if s == nil {
		s = m
	}
	return s, SearchKey{
		Type:  SearchType(strings.ToLower(searchTypeKeys.String(s))),
		Value: searchValueKeys.String(s),
	}
}

func requestRowFrom(m map[string]any) *store.RequestRow {
	id := requestIDKeys.String(m)
	if id == "" {
		return nil
	}
	s, key := searchOf(m)
	r := &store.RequestRow{
		RequestID:    id,
		SearchType:   string(key.Type),
		SearchKey:    key.Value,
		ResponseType: normalize.ResponseTypeKeys.String(s),
		Status:       strings.ToLower(normalize.StatusKeys.String(m)),
		OnDemand:     boolOf(s["on_demand"]) || boolOf(m["on_demand"]),
		CreatedAt:    millisOf(m, createdKeys),
		UpdatedAt:    millisOf(m, updatedKeys),
	}
	if r.ResponseType == "" {
		r.ResponseType = normalize.ResponseTypeKeys.String(m)
	}
	if ia, ok := m["judit_ia"].([]any); ok {
		for _, v := range ia {
			if s, _ := v.(string); s == "summary" {
				r.AISummary = true
			}
		}
	}
	if v, ok := resultKeys.Value(m); ok {
		if b, err := json.Marshal(v); err == nil {
			r.ResultJSON = string(b)
		}
	} else if normalize.PageDataKeys.Slice(m) != nil {
		if b, err := json.Marshal(m); err == nil {
			r.ResultJSON = string(b)
		}
	}
	return r
}

func trackingRowFrom(m map[string]any) *store.TrackingRow {
	id := trackingIDKeys.String(m)
	if id == "" {
		return nil
	}
	_, key := searchOf(m)
	t := &store.TrackingRow{
		TrackingID:         id,
		SearchType:         string(key.Type),
		SearchKey:          key.Value,
		Recurrence:         intOf(m["recurrence"]),
		Status:             strings.ToLower(normalize.StatusKeys.String(m)),
		NotificationEmails: listOf(m["notification_emails"]),
		StepTerms:          listOf(m["step_terms"]),
		WithAttachments:    boolOf(m["with_attachments"]),
		HourRange:          intOf(m["hour_range"]),
		CreatedAt:          millisOf(m, createdKeys),
		UpdatedAt:          millisOf(m, updatedKeys),
	}
	if ms := millisOf(m, webhookKeys); ms != 0 {
		t.LastWebhookReceivedAt = &ms
	}
	return t
}

func millisOf(m map[string]any, keys normalize.Aliases) int64 {
	v, ok := keys.Value(m)
	if !ok {
		return 0
	}
	t, ok := normalize.ParseDate(v)
	if !ok {
		return 0
	}
	return t.UnixMilli()
}

func intOf(v any) int {
	switch x := v.(type) {
	case float64:
		return int(x)
	case string:
		n, _ := strconv.Atoi(strings.TrimSpace(x))
		return n
	}
	return 0
}

func boolOf(v any) bool {
	switch x := v.(type) {
	case bool:
		return x
	case string:
		b, _ := strconv.ParseBool(x)
		return b
	case float64:
		return x != 0
	}
	return false
}

// listOf accepts an array of strings or a comma-separated string.
func listOf(v any) []string {
	switch x := v.(type) {
	case []any:
		var out []string
		for _, it := range x {
			if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
				out = append(out, strings.TrimSpace(s))
			}
		}
		return out
	case string:
		return SplitList(x)
	}
	return nil
}

func requestFromRow(r *store.RequestRow) *Request {
	req := &Request{
		RequestID:    r.RequestID,
		Search:       SearchKey{Type: SearchType(r.SearchType), Value: r.SearchKey},
		ResponseType: r.ResponseType,
		Status:       r.Status,
		OnDemand:     r.OnDemand,
		AISummary:    r.AISummary,
		CreatedAt:    fromMillis(r.CreatedAt),
		UpdatedAt:    fromMillis(r.UpdatedAt),
	}
	if r.ResultJSON != "" {
		res := normalize.ParseRequestResult(json.RawMessage(r.ResultJSON))
		req.Result = &res
	}
	return req
}

func trackingFromRow(r *store.TrackingRow) *Tracking {
	t := &Tracking{
		TrackingID:         r.TrackingID,
		Search:             SearchKey{Type: SearchType(r.SearchType), Value: r.SearchKey},
		Recurrence:         r.Recurrence,
		Status:             r.Status,
		NotificationEmails: r.NotificationEmails,
		StepTerms:          r.StepTerms,
		WithAttachments:    r.WithAttachments,
		HourRange:          r.HourRange,
		CreatedAt:          fromMillis(r.CreatedAt),
		UpdatedAt:          fromMillis(r.UpdatedAt),
	}
	if t.NotificationEmails == nil {
		t.NotificationEmails = []string{}
	}
	if t.StepTerms == nil {
		t.StepTerms = []string{}
	}
	if r.LastWebhookReceivedAt != nil {
		at := fromMillis(*r.LastWebhookReceivedAt)
		t.LastWebhookReceivedAt = &at
	}
	return t
}

func timePtr(ms *int64) *time.Time {
	if ms == nil {
		return nil
	}
	t := fromMillis(*ms)
	return &t
}
