// CLAUDE:SUMMARY Public types of the judit service: search keys, requests, trackings, history pages, publications, quota and dashboard views.
package judit

import (
	"encoding/json"
	"time"

	"github.com/hazyhaar/jurimon/judit/internal/normalize"
)

// SearchType is the kind of identifier a search runs on.
type SearchType string

const (
	SearchCPF        SearchType = "cpf"
	SearchCNPJ       SearchType = "cnpj"
	SearchOAB        SearchType = "oab"
	SearchName       SearchType = "name"
	SearchLawsuitCNJ SearchType = "lawsuit_cnj"
	SearchLawsuitID  SearchType = "lawsuit_id"
)

// SearchKey identifies what a request or tracking searches for. Build it
// with NormalizeSearchKey.
type SearchKey struct {
	Type  SearchType `json:"type"`
	Value string     `json:"value"`
}

// Normalized output, re-exported for callers outside the module tree.
type (
	Timeline         = normalize.Timeline
	Event            = normalize.Event
	LastUpdate       = normalize.LastUpdate
	Process          = normalize.Process
	RequestResult    = normalize.RequestResult
	ResponseItem     = normalize.ResponseItem
	NormalizedResult = normalize.Result
)

// Request is a one-shot or on-demand query.
type Request struct {
	RequestID    string         `json:"request_id"`
	Search       SearchKey      `json:"search"`
	ResponseType string         `json:"response_type"`
	Status       string         `json:"status"`
	OnDemand     bool           `json:"on_demand"`
	AISummary    bool           `json:"ai_summary"`
	Result       *RequestResult `json:"result,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
}

// CreateRequestInput is the input of CreateRequest.
type CreateRequestInput struct {
	Search       SearchKey `json:"search"`
	ResponseType string    `json:"response_type,omitempty"`
	OnDemand     bool      `json:"on_demand"`
	AISummary    bool      `json:"ai_summary"`
}

// RequestView is a request with everything a detail screen renders.
type RequestView struct {
	Request     *Request    `json:"request"`
	Timeline    Timeline    `json:"timeline"`
	LastUpdate  *LastUpdate `json:"last_update,omitempty"`
	Processes   []Process   `json:"processes,omitempty"`
	Summary     string      `json:"summary,omitempty"`
	SummaryHTML string      `json:"summary_html,omitempty"`
	// CooldownMs is the wait before RefreshRequest is allowed again.
	CooldownMs int64 `json:"cooldown_ms"`
	// Stale is set when the backend was unreachable and the cache answered.
	Stale bool `json:"stale,omitempty"`
}

// Tracking is a recurring provider-side monitor.
type Tracking struct {
	TrackingID            string     `json:"tracking_id"`
	Search                SearchKey  `json:"search"`
	Recurrence            int        `json:"recurrence"`
	Status                string     `json:"status"`
	NotificationEmails    []string   `json:"notification_emails"`
	StepTerms             []string   `json:"step_terms"`
	WithAttachments       bool       `json:"with_attachments"`
	HourRange             int        `json:"hour_range"`
	LastWebhookReceivedAt *time.Time `json:"last_webhook_received_at,omitempty"`
	CreatedAt             time.Time  `json:"created_at"`
	UpdatedAt             time.Time  `json:"updated_at"`
}

// TrackingInput is the input of RegisterTracking. Emails and step terms are
// comma-separated, as typed in a form.
type TrackingInput struct {
	Search             SearchKey `json:"search"`
	Recurrence         int       `json:"recurrence"`
	NotificationEmails string    `json:"notification_emails"`
	StepTerms          string    `json:"step_terms"`
	WithAttachments    bool      `json:"with_attachments"`
	HourRange          int       `json:"hour_range"`
}

// HistoryPage is one normalized page of tracking (or portal) history.
type HistoryPage struct {
	TrackingID    string          `json:"tracking_id,omitempty"`
	Page          int             `json:"page"`
	PageSize      int             `json:"page_size"`
	PageCount     int             `json:"page_count"`
	AllPagesCount int             `json:"all_pages_count"`
	AllCount      int             `json:"all_count"`
	Timeline      Timeline        `json:"timeline"`
	LastUpdate    *LastUpdate     `json:"last_update,omitempty"`
	Processes     []Process       `json:"processes,omitempty"`
	Raw           json.RawMessage `json:"raw,omitempty"`
	FetchedAt     time.Time       `json:"fetched_at"`
	Stale         bool            `json:"stale,omitempty"`
}

// Publication is an inbox entry derived from lawsuit content.
type Publication struct {
	ID               string     `json:"id"`
	PublicationDate  *time.Time `json:"publication_date,omitempty"`
	ProcessNumber    string     `json:"process_number"`
	Court            string     `json:"court"`
	SearchedName     string     `json:"searched_name"`
	Document         string     `json:"document"`
	Status           string     `json:"status"`
	Content          string     `json:"content,omitempty"`
	DerivedTags      []string   `json:"derived_tags"`
	DataEncerramento *time.Time `json:"data_encerramento,omitempty"`
	TrackingID       string     `json:"tracking_id,omitempty"`
	RequestID        string     `json:"request_id,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

// QuotaView is the advisory usage display. Loading is set instead of an
// error when the backend could not be read.
type QuotaView struct {
	Used    int  `json:"used"`
	Max     int  `json:"max"`
	Blocked bool `json:"blocked"`
	Loading bool `json:"loading"`
}

// Dashboard bundles the tracking list and quota, loaded concurrently.
type Dashboard struct {
	Trackings    []*Tracking    `json:"trackings"`
	StatusCounts map[string]int `json:"status_counts"`
	Quota        QuotaView      `json:"quota"`
	Stale        bool           `json:"stale,omitempty"`
}

// PortalResult is the public lookup answer.
type PortalResult struct {
	Search     SearchKey   `json:"search"`
	Timeline   Timeline    `json:"timeline"`
	LastUpdate *LastUpdate `json:"last_update,omitempty"`
	Processes  []Process   `json:"processes,omitempty"`
}

// WebhookResult reports what one delivery produced.
type WebhookResult struct {
	DeliveryID     string `json:"delivery_id"`
	TrackingID     string `json:"tracking_id,omitempty"`
	KnownTracking  bool   `json:"known_tracking"`
	Verified       bool   `json:"verified"`
	Publications   int    `json:"publications"`
	Duplicates     int    `json:"duplicates"`
	TimelineEvents int    `json:"timeline_events"`
}
