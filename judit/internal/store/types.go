// CLAUDE:SUMMARY Row types of the cache: RequestRow, TrackingRow, HistoryPage, PublicationRow, WebhookDelivery.
package store

// RequestRow is a cached request. ResultJSON holds the raw provider result.
type RequestRow struct {
	RequestID    string
	SearchType   string
	SearchKey    string
	ResponseType string
	Status       string
	OnDemand     bool
	AISummary    bool
	ResultJSON   string
	CreatedAt    int64
	UpdatedAt    int64
}

// TrackingRow is a cached tracking.
type TrackingRow struct {
	TrackingID            string
	SearchType            string
	SearchKey             string
	Recurrence            int
	Status                string
	NotificationEmails    []string
	StepTerms             []string
	WithAttachments       bool
	HourRange             int
	LastWebhookReceivedAt *int64
	CreatedAt             int64
	UpdatedAt             int64
}

// HistoryPage is one cached page of tracking history.
type HistoryPage struct {
	TrackingID string
	Page       int
	PageSize   int
	BodyJSON   string
	FetchedAt  int64
}

// PublicationRow is an inbox entry.
type PublicationRow struct {
	ID              string
	DedupKey        string
	PublicationDate *int64
	ProcessNumber   string
	Court           string
	SearchedName    string
	Document        string
	Status          string
	Content         string
	Tags            []string
	TrackingID      string
	RequestID       string
	CreatedAt       int64
	UpdatedAt       int64
}

// WebhookDelivery is a raw webhook body as received.
type WebhookDelivery struct {
	ID         string
	TrackingID string
	EventType  string
	Payload    string
	Verified   bool
	ReceivedAt int64
}

// PublicationFilter narrows ListPublications. Zero values mean no filter.
type PublicationFilter struct {
	Status string
	Limit  int
}
