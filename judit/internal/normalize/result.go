package normalize

import "strings"

// ResponseItem is one entry of a request result page.
type ResponseItem struct {
	ResponseID   string         `json:"response_id,omitempty"`
	ResponseType string         `json:"response_type"`
	ResponseData map[string]any `json:"response_data,omitempty"`
	ResponseText string         `json:"response_text,omitempty"`
	CreatedAt    string         `json:"created_at,omitempty"`
}

// envelope rebuilds the provider shape so the item can go back through the
// alias extraction.
func (it ResponseItem) envelope() map[string]any {
	m := map[string]any{
		"response_type": it.ResponseType,
		"created_at":    it.CreatedAt,
	}
	switch {
	case it.ResponseData != nil:
		m["response_data"] = it.ResponseData
	case it.ResponseText != "":
		m["content"] = it.ResponseText
	}
	return m
}

// RequestResult is one page of request responses.
type RequestResult struct {
	Page          int            `json:"page"`
	PageCount     int            `json:"page_count"`
	AllPagesCount int            `json:"all_pages_count"`
	AllCount      int            `json:"all_count"`
	PageData      []ResponseItem `json:"page_data"`
}

var (
	pageKeys          = Aliases{"page"}
	pageCountKeys     = Aliases{"page_count", "pageCount"}
	allPagesCountKeys = Aliases{"all_pages_count", "allPagesCount"}
	allCountKeys      = Aliases{"all_count", "allCount"}
)

// ParseRequestResult reads paging keys in either snake_case or camelCase.
// The result may sit at the root or under one of the container aliases.
func ParseRequestResult(raw any) RequestResult {
	m := asMap(decode(raw))
	if m == nil {
		// A bare array is a single page.
		var r RequestResult
		for _, it := range Items(raw) {
			r.PageData = append(r.PageData, responseItem(it))
		}
		r.Page, r.PageCount = 1, len(r.PageData)
		return r
	}
	if PageDataKeys.Slice(m) == nil {
		if inner := ContainerKeys.Map(m); inner != nil && PageDataKeys.Slice(inner) != nil {
			m = inner
		}
	}

	r := RequestResult{
		Page:          asInt(firstValue(m, pageKeys)),
		PageCount:     asInt(firstValue(m, pageCountKeys)),
		AllPagesCount: asInt(firstValue(m, allPagesCountKeys)),
		AllCount:      asInt(firstValue(m, allCountKeys)),
	}
	for _, it := range Items(m) {
		r.PageData = append(r.PageData, responseItem(it))
	}
	if r.PageCount == 0 {
		r.PageCount = len(r.PageData)
	}
	return r
}

func firstValue(m map[string]any, keys Aliases) any {
	v, _ := keys.Value(m)
	return v
}

func responseItem(v any) ResponseItem {
	m := asMap(v)
	it := ResponseItem{
		ResponseID:   asString(m["response_id"]),
		ResponseType: ResponseTypeKeys.String(m),
		CreatedAt:    asString(m["created_at"]),
	}
	if inner, nested := unwrap(m); nested {
		it.ResponseData = inner
	} else if s, ok := m["response_data"].(string); ok {
		it.ResponseText = strings.TrimSpace(s)
	} else {
		// Flat items carry their fields at the top level.
		it.ResponseData = m
	}
	return it
}

// Summary returns the first summary item. Later summary items are ignored.
func Summary(r RequestResult) (ResponseItem, bool) {
	for _, it := range r.PageData {
		if strings.EqualFold(it.ResponseType, "summary") {
			return it, true
		}
	}
	return ResponseItem{}, false
}

// SummaryText extracts the prose of a summary item, which the provider has
// shipped as a string, as {content} or as {summary} over time.
func SummaryText(it ResponseItem) string {
	if it.ResponseText != "" {
		return it.ResponseText
	}
	return DescriptionKeys.String(it.ResponseData)
}

// Timeline normalizes every page item.
func (r RequestResult) Timeline() Timeline {
	items := make([]any, 0, len(r.PageData))
	for _, it := range r.PageData {
		items = append(items, it.envelope())
	}
	return buildTimeline(items)
}

// Processes returns the lawsuit items as processes.
func (r RequestResult) Processes() []Process {
	var out []Process
	for _, it := range r.PageData {
		if it.ResponseData != nil && isLawsuit(it.envelope(), it.ResponseData) {
			out = append(out, ProcessFromLawsuit(it.ResponseData))
		}
	}
	return out
}
