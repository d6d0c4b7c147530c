// CLAUDE:SUMMARY Best-effort payload → Timeline normalization: container lookup, response_data unwrap, alias extraction, stable descending sort.
// CLAUDE:EXPORTS Event, Timeline, LastUpdate, Result, Normalize, NormalizeJSON, Items, BuildTimeline
// Package normalize maps heterogeneous judicial-data payloads onto a stable
// shape. Nothing here returns an error: unknown shapes degrade to blank
// fields, which is the contract rather than a failure mode.
package normalize

import (
	"sort"
	"time"

	"github.com/hazyhaar/jurimon/richtext"
)

// Event is one timeline entry. Date is nil when no alias parsed.
type Event struct {
	Date            *time.Time `json:"date,omitempty"`
	Title           string     `json:"title"`
	Description     string     `json:"description"`
	DescriptionHTML string     `json:"description_html,omitempty"`
	ResponseType    string     `json:"response_type,omitempty"`
}

// Timeline is sorted newest first with undated events last.
type Timeline []Event

// LastUpdate summarizes the head of a timeline.
type LastUpdate struct {
	Date   *time.Time `json:"date,omitempty"`
	Detail string     `json:"detail"`
	Next   string     `json:"next,omitempty"`
}

// Result is the full normalization of one payload.
type Result struct {
	Timeline   Timeline    `json:"timeline"`
	LastUpdate *LastUpdate `json:"last_update,omitempty"`
	Processes  []Process   `json:"processes,omitempty"`
}

// maxContainerDepth bounds the search for a nested container such as
// {"result": {"page_data": [...]}}.
const maxContainerDepth = 3

// NormalizeJSON decodes body and normalizes it. Undecodable input yields an
// empty Result.
func NormalizeJSON(body []byte) Result {
	return Normalize(decode(body))
}

// Normalize builds the timeline, last update and lawsuit processes of raw.
func Normalize(raw any) Result {
	items := Items(raw)
	res := Result{Timeline: buildTimeline(items)}
	res.LastUpdate = res.Timeline.LastUpdate()
	for _, it := range items {
		outer := asMap(it)
		inner, _ := unwrap(outer)
		if !isLawsuit(outer, inner) {
			continue
		}
		res.Processes = append(res.Processes, ProcessFromLawsuit(inner))
	}
	return res
}

// BuildTimeline is Normalize without process extraction.
func BuildTimeline(raw any) Timeline {
	return buildTimeline(Items(raw))
}

// Items locates the response list of a payload. A bare array is accepted;
// otherwise the container aliases are tried in order, descending into
// object-valued containers. The first array found wins.
func Items(raw any) []any {
	return findItems(decode(raw), 0)
}

func findItems(v any, depth int) []any {
	switch x := v.(type) {
	case []any:
		return x
	case map[string]any:
		if depth > maxContainerDepth {
			return nil
		}
		keys := append(append(Aliases{}, ContainerKeys...), PageDataKeys...)
		for _, k := range keys {
			if arr, ok := x[k].([]any); ok {
				return arr
			}
		}
		for _, k := range keys {
			if obj, ok := x[k].(map[string]any); ok {
				if arr := findItems(obj, depth+1); arr != nil {
					return arr
				}
			}
		}
	}
	return nil
}

// unwrap returns the nested response_data object when present, and whether
// it was.
func unwrap(item map[string]any) (map[string]any, bool) {
	if inner, ok := item["response_data"].(map[string]any); ok {
		return inner, true
	}
	return item, false
}

func isLawsuit(outer, inner map[string]any) bool {
	rt := ResponseTypeKeys.String(outer)
	if rt == "" {
		rt = ResponseTypeKeys.String(inner)
	}
	if rt == "lawsuit" {
		return true
	}
	// Untyped lawsuits still carry a CNJ code and steps.
	return rt == "" && asString(inner["code"]) != "" && StepsKeys.Slice(inner) != nil
}

// EventFrom extracts one event. The unwrapped object is tried first, then the
// envelope, so an envelope created_at still dates an inner record without one.
func EventFrom(item any) Event {
	outer := asMap(decode(item))
	inner, nested := unwrap(outer)
	ev := Event{
		Date:        dateOf(inner, DateKeys),
		Title:       TitleKeys.String(inner),
		Description: DescriptionKeys.String(inner),
	}
	if ev.Date == nil && nested {
		ev.Date = dateOf(outer, DateKeys)
	}
	if ev.Title == "" && nested {
		ev.Title = TitleKeys.String(outer)
	}
	ev.ResponseType = ResponseTypeKeys.String(outer)
	if ev.Description != "" {
		ev.DescriptionHTML = richtext.RenderSummary(ev.Description)
	}
	return ev
}

func buildTimeline(items []any) Timeline {
	tl := make(Timeline, 0, len(items))
	for _, it := range items {
		tl = append(tl, EventFrom(it))
	}
	tl.sort()
	return tl
}

func (tl Timeline) sort() {
	sort.SliceStable(tl, func(i, j int) bool {
		return epochMillis(tl[i].Date) > epochMillis(tl[j].Date)
	})
}

// epochMillis maps a missing date to 0 so that undated events sort last.
func epochMillis(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}

// LastUpdate returns the newest event's date and detail plus the title of
// the one after it, or nil for an empty timeline. Detail is plain text.
func (tl Timeline) LastUpdate() *LastUpdate {
	if len(tl) == 0 {
		return nil
	}
	lu := &LastUpdate{Date: tl[0].Date, Detail: richtext.PlainText(tl[0].Description)}
	if lu.Detail == "" {
		lu.Detail = tl[0].Title
	}
	if len(tl) > 1 {
		lu.Next = tl[1].Title
	}
	return lu
}
