// CLAUDE:SUMMARY Alias tables and the try-each-alias combinator used by every field extraction in the normalizer.
package normalize

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Aliases is an ordered list of keys tried in turn. The first key holding a
// non-empty value wins.
type Aliases []string

// The alias tables. Order matters: it is the precedence of the fallback chain.
var (
	ContainerKeys   = Aliases{"responses", "result", "response_data", "data"}
	PageDataKeys    = Aliases{"page_data", "pageData"}
	DateKeys        = Aliases{"date", "event_date", "step_date", "created_at", "updated_at"}
	TitleKeys       = Aliases{"title", "name", "step_type", "type", "response_type", "code"}
	DescriptionKeys = Aliases{"description", "content", "text", "summary", "step_content", "detail"}
	EndDateKeys     = Aliases{"data_encerramento", "dataEncerramento", "end_date", "closed_at", "finished_at", "closing_date"}

	ProcessNumberKeys   = Aliases{"code", "lawsuit_cnj"}
	CourtFallbackKeys   = Aliases{"tribunal_acronym", "tribunal"}
	StatusKeys          = Aliases{"status", "state"}
	DocumentKeys        = Aliases{"main_document", "document"}
	PublicationDateKeys = Aliases{"publication_date", "publicationDate", "distribution_date", "date", "created_at"}
	DistributedKeys     = Aliases{"distribution_date", "distributionDate"}
	StepsKeys           = Aliases{"steps", "movements", "timeline"}
	ResponseTypeKeys    = Aliases{"response_type", "responseType"}
)

// Value returns the first present, non-empty value.
func (a Aliases) Value(m map[string]any) (any, bool) {
	if m == nil {
		return nil, false
	}
	for _, k := range a {
		v, ok := m[k]
		if !ok || isEmpty(v) {
			continue
		}
		return v, true
	}
	return nil, false
}

// String returns the first alias that renders to a non-empty string.
func (a Aliases) String(m map[string]any) string {
	if m == nil {
		return ""
	}
	for _, k := range a {
		if s := asString(m[k]); s != "" {
			return s
		}
	}
	return ""
}

// Map returns the first alias holding an object.
func (a Aliases) Map(m map[string]any) map[string]any {
	for _, k := range a {
		if o, ok := m[k].(map[string]any); ok {
			return o
		}
	}
	return nil
}

// Slice returns the first alias holding an array.
func (a Aliases) Slice(m map[string]any) []any {
	for _, k := range a {
		if s, ok := m[k].([]any); ok {
			return s
		}
	}
	return nil
}

func isEmpty(v any) bool {
	switch x := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(x) == ""
	}
	return false
}

// asString renders scalars; objects and arrays yield "".
func asString(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(x)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case json.Number:
		return x.String()
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case bool:
		return strconv.FormatBool(x)
	}
	return ""
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		return f, err == nil
	}
	return 0, false
}

func asInt(v any) int {
	f, ok := asFloat(v)
	if !ok {
		return 0
	}
	return int(f)
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}

// first returns the first element of an array value when it is an object.
func first(v any) map[string]any {
	s, ok := v.([]any)
	if !ok || len(s) == 0 {
		return nil
	}
	return asMap(s[0])
}

// stringList collects the non-empty string renderings of an array, or of the
// given key of each object element when key is set.
func stringList(v any, key string) []string {
	s, _ := v.([]any)
	var out []string
	for _, e := range s {
		if key != "" {
			e = asMap(e)[key]
		}
		if str := asString(e); str != "" {
			out = append(out, str)
		}
	}
	return out
}

// decode turns a JSON document, a JSON string or an already decoded value
// into a generic value. Undecodable strings are returned unchanged.
func decode(raw any) any {
	switch x := raw.(type) {
	case []byte:
		var v any
		if err := json.Unmarshal(x, &v); err != nil {
			return nil
		}
		return v
	case json.RawMessage:
		return decode([]byte(x))
	case string:
		t := strings.TrimSpace(x)
		if strings.HasPrefix(t, "{") || strings.HasPrefix(t, "[") {
			var v any
			if err := json.Unmarshal([]byte(t), &v); err == nil {
				return v
			}
		}
		return x
	}
	return raw
}
