package normalize

import (
	"encoding/json"
	"math"
	"testing"
	"time"
)

func threeItems() []any {
	return []any{
		map[string]any{"title": "middle", "date": "2024-02-01"},
		map[string]any{"title": "undated"},
		map[string]any{"title": "newest", "created_at": "2024-03-05T10:00:00Z"},
		map[string]any{"title": "oldest", "event_date": "01/01/2024"},
	}
}

func titles(tl Timeline) []string {
	out := make([]string, len(tl))
	for i, e := range tl {
		out[i] = e.Title
	}
	return out
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestNormalize_ContainerShapes(t *testing.T) {
	// WHAT: Every container alias and a bare array yield the same sorted timeline.
	// WHY: Provider endpoints disagree on where the response list lives.
	want := []string{"newest", "middle", "oldest", "undated"}
	shapes := map[string]any{
		"responses":      map[string]any{"responses": threeItems()},
		"result":         map[string]any{"result": threeItems()},
		"response_data":  map[string]any{"response_data": threeItems()},
		"data":           map[string]any{"data": threeItems()},
		"bare array":     threeItems(),
		"nested result":  map[string]any{"result": map[string]any{"page_data": threeItems()}},
		"camel pageData": map[string]any{"pageData": threeItems()},
	}
	for name, raw := range shapes {
		t.Run(name, func(t *testing.T) {
			res := Normalize(raw)
			if got := titles(res.Timeline); !equal(got, want) {
				t.Errorf("timeline = %v, want %v", got, want)
			}
		})
	}
}

func TestNormalize_FirstArrayWins(t *testing.T) {
	// WHAT: When several containers exist, the first alias holding an array wins.
	raw := map[string]any{
		"data":      []any{map[string]any{"title": "from data"}},
		"responses": []any{map[string]any{"title": "from responses"}},
		"result":    "not an array",
	}
	tl := Normalize(raw).Timeline
	if len(tl) != 1 || tl[0].Title != "from responses" {
		t.Errorf("got %v", titles(tl))
	}
}

func TestNormalize_NeverFails(t *testing.T) {
	// WHAT: Garbage in yields an empty or partial result, never a panic.
	// WHY: Normalization runs on every payload; one bad item must not abort the batch.
	inputs := []any{
		nil, 42.0, "plain text", true,
		map[string]any{},
		map[string]any{"responses": "nope"},
		[]any{"a string item", 3.0, nil, map[string]any{"title": "ok"}},
		[]byte("{not json"),
		map[string]any{"responses": []any{map[string]any{"response_data": []any{1, 2}}}},
	}
	for _, in := range inputs {
		res := Normalize(in)
		for _, e := range res.Timeline {
			_ = e.Title
		}
	}
	res := Normalize([]any{"junk", map[string]any{"title": "ok"}})
	if len(res.Timeline) != 2 || res.Timeline[1].Title != "ok" {
		t.Errorf("partial batch lost: %v", titles(res.Timeline))
	}
}

func TestNormalize_UndatedStableOrder(t *testing.T) {
	// WHAT: Undated items keep their input order after the dated ones.
	raw := []any{
		map[string]any{"title": "u1"},
		map[string]any{"title": "d", "date": "2023-05-01"},
		map[string]any{"title": "u2", "date": "garbage"},
		map[string]any{"title": "u3"},
		map[string]any{"title": "u4", "date": "NaN"},
		map[string]any{"title": "u5", "date": "Infinity"},
		map[string]any{"title": "u6", "date": 1e300},
	}
	got := titles(Normalize(raw).Timeline)
	want := []string{"d", "u1", "u2", "u3", "u4", "u5", "u6"}
	if !equal(got, want) {
		t.Errorf("got %v, want %v", got, want)
	}
}

func TestNormalize_ResponseDataUnwrap(t *testing.T) {
	// WHAT: Items are read from response_data, with envelope dates as fallback.
	raw := map[string]any{"responses": []any{
		map[string]any{
			"response_type": "lawsuit",
			"created_at":    "2024-04-01T00:00:00Z",
			"response_data": map[string]any{"name": "A x B", "content": "<p>body</p>"},
		},
	}}
	tl := Normalize(raw).Timeline
	if len(tl) != 1 {
		t.Fatalf("len = %d", len(tl))
	}
	e := tl[0]
	if e.Title != "A x B" || e.Description != "<p>body</p>" {
		t.Errorf("event = %+v", e)
	}
	if e.Date == nil || e.Date.Format("2006-01-02") != "2024-04-01" {
		t.Errorf("envelope date not used: %v", e.Date)
	}
	if e.DescriptionHTML != "<p>body</p>" {
		t.Errorf("description html = %q", e.DescriptionHTML)
	}
	if e.ResponseType != "lawsuit" {
		t.Errorf("response type = %q", e.ResponseType)
	}
}

func TestNormalize_AliasPrecedence(t *testing.T) {
	// WHAT: Earlier aliases win over later ones; empty strings fall through.
	e := EventFrom(map[string]any{
		"title":       "",
		"name":        "by name",
		"step_type":   "by step",
		"description": " ",
		"content":     "by content",
		"text":        "by text",
	})
	if e.Title != "by name" || e.Description != "by content" {
		t.Errorf("event = %+v", e)
	}
}

func TestLastUpdate(t *testing.T) {
	tl := Normalize(threeItems()).Timeline
	lu := tl.LastUpdate()
	if lu == nil {
		t.Fatal("nil last update")
	}
	if lu.Detail != "newest" {
		t.Errorf("detail should fall back to title, got %q", lu.Detail)
	}
	if lu.Next != "middle" {
		t.Errorf("next = %q", lu.Next)
	}
	if lu.Date == nil || lu.Date.Day() != 5 {
		t.Errorf("date = %v", lu.Date)
	}
	if (Timeline{}).LastUpdate() != nil {
		t.Error("empty timeline should have no last update")
	}
	one := Timeline{{Title: "t", Description: "d"}}
	if got := one.LastUpdate(); got.Detail != "d" || got.Next != "" {
		t.Errorf("single = %+v", got)
	}
	rich := Timeline{{Description: "<p>Citação <b>expedida</b></p>"}}
	if got := rich.LastUpdate(); got.Detail != "Citação expedida" {
		t.Errorf("detail should be plain text, got %q", got.Detail)
	}
}

func TestParseDate(t *testing.T) {
	cases := map[string]struct {
		in   any
		want string
	}{
		"rfc3339":      {"2024-03-05T10:00:00-03:00", "2024-03-05T13:00:00Z"},
		"rfc3339 nano": {"2024-03-05T10:00:00.123Z", "2024-03-05T10:00:00Z"},
		"no zone":      {"2024-03-05T10:00:00", "2024-03-05T10:00:00Z"},
		"space":        {"2024-03-05 10:00:00", "2024-03-05T10:00:00Z"},
		"date":         {"2024-03-05", "2024-03-05T00:00:00Z"},
		"br":           {"05/03/2024", "2024-03-05T00:00:00Z"},
		"br time":      {"05/03/2024 08:30", "2024-03-05T08:30:00Z"},
		"epoch s":      {1709632800.0, "2024-03-05T10:00:00Z"},
		"epoch ms":     {1709632800000.0, "2024-03-05T10:00:00Z"},
		"epoch string": {"1709632800", "2024-03-05T10:00:00Z"},
		"epoch us":     {1709632800000000.0, "2024-03-05T10:00:00Z"},
		"epoch ns":     {1709632800000000000.0, "2024-03-05T10:00:00Z"},
	}
	for name, tc := range cases {
		got, ok := ParseDate(tc.in)
		if !ok {
			t.Errorf("%s: not parsed", name)
			continue
		}
		if s := got.Truncate(time.Second).Format(time.RFC3339); s != tc.want {
			t.Errorf("%s: got %s, want %s", name, s, tc.want)
		}
	}
	for _, bad := range []any{
		nil, "", "yesterday", "32/13/2024", 0.0, map[string]any{},
		"NaN", "Infinity", "-Inf", math.NaN(), math.Inf(1), 1e300, "1e300",
	} {
		if _, ok := ParseDate(bad); ok {
			t.Errorf("ParseDate(%v) should fail", bad)
		}
	}
}

func TestNormalize_HugeEpochNeverNewest(t *testing.T) {
	// WHAT: A microsecond-scale epoch is rescaled, not read as a date in year 55000.
	// WHY: An out-of-range date sorted first and could not be encoded as JSON.
	raw := map[string]any{"responses": []any{
		map[string]any{"date": "2024-05-01", "title": "good"},
		map[string]any{"date": 1e15, "title": "micro"},
		map[string]any{"date": "NaN", "title": "nan"},
	}}
	res := Normalize(raw)
	got := titles(res.Timeline)
	want := []string{"good", "micro", "nan"}
	if !equal(got, want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	if lu := res.Timeline.LastUpdate(); lu == nil || lu.Detail != "good" {
		t.Errorf("last update = %+v", lu)
	}
	if _, err := json.Marshal(res); err != nil {
		t.Errorf("result not encodable: %v", err)
	}
}

func TestProcessFromLawsuit(t *testing.T) {
	// WHAT: A lawsuit maps to a Process whose steps form its timeline.
	lawsuit := map[string]any{
		"code":              "0000000-02.2020.0.00.0000",
		"name":              "FULANO X CICLANO",
		"tribunal_acronym":  "TJSP",
		"courts":            []any{map[string]any{"name": "1ª Vara Cível"}},
		"status":            "Ativo",
		"phase":             "Inicial",
		"instance":          1.0,
		"amount":            "1500.50",
		"distribution_date": "2020-02-10T00:00:00Z",
		"subjects":          []any{map[string]any{"name": "Cobrança"}},
		"parties": []any{
			map[string]any{"name": "FULANO", "side": "Active", "main_document": "12345678909"},
			"junk",
			map[string]any{"name": "CICLANO", "side": "Passive", "document": "999"},
		},
		"steps": []any{
			map[string]any{"step_date": "2021-01-01", "content": "older"},
			map[string]any{"step_date": "2022-01-01", "content": "newer", "step_type": "Despacho"},
		},
	}
	p := ProcessFromLawsuit(map[string]any{"response_data": lawsuit})
	if p.CNJ != "0000000-02.2020.0.00.0000" || p.Court != "1ª Vara Cível" || p.Tribunal != "TJSP" {
		t.Errorf("identity = %+v", p)
	}
	if p.Instance != 1 || p.Amount != 1500.50 || p.DistributedAt == nil {
		t.Errorf("scalars = %+v", p)
	}
	if len(p.Parties) != 2 || p.Parties[0].Document != "12345678909" || p.Parties[1].Document != "999" {
		t.Errorf("parties = %+v", p.Parties)
	}
	if len(p.Subjects) != 1 || p.Subjects[0] != "Cobrança" {
		t.Errorf("subjects = %v", p.Subjects)
	}
	if len(p.Timeline) != 2 || p.Timeline[0].Description != "newer" {
		t.Errorf("timeline = %+v", p.Timeline)
	}
	if p.LastUpdate == nil || p.LastUpdate.Detail != "newer" || p.LastUpdate.Next != "" {
		t.Errorf("last update = %+v", p.LastUpdate)
	}
}

func TestProcessFromLawsuit_LastStepOnly(t *testing.T) {
	p := ProcessFromLawsuit(map[string]any{
		"code":      "1",
		"last_step": map[string]any{"step_date": "2022-01-01", "content": "only"},
	})
	if len(p.Timeline) != 1 || p.Timeline[0].Description != "only" {
		t.Errorf("timeline = %+v", p.Timeline)
	}
}

func TestNormalize_Processes(t *testing.T) {
	raw := map[string]any{"page_data": []any{
		map[string]any{"response_type": "lawsuit", "response_data": map[string]any{"code": "A"}},
		map[string]any{"response_type": "summary", "response_data": map[string]any{"content": "s"}},
		map[string]any{"code": "B", "steps": []any{}},
	}}
	res := Normalize(raw)
	if len(res.Processes) != 2 || res.Processes[0].CNJ != "A" || res.Processes[1].CNJ != "B" {
		t.Errorf("processes = %+v", res.Processes)
	}
}

func TestNormalizeJSON(t *testing.T) {
	res := NormalizeJSON([]byte(`{"data":[{"title":"x","date":"2024-01-01"}]}`))
	if len(res.Timeline) != 1 || res.Timeline[0].Title != "x" {
		t.Errorf("got %+v", res)
	}
	if got := NormalizeJSON([]byte(`<<<`)); len(got.Timeline) != 0 {
		t.Errorf("invalid json should be empty, got %+v", got)
	}
}
