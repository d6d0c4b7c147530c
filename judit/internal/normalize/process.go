package normalize

import "time"

// Party is one side of a lawsuit.
type Party struct {
	Name       string `json:"name"`
	Side       string `json:"side,omitempty"`
	PersonType string `json:"person_type,omitempty"`
	Document   string `json:"document,omitempty"`
}

// Process is the canonical view of a lawsuit response.
type Process struct {
	CNJ           string      `json:"cnj"`
	Name          string      `json:"name,omitempty"`
	Court         string      `json:"court,omitempty"`
	Tribunal      string      `json:"tribunal,omitempty"`
	Status        string      `json:"status,omitempty"`
	Phase         string      `json:"phase,omitempty"`
	Instance      int         `json:"instance,omitempty"`
	Area          string      `json:"area,omitempty"`
	Amount        float64     `json:"amount,omitempty"`
	DistributedAt *time.Time  `json:"distributed_at,omitempty"`
	Parties       []Party     `json:"parties,omitempty"`
	Subjects      []string    `json:"subjects,omitempty"`
	Classes       []string    `json:"classes,omitempty"`
	Timeline      Timeline    `json:"timeline"`
	LastUpdate    *LastUpdate `json:"last_update,omitempty"`
}

// ProcessFromLawsuit maps a lawsuit object. Its steps become the process
// timeline; a lawsuit without steps falls back to last_step.
func ProcessFromLawsuit(raw any) Process {
	m := asMap(decode(raw))
	if inner, nested := unwrap(m); nested {
		m = inner
	}
	p := Process{
		CNJ:           ProcessNumberKeys.String(m),
		Name:          asString(m["name"]),
		Court:         courtOf(m),
		Tribunal:      CourtFallbackKeys.String(m),
		Status:        StatusKeys.String(m),
		Phase:         asString(m["phase"]),
		Instance:      asInt(m["instance"]),
		Area:          asString(m["area"]),
		DistributedAt: dateOf(m, DistributedKeys),
		Subjects:      stringList(m["subjects"], "name"),
		Classes:       stringList(m["classifications"], "name"),
	}
	if f, ok := asFloat(m["amount"]); ok {
		p.Amount = f
	}
	for _, e := range asSlice(m["parties"]) {
		pm := asMap(e)
		if pm == nil {
			continue
		}
		p.Parties = append(p.Parties, Party{
			Name:       asString(pm["name"]),
			Side:       asString(pm["side"]),
			PersonType: asString(pm["person_type"]),
			Document:   DocumentKeys.String(pm),
		})
	}

	steps := StepsKeys.Slice(m)
	if steps == nil {
		if last := asMap(m["last_step"]); last != nil {
			steps = []any{last}
		}
	}
	p.Timeline = buildTimeline(steps)
	p.LastUpdate = p.Timeline.LastUpdate()
	return p
}

// courtOf is courts[0].name, then the tribunal aliases.
func courtOf(m map[string]any) string {
	if c := asString(first(m["courts"])["name"]); c != "" {
		return c
	}
	return CourtFallbackKeys.String(m)
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}
