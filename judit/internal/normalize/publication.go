package normalize

import (
	"strings"
	"time"
)

// Base tags and the attention marker attached to derived publications.
const (
	TagConcluido  = "Concluído"
	TagCancelado  = "Cancelado"
	TagEmProcesso = "Em Processo"
	TagAtencao    = "Atenção"
)

// AttentionWindowDays is how close the closing date must be for Atenção.
const AttentionWindowDays = 30

// DerivedPublication holds the fields derived from a Judit content blob.
type DerivedPublication struct {
	ProcessNumber    string     `json:"process_number"`
	Court            string     `json:"court"`
	SearchedName     string     `json:"searched_name"`
	Document         string     `json:"document"`
	PublicationDate  *time.Time `json:"publication_date,omitempty"`
	BaseTag          string     `json:"base_tag"`
	DataEncerramento *time.Time `json:"data_encerramento,omitempty"`
	Atencao          bool       `json:"atencao"`
}

// Tags returns the derived tag set, Atenção first when present.
func (d DerivedPublication) Tags() []string {
	if d.Atencao {
		return []string{TagAtencao, d.BaseTag}
	}
	return []string{d.BaseTag}
}

// DerivePublication reads a publication content blob (object, JSON text or a
// response envelope). now anchors the attention window.
func DerivePublication(raw any, now time.Time) DerivedPublication {
	m := asMap(decode(raw))
	if inner, nested := unwrap(m); nested {
		m = inner
	}
	party := first(m["parties"])
	d := DerivedPublication{
		ProcessNumber:    ProcessNumberKeys.String(m),
		Court:            courtOf(m),
		SearchedName:     asString(party["name"]),
		Document:         DocumentKeys.String(party),
		PublicationDate:  dateOf(m, PublicationDateKeys),
		BaseTag:          BaseTag(StatusKeys.String(m)),
		DataEncerramento: dateOf(m, EndDateKeys),
	}
	if d.DataEncerramento != nil && d.BaseTag != TagConcluido {
		days := DaysUntil(now, *d.DataEncerramento)
		d.Atencao = days >= 0 && days <= AttentionWindowDays
	}
	return d
}

// BaseTag classifies a free-text status.
func BaseTag(status string) string {
	s := strings.ToLower(status)
	switch {
	case strings.Contains(s, "final"), strings.Contains(s, "conclu"):
		return TagConcluido
	case strings.Contains(s, "cancel"):
		return TagCancelado
	default:
		return TagEmProcesso
	}
}

// DaysUntil counts calendar days from now to t, both taken in UTC. It is
// negative when t is in the past.
func DaysUntil(now, t time.Time) int {
	day := func(x time.Time) time.Time {
		y, m, d := x.UTC().Date()
		return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
	}
	return int(day(t).Sub(day(now)).Hours() / 24)
}
