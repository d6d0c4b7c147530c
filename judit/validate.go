// CLAUDE:SUMMARY Search key normalization per type and tracking input validation; runs before any backend call.
// CLAUDE:EXPORTS NormalizeSearchKey, SplitList
package judit

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/hazyhaar/jurimon/horosafe"
)

const (
	maxSearchValueLen = 512
	maxListItems      = 50
	maxPageSize       = 100
	defaultPageSize   = 20
)

// NormalizeSearchKey returns k with its value reduced to the canonical form
// of its type: digits only for documents and lawsuit numbers, upper-cased
// alphanumerics for OAB registrations, trimmed text for names.
func NormalizeSearchKey(k SearchKey) (SearchKey, error) {
	t := SearchType(strings.ToLower(strings.TrimSpace(string(k.Type))))
	var v string
	switch t {
	case SearchCPF, SearchCNPJ, SearchLawsuitCNJ, SearchLawsuitID:
		v = keep(k.Value, unicode.IsDigit)
	case SearchOAB:
		v = strings.ToUpper(keep(k.Value, func(r rune) bool {
			return r < unicode.MaxASCII && (unicode.IsDigit(r) || unicode.IsLetter(r))
		}))
	case SearchName:
		v = strings.Join(strings.Fields(k.Value), " ")
	default:
		return SearchKey{}, fmt.Errorf("%w: unknown search type %q", ErrInvalidInput, k.Type)
	}
	if v == "" {
		return SearchKey{}, fmt.Errorf("%w: empty %s search key", ErrInvalidInput, t)
	}
	if len(v) > maxSearchValueLen {
		return SearchKey{}, fmt.Errorf("%w: search key exceeds %d characters", ErrInvalidInput, maxSearchValueLen)
	}
	return SearchKey{Type: t, Value: v}, nil
}

func keep(s string, ok func(rune) bool) string {
	var b strings.Builder
	for _, r := range s {
		if ok(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// SplitList splits a comma-separated input into trimmed, non-empty items.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func validateTracking(in TrackingInput) (SearchKey, []string, []string, error) {
	key, err := NormalizeSearchKey(in.Search)
	if err != nil {
		return SearchKey{}, nil, nil, err
	}
	if in.Recurrence < 1 {
		return SearchKey{}, nil, nil, fmt.Errorf("%w: recurrence must be at least 1", ErrInvalidInput)
	}
	if in.HourRange < 0 || in.HourRange > 23 {
		return SearchKey{}, nil, nil, fmt.Errorf("%w: hour_range must be between 0 and 23", ErrInvalidInput)
	}
	emails := SplitList(in.NotificationEmails)
	terms := SplitList(in.StepTerms)
	if len(emails) > maxListItems || len(terms) > maxListItems {
		return SearchKey{}, nil, nil, fmt.Errorf("%w: at most %d emails and step terms", ErrInvalidInput, maxListItems)
	}
	for _, e := range emails {
		if !strings.Contains(e, "@") {
			return SearchKey{}, nil, nil, fmt.Errorf("%w: invalid notification email %q", ErrInvalidInput, e)
		}
	}
	return key, emails, terms, nil
}

func validatePage(page, pageSize int) (int, int, error) {
	if page == 0 {
		page = 1
	}
	if pageSize == 0 {
		pageSize = defaultPageSize
	}
	if page < 1 {
		return 0, 0, fmt.Errorf("%w: page must be at least 1", ErrInvalidInput)
	}
	if pageSize < 1 || pageSize > maxPageSize {
		return 0, 0, fmt.Errorf("%w: page_size must be between 1 and %d", ErrInvalidInput, maxPageSize)
	}
	return page, pageSize, nil
}

func validateID(id string) error {
	if err := horosafe.ValidateIdentifier(id); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return nil
}
