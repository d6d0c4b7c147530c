// CLAUDE:SUMMARY Pluggable ID generators: UUIDv7 default, prefixed variants for publications, deliveries and events.
// Package idgen provides pluggable ID generation for jurimon.
//
// Constructors across the repo (store, observability, judit) accept a
// Generator, so tests can inject deterministic IDs.
package idgen

import (
	"fmt"

	"github.com/google/uuid"
)

// Generator produces unique string identifiers.
type Generator func() string

// UUIDv7 returns a Generator that produces RFC 9562 UUID v7 strings.
// Time-sortable, which keeps locally created rows in insertion order.
func UUIDv7() Generator {
	return func() string {
		return uuid.Must(uuid.NewV7()).String()
	}
}

// Prefixed wraps a Generator and prepends a fixed prefix to every ID.
func Prefixed(prefix string, gen Generator) Generator {
	return func() string {
		return prefix + gen()
	}
}

// Sequence returns a Generator yielding prefix-1, prefix-2, ... Tests only.
func Sequence(prefix string) Generator {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

// Default is UUIDv7.
var Default Generator = UUIDv7()

// Publication, Delivery and Event are the type-scoped generators.
var (
	Publication = Prefixed("pub_", Default)
	Delivery    = Prefixed("whk_", Default)
	Event       = Prefixed("evt_", Default)
)

// New produces an ID using the Default generator.
func New() string {
	return Default()
}

// Parse validates a UUID string (with or without a type prefix) and returns
// it unchanged or an error.
func Parse(s string) (string, error) {
	raw := s
	for _, p := range []string{"pub_", "whk_", "evt_"} {
		if len(raw) > len(p) && raw[:len(p)] == p {
			raw = raw[len(p):]
			break
		}
	}
	if _, err := uuid.Parse(raw); err != nil {
		return "", fmt.Errorf("invalid id %q: %w", s, err)
	}
	return s, nil
}
