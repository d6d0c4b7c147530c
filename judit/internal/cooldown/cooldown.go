// CLAUDE:SUMMARY Fixed-window cooldown per key (30s default) over an injected Clock and durable Store; the mark is written before the guarded call.
// CLAUDE:EXPORTS Limiter, Decision, Clock, ClockFunc, Store, New, Option, WithClock, WithWindow, KnownKey, RequestKey, TrackingKey, SearchKey, PortalKey
// Package cooldown throttles manual refreshes of paid provider queries. It
// is a courtesy that conserves quota, not a security control: the backend
// enforces quota on its own.
package cooldown

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"
)

// DefaultWindow is the minimum interval between two guarded calls on a key.
const DefaultWindow = 30 * time.Second

// Key prefixes. Each call site has its own namespace.
const (
	PrefixRequest  = "juditCooldownReq:"
	PrefixTracking = "juditCooldownTrack:"
	PrefixSearch   = "juditCooldownKey:"
	PrefixPortal   = "juditCooldownPortal:"
)

// RequestKey guards RefreshRequest.
func RequestKey(requestID string) string { return PrefixRequest + requestID }

// TrackingKey guards history force-sync.
func TrackingKey(trackingID string) string { return PrefixTracking + trackingID }

// SearchKey guards on-demand request creation for a search.
func SearchKey(searchType, value string) string { return PrefixSearch + searchType + ":" + value }

// PortalKey guards public portal lookups.
func PortalKey(searchType, value string) string { return PrefixPortal + searchType + ":" + value }

// KnownKey reports whether key sits in one of the namespaces above and has
// something after the prefix.
func KnownKey(key string) bool {
	for _, p := range []string{PrefixRequest, PrefixTracking, PrefixSearch, PrefixPortal} {
		if strings.HasPrefix(key, p) && len(key) > len(p) {
			return true
		}
	}
	return false
}

// Clock is the time source.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock.
func (f ClockFunc) Now() time.Time { return f() }

// Store persists the last attempt per key. Marks survive restarts; nothing
// sweeps them, an old mark simply stops mattering.
type Store interface {
	LastAttempt(ctx context.Context, key string) (time.Time, bool, error)
	Mark(ctx context.Context, key string, at time.Time) error
}

// Decision is the outcome of Acquire.
type Decision struct {
	Allowed   bool
	Remaining time.Duration
}

// Limiter applies the window. The read-modify-write in Acquire is serialized
// within the process only.
type Limiter struct {
	store  Store
	clock  Clock
	window time.Duration
	mu     sync.Mutex
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock replaces the wall clock.
func WithClock(c Clock) Option { return func(l *Limiter) { l.clock = c } }

// WithWindow overrides DefaultWindow. Non-positive values are ignored.
func WithWindow(d time.Duration) Option {
	return func(l *Limiter) {
		if d > 0 {
			l.window = d
		}
	}
}

// New creates a Limiter over store.
func New(store Store, opts ...Option) *Limiter {
	l := &Limiter{
		store:  store,
		clock:  ClockFunc(time.Now),
		window: DefaultWindow,
	}
	for _, o := range opts {
		o(l)
	}
	return l
}

// Window returns the configured window.
func (l *Limiter) Window() time.Duration { return l.window }

// Remaining returns max(0, window - (now - last)) for key.
func (l *Limiter) Remaining(ctx context.Context, key string) (time.Duration, error) {
	last, ok, err := l.store.LastAttempt(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("cooldown: read %q: %w", key, err)
	}
	if !ok {
		return 0, nil
	}
	return l.remaining(last), nil
}

func (l *Limiter) remaining(last time.Time) time.Duration {
	elapsed := l.clock.Now().Sub(last)
	if elapsed < 0 {
		// A mark from the future (clock skew) holds for one window at most.
		elapsed = 0
	}
	if r := l.window - elapsed; r > 0 {
		return r
	}
	return 0
}

// Acquire marks key and allows the call when its window has passed. The mark
// is written before the caller performs the guarded call, so a slow or failed
// call cannot be retried immediately.
func (l *Limiter) Acquire(ctx context.Context, key string) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	last, ok, err := l.store.LastAttempt(ctx, key)
	if err != nil {
		return Decision{}, fmt.Errorf("cooldown: read %q: %w", key, err)
	}
	if ok {
		if r := l.remaining(last); r > 0 {
			return Decision{Allowed: false, Remaining: r}, nil
		}
	}
	if err := l.store.Mark(ctx, key, l.clock.Now()); err != nil {
		return Decision{}, fmt.Errorf("cooldown: mark %q: %w", key, err)
	}
	return Decision{Allowed: true}, nil
}
