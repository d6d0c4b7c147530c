// CLAUDE:SUMMARY Sentinel errors for the judit service and the typed cooldown error carrying the remaining wait.
package judit

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput is returned when input fails validation. Nothing has
	// been sent to the backend.
	ErrInvalidInput = errors.New("judit: invalid input")

	// ErrCooldown is returned while a manual refresh window is still open.
	ErrCooldown = errors.New("judit: cooldown active")

	// ErrNotFound is returned for unknown requests, trackings and publications.
	ErrNotFound = errors.New("judit: not found")

	// ErrInvalidTransition is returned when a state machine refuses an action.
	ErrInvalidTransition = errors.New("judit: invalid transition")

	// ErrTrackingDeleted is returned for any action on a deleted tracking.
	ErrTrackingDeleted = errors.New("judit: tracking deleted")

	// ErrUpstream is returned when the backend call failed. The cache has
	// been resynchronized when possible.
	ErrUpstream = errors.New("judit: upstream failure")

	// ErrSignature is returned when a webhook signature does not verify.
	ErrSignature = errors.New("judit: invalid webhook signature")
)

// CooldownError tells the caller how long to wait before retrying Key.
type CooldownError struct {
	Key       string
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("judit: cooldown active for %s (%dms remaining)", e.Key, e.Remaining.Milliseconds())
}

func (e *CooldownError) Unwrap() error { return ErrCooldown }
