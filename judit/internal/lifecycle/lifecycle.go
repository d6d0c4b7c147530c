// CLAUDE:SUMMARY Explicit transition tables for request, tracking and publication status; invalid transitions are rejected, never coerced.
// CLAUDE:EXPORTS RequestStatus, TrackingStatus, PublicationStatus, TrackingAction, PublicationAction, ErrInvalidTransition, ErrTerminal
// Package lifecycle holds the state machines of requests, trackings and
// publications as tables. Callers ask the table before acting and reject
// anything it does not list.
package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidTransition is returned for a transition absent from a table.
	ErrInvalidTransition = errors.New("lifecycle: invalid transition")
	// ErrTerminal is returned when the current state is terminal.
	ErrTerminal = errors.New("lifecycle: terminal state")
)

// TransitionError describes a rejected transition.
type TransitionError struct {
	Machine string
	From    string
	To      string
	Action  string
	Err     error
}

func (e *TransitionError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s: %s not allowed from %q: %v", e.Machine, e.Action, e.From, e.Err)
	}
	return fmt.Sprintf("%s: %q -> %q: %v", e.Machine, e.From, e.To, e.Err)
}

func (e *TransitionError) Unwrap() error { return e.Err }

// --- Requests ---

// RequestStatus is the provider-side status of a one-shot request.
type RequestStatus string

const (
	RequestCreated   RequestStatus = "created"
	RequestPending   RequestStatus = "pending"
	RequestUpdating  RequestStatus = "updating"
	RequestUpdated   RequestStatus = "updated"
	RequestCompleted RequestStatus = "completed"
	RequestFailed    RequestStatus = "failed"
)

// Statuses only move forward, except the updated → updating → updated cycle
// of force-syncs. completed and failed are terminal.
var requestTable = map[RequestStatus][]RequestStatus{
	RequestCreated:   {RequestPending, RequestUpdating, RequestUpdated, RequestCompleted, RequestFailed},
	RequestPending:   {RequestUpdating, RequestUpdated, RequestCompleted, RequestFailed},
	RequestUpdating:  {RequestUpdated, RequestCompleted, RequestFailed},
	RequestUpdated:   {RequestUpdating, RequestCompleted, RequestFailed},
	RequestCompleted: nil,
	RequestFailed:    nil,
}

// Valid reports whether s is a known request status.
func (s RequestStatus) Valid() bool {
	_, ok := requestTable[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s RequestStatus) Terminal() bool {
	return s.Valid() && len(requestTable[s]) == 0
}

// CanTransition reports whether s may move to next. Staying put is allowed.
func (s RequestStatus) CanTransition(next RequestStatus) bool {
	if s == next {
		return true
	}
	return contains(requestTable[s], next)
}

// Transition validates s → next.
func (s RequestStatus) Transition(next RequestStatus) error {
	if s.CanTransition(next) {
		return nil
	}
	err := ErrInvalidTransition
	if s.Terminal() {
		err = ErrTerminal
	}
	return &TransitionError{Machine: "request", From: string(s), To: string(next), Err: err}
}

// --- Trackings ---

// TrackingStatus is the status of a recurring monitor.
type TrackingStatus string

const (
	TrackingCreated  TrackingStatus = "created"
	TrackingUpdating TrackingStatus = "updating"
	TrackingUpdated  TrackingStatus = "updated"
	TrackingPaused   TrackingStatus = "paused"
	TrackingDeleted  TrackingStatus = "deleted"
)

// TrackingAction is a user action on a tracking.
type TrackingAction string

const (
	ActionPause     TrackingAction = "pause"
	ActionResume    TrackingAction = "resume"
	ActionDelete    TrackingAction = "delete"
	ActionForceSync TrackingAction = "force_sync"
)

// trackingTable lists the server-reported transitions. deleted is terminal.
var trackingTable = map[TrackingStatus][]TrackingStatus{
	TrackingCreated:  {TrackingUpdating, TrackingUpdated, TrackingPaused, TrackingDeleted},
	TrackingUpdating: {TrackingUpdated, TrackingPaused, TrackingDeleted},
	TrackingUpdated:  {TrackingUpdating, TrackingPaused, TrackingDeleted},
	TrackingPaused:   {TrackingUpdating, TrackingUpdated, TrackingCreated, TrackingDeleted},
	TrackingDeleted:  nil,
}

// trackingActions lists the states each action may be issued from.
var trackingActions = map[TrackingAction][]TrackingStatus{
	ActionPause:     {TrackingCreated, TrackingUpdating, TrackingUpdated},
	ActionResume:    {TrackingPaused},
	ActionDelete:    {TrackingCreated, TrackingUpdating, TrackingUpdated, TrackingPaused},
	ActionForceSync: {TrackingCreated, TrackingUpdating, TrackingUpdated, TrackingPaused},
}

// Valid reports whether s is a known tracking status.
func (s TrackingStatus) Valid() bool {
	_, ok := trackingTable[s]
	return ok
}

// Terminal reports whether s is deleted.
func (s TrackingStatus) Terminal() bool {
	return s.Valid() && len(trackingTable[s]) == 0
}

// CanTransition reports whether the server may move s to next.
func (s TrackingStatus) CanTransition(next TrackingStatus) bool {
	if s == next {
		return true
	}
	return contains(trackingTable[s], next)
}

// Transition validates s → next.
func (s TrackingStatus) Transition(next TrackingStatus) error {
	if s.CanTransition(next) {
		return nil
	}
	err := ErrInvalidTransition
	if s.Terminal() {
		err = ErrTerminal
	}
	return &TransitionError{Machine: "tracking", From: string(s), To: string(next), Err: err}
}

// Allow checks that action may be issued while the tracking is in s.
func (s TrackingStatus) Allow(action TrackingAction) error {
	if contains(trackingActions[action], s) {
		return nil
	}
	err := ErrInvalidTransition
	if s.Terminal() {
		err = ErrTerminal
	}
	return &TransitionError{Machine: "tracking", From: string(s), Action: string(action), Err: err}
}

// --- Publications ---

// PublicationStatus is the inbox status of a publication.
type PublicationStatus string

const (
	PublicationNova       PublicationStatus = "nova"
	PublicationPendente   PublicationStatus = "pendente"
	PublicationAtribuida  PublicationStatus = "atribuida"
	PublicationFinalizada PublicationStatus = "finalizada"
	PublicationDescartada PublicationStatus = "descartada"
)

// PublicationAction is a user action on a publication.
type PublicationAction string

const (
	ActionOpen     PublicationAction = "open"
	ActionAssign   PublicationAction = "assign"
	ActionComplete PublicationAction = "complete"
	ActionDiscard  PublicationAction = "discard"
)

var publicationTable = map[PublicationStatus][]PublicationStatus{
	PublicationNova:       {PublicationPendente},
	PublicationPendente:   {PublicationAtribuida, PublicationFinalizada, PublicationDescartada},
	PublicationAtribuida:  {PublicationFinalizada, PublicationDescartada},
	PublicationFinalizada: nil,
	PublicationDescartada: nil,
}

var publicationActions = map[PublicationAction]PublicationStatus{
	ActionOpen:     PublicationPendente,
	ActionAssign:   PublicationAtribuida,
	ActionComplete: PublicationFinalizada,
	ActionDiscard:  PublicationDescartada,
}

// Valid reports whether s is a known publication status.
func (s PublicationStatus) Valid() bool {
	_, ok := publicationTable[s]
	return ok
}

// Terminal reports whether s is finalizada or descartada.
func (s PublicationStatus) Terminal() bool {
	return s.Valid() && len(publicationTable[s]) == 0
}

// CanTransition reports whether s may move to next. Unlike the provider
// machines, staying put is not a transition.
func (s PublicationStatus) CanTransition(next PublicationStatus) bool {
	return contains(publicationTable[s], next)
}

// Transition validates s → next.
func (s PublicationStatus) Transition(next PublicationStatus) error {
	if s.CanTransition(next) {
		return nil
	}
	err := ErrInvalidTransition
	if s.Terminal() {
		err = ErrTerminal
	}
	return &TransitionError{Machine: "publication", From: string(s), To: string(next), Err: err}
}

// Apply returns the status action leads to from s. Opening a publication
// that is no longer nova is a no-op: it returns s and a nil error, and
// changed is false.
func (s PublicationStatus) Apply(action PublicationAction) (next PublicationStatus, changed bool, err error) {
	target, ok := publicationActions[action]
	if !ok {
		return s, false, &TransitionError{Machine: "publication", From: string(s), Action: string(action), Err: ErrInvalidTransition}
	}
	if action == ActionOpen && s != PublicationNova && s.Valid() {
		return s, false, nil
	}
	if err := s.Transition(target); err != nil {
		te := err.(*TransitionError)
		te.Action = string(action)
		return s, false, te
	}
	return target, true, nil
}

// ParsePublicationAction maps a route verb to an action.
func ParsePublicationAction(v string) (PublicationAction, bool) {
	a := PublicationAction(v)
	_, ok := publicationActions[a]
	return a, ok
}

func contains[T comparable](s []T, v T) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}
