package attendance

import "errors"

var (
	// ErrInvalidSchedule is returned when a poll deadline is not in the future.
	ErrInvalidSchedule = errors.New("event deadline must be in the future")
	// ErrEventClosed is returned for votes that arrive at or after the deadline.
	ErrEventClosed = errors.New("event has concluded")
	// ErrDuplicateSelection is informational: the member re-selected their current answer.
	ErrDuplicateSelection = errors.New("option already selected")
	// ErrStoreUnavailable means a write failed after retries. The in-memory state is kept.
	ErrStoreUnavailable = errors.New("response store unavailable")
	// ErrChannelUnresolvable means a persisted poll message can no longer be fetched.
	ErrChannelUnresolvable = errors.New("poll channel or message unresolvable")
	// ErrDelivery means a direct message could not be sent.
	ErrDelivery = errors.New("direct message delivery failed")
	// ErrSessionNotFound is returned when no live session exists for an event id.
	ErrSessionNotFound = errors.New("no active session for event")

	// ErrNotFound is returned by stores when no event matches.
	ErrNotFound = errors.New("event not found")
	// ErrConflict is returned by stores when a conditional write did not match.
	ErrConflict = errors.New("event state conflict")
)
