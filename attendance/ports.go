package attendance

import (
	"context"
	"time"
)

// Store is the durable record of events and their responses. Every method
// that touches the response list also updates the paired counter in the same
// atomic operation.
type Store interface {
	// Insert persists a new event. ErrConflict if the id or (name, date) is taken.
	Insert(ctx context.Context, ev *Event) error
	FindByID(ctx context.Context, eventID string) (*Event, error)
	// FindOne looks an event up by its natural key.
	FindOne(ctx context.Context, name, date string) (*Event, error)
	// FindActive returns events whose deadline is after now.
	FindActive(ctx context.Context, now time.Time) ([]*Event, error)

	// AppendResponse adds r and increments its counter. ErrConflict if the user already responded.
	AppendResponse(ctx context.Context, eventID string, r Response) error
	// SwitchStatus moves userID from one status to the other, adjusting both
	// counters and refreshing the name. Switching to attending removes the reason.
	// ErrConflict if the stored status is not from.
	SwitchStatus(ctx context.Context, eventID, userID string, from, to Status, name string) error
	// SetReason records an absence reason. ErrConflict if the user is not marked not attending.
	SetReason(ctx context.Context, eventID, userID, reason string) error
	// SyncResponses overwrites the response list and both counters.
	SyncResponses(ctx context.Context, eventID string, responses []Response, attending, absent int) error

	Delete(ctx context.Context, eventID string) error
}

// DirectKind selects the text of a direct message.
type DirectKind int

const (
	DirectAbsenceRequest DirectKind = iota
	DirectAbsenceThanks
	DirectAbsenceReprompt
	DirectAbsenceTimedOut
	DirectAbsenceNotNeeded
)

// DirectMessage is a private message about one event.
type DirectMessage struct {
	Kind      DirectKind
	EventName string
	EventDate string
}

// Notifier is the chat platform as seen by the controller.
type Notifier interface {
	// RenderPoll refreshes the vote buttons with the event's current counts.
	RenderPoll(ctx context.Context, ev *Event) error
	// RenderConcluded replaces the poll with its read-only concluded form.
	RenderConcluded(ctx context.Context, ev *Event) error
	SendSummary(ctx context.Context, ev *Event, s Summary) error
	// SendDirect messages a user privately. Failures wrap ErrDelivery.
	SendDirect(ctx context.Context, userID string, msg DirectMessage) error
	// ResolvePoll checks that the poll message still exists. Failures wrap ErrChannelUnresolvable.
	ResolvePoll(ctx context.Context, ev *Event) error
}

// Directory enumerates the expected audience of an event.
type Directory interface {
	Members(ctx context.Context, guildID string) ([]Member, error)
}
