package home

import (
	"errors"
	"fmt"
	"strings"

	"github.com/demetori/deme/attendance"
	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
)

// handleEventButton serves the three buttons under every poll. The poll
// message ID identifies the event.
func handleEventButton(event *events.ComponentInteractionCreate) {
	if tracker == nil {
		return
	}
	eventID := event.Message.ID.String()

	switch event.Data.CustomID() {
	case eventButtonAttend:
		handleEventVote(event, eventID, attendance.StatusAttending)
	case eventButtonAbsent:
		handleEventVote(event, eventID, attendance.StatusNotAttending)
	case eventButtonResponses:
		handleEventResponsesButton(event, eventID)
	}
}

func handleEventVote(event *events.ComponentInteractionCreate, eventID string, status attendance.Status) {
	_ = event.DeferCreateMessage(true)

	ctx, cancel := eventContext()
	defer cancel()

	user := event.User()
	_, err := tracker.ApplyVote(ctx, eventID, user.ID.String(), displayName(event.Member(), user), status)

	var ev *attendance.Event
	if err == nil {
		ev, _ = tracker.Lookup(ctx, eventID)
	}
	eventFollowUp(event.Client(), event.ApplicationID(), event.Token(), voteReply(ev, status, err))
}

// voteReply turns the outcome of a vote into the ephemeral acknowledgement.
func voteReply(ev *attendance.Event, status attendance.Status, err error) string {
	switch {
	case err == nil && ev != nil:
		return fmt.Sprintf(sys.MsgVoteSelected, status.Label(), ev.Name, ev.Details.Date)
	case errors.Is(err, attendance.ErrDuplicateSelection):
		return sys.MsgVoteAlreadySelected
	case errors.Is(err, attendance.ErrEventClosed):
		return sys.ErrEventClosed
	case errors.Is(err, attendance.ErrSessionNotFound):
		return sys.ErrEventUnknown
	case errors.Is(err, attendance.ErrStoreUnavailable):
		return sys.MsgVoteNotSaved
	default:
		return sys.ErrGenericFailure
	}
}

func handleEventResponsesButton(event *events.ComponentInteractionCreate, eventID string) {
	_ = event.DeferCreateMessage(true)

	ctx, cancel := eventContext()
	defer cancel()

	roster, err := tracker.Responses(ctx, eventID, isOfficer(event.Member()))
	reply := rosterText(roster)
	if err != nil {
		reply = lookupFailure(err)
	}
	eventFollowUp(event.Client(), event.ApplicationID(), event.Token(), reply)
}

// handleEventDirectMessage routes a private reply to the sender's oldest open absence request.
func handleEventDirectMessage(event *events.DMMessageCreate) {
	if tracker == nil {
		return
	}

	ctx, cancel := eventContext()
	defer cancel()

	userID := event.Message.Author.ID.String()
	handled, err := tracker.DeliverDirect(ctx, userID, event.Message.Content)
	if err != nil {
		sys.LogAttendanceWarn(sys.MsgAbsenceReplyFail, event.Message.Author.ID, err)
	}
	if !handled || strings.TrimSpace(event.Message.Content) == "" {
		return
	}
	// Replies are matched oldest first, so say when another request is still waiting.
	if n := tracker.PendingAbsences(userID); n > 0 {
		text := fmt.Sprintf(sys.MsgAbsenceMorePending, n)
		if _, err := event.Client().Rest.CreateMessage(event.ChannelID, textMessage(text), rest.WithCtx(ctx)); err != nil {
			sys.LogAttendanceWarn(sys.MsgAbsenceReplyFail, event.Message.Author.ID, err)
		}
	}
}

func lookupFailure(err error) string {
	if errors.Is(err, attendance.ErrNotFound) {
		return sys.ErrEventUnknown
	}
	return sys.ErrGenericFailure
}
