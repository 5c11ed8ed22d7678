package home

import (
	"errors"
	"fmt"

	"github.com/demetori/deme/attendance"
	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
)

func handleEventCancel(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	if !isOfficer(event.Member()) {
		eventRespond(event, sys.ErrEventNoPermission)
		return
	}
	eventID, ok := eventIDOption(data)
	if !ok {
		eventRespond(event, sys.ErrEventInvalidID)
		return
	}

	_ = event.DeferCreateMessage(true)

	ctx, cancel := eventContext()
	defer cancel()

	ev, err := tracker.Lookup(ctx, eventID)
	if err != nil {
		eventFollowUp(event.Client(), event.ApplicationID(), event.Token(), lookupFailure(err))
		return
	}

	reply := fmt.Sprintf(sys.MsgEventCancelledReply, ev.Name)
	switch err := tracker.Cancel(ctx, eventID); {
	case errors.Is(err, attendance.ErrSessionNotFound), errors.Is(err, attendance.ErrEventClosed):
		reply = sys.ErrEventNotLive
	case err != nil:
		sys.LogAttendanceWarn(sys.MsgEventCancelFail, eventID, err)
		reply = sys.ErrGenericFailure
	}
	eventFollowUp(event.Client(), event.ApplicationID(), event.Token(), reply)
}
