package home

import (
	"strings"

	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
)

func handleEventResponses(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	eventID, ok := eventIDOption(data)
	if !ok {
		eventRespond(event, sys.ErrEventInvalidID)
		return
	}

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

// eventIDOption reads the "event" option, accepting a bare ID or a message link.
func eventIDOption(data discord.SlashCommandInteractionData) (string, bool) {
	raw := strings.TrimSpace(data.String("event"))
	if i := strings.LastIndex(raw, "/"); i >= 0 {
		raw = raw[i+1:]
	}
	id, err := snowflake.Parse(raw)
	if err != nil || id == 0 {
		return "", false
	}
	return id.String(), true
}
