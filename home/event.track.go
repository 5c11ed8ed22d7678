package home

import (
	"errors"
	"fmt"
	"strings"

	"github.com/demetori/deme/attendance"
	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/snowflake/v2"
)

// handleEventTrack cross-checks an event's answers against who is sitting in
// the attendance voice channel and posts the report to the summary channel.
func handleEventTrack(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	if !isOfficer(event.Member()) {
		eventRespond(event, sys.ErrEventNoPermission)
		return
	}
	cfg := sys.GlobalConfig
	if cfg == nil || cfg.VoiceChannelID == "" || platform == nil {
		eventRespond(event, sys.ErrEventTrackDisabled)
		return
	}
	voiceID, err := snowflake.Parse(cfg.VoiceChannelID)
	if err != nil {
		eventRespond(event, sys.ErrEventTrackDisabled)
		return
	}
	guildID := event.GuildID()
	if guildID == nil {
		eventRespond(event, sys.ErrGenericFailure)
		return
	}

	name := strings.TrimSpace(data.String("name"))
	date := strings.TrimSpace(data.String("date"))
	if !eventDatePattern.MatchString(date) {
		eventRespond(event, sys.ErrEventInvalidDate)
		return
	}

	_ = event.DeferCreateMessage(true)
	client := event.Client()

	ctx, cancel := eventContext()
	defer cancel()

	ev, err := tracker.Find(ctx, name, date)
	if errors.Is(err, attendance.ErrNotFound) {
		eventFollowUp(client, event.ApplicationID(), event.Token(), fmt.Sprintf(sys.ErrEventNotFound, name, date))
		return
	}
	if err != nil {
		sys.LogAttendanceWarn(sys.MsgEventTrackFail, name, date, err)
		eventFollowUp(client, event.ApplicationID(), event.Token(), sys.ErrGenericFailure)
		return
	}

	audience, err := tracker.Audience(ctx, ev)
	if err != nil {
		sys.LogAttendanceWarn(sys.MsgEventTrackFail, name, date, err)
	}
	report := attendance.CrossCheck(ev, audience, platform.InVoice(*guildID, voiceID))
	text := trackText(ev, report)

	if summaryID, err := snowflake.Parse(cfg.SummaryChannelID); err == nil && cfg.SummaryChannelID != "" {
		err := postText(ctx, client, summaryID, text)
		if err == nil {
			eventFollowUp(client, event.ApplicationID(), event.Token(), fmt.Sprintf(sys.MsgEventTrackPosted, name, date))
			return
		}
		sys.LogAttendanceWarn(sys.MsgEventTrackFail, name, date, err)
	}
	eventFollowUp(client, event.ApplicationID(), event.Token(), text)
}
