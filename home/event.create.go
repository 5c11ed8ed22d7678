package home

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/demetori/deme/attendance"
	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/disgo/events"
	"github.com/disgoorg/disgo/rest"
	"github.com/disgoorg/snowflake/v2"
	"github.com/sho0pi/naturaltime"
)

const (
	requirementMandatory = "Mandatory"
	requirementOptional  = "Non-mandatory"

	eventDateLayout = "02/01/2006"
	eventTimeLayout = "15:04"
)

var (
	eventDatePattern = regexp.MustCompile(`^(0[1-9]|[12]\d|3[01])/(0[1-9]|1[0-2])/(\d{4})$`)
	eventTimePattern = regexp.MustCompile(`^([01]?[0-9]|2[0-3]):([0-5][0-9])$`)

	errEventInvalidDate = errors.New(sys.ErrEventInvalidDate)
	errEventInvalidTime = errors.New(sys.ErrEventInvalidTime)
	errEventMissingWhen = errors.New(sys.ErrEventMissingWhen)
	errEventParseWhen   = errors.New(sys.ErrEventParseWhen)
)

var (
	eventParser     *naturaltime.Parser
	eventParserOnce sync.Once
)

// initEventParser builds the natural language parser on first use.
func initEventParser() {
	eventParserOnce.Do(func() {
		p, err := naturaltime.New()
		if err != nil {
			sys.LogAttendanceWarn(sys.MsgNaturalTimeInitFail, err)
			return
		}
		eventParser = p
	})
}

// eventSchedule is the parsed start of an event: the instant votes close and
// the display strings stored with it.
type eventSchedule struct {
	At   time.Time
	Date string
	Time string
}

// parseEventDate reads DD/MM/YYYY and HH:MM in loc. Dates that do not exist,
// such as 31/02, are rejected rather than rolled over.
func parseEventDate(date, clock string, loc *time.Location) (eventSchedule, error) {
	dm := eventDatePattern.FindStringSubmatch(date)
	if dm == nil {
		return eventSchedule{}, errEventInvalidDate
	}
	tm := eventTimePattern.FindStringSubmatch(clock)
	if tm == nil {
		return eventSchedule{}, errEventInvalidTime
	}

	day, _ := strconv.Atoi(dm[1])
	month, _ := strconv.Atoi(dm[2])
	year, _ := strconv.Atoi(dm[3])
	hour, _ := strconv.Atoi(tm[1])
	minute, _ := strconv.Atoi(tm[2])

	at := time.Date(year, time.Month(month), day, hour, minute, 0, 0, loc)
	if at.Day() != day || int(at.Month()) != month {
		return eventSchedule{}, errEventInvalidDate
	}
	return eventSchedule{At: at, Date: date, Time: fmt.Sprintf("%02d:%02d", hour, minute)}, nil
}

// parseEventWhen resolves a natural language expression relative to now.
func parseEventWhen(when string, now time.Time, loc *time.Location) (eventSchedule, error) {
	initEventParser()
	if eventParser == nil {
		return eventSchedule{}, errEventParseWhen
	}
	result, err := eventParser.ParseDate(when, now.In(loc))
	if err != nil || result == nil {
		return eventSchedule{}, errEventParseWhen
	}
	at := result.In(loc)
	return eventSchedule{At: at, Date: at.Format(eventDateLayout), Time: at.Format(eventTimeLayout)}, nil
}

func resolveEventSchedule(date, clock, when string, now time.Time, loc *time.Location) (eventSchedule, error) {
	switch {
	case date != "" && clock != "":
		return parseEventDate(date, clock, loc)
	case strings.TrimSpace(when) != "":
		return parseEventWhen(when, now, loc)
	default:
		return eventSchedule{}, errEventMissingWhen
	}
}

func eventContext() (context.Context, context.CancelFunc) {
	parent := sys.AppContext
	if parent == nil {
		parent = context.Background()
	}
	return context.WithTimeout(parent, 30*time.Second)
}

func eventLocation() *time.Location {
	if sys.GlobalConfig != nil && sys.GlobalConfig.Timezone != nil {
		return sys.GlobalConfig.Timezone
	}
	return time.UTC
}

// pollChannel picks the configured channel for the requirement type, or the
// channel the command was used in.
func pollChannel(mandatory bool, fallback snowflake.ID) snowflake.ID {
	if cfg := sys.GlobalConfig; cfg != nil {
		id := cfg.OptionalChannelID
		if mandatory {
			id = cfg.MandatoryChannelID
		}
		if parsed, err := snowflake.Parse(id); err == nil && id != "" {
			return parsed
		}
	}
	return fallback
}

func handleEventCreate(event *events.ApplicationCommandInteractionCreate, data discord.SlashCommandInteractionData) {
	if !isOfficer(event.Member()) {
		eventRespond(event, sys.ErrEventNoPermission)
		return
	}

	eventType := data.String("type")
	name := strings.TrimSpace(data.String("name"))
	mandatory := data.String("requirement") == requirementMandatory
	date, _ := data.OptString("date")
	clock, _ := data.OptString("time")
	when, _ := data.OptString("when")

	loc := eventLocation()
	schedule, err := resolveEventSchedule(strings.TrimSpace(date), strings.TrimSpace(clock), when, tracker.Clock().Now(), loc)
	if err != nil {
		eventRespond(event, err.Error())
		return
	}
	if err := tracker.ValidateSchedule(schedule.At); err != nil {
		eventRespond(event, sys.ErrEventPastTime)
		return
	}

	ctx, cancel := eventContext()
	defer cancel()

	if _, err := tracker.Find(ctx, name, schedule.Date); err == nil {
		eventRespond(event, fmt.Sprintf(sys.ErrEventExists, name, schedule.Date))
		return
	}

	_ = event.DeferCreateMessage(true)
	client := event.Client()

	channelID := pollChannel(mandatory, event.Channel().ID())
	ev := &attendance.Event{
		ChannelID: channelID.String(),
		Type:      eventType,
		Name:      name,
		Creator:   event.User().Username,
		Details: attendance.Details{
			Date:      schedule.Date,
			Time:      schedule.Time,
			DateTime:  schedule.At.UTC(),
			Mandatory: mandatory,
		},
	}
	if guildID := event.GuildID(); guildID != nil {
		ev.GuildID = guildID.String()
	}

	msg, err := client.Rest.CreateMessage(channelID, pollCreate(ev), rest.WithCtx(ctx))
	if err != nil {
		sys.LogAttendanceWarn(sys.MsgEventPostFail, err)
		eventFollowUp(client, event.ApplicationID(), event.Token(), sys.ErrEventNoChannel)
		return
	}
	ev.ID = msg.ID.String()

	if err := tracker.Create(ctx, ev); err != nil {
		sys.LogAttendanceWarn(sys.MsgEventCreateFail, err)
		_ = client.Rest.DeleteMessage(channelID, msg.ID, rest.WithCtx(ctx))

		reply := sys.ErrEventCreateFailed
		switch {
		case errors.Is(err, attendance.ErrInvalidSchedule):
			reply = sys.ErrEventPastTime
		case errors.Is(err, attendance.ErrConflict):
			reply = fmt.Sprintf(sys.ErrEventExists, name, schedule.Date)
		case errors.Is(err, attendance.ErrStoreUnavailable):
			reply = sys.ErrEventStoreDown
		}
		eventFollowUp(client, event.ApplicationID(), event.Token(), reply)
		return
	}

	unix := schedule.At.Unix()
	eventFollowUp(client, event.ApplicationID(), event.Token(), fmt.Sprintf(sys.MsgEventCreatedReply, name, unix, unix))
}
