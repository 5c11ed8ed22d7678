package home

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/demetori/deme/attendance"
	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/discord"
)

// Button custom IDs. The poll message ID is the event ID, so the buttons carry no suffix.
const (
	eventButtonPrefix    = "event:"
	eventButtonAttend    = eventButtonPrefix + string(attendance.StatusAttending)
	eventButtonAbsent    = eventButtonPrefix + string(attendance.StatusNotAttending)
	eventButtonResponses = eventButtonPrefix + "responses"
)

const (
	pollHeaderMandatory    = "**NEW MANDATORY EVENT:**"
	pollHeaderNonMandatory = "**NEW NON-MANDATORY EVENT:**"
	pollInstructions       = "**Click the ✅ button if you're attending, or ❌ if you aren't.**"
	pollMandatoryNote      = "This is a **mandatory** event. If you will be absent, please respond to the bot's DM with a reason for absence."
	pollOptionalNote       = "This is a **non-mandatory** event."
	pollConcluded          = "Registration is no longer available - event has passed."
	pollNoOne              = "No one"
	pollNoOneYet           = "No one yet"
	pollNoUnresponsive     = "No unresponsive members"
)

func pollTitle(ev *attendance.Event) string {
	return fmt.Sprintf("## ⚔️ %s ⚔️", ev.Name)
}

func pollText(ev *attendance.Event, concluded bool) string {
	var sb strings.Builder
	if !concluded {
		if ev.Mandatory() {
			sb.WriteString(pollHeaderMandatory + "\n")
		} else {
			sb.WriteString(pollHeaderNonMandatory + "\n")
		}
	}
	sb.WriteString(pollTitle(ev) + "\n")

	if concluded {
		sb.WriteString(pollConcluded)
		return sb.String()
	}

	sb.WriteString(pollInstructions + "\n\n")
	if ev.Mandatory() {
		sb.WriteString(pollMandatoryNote)
	} else {
		sb.WriteString(pollOptionalNote)
	}
	sb.WriteString(fmt.Sprintf("\n\n🕰️ **Time:** <t:%d:R>", ev.Deadline().Unix()))
	return sb.String()
}

func pollButtons(ev *attendance.Event, disabled bool) []discord.InteractiveComponent {
	attend := discord.NewButton(discord.ButtonStyleSecondary, fmt.Sprintf("✅ %d", ev.AttendingCount), eventButtonAttend, "", 0)
	absent := discord.NewButton(discord.ButtonStyleSecondary, fmt.Sprintf("❌ %d", ev.AbsentCount), eventButtonAbsent, "", 0)
	responses := discord.NewButton(discord.ButtonStylePrimary, "Responses", eventButtonResponses, "", 0)
	if disabled {
		attend = attend.WithDisabled(true)
		absent = absent.WithDisabled(true)
		responses = responses.WithDisabled(true)
	}
	return []discord.InteractiveComponent{attend, absent, responses}
}

func pollContainer(ev *attendance.Event, concluded bool) discord.ContainerComponent {
	parts := []discord.ContainerSubComponent{
		discord.NewTextDisplay(pollText(ev, concluded)),
	}
	if img := eventImage(ev.Type); img != "" {
		parts = append(parts, discord.NewMediaGallery(
			discord.MediaGalleryItem{Media: discord.UnfurledMediaItem{URL: img}},
		))
	}
	parts = append(parts,
		discord.NewSeparator(discord.SeparatorSpacingSizeSmall).WithDivider(true),
		discord.NewActionRow(pollButtons(ev, concluded)...),
	)
	return discord.NewContainer(parts...)
}

func pollCreate(ev *attendance.Event) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(pollContainer(ev, false)).
		Build()
}

func pollUpdate(ev *attendance.Event, concluded bool) discord.MessageUpdate {
	return discord.NewMessageUpdateBuilder().
		SetIsComponentsV2(true).
		SetComponents(pollContainer(ev, concluded)).
		Build()
}

// summaryText lists who came and who did not, with their reasons, in response order.
func summaryText(ev *attendance.Event, s attendance.Summary) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## REACTION summary for %s on %s:\n", ev.Name, ev.Details.Date))

	sb.WriteString(fmt.Sprintf("**Attending (%d):**\n", len(s.Attending)))
	if len(s.Attending) == 0 {
		sb.WriteString(pollNoOne + "\n")
	}
	for _, name := range s.Attending {
		sb.WriteString(name + "\n")
	}

	sb.WriteString(fmt.Sprintf("\n**Not Attending (%d):**\n", len(s.NotAttending)))
	if len(s.NotAttending) == 0 {
		sb.WriteString(pollNoOne + "\n")
	}
	for _, a := range s.NotAttending {
		sb.WriteString(fmt.Sprintf("%s - %s\n", a.Name, a.Reason))
	}

	sb.WriteString(fmt.Sprintf("\n-# Total responses: %d", s.Total))
	return sb.String()
}

func rosterText(r attendance.Roster) string {
	var sb strings.Builder
	sb.WriteString("**Attending:**\n" + joinOr(r.Attending, pollNoOneYet))
	sb.WriteString("\n\n**Not Attending:**\n" + joinOr(r.NotAttending, pollNoOneYet))
	if r.Privileged {
		sb.WriteString("\n\n**Unresponsive:**\n" + joinOr(r.Unresponsive, pollNoUnresponsive))
	}
	return sb.String()
}

func trackText(ev *attendance.Event, r attendance.TrackReport) string {
	absentees := make([]string, 0, len(r.NotAttendingNotInVoice))
	for _, a := range r.NotAttendingNotInVoice {
		absentees = append(absentees, fmt.Sprintf("%s - %s", a.Name, a.Reason))
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("## Attendance for %s on %s\n", ev.Name, ev.Details.Date))
	section := func(title string, names []string) {
		sb.WriteString(fmt.Sprintf("\n**%s (%d):**\n%s\n", title, len(names), joinOr(names, "None")))
	}
	section("✅ Attending & in voice", r.AttendingInVoice)
	section("⚠️ Attending & not in voice", r.AttendingNotInVoice)
	section("❓ Not attending & in voice", r.NotAttendingInVoice)
	section("❌ Not attending & not in voice", absentees)
	section("🔊 No response & in voice", r.NoResponseInVoice)
	section("🔇 No response & not in voice", r.NoResponseNotInVoice)
	return sb.String()
}

func directText(msg attendance.DirectMessage) string {
	event := fmt.Sprintf("**%s** on %s", msg.EventName, msg.EventDate)
	switch msg.Kind {
	case attendance.DirectAbsenceRequest:
		return fmt.Sprintf("### %s\n%s", sys.MsgAbsenceRequestTitle, fmt.Sprintf(sys.MsgAbsenceRequestBody, msg.EventName, msg.EventDate))
	case attendance.DirectAbsenceThanks:
		return fmt.Sprintf(sys.MsgAbsenceThanks, event)
	case attendance.DirectAbsenceReprompt:
		return sys.MsgAbsenceReprompt
	case attendance.DirectAbsenceTimedOut:
		return fmt.Sprintf(sys.MsgAbsenceTimedOut, event)
	case attendance.DirectAbsenceNotNeeded:
		return fmt.Sprintf(sys.MsgAbsenceNotNeeded, event)
	default:
		return ""
	}
}

// textLimit keeps one message under Discord's 4000 character cap on text display content.
const textLimit = 3800

// splitText cuts text into pieces of at most limit runes, breaking after a
// newline where possible. It always returns at least one piece.
func splitText(text string, limit int) []string {
	if utf8.RuneCountInString(text) <= limit {
		return []string{text}
	}

	var parts []string
	var cur strings.Builder
	size := 0
	flush := func() {
		if piece := strings.TrimRight(cur.String(), "\n"); piece != "" {
			parts = append(parts, piece)
		}
		cur.Reset()
		size = 0
	}

	for _, line := range strings.SplitAfter(text, "\n") {
		n := utf8.RuneCountInString(line)
		if size+n > limit {
			flush()
		}
		for n > limit {
			r := []rune(line)
			parts = append(parts, string(r[:limit]))
			line = string(r[limit:])
			n -= limit
		}
		cur.WriteString(line)
		size += n
	}
	flush()

	if len(parts) == 0 {
		return []string{""}
	}
	return parts
}

// textMessages renders text as one or more V2 messages.
func textMessages(content string) []discord.MessageCreate {
	parts := splitText(content, textLimit)
	out := make([]discord.MessageCreate, 0, len(parts))
	for _, part := range parts {
		out = append(out, textMessage(part))
	}
	return out
}

func textMessage(content string) discord.MessageCreate {
	return discord.NewMessageCreateBuilder().
		SetIsComponentsV2(true).
		AddComponents(discord.NewContainer(discord.NewTextDisplay(content))).
		Build()
}

func joinOr(names []string, empty string) string {
	if len(names) == 0 {
		return empty
	}
	return strings.Join(names, "\n")
}
