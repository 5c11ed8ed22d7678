package home

import (
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/demetori/deme/attendance"
	"github.com/demetori/deme/sys"
	"github.com/disgoorg/disgo/discord"
	"github.com/disgoorg/snowflake/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventDate(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	tests := []struct {
		name    string
		date    string
		clock   string
		want    time.Time
		wantErr error
	}{
		{"winter offset", "14/01/2026", "20:00", time.Date(2026, 1, 14, 19, 0, 0, 0, time.UTC), nil},
		{"summer offset", "14/07/2026", "20:00", time.Date(2026, 7, 14, 18, 0, 0, 0, time.UTC), nil},
		{"single digit hour", "14/07/2026", "9:05", time.Date(2026, 7, 14, 7, 5, 0, 0, time.UTC), nil},
		{"bad date format", "2026-07-14", "20:00", time.Time{}, errEventInvalidDate},
		{"impossible day", "31/02/2026", "20:00", time.Time{}, errEventInvalidDate},
		{"bad time", "14/07/2026", "24:00", time.Time{}, errEventInvalidTime},
		{"twelve hour clock", "14/07/2026", "8pm", time.Time{}, errEventInvalidTime},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseEventDate(tt.date, tt.clock, paris)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.True(t, got.At.Equal(tt.want), "got %s", got.At)
			assert.Equal(t, tt.date, got.Date)
		})
	}
}

func TestResolveEventScheduleNeedsInput(t *testing.T) {
	_, err := resolveEventSchedule("14/07/2026", "", "  ", time.Now(), time.UTC)
	assert.ErrorIs(t, err, errEventMissingWhen)

	got, err := resolveEventSchedule("14/07/2026", "9:05", "", time.Now(), time.UTC)
	require.NoError(t, err)
	assert.Equal(t, "09:05", got.Time)
}

func TestVoteReply(t *testing.T) {
	ev := &attendance.Event{Name: "Castle Siege", Details: attendance.Details{Date: "14/03/2026"}}

	assert.Equal(t, `You have selected: Not Attending for event "Castle Siege" on 14/03/2026.`,
		voteReply(ev, attendance.StatusNotAttending, nil))
	assert.Equal(t, sys.MsgVoteAlreadySelected, voteReply(nil, attendance.StatusAttending, attendance.ErrDuplicateSelection))
	assert.Equal(t, sys.ErrEventClosed, voteReply(nil, attendance.StatusAttending, attendance.ErrEventClosed))
	assert.Equal(t, sys.ErrEventUnknown, voteReply(nil, attendance.StatusAttending, fmt.Errorf("%w: x", attendance.ErrSessionNotFound)))
	assert.Equal(t, sys.MsgVoteNotSaved, voteReply(nil, attendance.StatusAttending, attendance.ErrStoreUnavailable))
	assert.Equal(t, sys.ErrGenericFailure, voteReply(nil, attendance.StatusAttending, nil))
}

func TestPollButtons(t *testing.T) {
	ev := &attendance.Event{AttendingCount: 3, AbsentCount: 2}

	live := pollButtons(ev, false)
	require.Len(t, live, 3)
	attend := live[0].(discord.ButtonComponent)
	absent := live[1].(discord.ButtonComponent)
	assert.Equal(t, "✅ 3", attend.Label)
	assert.Equal(t, "❌ 2", absent.Label)
	assert.Equal(t, eventButtonAttend, attend.CustomID)
	assert.Equal(t, "event:not_attending", absent.CustomID)
	assert.False(t, attend.Disabled)

	for _, c := range pollButtons(ev, true) {
		assert.True(t, c.(discord.ButtonComponent).Disabled)
	}
}

func TestPollText(t *testing.T) {
	ev := &attendance.Event{
		Name:    "Castle Siege",
		Details: attendance.Details{DateTime: time.Unix(1773514800, 0), Mandatory: true},
	}
	text := pollText(ev, false)
	assert.Contains(t, text, pollHeaderMandatory)
	assert.Contains(t, text, pollMandatoryNote)
	assert.Contains(t, text, "<t:1773514800:R>")

	concluded := pollText(ev, true)
	assert.Contains(t, concluded, pollConcluded)
	assert.NotContains(t, concluded, pollHeaderMandatory)
}

func TestSummaryText(t *testing.T) {
	ev := &attendance.Event{Name: "Castle Siege", Details: attendance.Details{Date: "14/03/2026"}}
	s := attendance.Summary{
		Attending:    []string{"Ayla", "Bram"},
		NotAttending: []attendance.Absentee{{Name: "Dax", Reason: "work"}, {Name: "Eli", Reason: attendance.NoReasonProvided}},
		Total:        4,
	}

	text := summaryText(ev, s)
	assert.Contains(t, text, "**Attending (2):**\nAyla\nBram\n")
	assert.Contains(t, text, "**Not Attending (2):**\nDax - work\nEli - No reason provided\n")
	assert.Contains(t, text, "Total responses: 4")

	empty := summaryText(ev, attendance.Summary{})
	assert.Contains(t, empty, "**Attending (0):**\nNo one\n")
}

func TestSummaryTextSplitsLongOutput(t *testing.T) {
	ev := &attendance.Event{Name: "Castle Siege", Details: attendance.Details{Date: "14/03/2026"}}
	var s attendance.Summary
	for i := 0; i < 10; i++ {
		s.NotAttending = append(s.NotAttending, attendance.Absentee{
			Name:   fmt.Sprintf("member%d", i),
			Reason: strings.Repeat("é", attendance.MaxReasonLength),
		})
	}
	s.Total = len(s.NotAttending)

	text := summaryText(ev, s)
	require.Greater(t, utf8.RuneCountInString(text), textLimit)

	parts := splitText(text, textLimit)
	require.Greater(t, len(parts), 1)
	for _, part := range parts {
		assert.LessOrEqual(t, utf8.RuneCountInString(part), textLimit)
	}
	joined := strings.Join(parts, "\n")
	for _, a := range s.NotAttending {
		assert.Contains(t, joined, a.Name+" - "+a.Reason)
	}
	assert.Len(t, textMessages(text), len(parts))
}

func TestSplitText(t *testing.T) {
	assert.Equal(t, []string{"short"}, splitText("short", 10))
	assert.Equal(t, []string{""}, splitText("", 10))
	assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, splitText("aaaa\nbbbb\ncccc", 10))
	assert.Equal(t, []string{"aaaaa", "aaaaa", "aa"}, splitText("aaaaaaaaaaaa", 5))
}

func TestRosterText(t *testing.T) {
	r := attendance.Roster{Attending: []string{"Ayla"}}
	assert.Equal(t, "**Attending:**\nAyla\n\n**Not Attending:**\nNo one yet", rosterText(r))

	r.Privileged = true
	assert.Contains(t, rosterText(r), "**Unresponsive:**\nNo unresponsive members")
}

func TestDirectText(t *testing.T) {
	msg := attendance.DirectMessage{EventName: "Castle Siege", EventDate: "14/03/2026"}

	msg.Kind = attendance.DirectAbsenceRequest
	assert.Contains(t, directText(msg), "not attending Castle Siege (14/03/2026)")
	msg.Kind = attendance.DirectAbsenceReprompt
	assert.Equal(t, sys.MsgAbsenceReprompt, directText(msg))
	msg.Kind = attendance.DirectAbsenceNotNeeded
	assert.Contains(t, directText(msg), "**Castle Siege** on 14/03/2026")
}

func TestMatchEventNames(t *testing.T) {
	got := matchEventNames("TEVENT")
	assert.Equal(t, []string{"Tevent (Conflict)", "Tevent (Peace)"}, got)
	assert.Len(t, matchEventNames(""), 25)
	assert.Empty(t, matchEventNames("no such boss"))
}

func TestEventImage(t *testing.T) {
	assert.Equal(t, eventImages["Archboss"], eventImage("Archboss"))
	assert.Equal(t, backupEventImage, eventImage("Unknown"))
}

func TestPingText(t *testing.T) {
	sent := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	id := snowflake.New(sent)

	text := pingText(id, 35*time.Millisecond, sent.Add(120*time.Millisecond))
	assert.Contains(t, text, "**Interaction:** 120ms")
	assert.Contains(t, text, "**Gateway:** 35ms")
	assert.NotContains(t, pingText(id, 0, sent), "Gateway")
}
