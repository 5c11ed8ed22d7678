package attendance

import (
	"slices"
	"time"
)

// Status is the answer a member gave on a poll.
type Status string

const (
	StatusAttending    Status = "attending"
	StatusNotAttending Status = "not_attending"
)

func (s Status) Valid() bool {
	return s == StatusAttending || s == StatusNotAttending
}

func (s Status) Label() string {
	switch s {
	case StatusAttending:
		return "Attending"
	case StatusNotAttending:
		return "Not Attending"
	default:
		return string(s)
	}
}

// NoReasonProvided is recorded when an absence window closes without a reply.
const NoReasonProvided = "No reason provided"

// Response is one member's answer. UserID is unique within an Event.
type Response struct {
	UserID string `bson:"userId" json:"userId"`
	Name   string `bson:"name" json:"name"`
	Status Status `bson:"status" json:"status"`
	Reason string `bson:"reason,omitempty" json:"reason,omitempty"`
}

type Details struct {
	Date      string    `bson:"date" json:"date"`
	Time      string    `bson:"time" json:"time"`
	DateTime  time.Time `bson:"dateTime" json:"dateTime"`
	Mandatory bool      `bson:"isMandatory" json:"isMandatory"`
}

// Event is the persisted record of one poll. ID is the poll message id.
type Event struct {
	ID             string     `bson:"eventId" json:"eventId"`
	ChannelID      string     `bson:"channelId" json:"channelId"`
	GuildID        string     `bson:"guildId,omitempty" json:"guildId,omitempty"`
	Type           string     `bson:"eventType" json:"eventType"`
	Name           string     `bson:"eventName" json:"eventName"`
	Creator        string     `bson:"eventCreator,omitempty" json:"eventCreator,omitempty"`
	Details        Details    `bson:"eventDetails" json:"eventDetails"`
	Responses      []Response `bson:"responses" json:"responses"`
	AttendingCount int        `bson:"attendingCount" json:"attendingCount"`
	AbsentCount    int        `bson:"absentCount" json:"absentCount"`
}

// Deadline is the instant the poll stops accepting votes.
func (e *Event) Deadline() time.Time {
	return e.Details.DateTime
}

func (e *Event) Mandatory() bool {
	return e.Details.Mandatory
}

// Find returns the index of userID's response, or -1.
func (e *Event) Find(userID string) int {
	for i := range e.Responses {
		if e.Responses[i].UserID == userID {
			return i
		}
	}
	return -1
}

// Tally counts responses by status from the response list, ignoring the stored counters.
func (e *Event) Tally() (attending, absent int) {
	for _, r := range e.Responses {
		switch r.Status {
		case StatusAttending:
			attending++
		case StatusNotAttending:
			absent++
		}
	}
	return attending, absent
}

// Drifted reports whether the stored counters disagree with the response list.
func (e *Event) Drifted() bool {
	a, n := e.Tally()
	return a != e.AttendingCount || n != e.AbsentCount
}

// Recount overwrites the counters with the tally of the response list.
func (e *Event) Recount() {
	e.AttendingCount, e.AbsentCount = e.Tally()
}

func (e *Event) Clone() *Event {
	if e == nil {
		return nil
	}
	c := *e
	c.Responses = slices.Clone(e.Responses)
	return &c
}

// VoteResult is returned to the caller of ApplyVote for UI feedback.
type VoteResult struct {
	Status    Status
	Attending int
	Absent    int
	Changed   bool
}

// Roster is the sorted name view of an event's responses.
type Roster struct {
	Attending    []string
	NotAttending []string
	Unresponsive []string
	Privileged   bool
}

// Absentee pairs a name with the recorded absence reason.
type Absentee struct {
	Name   string
	Reason string
}

// Summary is sent to the reporting channel when a mandatory event concludes.
type Summary struct {
	Attending    []string
	NotAttending []Absentee
	Total        int
}

// Member is someone from the expected audience of an event.
type Member struct {
	ID   string
	Name string
}
