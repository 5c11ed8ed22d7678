package attendance

import (
	"slices"
	"strings"
)

func sortNames(names []string) {
	slices.SortStableFunc(names, func(a, b string) int {
		if c := strings.Compare(strings.ToLower(a), strings.ToLower(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
}

func sortAbsentees(list []Absentee) {
	slices.SortStableFunc(list, func(a, b Absentee) int {
		if c := strings.Compare(strings.ToLower(a.Name), strings.ToLower(b.Name)); c != 0 {
			return c
		}
		return strings.Compare(a.Name, b.Name)
	})
}

// BuildRoster splits responses into alphabetical name lists.
func BuildRoster(ev *Event) Roster {
	r := Roster{Attending: []string{}, NotAttending: []string{}}
	for _, resp := range ev.Responses {
		switch resp.Status {
		case StatusAttending:
			r.Attending = append(r.Attending, resp.Name)
		case StatusNotAttending:
			r.NotAttending = append(r.NotAttending, resp.Name)
		}
	}
	sortNames(r.Attending)
	sortNames(r.NotAttending)
	return r
}

// Unresponsive is the audience minus everyone who responded, by display name.
func Unresponsive(ev *Event, audience []Member) []string {
	responded := make(map[string]struct{}, len(ev.Responses))
	for _, r := range ev.Responses {
		responded[r.UserID] = struct{}{}
	}

	out := []string{}
	for _, m := range audience {
		if _, ok := responded[m.ID]; !ok {
			out = append(out, m.Name)
		}
	}
	sortNames(out)
	return out
}

// BuildSummary lists attendees and absentees in response order, with the
// fallback reason filled in for absentees who never gave one.
func BuildSummary(ev *Event) Summary {
	s := Summary{Attending: []string{}, NotAttending: []Absentee{}}
	for _, r := range ev.Responses {
		switch r.Status {
		case StatusAttending:
			s.Attending = append(s.Attending, r.Name)
		case StatusNotAttending:
			reason := r.Reason
			if reason == "" {
				reason = NoReasonProvided
			}
			s.NotAttending = append(s.NotAttending, Absentee{Name: r.Name, Reason: reason})
		}
	}
	s.Total = len(s.Attending) + len(s.NotAttending)
	return s
}
