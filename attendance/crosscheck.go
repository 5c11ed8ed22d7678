package attendance

// TrackReport buckets an event's audience by their answer and whether they
// were found in the attendance voice channel.
type TrackReport struct {
	AttendingInVoice       []string
	AttendingNotInVoice    []string
	NotAttendingInVoice    []string
	NotAttendingNotInVoice []Absentee
	NoResponseInVoice      []string
	NoResponseNotInVoice   []string
}

// CrossCheck compares responses with the set of user ids present in voice.
// Audience members who never responded land in the no-response buckets.
func CrossCheck(ev *Event, audience []Member, inVoice map[string]bool) TrackReport {
	t := TrackReport{
		AttendingInVoice:       []string{},
		AttendingNotInVoice:    []string{},
		NotAttendingInVoice:    []string{},
		NotAttendingNotInVoice: []Absentee{},
		NoResponseInVoice:      []string{},
		NoResponseNotInVoice:   []string{},
	}

	responded := make(map[string]struct{}, len(ev.Responses))
	for _, r := range ev.Responses {
		responded[r.UserID] = struct{}{}
		present := inVoice[r.UserID]
		switch r.Status {
		case StatusAttending:
			if present {
				t.AttendingInVoice = append(t.AttendingInVoice, r.Name)
			} else {
				t.AttendingNotInVoice = append(t.AttendingNotInVoice, r.Name)
			}
		case StatusNotAttending:
			if present {
				t.NotAttendingInVoice = append(t.NotAttendingInVoice, r.Name)
			} else {
				reason := r.Reason
				if reason == "" {
					reason = NoReasonProvided
				}
				t.NotAttendingNotInVoice = append(t.NotAttendingNotInVoice, Absentee{Name: r.Name, Reason: reason})
			}
		}
	}

	for _, m := range audience {
		if _, ok := responded[m.ID]; ok {
			continue
		}
		if inVoice[m.ID] {
			t.NoResponseInVoice = append(t.NoResponseInVoice, m.Name)
		} else {
			t.NoResponseNotInVoice = append(t.NoResponseNotInVoice, m.Name)
		}
	}

	sortNames(t.AttendingInVoice)
	sortNames(t.AttendingNotInVoice)
	sortNames(t.NotAttendingInVoice)
	sortAbsentees(t.NotAttendingNotInVoice)
	sortNames(t.NoResponseInVoice)
	sortNames(t.NoResponseNotInVoice)
	return t
}
