package attendance

import (
	"sync"
	"time"
)

type transition int

const (
	transitionDuplicate transition = iota
	transitionAppend
	transitionToAbsent
	transitionToAttending
)

// Session is the live state of one poll. All fields are guarded by mu except
// the render bookkeeping, which has its own lock.
type Session struct {
	mu       sync.Mutex
	event    *Event
	closed   bool
	dirty    bool
	timer    Timer
	absences map[string]*AbsenceSession

	renderMu      sync.Mutex
	renderPending bool
	rendering     bool
	// paintMu orders Notifier render calls so the concluded render lands last.
	paintMu sync.Mutex
}

func newSession(ev *Event) *Session {
	ev = ev.Clone()
	ev.Recount()
	return &Session{
		event:    ev,
		absences: make(map[string]*AbsenceSession),
	}
}

func (s *Session) ID() string {
	return s.event.ID
}

// Snapshot returns a copy of the event safe to hand to other goroutines.
func (s *Session) Snapshot() *Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.event.Clone()
}

// acceptsVotesLocked reports whether a vote at now may still be applied.
func (s *Session) acceptsVotesLocked(now time.Time) bool {
	return !s.closed && now.Before(s.event.Details.DateTime)
}

// applyLocked performs the in-memory half of a vote and reports which
// transition happened along with the resulting response.
func (s *Session) applyLocked(userID, name string, vote Status) (transition, Response) {
	ev := s.event
	idx := ev.Find(userID)
	if idx < 0 {
		r := Response{UserID: userID, Name: name, Status: vote}
		ev.Responses = append(ev.Responses, r)
		s.bumpLocked(vote, 1)
		return transitionAppend, r
	}

	r := &ev.Responses[idx]
	if r.Status == vote {
		return transitionDuplicate, *r
	}

	s.bumpLocked(r.Status, -1)
	s.bumpLocked(vote, 1)
	r.Status = vote
	if name != "" {
		r.Name = name
	}
	if vote == StatusAttending {
		r.Reason = ""
		return transitionToAttending, *r
	}
	return transitionToAbsent, *r
}

func (s *Session) bumpLocked(status Status, delta int) {
	switch status {
	case StatusAttending:
		s.event.AttendingCount += delta
	case StatusNotAttending:
		s.event.AbsentCount += delta
	}
}

// setReasonLocked records reason on a not-attending response. With onlyEmpty
// an existing reason is kept. It reports whether anything changed.
func (s *Session) setReasonLocked(userID, reason string, onlyEmpty bool) bool {
	idx := s.event.Find(userID)
	if idx < 0 {
		return false
	}
	r := &s.event.Responses[idx]
	if r.Status != StatusNotAttending || r.Reason == reason || (onlyEmpty && r.Reason != "") {
		return false
	}
	r.Reason = reason
	return true
}

func (s *Session) resultLocked(status Status, changed bool) VoteResult {
	return VoteResult{
		Status:    status,
		Attending: s.event.AttendingCount,
		Absent:    s.event.AbsentCount,
		Changed:   changed,
	}
}

// openAbsences returns the sub-sessions still open, for shutdown and finalize.
func (s *Session) openAbsencesLocked() []*AbsenceSession {
	out := make([]*AbsenceSession, 0, len(s.absences))
	for _, a := range s.absences {
		if a.IsOpen() {
			out = append(out, a)
		}
	}
	return out
}

// Absence returns the open sub-session for userID, if any.
func (s *Session) Absence(userID string) *AbsenceSession {
	s.mu.Lock()
	defer s.mu.Unlock()
	a := s.absences[userID]
	if a == nil || !a.IsOpen() {
		return nil
	}
	return a
}

// Closed reports whether the session has been finalized, cancelled or shut down.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Dirty reports whether memory holds changes the store has not confirmed.
func (s *Session) Dirty() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dirty
}
