package attendance

import (
	"sync"
	"time"
)

// AbsenceOutcome is the terminal state of an absence request.
type AbsenceOutcome string

const (
	AbsenceOpen      AbsenceOutcome = "open"
	AbsenceFulfilled AbsenceOutcome = "fulfilled"
	AbsenceTimedOut  AbsenceOutcome = "timed_out"
	AbsenceCancelled AbsenceOutcome = "cancelled"
)

// Cancellation reasons.
const (
	CancelSwitchedToAttending = "switched_to_attending"
	CancelSuperseded          = "superseded"
	CancelEventCancelled      = "event_cancelled"
)

// AbsenceSession collects one free-text reason from one member for one event.
// It moves from open to exactly one terminal outcome.
type AbsenceSession struct {
	EventID  string
	UserID   string
	Deadline time.Time
	OpenedAt time.Time
	// Silent sessions were reopened after a restart and never sent a new prompt.
	Silent bool

	seq uint64

	mu           sync.Mutex
	outcome      AbsenceOutcome
	cancelReason string
	reason       string
	timer        Timer
}

func newAbsenceSession(eventID, userID string, deadline, now time.Time, silent bool) *AbsenceSession {
	return &AbsenceSession{
		EventID:  eventID,
		UserID:   userID,
		Deadline: deadline,
		OpenedAt: now,
		Silent:   silent,
		outcome:  AbsenceOpen,
	}
}

// Window is how long the session may stay open when opened at now.
func (a *AbsenceSession) Window(now time.Time) time.Duration {
	return a.Deadline.Sub(now)
}

func (a *AbsenceSession) Outcome() AbsenceOutcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome
}

func (a *AbsenceSession) IsOpen() bool {
	return a.Outcome() == AbsenceOpen
}

func (a *AbsenceSession) CancelReason() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cancelReason
}

// Reason is the text that closed the session, if any.
func (a *AbsenceSession) Reason() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.reason
}

func (a *AbsenceSession) arm(t Timer) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.outcome != AbsenceOpen {
		t.Stop()
		return
	}
	a.timer = t
}

// finish applies a terminal outcome if the session is still open. It returns
// false when another outcome already won.
func (a *AbsenceSession) finish(outcome AbsenceOutcome, detail string) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.outcome != AbsenceOpen {
		return false
	}
	a.outcome = outcome
	switch outcome {
	case AbsenceFulfilled:
		a.reason = detail
	case AbsenceTimedOut:
		a.reason = NoReasonProvided
	case AbsenceCancelled:
		a.cancelReason = detail
	}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	return true
}

// halt stops the window timer without deciding an outcome.
func (a *AbsenceSession) halt() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
}

func (a *AbsenceSession) fulfil(reason string) bool { return a.finish(AbsenceFulfilled, reason) }
func (a *AbsenceSession) expire() bool              { return a.finish(AbsenceTimedOut, "") }
func (a *AbsenceSession) cancel(why string) bool    { return a.finish(AbsenceCancelled, why) }

// absenceRouter routes direct messages to the oldest open absence session of a
// user, since one private channel is shared by every event.
type absenceRouter struct {
	mu     sync.Mutex
	seq    uint64
	byUser map[string][]*AbsenceSession
}

func newAbsenceRouter() *absenceRouter {
	return &absenceRouter{byUser: make(map[string][]*AbsenceSession)}
}

func (r *absenceRouter) add(a *AbsenceSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	a.seq = r.seq
	r.byUser[a.UserID] = append(r.byUser[a.UserID], a)
}

func (r *absenceRouter) remove(a *AbsenceSession) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.byUser[a.UserID]
	for i, s := range list {
		if s == a {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(r.byUser, a.UserID)
		return
	}
	r.byUser[a.UserID] = list
}

// oldest returns the first-opened session still open for userID.
func (r *absenceRouter) oldest(userID string) *AbsenceSession {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.byUser[userID] {
		if s.IsOpen() {
			return s
		}
	}
	return nil
}

func (r *absenceRouter) pending(userID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, s := range r.byUser[userID] {
		if s.IsOpen() {
			n++
		}
	}
	return n
}
