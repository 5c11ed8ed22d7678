package attendance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/demetori/deme/sys"
)

// MaxReasonLength caps stored absence reasons, in runes.
const MaxReasonLength = 500

// DefaultRetryDelays are the pauses between store write attempts.
var DefaultRetryDelays = []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, time.Second}

type Options struct {
	// RetryDelays overrides DefaultRetryDelays. An empty non-nil slice disables retries.
	RetryDelays []time.Duration
	// Dispatch runs notifier calls off the caller's goroutine. Defaults to sys.SafeGo.
	Dispatch func(func())
}

// Controller owns the registry of live poll sessions and applies every
// transition on them: votes, absence replies, deadlines and cancellation.
type Controller struct {
	store     Store
	notifier  Notifier
	directory Directory
	clock     Clock
	retry     []time.Duration
	dispatch  func(func())

	mu       sync.RWMutex
	sessions map[string]*Session
	router   *absenceRouter
}

func NewController(store Store, notifier Notifier, directory Directory, clock Clock, opts Options) *Controller {
	if clock == nil {
		clock = SystemClock()
	}
	retry := opts.RetryDelays
	if retry == nil {
		retry = DefaultRetryDelays
	}
	dispatch := opts.Dispatch
	if dispatch == nil {
		dispatch = sys.SafeGo
	}
	return &Controller{
		store:     store,
		notifier:  notifier,
		directory: directory,
		clock:     clock,
		retry:     retry,
		dispatch:  dispatch,
		sessions:  make(map[string]*Session),
		router:    newAbsenceRouter(),
	}
}

func (c *Controller) Clock() Clock { return c.clock }

// Session returns the live session for eventID, or nil.
func (c *Controller) Session(eventID string) *Session {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.sessions[eventID]
}

// Snapshot returns a copy of a live event.
func (c *Controller) Snapshot(eventID string) (*Event, bool) {
	s := c.Session(eventID)
	if s == nil {
		return nil, false
	}
	return s.Snapshot(), true
}

// Active lists the ids of live sessions.
func (c *Controller) Active() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	ids := make([]string, 0, len(c.sessions))
	for id := range c.sessions {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ValidateSchedule rejects deadlines that are not in the future.
func (c *Controller) ValidateSchedule(deadline time.Time) error {
	if !deadline.After(c.clock.Now()) {
		return fmt.Errorf("%w: %s", ErrInvalidSchedule, deadline.Format(time.RFC3339))
	}
	return nil
}

// Create persists a new event with no responses and starts its session.
func (c *Controller) Create(ctx context.Context, ev *Event) error {
	if err := c.ValidateSchedule(ev.Deadline()); err != nil {
		return err
	}
	if c.Session(ev.ID) != nil {
		return fmt.Errorf("%w: event %s is already live", ErrConflict, ev.ID)
	}

	rec := ev.Clone()
	rec.Responses = []Response{}
	rec.AttendingCount, rec.AbsentCount = 0, 0

	if err := c.retryWrite(ctx, rec.ID, func(ctx context.Context) error {
		return c.store.Insert(ctx, rec)
	}); err != nil {
		c.discardInsert(rec.ID)
		if errors.Is(err, ErrConflict) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	if _, fresh := c.startSession(rec, c.clock.Now()); !fresh {
		return fmt.Errorf("%w: event %s is already live", ErrConflict, rec.ID)
	}
	sys.LogAttendance(sys.MsgEventCreated, rec.Name, rec.Details.Date, rec.Creator, rec.ID)
	return nil
}

// discardInsert removes a record an unacknowledged Insert may still have
// committed. Records are keyed by the fresh poll message id, so this never
// touches another event.
func (c *Controller) discardInsert(eventID string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := c.store.Delete(ctx, eventID); err != nil && !errors.Is(err, ErrNotFound) {
		sys.LogAttendanceWarn(sys.MsgEventDiscardFail, eventID, err)
	}
}

// startSession registers a session for ev and arms its deadline relative to
// now. It returns the existing session and false if one is already live.
func (c *Controller) startSession(ev *Event, now time.Time) (*Session, bool) {
	s := newSession(ev)

	c.mu.Lock()
	if existing, ok := c.sessions[ev.ID]; ok {
		c.mu.Unlock()
		return existing, false
	}
	c.sessions[ev.ID] = s
	c.mu.Unlock()

	id := ev.ID
	s.mu.Lock()
	s.timer = c.clock.AfterFunc(ev.Deadline().Sub(now), func() { c.onDeadline(id) })
	s.mu.Unlock()

	sys.ActiveSessions.Inc()
	return s, true
}

func (c *Controller) unregister(s *Session) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessions[s.ID()] == s {
		delete(c.sessions, s.ID())
		sys.ActiveSessions.Dec()
	}
}

// onDeadline runs on the session timer. Finalize logs its own failures.
func (c *Controller) onDeadline(eventID string) {
	_ = c.Finalize(context.Background(), eventID)
}

// ApplyVote records userID's answer. Re-selecting the current answer returns
// ErrDuplicateSelection with Changed false. A store failure after retries
// returns ErrStoreUnavailable with the vote still applied in memory.
func (c *Controller) ApplyVote(ctx context.Context, eventID, userID, name string, vote Status) (VoteResult, error) {
	if !vote.Valid() {
		return VoteResult{}, fmt.Errorf("unknown vote %q", vote)
	}

	s := c.Session(eventID)
	if s == nil {
		return VoteResult{}, c.missingSession(ctx, eventID, vote)
	}

	res, err := c.applyVote(ctx, s, userID, name, vote)
	if res.Changed {
		c.requestRender(s)
	}
	return res, err
}

func (c *Controller) missingSession(ctx context.Context, eventID string, vote Status) error {
	ev, err := c.store.FindByID(ctx, eventID)
	if err == nil && !c.clock.Now().Before(ev.Deadline()) {
		sys.VotesTotal.WithLabelValues(string(vote), "closed").Inc()
		return ErrEventClosed
	}
	return fmt.Errorf("%w: %s", ErrSessionNotFound, eventID)
}

func (c *Controller) applyVote(ctx context.Context, s *Session, userID, name string, vote Status) (VoteResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := c.clock.Now()
	if !s.acceptsVotesLocked(now) {
		sys.VotesTotal.WithLabelValues(string(vote), "closed").Inc()
		return VoteResult{}, ErrEventClosed
	}

	ev := s.event
	tr, resp := s.applyLocked(userID, name, vote)

	var err error
	outcome := "recorded"
	switch tr {
	case transitionDuplicate:
		sys.VotesTotal.WithLabelValues(string(vote), "duplicate").Inc()
		sys.LogDebug(sys.MsgEventVoteDuplicate, resp.Name, vote.Label(), ev.Name)
		return s.resultLocked(vote, false), ErrDuplicateSelection

	case transitionAppend:
		err = c.persistLocked(ctx, s, func(ctx context.Context) error {
			return c.store.AppendResponse(ctx, ev.ID, resp)
		})
		sys.LogAttendance(sys.MsgEventVote, resp.Name, vote.Label(), ev.Name, ev.Details.Date)
		if vote == StatusNotAttending && ev.Mandatory() {
			c.openAbsenceLocked(s, userID, now, false)
		}

	case transitionToAbsent:
		outcome = "switched"
		err = c.persistLocked(ctx, s, func(ctx context.Context) error {
			return c.store.SwitchStatus(ctx, ev.ID, userID, StatusAttending, StatusNotAttending, resp.Name)
		})
		sys.LogAttendance(sys.MsgEventSwitched, resp.Name, vote.Label(), ev.Name, ev.Details.Date)
		if ev.Mandatory() {
			c.openAbsenceLocked(s, userID, now, false)
		}

	case transitionToAttending:
		outcome = "switched"
		err = c.persistLocked(ctx, s, func(ctx context.Context) error {
			return c.store.SwitchStatus(ctx, ev.ID, userID, StatusNotAttending, StatusAttending, resp.Name)
		})
		sys.LogAttendance(sys.MsgEventSwitched, resp.Name, vote.Label(), ev.Name, ev.Details.Date)
		c.cancelAbsenceLocked(s, userID, CancelSwitchedToAttending, true)
	}

	if err != nil {
		outcome = "unsaved"
	}
	sys.VotesTotal.WithLabelValues(string(vote), outcome).Inc()
	return s.resultLocked(vote, true), err
}

// DeliverDirect hands a private message from userID to their oldest open
// absence request. It reports false when the user has nothing pending.
func (c *Controller) DeliverDirect(ctx context.Context, userID, content string) (bool, error) {
	for {
		a := c.router.oldest(userID)
		if a == nil {
			return false, nil
		}
		s := c.Session(a.EventID)
		if s == nil {
			c.router.remove(a)
			continue
		}
		handled, stale, err := c.deliverTo(ctx, s, a, content)
		if stale {
			c.router.remove(a)
			continue
		}
		return handled, err
	}
}

// PendingAbsences is the number of open absence requests for userID.
func (c *Controller) PendingAbsences(userID string) int {
	return c.router.pending(userID)
}

func (c *Controller) deliverTo(ctx context.Context, s *Session, a *AbsenceSession, content string) (handled, stale bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !a.IsOpen() || s.absences[a.UserID] != a {
		return false, true, nil
	}
	if !c.clock.Now().Before(a.Deadline) {
		c.expireAbsenceLocked(ctx, s, a, true)
		return true, false, nil
	}

	text := strings.TrimSpace(content)
	if text == "" {
		c.sendDirect(a.UserID, c.direct(s.event, DirectAbsenceReprompt))
		return true, false, nil
	}
	if r := []rune(text); len(r) > MaxReasonLength {
		text = string(r[:MaxReasonLength])
	}

	if !a.fulfil(text) {
		return false, true, nil
	}
	c.dropAbsenceLocked(s, a)
	sys.AbsenceOutcomesTotal.WithLabelValues(string(AbsenceFulfilled)).Inc()
	sys.LogAttendance(sys.MsgAbsenceClosed, a.UserID, s.event.Name, AbsenceFulfilled)

	ev := s.event
	if s.setReasonLocked(a.UserID, text, false) {
		err = c.persistLocked(ctx, s, func(ctx context.Context) error {
			return c.store.SetReason(ctx, ev.ID, a.UserID, text)
		})
		if err != nil {
			sys.LogWarn(sys.MsgAbsenceReasonStoreFail, a.UserID, ev.ID, err)
		}
	}
	c.sendDirect(a.UserID, c.direct(ev, DirectAbsenceThanks))
	return true, false, err
}

// openAbsenceLocked starts an absence request for userID, superseding any
// open one. Silent requests send no prompt.
func (c *Controller) openAbsenceLocked(s *Session, userID string, now time.Time, silent bool) *AbsenceSession {
	ev := s.event
	a := newAbsenceSession(ev.ID, userID, ev.Deadline(), now, silent)
	window := a.Window(now)
	if window <= 0 {
		sys.LogAttendance(sys.MsgAbsenceSkipped, userID, ev.ID)
		return nil
	}

	c.cancelAbsenceLocked(s, userID, CancelSuperseded, false)

	s.absences[userID] = a
	c.router.add(a)
	a.arm(c.clock.AfterFunc(window, func() { c.expireAbsence(s, a) }))
	sys.LogAttendance(sys.MsgAbsenceOpened, userID, ev.Name, window.Round(time.Second))

	if !silent {
		c.sendDirect(userID, c.direct(ev, DirectAbsenceRequest))
	}
	return a
}

func (c *Controller) expireAbsence(s *Session, a *AbsenceSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.expireAbsenceLocked(context.Background(), s, a, true)
}

// expireAbsenceLocked times a request out and records the fallback reason.
// Without persist the change only marks the session dirty.
func (c *Controller) expireAbsenceLocked(ctx context.Context, s *Session, a *AbsenceSession, persist bool) bool {
	if !a.expire() {
		return false
	}
	c.dropAbsenceLocked(s, a)
	sys.AbsenceOutcomesTotal.WithLabelValues(string(AbsenceTimedOut)).Inc()
	sys.LogAttendance(sys.MsgAbsenceClosed, a.UserID, s.event.Name, AbsenceTimedOut)

	ev := s.event
	if s.setReasonLocked(a.UserID, NoReasonProvided, true) {
		if !persist {
			s.dirty = true
		} else if err := c.persistLocked(ctx, s, func(ctx context.Context) error {
			return c.store.SetReason(ctx, ev.ID, a.UserID, NoReasonProvided)
		}); err != nil {
			sys.LogWarn(sys.MsgAbsenceReasonStoreFail, a.UserID, ev.ID, err)
		}
	}
	c.sendDirect(a.UserID, c.direct(ev, DirectAbsenceTimedOut))
	return true
}

// cancelAbsenceLocked closes userID's open request without touching the
// reason. With notify the user is told no reply is needed.
func (c *Controller) cancelAbsenceLocked(s *Session, userID, why string, notify bool) bool {
	a := s.absences[userID]
	if a == nil || !a.cancel(why) {
		return false
	}
	c.dropAbsenceLocked(s, a)
	sys.AbsenceOutcomesTotal.WithLabelValues(string(AbsenceCancelled)).Inc()
	sys.LogAttendance(sys.MsgAbsenceClosed, userID, s.event.Name, why)

	if notify {
		c.sendDirect(userID, c.direct(s.event, DirectAbsenceNotNeeded))
	}
	return true
}

func (c *Controller) dropAbsenceLocked(s *Session, a *AbsenceSession) {
	if s.absences[a.UserID] == a {
		delete(s.absences, a.UserID)
	}
	c.router.remove(a)
}

// Finalize closes the poll: open absence requests time out, a dirty session
// is written back, the poll is rendered as concluded and mandatory events get
// their summary. Calls after the first are no-ops.
func (c *Controller) Finalize(ctx context.Context, eventID string) error {
	s := c.Session(eventID)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, eventID)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	for _, a := range s.openAbsencesLocked() {
		c.expireAbsenceLocked(ctx, s, a, false)
	}
	if s.dirty {
		if err := c.syncLocked(ctx, s); err != nil {
			sys.LogAttendanceWarn(sys.MsgEventStoreDirty, eventID, err)
		}
	}
	snap := s.event.Clone()
	s.mu.Unlock()

	c.unregister(s)
	sys.LogAttendance(sys.MsgEventConcluded, snap.Name, snap.Details.Date)

	s.paintMu.Lock()
	if err := c.notifier.RenderConcluded(ctx, snap); err != nil {
		sys.LogWarn(sys.MsgEventRenderFail, eventID, err)
	}
	s.paintMu.Unlock()

	if snap.Mandatory() {
		if err := c.notifier.SendSummary(ctx, snap, BuildSummary(snap)); err != nil {
			sys.LogError(sys.MsgEventSummaryFail, eventID, err)
			return err
		}
	}
	return nil
}

// Cancel ends a live poll early without a summary and deletes its record.
func (c *Controller) Cancel(ctx context.Context, eventID string) error {
	s := c.Session(eventID)
	if s == nil {
		return fmt.Errorf("%w: %s", ErrSessionNotFound, eventID)
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrEventClosed
	}
	s.closed = true
	if s.timer != nil {
		s.timer.Stop()
	}
	for _, a := range s.openAbsencesLocked() {
		c.cancelAbsenceLocked(s, a.UserID, CancelEventCancelled, false)
	}
	snap := s.event.Clone()
	s.mu.Unlock()

	c.unregister(s)

	s.paintMu.Lock()
	if err := c.notifier.RenderConcluded(ctx, snap); err != nil {
		sys.LogWarn(sys.MsgEventRenderFail, eventID, err)
	}
	s.paintMu.Unlock()

	if err := c.retryWrite(ctx, eventID, func(ctx context.Context) error {
		return c.store.Delete(ctx, eventID)
	}); err != nil && !errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	sys.LogAttendance(sys.MsgEventCancelled, snap.Name, snap.Details.Date)
	return nil
}

// Shutdown stops every timer without finalizing, so a restart can recover the sessions.
func (c *Controller) Shutdown() {
	c.mu.Lock()
	sessions := make([]*Session, 0, len(c.sessions))
	for _, s := range c.sessions {
		sessions = append(sessions, s)
	}
	c.sessions = make(map[string]*Session)
	c.mu.Unlock()

	for _, s := range sessions {
		s.mu.Lock()
		s.closed = true
		if s.timer != nil {
			s.timer.Stop()
		}
		for _, a := range s.absences {
			a.halt()
			c.router.remove(a)
		}
		s.mu.Unlock()
		sys.ActiveSessions.Dec()
	}
}

// Responses returns the sorted roster of an event, live or concluded. The
// unresponsive list is only filled for privileged callers.
func (c *Controller) Responses(ctx context.Context, eventID string, privileged bool) (Roster, error) {
	ev, err := c.Lookup(ctx, eventID)
	if err != nil {
		return Roster{}, err
	}

	roster := BuildRoster(ev)
	if privileged {
		roster.Privileged = true
		if c.directory != nil {
			members, err := c.directory.Members(ctx, ev.GuildID)
			if err != nil {
				sys.LogWarn(sys.MsgAudienceFetchFail, ev.GuildID, err)
			} else {
				roster.Unresponsive = Unresponsive(ev, members)
			}
		}
	}
	return roster, nil
}

// Lookup returns the live copy of an event, falling back to the store.
func (c *Controller) Lookup(ctx context.Context, eventID string) (*Event, error) {
	if ev, ok := c.Snapshot(eventID); ok {
		return ev, nil
	}
	return c.store.FindByID(ctx, eventID)
}

// Find looks an event up by name and date, preferring the live copy.
func (c *Controller) Find(ctx context.Context, name, date string) (*Event, error) {
	ev, err := c.store.FindOne(ctx, name, date)
	if err != nil {
		return nil, err
	}
	if live, ok := c.Snapshot(ev.ID); ok {
		return live, nil
	}
	return ev, nil
}

// Audience returns the expected audience of an event.
func (c *Controller) Audience(ctx context.Context, ev *Event) ([]Member, error) {
	if c.directory == nil {
		return nil, nil
	}
	return c.directory.Members(ctx, ev.GuildID)
}

// --- Persistence ---

// persistLocked writes one incremental change. A dirty session is written
// back in full instead, and a conflicting store is overwritten with memory.
func (c *Controller) persistLocked(ctx context.Context, s *Session, write func(context.Context) error) error {
	if s.dirty {
		return c.syncLocked(ctx, s)
	}

	err := c.retryWrite(ctx, s.event.ID, write)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrConflict) {
		return c.syncLocked(ctx, s)
	}

	s.dirty = true
	sys.LogAttendanceWarn(sys.MsgEventStoreDirty, s.event.ID, err)
	return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
}

func (c *Controller) syncLocked(ctx context.Context, s *Session) error {
	ev := s.event
	responses := slices.Clone(ev.Responses)
	attending, absent := ev.AttendingCount, ev.AbsentCount

	err := c.retryWrite(ctx, ev.ID, func(ctx context.Context) error {
		return c.store.SyncResponses(ctx, ev.ID, responses, attending, absent)
	})
	if err != nil {
		s.dirty = true
		sys.LogAttendanceWarn(sys.MsgEventStoreDirty, ev.ID, err)
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if s.dirty {
		sys.LogAttendance(sys.MsgEventStoreSynced, ev.ID)
	}
	s.dirty = false
	return nil
}

// retryWrite runs write until it succeeds, reports a conflict or missing
// record, or the retry delays run out.
func (c *Controller) retryWrite(ctx context.Context, eventID string, write func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := write(ctx)
		if err == nil || errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
			return err
		}
		if attempt >= len(c.retry) {
			return err
		}

		sys.StoreRetriesTotal.Inc()
		sys.LogAttendanceWarn(sys.MsgEventStoreRetry, eventID, attempt+1, len(c.retry)+1, err)

		if d := c.retry[attempt]; d > 0 {
			t := time.NewTimer(d)
			select {
			case <-ctx.Done():
				t.Stop()
				return err
			case <-t.C:
			}
		}
	}
}

// --- Platform side effects ---

func (c *Controller) direct(ev *Event, kind DirectKind) DirectMessage {
	return DirectMessage{Kind: kind, EventName: ev.Name, EventDate: ev.Details.Date}
}

func (c *Controller) sendDirect(userID string, msg DirectMessage) {
	c.dispatch(func() {
		if err := c.notifier.SendDirect(context.Background(), userID, msg); err != nil {
			sys.LogWarn(sys.MsgAbsenceDeliveryFail, userID, msg.EventName, err)
		}
	})
}

// requestRender schedules a button refresh. Requests arriving while a render
// is in flight collapse into one follow-up render of the latest state.
func (c *Controller) requestRender(s *Session) {
	s.renderMu.Lock()
	s.renderPending = true
	if s.rendering {
		s.renderMu.Unlock()
		return
	}
	s.rendering = true
	s.renderMu.Unlock()

	c.dispatch(func() { c.renderLoop(s) })
}

func (c *Controller) renderLoop(s *Session) {
	for {
		s.renderMu.Lock()
		if !s.renderPending {
			s.rendering = false
			s.renderMu.Unlock()
			return
		}
		s.renderPending = false
		s.renderMu.Unlock()

		s.paintMu.Lock()
		s.mu.Lock()
		closed := s.closed
		snap := s.event.Clone()
		s.mu.Unlock()
		if !closed {
			if err := c.notifier.RenderPoll(context.Background(), snap); err != nil {
				sys.LogWarn(sys.MsgEventRenderFail, snap.ID, err)
			}
		}
		s.paintMu.Unlock()
	}
}
