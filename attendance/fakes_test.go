package attendance

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// --- Clock ---

type fakeClock struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	clock   *fakeClock
	at      time.Time
	f       func()
	stopped bool
	fired   bool
}

func newFakeClock(now time.Time) *fakeClock {
	return &fakeClock{now: now}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) AfterFunc(d time.Duration, f func()) Timer {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := &fakeTimer{clock: c, at: c.now.Add(d), f: f}
	c.timers = append(c.timers, t)
	return t
}

func (t *fakeTimer) Stop() bool {
	t.clock.mu.Lock()
	defer t.clock.mu.Unlock()
	if t.stopped || t.fired {
		return false
	}
	t.stopped = true
	return true
}

// Set moves the clock without firing timers.
func (c *fakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = now
}

// Advance moves the clock and fires due timers in deadline order.
func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	target := c.now
	c.mu.Unlock()

	for {
		c.mu.Lock()
		var next *fakeTimer
		for _, t := range c.timers {
			if t.fired || t.stopped || t.at.After(target) {
				continue
			}
			if next == nil || t.at.Before(next.at) {
				next = t
			}
		}
		if next == nil {
			c.mu.Unlock()
			return
		}
		next.fired = true
		c.mu.Unlock()
		next.f()
	}
}

// Pending returns the instants of armed timers, earliest first.
func (c *fakeClock) Pending() []time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []time.Time
	for _, t := range c.timers {
		if !t.fired && !t.stopped {
			out = append(out, t.at)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// --- Store ---

var errStoreDown = errors.New("store down")

type fakeStore struct {
	mu       sync.Mutex
	events   map[string]*Event
	failNext int
	failAll  bool
	// lostAcks inserts commit but still report a failure.
	lostAcks int
	writes   int
	syncs    int
}

func newFakeStore() *fakeStore {
	return &fakeStore{events: make(map[string]*Event)}
}

func (s *fakeStore) failLocked() error {
	if s.failAll {
		return errStoreDown
	}
	if s.failNext > 0 {
		s.failNext--
		return errStoreDown
	}
	return nil
}

func (s *fakeStore) setFailAll(v bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failAll = v
}

func (s *fakeStore) setFailNext(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = n
}

func (s *fakeStore) get(id string) *Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.events[id].Clone()
}

func (s *fakeStore) put(ev *Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events[ev.ID] = ev.Clone()
}

func (s *fakeStore) Insert(ctx context.Context, ev *Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failLocked(); err != nil {
		return err
	}
	if _, ok := s.events[ev.ID]; ok {
		return ErrConflict
	}
	s.writes++
	s.events[ev.ID] = ev.Clone()
	if s.lostAcks > 0 {
		s.lostAcks--
		return errStoreDown
	}
	return nil
}

func (s *fakeStore) FindByID(ctx context.Context, id string) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ev, ok := s.events[id]
	if !ok {
		return nil, ErrNotFound
	}
	return ev.Clone(), nil
}

func (s *fakeStore) FindOne(ctx context.Context, name, date string) (*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ev := range s.events {
		if ev.Name == name && ev.Details.Date == date {
			return ev.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *fakeStore) FindActive(ctx context.Context, now time.Time) ([]*Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failAll {
		return nil, errStoreDown
	}
	var out []*Event
	for _, ev := range s.events {
		if ev.Details.DateTime.After(now) {
			out = append(out, ev.Clone())
		}
	}
	slices.SortFunc(out, func(a, b *Event) int {
		if a.ID < b.ID {
			return -1
		}
		return 1
	})
	return out, nil
}

func (s *fakeStore) AppendResponse(ctx context.Context, id string, r Response) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failLocked(); err != nil {
		return err
	}
	ev, ok := s.events[id]
	if !ok {
		return ErrNotFound
	}
	if ev.Find(r.UserID) >= 0 {
		return ErrConflict
	}
	s.writes++
	ev.Responses = append(ev.Responses, r)
	if r.Status == StatusAttending {
		ev.AttendingCount++
	} else {
		ev.AbsentCount++
	}
	return nil
}

func (s *fakeStore) SwitchStatus(ctx context.Context, id, userID string, from, to Status, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failLocked(); err != nil {
		return err
	}
	ev, ok := s.events[id]
	if !ok {
		return ErrNotFound
	}
	idx := ev.Find(userID)
	if idx < 0 || ev.Responses[idx].Status != from {
		return ErrConflict
	}
	s.writes++
	r := &ev.Responses[idx]
	r.Status = to
	r.Name = name
	if to == StatusAttending {
		r.Reason = ""
		ev.AttendingCount++
		ev.AbsentCount--
	} else {
		ev.AttendingCount--
		ev.AbsentCount++
	}
	return nil
}

func (s *fakeStore) SetReason(ctx context.Context, id, userID, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failLocked(); err != nil {
		return err
	}
	ev, ok := s.events[id]
	if !ok {
		return ErrNotFound
	}
	idx := ev.Find(userID)
	if idx < 0 || ev.Responses[idx].Status != StatusNotAttending {
		return ErrConflict
	}
	s.writes++
	ev.Responses[idx].Reason = reason
	return nil
}

func (s *fakeStore) SyncResponses(ctx context.Context, id string, responses []Response, attending, absent int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failLocked(); err != nil {
		return err
	}
	ev, ok := s.events[id]
	if !ok {
		return ErrNotFound
	}
	s.syncs++
	ev.Responses = slices.Clone(responses)
	ev.AttendingCount, ev.AbsentCount = attending, absent
	return nil
}

func (s *fakeStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failLocked(); err != nil {
		return err
	}
	if _, ok := s.events[id]; !ok {
		return ErrNotFound
	}
	delete(s.events, id)
	return nil
}

// --- Notifier ---

type sentDirect struct {
	UserID string
	Msg    DirectMessage
}

type sentSummary struct {
	EventID string
	Summary Summary
}

type fakeNotifier struct {
	mu           sync.Mutex
	renders      []*Event
	concluded    []*Event
	summaries    []sentSummary
	directs      []sentDirect
	unresolvable map[string]bool
	blockDirect  bool
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{unresolvable: make(map[string]bool)}
}

func (n *fakeNotifier) RenderPoll(ctx context.Context, ev *Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.renders = append(n.renders, ev.Clone())
	return nil
}

func (n *fakeNotifier) RenderConcluded(ctx context.Context, ev *Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.concluded = append(n.concluded, ev.Clone())
	return nil
}

func (n *fakeNotifier) SendSummary(ctx context.Context, ev *Event, s Summary) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.summaries = append(n.summaries, sentSummary{EventID: ev.ID, Summary: s})
	return nil
}

func (n *fakeNotifier) SendDirect(ctx context.Context, userID string, msg DirectMessage) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.blockDirect {
		return fmt.Errorf("%w: user %s has DMs closed", ErrDelivery, userID)
	}
	n.directs = append(n.directs, sentDirect{UserID: userID, Msg: msg})
	return nil
}

func (n *fakeNotifier) ResolvePoll(ctx context.Context, ev *Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.unresolvable[ev.ID] {
		return fmt.Errorf("%w: message %s", ErrChannelUnresolvable, ev.ID)
	}
	return nil
}

// directsTo returns the kinds of messages sent to userID, in order.
func (n *fakeNotifier) directsTo(userID string) []DirectKind {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []DirectKind
	for _, d := range n.directs {
		if d.UserID == userID {
			out = append(out, d.Msg.Kind)
		}
	}
	return out
}

func (n *fakeNotifier) summaryCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.summaries)
}

func (n *fakeNotifier) lastRender() *Event {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.renders) == 0 {
		return nil
	}
	return n.renders[len(n.renders)-1]
}

// --- Directory ---

type fakeDirectory struct {
	members []Member
}

func (d *fakeDirectory) Members(ctx context.Context, guildID string) ([]Member, error) {
	return d.members, nil
}

// --- Harness ---

var baseTime = time.Date(2026, time.March, 14, 18, 0, 0, 0, time.UTC)

type harness struct {
	clock    *fakeClock
	store    *fakeStore
	notifier *fakeNotifier
	dir      *fakeDirectory
	ctrl     *Controller
}

func inline(f func()) { f() }

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		clock:    newFakeClock(baseTime),
		store:    newFakeStore(),
		notifier: newFakeNotifier(),
		dir:      &fakeDirectory{},
	}
	h.ctrl = NewController(h.store, h.notifier, h.dir, h.clock, Options{
		RetryDelays: []time.Duration{},
		Dispatch:    inline,
	})
	t.Cleanup(h.ctrl.Shutdown)
	return h
}

func newEvent(id string, mandatory bool, deadline time.Time) *Event {
	return &Event{
		ID:        id,
		ChannelID: "chan-1",
		GuildID:   "guild-1",
		Type:      "Guild Event",
		Name:      "Guild Boss " + id,
		Creator:   "officer",
		Details: Details{
			Date:      deadline.Format("02/01/2006"),
			Time:      deadline.Format("15:04"),
			DateTime:  deadline,
			Mandatory: mandatory,
		},
	}
}

func (h *harness) create(t *testing.T, id string, mandatory bool, in time.Duration) *Event {
	t.Helper()
	ev := newEvent(id, mandatory, h.clock.Now().Add(in))
	require.NoError(t, h.ctrl.Create(context.Background(), ev))
	return ev
}

func (h *harness) vote(t *testing.T, eventID, userID string, vote Status) VoteResult {
	t.Helper()
	res, err := h.ctrl.ApplyVote(context.Background(), eventID, userID, "name-"+userID, vote)
	require.NoError(t, err)
	return res
}

// requireConsistent checks the counter invariant in memory and in the store.
func (h *harness) requireConsistent(t *testing.T, eventID string) {
	t.Helper()
	if live, ok := h.ctrl.Snapshot(eventID); ok {
		require.False(t, live.Drifted(), "live counters drifted: %+v", live)
	}
	stored := h.store.get(eventID)
	require.NotNil(t, stored)
	require.False(t, stored.Drifted(), "stored counters drifted: %+v", stored)
}
