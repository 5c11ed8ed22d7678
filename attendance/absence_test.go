package attendance

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAbsenceOutcomeAppliesOnce(t *testing.T) {
	tests := []struct {
		name    string
		first   func(a *AbsenceSession) bool
		want    AbsenceOutcome
		reason  string
		another func(a *AbsenceSession) bool
	}{
		{"fulfilled then timeout", func(a *AbsenceSession) bool { return a.fulfil("sick") }, AbsenceFulfilled, "sick", (*AbsenceSession).expire},
		{"timeout then cancel", (*AbsenceSession).expire, AbsenceTimedOut, NoReasonProvided, func(a *AbsenceSession) bool { return a.cancel(CancelSwitchedToAttending) }},
		{"cancel then reply", func(a *AbsenceSession) bool { return a.cancel(CancelSwitchedToAttending) }, AbsenceCancelled, "", func(a *AbsenceSession) bool { return a.fulfil("late") }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAbsenceSession("e1", "u1", baseTime.Add(time.Hour), baseTime, false)
			require.True(t, a.IsOpen())
			require.True(t, tt.first(a))
			assert.False(t, tt.another(a))
			assert.Equal(t, tt.want, a.Outcome())
			assert.Equal(t, tt.reason, a.Reason())
		})
	}
}

func TestAbsenceRaceHasOneWinner(t *testing.T) {
	a := newAbsenceSession("e1", "u1", baseTime.Add(time.Hour), baseTime, false)

	var wg sync.WaitGroup
	wins := make(chan AbsenceOutcome, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		if a.expire() {
			wins <- AbsenceTimedOut
		}
	}()
	go func() {
		defer wg.Done()
		if a.cancel(CancelSwitchedToAttending) {
			wins <- AbsenceCancelled
		}
	}()
	wg.Wait()
	close(wins)

	var got []AbsenceOutcome
	for o := range wins {
		got = append(got, o)
	}
	require.Len(t, got, 1)
	assert.Equal(t, got[0], a.Outcome())
}

func TestAbsenceFinishStopsTimer(t *testing.T) {
	clock := newFakeClock(baseTime)
	a := newAbsenceSession("e1", "u1", baseTime.Add(time.Hour), baseTime, false)
	fired := false
	a.arm(clock.AfterFunc(a.Window(baseTime), func() { fired = true }))

	require.True(t, a.fulfil("ok"))
	clock.Advance(2 * time.Hour)
	assert.False(t, fired)
}

func TestAbsenceWindowFollowsDeadline(t *testing.T) {
	a := newAbsenceSession("e1", "u1", baseTime.Add(90*time.Minute), baseTime, false)
	assert.Equal(t, 90*time.Minute, a.Window(baseTime))
	assert.Equal(t, 30*time.Minute, a.Window(baseTime.Add(time.Hour)))
}

func TestOpenAbsenceSkipsElapsedWindow(t *testing.T) {
	h := newHarness(t)
	ev := h.create(t, "e1", true, time.Hour)
	s := h.ctrl.Session("e1")

	s.mu.Lock()
	a := h.ctrl.openAbsenceLocked(s, "u1", ev.Deadline(), false)
	s.mu.Unlock()

	assert.Nil(t, a)
	assert.Nil(t, s.Absence("u1"))
	assert.Empty(t, h.notifier.directsTo("u1"))
}

func TestRouterOrder(t *testing.T) {
	r := newAbsenceRouter()
	first := newAbsenceSession("x", "u1", baseTime.Add(time.Hour), baseTime, false)
	second := newAbsenceSession("y", "u1", baseTime.Add(time.Hour), baseTime, false)
	r.add(first)
	r.add(second)

	assert.Same(t, first, r.oldest("u1"))
	first.expire()
	assert.Same(t, second, r.oldest("u1"), "closed sessions are passed over")
	assert.Equal(t, 1, r.pending("u1"))

	r.remove(first)
	r.remove(second)
	assert.Nil(t, r.oldest("u1"))
	assert.Zero(t, r.pending("u1"))
}
