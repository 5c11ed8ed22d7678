package attendance

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func persistedEvent(id string, deadline time.Time) *Event {
	ev := newEvent(id, true, deadline)
	ev.Responses = []Response{
		{UserID: "a1", Name: "Ayla", Status: StatusAttending},
		{UserID: "a2", Name: "Bram", Status: StatusAttending},
		{UserID: "a3", Name: "Cleo", Status: StatusAttending},
		{UserID: "n1", Name: "Dax", Status: StatusNotAttending, Reason: "work"},
		{UserID: "n2", Name: "Eli", Status: StatusNotAttending},
	}
	return ev
}

func TestRecoveryRestoresCountsAndDeadline(t *testing.T) {
	h := newHarness(t)
	now := h.clock.Now()
	ev := persistedEvent("e1", now.Add(10*time.Minute))
	// Stale denormalized counters must not be trusted.
	ev.AttendingCount, ev.AbsentCount = 1, 7
	h.store.put(ev)

	report, err := NewBootstrapper(h.ctrl).Run(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, []string{"e1"}, report.Restored)
	assert.Empty(t, report.Skipped)

	live, ok := h.ctrl.Snapshot("e1")
	require.True(t, ok)
	assert.Equal(t, 3, live.AttendingCount)
	assert.Equal(t, 2, live.AbsentCount)

	stored := h.store.get("e1")
	assert.Equal(t, 3, stored.AttendingCount, "drifted counters are repaired")
	assert.Equal(t, 2, stored.AbsentCount)

	require.NotEmpty(t, h.clock.Pending())
	assert.Equal(t, now.Add(10*time.Minute), h.clock.Pending()[0])

	h.clock.Advance(10*time.Minute - time.Millisecond)
	assert.NotNil(t, h.ctrl.Session("e1"))
	h.clock.Advance(time.Millisecond)
	assert.Nil(t, h.ctrl.Session("e1"))
	assert.Equal(t, 1, h.notifier.summaryCount())
}

func TestRecoveryReopensSilentAbsenceRequests(t *testing.T) {
	h := newHarness(t)
	now := h.clock.Now()
	h.store.put(persistedEvent("e1", now.Add(30*time.Minute)))

	_, err := NewBootstrapper(h.ctrl).Run(context.Background(), now)
	require.NoError(t, err)

	s := h.ctrl.Session("e1")
	assert.Nil(t, s.Absence("n1"), "a recorded reason needs no request")
	sub := s.Absence("n2")
	require.NotNil(t, sub)
	assert.True(t, sub.Silent)
	assert.Empty(t, h.notifier.directsTo("n2"), "silent requests send no new prompt")

	handled, err := h.ctrl.DeliverDirect(context.Background(), "n2", "flat tyre")
	require.NoError(t, err)
	require.True(t, handled)
	stored := h.store.get("e1")
	assert.Equal(t, "flat tyre", stored.Responses[stored.Find("n2")].Reason)
}

func TestRecoveryBehavesLikeFreshSession(t *testing.T) {
	h := newHarness(t)
	now := h.clock.Now()
	h.store.put(persistedEvent("e1", now.Add(time.Hour)))

	_, err := NewBootstrapper(h.ctrl).Run(context.Background(), now)
	require.NoError(t, err)

	res := h.vote(t, "e1", "a1", StatusNotAttending)
	assert.Equal(t, 2, res.Attending)
	assert.Equal(t, 3, res.Absent)

	_, err = h.ctrl.ApplyVote(context.Background(), "e1", "a2", "Bram", StatusAttending)
	assert.ErrorIs(t, err, ErrDuplicateSelection)
	h.requireConsistent(t, "e1")
}

func TestRecoverySkipsUnresolvablePolls(t *testing.T) {
	h := newHarness(t)
	now := h.clock.Now()
	h.store.put(persistedEvent("gone", now.Add(time.Hour)))
	h.store.put(persistedEvent("kept", now.Add(time.Hour)))
	h.store.put(persistedEvent("past", now.Add(-time.Hour)))
	h.notifier.unresolvable["gone"] = true

	report, err := NewBootstrapper(h.ctrl).Run(context.Background(), now)
	require.NoError(t, err)

	assert.Equal(t, []string{"kept"}, report.Restored)
	require.Len(t, report.Skipped, 1)
	assert.Equal(t, "gone", report.Skipped[0].EventID)
	assert.ErrorIs(t, report.Skipped[0].Err, ErrChannelUnresolvable)
	assert.Nil(t, h.ctrl.Session("gone"))
	assert.Nil(t, h.ctrl.Session("past"))
}

func TestRecoveryLeavesLiveSessionsAlone(t *testing.T) {
	h := newHarness(t)
	h.create(t, "e1", true, time.Hour)
	h.vote(t, "e1", "u1", StatusAttending)
	before := h.ctrl.Session("e1")

	report, err := NewBootstrapper(h.ctrl).Run(context.Background(), h.clock.Now())
	require.NoError(t, err)
	assert.Empty(t, report.Restored)
	assert.Equal(t, 1, report.Live)
	assert.Same(t, before, h.ctrl.Session("e1"))
}

func TestRecoveryAfterShutdown(t *testing.T) {
	h := newHarness(t)
	h.create(t, "e1", true, time.Hour)
	h.vote(t, "e1", "u1", StatusAttending)
	h.vote(t, "e1", "u2", StatusNotAttending)
	h.ctrl.Shutdown()

	h.clock.Set(h.clock.Now().Add(20 * time.Minute))
	restarted := NewController(h.store, h.notifier, h.dir, h.clock, Options{RetryDelays: []time.Duration{}, Dispatch: inline})
	t.Cleanup(restarted.Shutdown)

	report, err := NewBootstrapper(restarted).Run(context.Background(), h.clock.Now())
	require.NoError(t, err)
	require.Equal(t, []string{"e1"}, report.Restored)

	live, _ := restarted.Snapshot("e1")
	assert.Equal(t, 1, live.AttendingCount)
	assert.Equal(t, 1, live.AbsentCount)
	assert.Contains(t, h.clock.Pending(), baseTime.Add(time.Hour))
	assert.NotNil(t, restarted.Session("e1").Absence("u2"))
}

func TestRecoveryStoreFailure(t *testing.T) {
	h := newHarness(t)
	h.store.setFailAll(true)
	_, err := NewBootstrapper(h.ctrl).Run(context.Background(), h.clock.Now())
	assert.ErrorIs(t, err, ErrStoreUnavailable)
}
