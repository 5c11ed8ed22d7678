package attendance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/demetori/deme/sys"
)

// SkippedEvent is an event recovery could not restore.
type SkippedEvent struct {
	EventID string
	Err     error
}

// RecoveryReport lists what a recovery pass did.
type RecoveryReport struct {
	Restored []string
	Skipped  []SkippedEvent
	// Live counts events that already had a session and were left alone.
	Live int
}

var errAlreadyLive = errors.New("session already live")

// Bootstrapper rebuilds the sessions of polls that were open when the process stopped.
type Bootstrapper struct {
	controller *Controller
}

func NewBootstrapper(c *Controller) *Bootstrapper {
	return &Bootstrapper{controller: c}
}

// Run restores every event whose deadline is after now. An event whose poll
// cannot be resolved is skipped without failing the batch.
func (b *Bootstrapper) Run(ctx context.Context, now time.Time) (RecoveryReport, error) {
	var report RecoveryReport
	c := b.controller

	sys.LogRecovery(sys.MsgRecoveryStarting)
	events, err := c.store.FindActive(ctx, now)
	if err != nil {
		sys.LogError(sys.MsgRecoveryQueryFail, err)
		return report, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if len(events) == 0 {
		sys.LogRecovery(sys.MsgRecoveryNone)
		return report, nil
	}
	sys.LogRecovery(sys.MsgRecoveryFound, len(events))

	for _, ev := range events {
		err := b.restore(ctx, ev, now)
		switch {
		case err == nil:
			report.Restored = append(report.Restored, ev.ID)
		case errors.Is(err, errAlreadyLive):
			report.Live++
		default:
			sys.LogWarn(sys.MsgRecoverySkipped, ev.ID, err)
			report.Skipped = append(report.Skipped, SkippedEvent{EventID: ev.ID, Err: err})
		}
	}

	sys.LogRecovery(sys.MsgRecoveryDone, len(report.Restored), len(report.Skipped))
	return report, nil
}

func (b *Bootstrapper) restore(ctx context.Context, ev *Event, now time.Time) error {
	c := b.controller

	if !now.Before(ev.Deadline()) {
		return ErrEventClosed
	}
	if c.Session(ev.ID) != nil {
		return errAlreadyLive
	}
	if err := c.notifier.ResolvePoll(ctx, ev); err != nil {
		if errors.Is(err, ErrChannelUnresolvable) {
			return err
		}
		return fmt.Errorf("%w: %v", ErrChannelUnresolvable, err)
	}

	drifted := ev.Drifted()
	s, fresh := c.startSession(ev, now)
	if !fresh {
		return errAlreadyLive
	}

	s.mu.Lock()
	if drifted {
		sys.LogRecovery(sys.MsgRecoveryDrift, ev.ID, ev.AttendingCount, ev.AbsentCount, s.event.AttendingCount, s.event.AbsentCount)
		s.dirty = true
		_ = c.syncLocked(ctx, s)
	}
	if ev.Mandatory() {
		for _, r := range s.event.Responses {
			if r.Status == StatusNotAttending && r.Reason == "" {
				c.openAbsenceLocked(s, r.UserID, now, true)
			}
		}
	}
	s.mu.Unlock()

	sys.LogRecovery(sys.MsgRecoveryRestored, ev.Name, ev.Details.Date, ev.Deadline().Sub(now).Round(time.Second))
	return nil
}
