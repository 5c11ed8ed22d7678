package proc

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/demetori/deme/attendance"
	"github.com/demetori/deme/sys"
)

var recoveryStarted atomic.Bool

// RegisterRecovery resumes every poll still open in the store once the
// gateway is ready, and stops their timers on shutdown.
func RegisterRecovery(ctrl *attendance.Controller) {
	sys.RegisterDaemon(sys.LogRecovery, func(ctx context.Context) (bool, func(), func()) {
		return StartRecovery(ctx, ctrl)
	})
}

// StartRecovery runs at most once per process.
func StartRecovery(ctx context.Context, ctrl *attendance.Controller) (bool, func(), func()) {
	if !recoveryStarted.CompareAndSwap(false, true) {
		return false, nil, nil
	}
	return true, func() { runRecovery(ctx, ctrl) }, ctrl.Shutdown
}

// runRecovery logs its own progress through the bootstrapper.
func runRecovery(parent context.Context, ctrl *attendance.Controller) {
	ctx, cancel := context.WithTimeout(parent, 2*time.Minute)
	defer cancel()
	_, _ = attendance.NewBootstrapper(ctrl).Run(ctx, ctrl.Clock().Now())
}
