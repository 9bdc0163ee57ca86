package partlock

import (
	"sync/atomic"
)

type (
	// Metrics collects per-kernel counters, shared by every object in the
	// arena. All methods are safe on a nil receiver, which is how the
	// counters are disabled.
	Metrics struct {
		lockFast        atomic.Int64
		lockContended   atomic.Int64
		lockTimeouts    atomic.Int64
		unlocks         atomic.Int64
		handoffs        atomic.Int64
		eventWaits      atomic.Int64
		eventTimeouts   atomic.Int64
		eventSignals    atomic.Int64
		eventBroadcasts atomic.Int64
		eventWakeups    atomic.Int64
	}

	// MetricsSnapshot is a point-in-time copy of [Metrics].
	MetricsSnapshot struct {
		// LockFast counts uncontended acquisitions.
		LockFast int64
		// LockContended counts lock calls that blocked, including those that
		// later timed out.
		LockContended int64
		// LockTimeouts counts timed acquisitions that elapsed.
		LockTimeouts int64
		// Unlocks counts releases, including absorbed and saturated ones.
		Unlocks int64
		// Handoffs counts releases that transferred ownership directly to a
		// queued waiter.
		Handoffs int64
		// EventWaits counts event waits that reached their suspension point.
		EventWaits int64
		// EventTimeouts counts event waits that elapsed unsignalled.
		EventTimeouts int64
		// EventSignals counts signals that woke a waiter.
		EventSignals int64
		// EventBroadcasts counts broadcast operations, woken or not.
		EventBroadcasts int64
		// EventWakeups counts threads woken by signals and broadcasts.
		EventWakeups int64
	}
)

// Snapshot returns a copy of the counters; zero on a nil receiver.
func (x *Metrics) Snapshot() MetricsSnapshot {
	if x == nil {
		return MetricsSnapshot{}
	}
	return MetricsSnapshot{
		LockFast:        x.lockFast.Load(),
		LockContended:   x.lockContended.Load(),
		LockTimeouts:    x.lockTimeouts.Load(),
		Unlocks:         x.unlocks.Load(),
		Handoffs:        x.handoffs.Load(),
		EventWaits:      x.eventWaits.Load(),
		EventTimeouts:   x.eventTimeouts.Load(),
		EventSignals:    x.eventSignals.Load(),
		EventBroadcasts: x.eventBroadcasts.Load(),
		EventWakeups:    x.eventWakeups.Load(),
	}
}

func (x *Metrics) incLockFast() {
	if x != nil {
		x.lockFast.Add(1)
	}
}

func (x *Metrics) incLockContended() {
	if x != nil {
		x.lockContended.Add(1)
	}
}

func (x *Metrics) incLockTimeout() {
	if x != nil {
		x.lockTimeouts.Add(1)
	}
}

func (x *Metrics) incUnlock() {
	if x != nil {
		x.unlocks.Add(1)
	}
}

func (x *Metrics) incHandoff() {
	if x != nil {
		x.handoffs.Add(1)
	}
}

func (x *Metrics) incEventWait() {
	if x != nil {
		x.eventWaits.Add(1)
	}
}

func (x *Metrics) incEventTimeout() {
	if x != nil {
		x.eventTimeouts.Add(1)
	}
}

func (x *Metrics) incEventSignal() {
	if x != nil {
		x.eventSignals.Add(1)
		x.eventWakeups.Add(1)
	}
}

func (x *Metrics) incEventBroadcast(woken int) {
	if x != nil {
		x.eventBroadcasts.Add(1)
		x.eventWakeups.Add(int64(woken))
	}
}
