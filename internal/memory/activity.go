package memory

import (
	"sync/atomic"
	"time"
)

// ActivityTracker reports whether a user has interacted recently,
// gating the Background Processor so it never competes with live
// traffic for the single database connection.
type ActivityTracker struct {
	lastInbound   atomic.Int64 // unix nanos
	quietDuration time.Duration
}

// NewActivityTracker builds a tracker that considers the user "active"
// for quietThreshold after each RecordInbound call.
func NewActivityTracker(quietThreshold time.Duration) *ActivityTracker {
	t := &ActivityTracker{quietDuration: quietThreshold}
	t.lastInbound.Store(0)
	return t
}

// RecordInbound marks the current instant as the last inbound activity.
func (t *ActivityTracker) RecordInbound(now time.Time) {
	t.lastInbound.Store(now.UnixNano())
}

// IsUserActive reports whether time since the last inbound message is
// under the configured quiet threshold.
func (t *ActivityTracker) IsUserActive(now time.Time) bool {
	last := t.lastInbound.Load()
	if last == 0 {
		return false
	}
	return now.Sub(time.Unix(0, last)) < t.quietDuration
}
