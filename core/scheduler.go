package core

import "time"

// DefaultEvictionGrace keeps a finished session readable for late status
// queries.
const DefaultEvictionGrace = 60 * time.Second

type timeScheduler struct{}

func (timeScheduler) AfterFunc(d time.Duration, fn func()) Timer {
	return time.AfterFunc(d, fn)
}

// NewTimeScheduler returns a Scheduler backed by time.AfterFunc.
func NewTimeScheduler() Scheduler {
	return timeScheduler{}
}

// EvictionHandle describes a scheduled removal of a session from the registry.
type EvictionHandle struct {
	CallID string
	DueAt  time.Time

	cancel func() bool
}

// Cancel stops the eviction. It reports false once the eviction has fired or
// was already cancelled.
func (h EvictionHandle) Cancel() bool {
	if h.cancel == nil {
		return false
	}
	return h.cancel()
}
