package store

import (
	"sync"
	"time"
)

// VersionClock hands out write-times for version batches.
// Times are truncated to microseconds (TIMESTAMPTZ precision) and strictly
// increase per clock, so two batches written back to back never share a
// write-time even when the wall clock does not advance.
type VersionClock struct {
	mu   sync.Mutex
	now  func() time.Time
	last time.Time
}

// NewVersionClock creates a clock over now; nil means time.Now
func NewVersionClock(now func() time.Time) *VersionClock {
	if now == nil {
		now = time.Now
	}
	return &VersionClock{now: now}
}

// Next returns the next write-time
func (c *VersionClock) Next() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	t := c.now().UTC().Truncate(time.Microsecond)
	if !t.After(c.last) {
		t = c.last.Add(time.Microsecond)
	}
	c.last = t
	return t
}
