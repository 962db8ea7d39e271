// Package activity tracks when the user last touched the keyboard or mouse.
package activity

import (
	"sync/atomic"
	"time"
)

// Clock holds the instant of the most recent input event. Only the latest
// instant is kept. All methods are safe for concurrent use.
type Clock struct {
	now   func() time.Time
	epoch time.Time
	last  atomic.Int64 // nanoseconds since epoch
}

// NewClock returns a Clock whose last activity is the moment of creation.
// A nil now uses time.Now.
func NewClock(now func() time.Time) *Clock {
	if now == nil {
		now = time.Now
	}
	return &Clock{now: now, epoch: now()}
}

// Record marks now as the last activity. Racing callers never move the
// instant backwards.
func (c *Clock) Record() {
	v := int64(c.now().Sub(c.epoch))
	for {
		old := c.last.Load()
		if v <= old || c.last.CompareAndSwap(old, v) {
			return
		}
	}
}

// Since returns the time elapsed since the last activity.
func (c *Clock) Since() time.Duration {
	return c.now().Sub(c.Last())
}

// Last returns the instant of the last activity.
func (c *Clock) Last() time.Time {
	return c.epoch.Add(time.Duration(c.last.Load()))
}
