// Package profile accumulates time spent inside analyzer stages.
package profile

import (
	"sync/atomic"
	"time"
)

// Counter is a monotonically increasing duration accumulator, safe for
// concurrent use without locks.
type Counter struct {
	nanos atomic.Int64
}

// Add accumulates d. Negative durations are ignored.
func (c *Counter) Add(d time.Duration) {
	if c == nil || d <= 0 {
		return
	}
	c.nanos.Add(int64(d))
}

// Total returns the accumulated duration.
func (c *Counter) Total() time.Duration {
	if c == nil {
		return 0
	}
	return time.Duration(c.nanos.Load())
}

// Seconds returns the accumulated duration in seconds.
func (c *Counter) Seconds() float64 {
	return c.Total().Seconds()
}
