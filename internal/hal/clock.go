package hal

import "time"

// Clock is the abstract high-resolution microsecond clock the control
// task times its loop and edge periods against.
type Clock interface {
	// NowMicros returns a monotonically increasing microsecond timestamp.
	NowMicros() int64
}

// RealClock implements Clock using the runtime's monotonic clock.
type RealClock struct{ start time.Time }

// NewRealClock returns a Clock backed by time.Now().
func NewRealClock() *RealClock {
	return &RealClock{start: time.Now()}
}

func (c *RealClock) NowMicros() int64 {
	return time.Since(c.start).Microseconds()
}
