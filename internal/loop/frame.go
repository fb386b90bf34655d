package loop

import (
	"time"

	"github.com/tomz197/dontblink/internal/loop/config"
)

// FrameClock measures the delta between simulation ticks. Stopping it
// discards the last timestamp so no time is carried across a pause.
type FrameClock struct {
	now  func() time.Time
	last time.Time
}

// NewFrameClock creates a stopped frame clock. A nil now uses time.Now.
func NewFrameClock(now func() time.Time) *FrameClock {
	if now == nil {
		now = time.Now
	}
	return &FrameClock{now: now}
}

// Tick returns the time since the previous tick, or config.FirstFrameDelta
// on the first tick after a (re)start.
func (f *FrameClock) Tick() time.Duration {
	t := f.now()
	if f.last.IsZero() {
		f.last = t
		return config.FirstFrameDelta
	}
	d := t.Sub(f.last)
	f.last = t
	return d
}

// Stop resets the clock.
func (f *FrameClock) Stop() {
	f.last = time.Time{}
}

// Running reports whether a tick has been taken since the last Stop.
func (f *FrameClock) Running() bool {
	return !f.last.IsZero()
}
