package core

import "time"

// Clock turns wall-clock ticks into the (time, delta, frame) triple the
// per-frame Update calls consume. Times are in seconds.
type Clock struct {
	start time.Time
	last  time.Time
	frame uint64
	now   func() time.Time
}

func NewClock() *Clock {
	return newClockWith(time.Now)
}

func newClockWith(now func() time.Time) *Clock {
	t := now()
	return &Clock{start: t, last: t, now: now}
}

// Tick advances the clock by one frame.
func (c *Clock) Tick() (elapsed, delta float64, frame uint64) {
	t := c.now()
	delta = t.Sub(c.last).Seconds()
	elapsed = t.Sub(c.start).Seconds()
	c.last = t
	frame = c.frame
	c.frame++
	return elapsed, delta, frame
}

// FixedClock steps by a constant delta. Used for headless renders so that
// output does not depend on machine speed.
type FixedClock struct {
	Step  float64
	time  float64
	frame uint64
}

func (c *FixedClock) Tick() (elapsed, delta float64, frame uint64) {
	frame = c.frame
	c.frame++
	c.time += c.Step
	return c.time, c.Step, frame
}

// Ticker is satisfied by Clock and FixedClock.
type Ticker interface {
	Tick() (elapsed, delta float64, frame uint64)
}
