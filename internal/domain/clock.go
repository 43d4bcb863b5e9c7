package domain

import "sync/atomic"

// Clock is the step counter shared by every component of one simulation.
type Clock struct {
	start int64
	step  atomic.Int64
}

func NewClock() *Clock { return NewClockAt(0) }

func NewClockAt(start int64) *Clock {
	c := &Clock{start: start}
	c.step.Store(start)
	return c
}

func (c *Clock) Step() int64 { return c.step.Load() }

func (c *Clock) Start() int64 { return c.start }

func (c *Clock) Advance() { c.step.Add(1) }

func (c *Clock) Reset() { c.step.Store(c.start) }

// Seek moves the clock to step. Only used when resuming from a snapshot.
func (c *Clock) Seek(step int64) { c.step.Store(step) }
