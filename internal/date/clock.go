package date

import (
	"sync"
	"time"
)

// Clock tells which calendar day it is.
type Clock interface {
	Today() Date
}

type systemClock struct{ loc *time.Location }

// SystemClock reads the wall clock in loc (UTC when nil).
func SystemClock(loc *time.Location) Clock {
	if loc == nil {
		loc = time.UTC
	}
	return systemClock{loc: loc}
}

func (c systemClock) Today() Date { return In(time.Now(), c.loc) }

// ManualClock is a settable clock for tests and replays.
type ManualClock struct {
	mu  sync.RWMutex
	day Date
}

// NewManualClock returns a clock stuck on day.
func NewManualClock(day Date) *ManualClock { return &ManualClock{day: day} }

func (c *ManualClock) Today() Date {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.day
}

// Set moves the clock to day.
func (c *ManualClock) Set(day Date) {
	c.mu.Lock()
	c.day = day
	c.mu.Unlock()
}

// Advance moves the clock n days forward.
func (c *ManualClock) Advance(n int) {
	c.mu.Lock()
	c.day = c.day.AddDays(n)
	c.mu.Unlock()
}
