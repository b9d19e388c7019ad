package testfixtures

import (
	"sync"
	"time"

	"github.com/example/room-reservations/internal/scheduler"
)

// Clock is a manual time source shared by the services under test.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts at start, or at ReferenceTime when start is zero.
func NewClock(start time.Time) *Clock {
	if start.IsZero() {
		start = ReferenceTime()
	}
	return &Clock{now: start}
}

func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// NowFunc returns the injectable form of Now. A nil clock falls back to
// the wall clock.
func (c *Clock) NowFunc() func() time.Time {
	if c == nil {
		return time.Now
	}
	return c.Now
}

func (c *Clock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t
	c.mu.Unlock()
}

func (c *Clock) Advance(d time.Duration) time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
	return c.now
}

// SetLocal moves the clock to the wall-clock instant date hh:mm in the
// clock's current location. It panics on malformed input.
func (c *Clock) SetLocal(date, hhmm string) time.Time {
	d, err := scheduler.ParseDate(date)
	if err != nil {
		panic(err)
	}
	tod, err := scheduler.ParseTimeOfDay(hhmm)
	if err != nil {
		panic(err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = time.Date(d.Year, d.Month, d.Day, tod.Hour(), tod.Minute(), 0, 0, c.now.Location())
	return c.now
}
