package core

import (
	"sync"
	"time"
)

// Clock supplies the current time to every expiry decision.
type Clock interface {
	Now() time.Time
}

type systemClock struct {
	mu   sync.Mutex
	last time.Time
}

// SystemClock returns a UTC wall clock whose successive reads never go backwards.
func SystemClock() Clock {
	return &systemClock{}
}

func (c *systemClock) Now() time.Time {
	now := time.Now().UTC()
	c.mu.Lock()
	defer c.mu.Unlock()
	if now.Before(c.last) {
		return c.last
	}
	c.last = now
	return now
}

// ManualClock only moves when told to.
type ManualClock struct {
	mu  sync.Mutex
	now time.Time
}

func NewManualClock(start time.Time) *ManualClock {
	return &ManualClock{now: start.UTC()}
}

func (c *ManualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *ManualClock) Set(t time.Time) {
	c.mu.Lock()
	c.now = t.UTC()
	c.mu.Unlock()
}

func (c *ManualClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}
