// Package anim eases displayed numbers toward new values.
package anim

import (
	"math"
	"sync"
	"time"
)

// Durations used by the plate view.
const (
	MacroDuration   = 700 * time.Millisecond
	CalorieDuration = 350 * time.Millisecond
)

// EaseOutCubic maps progress in [0,1] to 1-(1-p)^3.
func EaseOutCubic(p float64) float64 {
	return 1 - math.Pow(1-p, 3)
}

// Counter animates an integer display value toward a target. It is driven
// by the caller's clock: Value(now) is pure with respect to the last
// SetTarget, so a renderer can call it on every frame.
type Counter struct {
	mu       sync.Mutex
	duration time.Duration
	from     float64
	to       float64
	start    time.Time
}

// NewCounter returns a counter showing initial.
func NewCounter(initial float64, duration time.Duration) *Counter {
	return &Counter{duration: duration, from: initial, to: initial}
}

// SetTarget starts a new animation at now. When a previous animation is
// still running it continues from the value currently shown.
func (c *Counter) SetTarget(target float64, now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if target == c.to {
		return
	}
	c.from = float64(c.valueLocked(now))
	c.to = target
	c.start = now
}

// Value returns the rounded value to display at now.
func (c *Counter) Value(now time.Time) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.valueLocked(now)
}

// Done reports whether the animation has reached its target at now.
func (c *Counter) Done(now time.Time) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.progressLocked(now) >= 1
}

// Target returns the value being animated toward.
func (c *Counter) Target() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.to
}

func (c *Counter) valueLocked(now time.Time) int {
	p := c.progressLocked(now)
	if p >= 1 {
		return int(math.Round(c.to))
	}
	return int(math.Round(c.from + (c.to-c.from)*EaseOutCubic(p)))
}

func (c *Counter) progressLocked(now time.Time) float64 {
	if c.duration <= 0 || c.start.IsZero() {
		return 1
	}
	p := float64(now.Sub(c.start)) / float64(c.duration)
	return math.Max(0, math.Min(p, 1))
}
