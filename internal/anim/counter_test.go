package anim

import (
	"testing"
	"time"
)

func TestEaseOutCubic(t *testing.T) {
	cases := map[float64]float64{0: 0, 0.5: 0.875, 1: 1}
	for p, want := range cases {
		if got := EaseOutCubic(p); got != want {
			t.Errorf("EaseOutCubic(%v) = %v, want %v", p, got, want)
		}
	}
}

func TestCounter_AnimatesToTarget(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCounter(0, 700*time.Millisecond)
	if got := c.Value(start); got != 0 {
		t.Fatalf("initial Value = %d, want 0", got)
	}

	c.SetTarget(800, start)
	if got := c.Value(start); got != 0 {
		t.Fatalf("Value at start = %d, want 0", got)
	}
	if got := c.Value(start.Add(350 * time.Millisecond)); got != 700 {
		t.Fatalf("Value at half time = %d, want 700", got)
	}
	if c.Done(start.Add(350 * time.Millisecond)) {
		t.Fatalf("Done at half time = true")
	}
	if got := c.Value(start.Add(time.Second)); got != 800 {
		t.Fatalf("Value after duration = %d, want 800", got)
	}
	if !c.Done(start.Add(time.Second)) {
		t.Fatalf("Done after duration = false")
	}
}

func TestCounter_RetargetStartsFromShownValue(t *testing.T) {
	start := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewCounter(0, 100*time.Millisecond)
	c.SetTarget(1000, start)

	mid := start.Add(50 * time.Millisecond)
	shown := c.Value(mid)
	c.SetTarget(0, mid)
	if got := c.Value(mid); got != shown {
		t.Fatalf("Value after retarget = %d, want %d", got, shown)
	}
	if got := c.Value(mid.Add(100 * time.Millisecond)); got != 0 {
		t.Fatalf("Value after second animation = %d, want 0", got)
	}
	if c.Target() != 0 {
		t.Fatalf("Target = %v, want 0", c.Target())
	}
}

func TestCounter_ZeroDurationJumps(t *testing.T) {
	c := NewCounter(5, 0)
	now := time.Now()
	c.SetTarget(9, now)
	if got := c.Value(now); got != 9 {
		t.Fatalf("Value = %d, want 9", got)
	}
}
