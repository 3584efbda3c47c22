package timeutil

import (
	"testing"
	"time"
)

func TestRealClock_Now(t *testing.T) {
	clock := RealClock{}
	before := time.Now()
	now := clock.Now()
	after := time.Now()

	if now.Before(before) || now.After(after) {
		t.Errorf("Now() = %v, expected between %v and %v", now, before, after)
	}
}

func TestRealClock_Since(t *testing.T) {
	clock := RealClock{}
	past := time.Now().Add(-time.Second)
	d := clock.Since(past)

	if d < time.Second {
		t.Errorf("Since() returned %v, expected >= 1s", d)
	}
}

func TestStepClock_Advances(t *testing.T) {
	start := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	clock := NewStepClock(start, time.Minute)

	first := clock.Now()
	second := clock.Now()

	if !first.Equal(start) {
		t.Errorf("first Now() = %v, want %v", first, start)
	}
	if got := second.Sub(first); got != time.Minute {
		t.Errorf("step = %v, want 1m", got)
	}
	if got := clock.Since(start); got != 2*time.Minute {
		t.Errorf("Since() = %v, want 2m", got)
	}
}

func TestStepClock_Set(t *testing.T) {
	clock := NewStepClock(time.Unix(0, 0), 0)
	target := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	clock.Set(target)

	if got := clock.Now(); !got.Equal(target) {
		t.Errorf("Now() after Set = %v, want %v", got, target)
	}
	// zero step never advances
	if got := clock.Now(); !got.Equal(target) {
		t.Errorf("Now() with zero step = %v, want %v", got, target)
	}
}
