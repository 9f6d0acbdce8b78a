package pacer

import (
	"testing"
	"time"
)

// fakeClock advances only when Sleep is called, so pacing decisions are
// fully deterministic.
type fakeClock struct {
	now    time.Time
	sleeps []time.Duration
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
}

func (c *fakeClock) advance(d time.Duration) { c.now = c.now.Add(d) }

func TestWaitFirstCallPassesImmediately(t *testing.T) {
	clock := newFakeClock()
	p := New(15, clock)

	if wait := p.Wait(); wait != 0 {
		t.Errorf("first Wait() = %v, want 0", wait)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("first Wait() slept %v, want no sleep", clock.sleeps)
	}
}

func TestWaitEnforcesInterval(t *testing.T) {
	clock := newFakeClock()
	p := New(15, clock) // 4s interval

	p.Wait()
	wait := p.Wait()
	if wait != 4*time.Second {
		t.Errorf("second Wait() = %v, want 4s", wait)
	}
	if len(clock.sleeps) != 1 || clock.sleeps[0] != 4*time.Second {
		t.Errorf("sleeps = %v, want [4s]", clock.sleeps)
	}
}

func TestWaitSkipsSleepAfterLongGap(t *testing.T) {
	clock := newFakeClock()
	p := New(15, clock)

	p.Wait()
	clock.advance(10 * time.Second)

	if wait := p.Wait(); wait != 0 {
		t.Errorf("Wait() after long gap = %v, want 0", wait)
	}
	if len(clock.sleeps) != 0 {
		t.Errorf("sleeps = %v, want none", clock.sleeps)
	}
}

func TestWaitPartialGap(t *testing.T) {
	clock := newFakeClock()
	p := New(15, clock)

	p.Wait()
	clock.advance(1 * time.Second)

	if wait := p.Wait(); wait != 3*time.Second {
		t.Errorf("Wait() after 1s gap = %v, want 3s", wait)
	}
}

func TestRollingWindowNeverExceedsCeiling(t *testing.T) {
	const rpm = 15
	clock := newFakeClock()
	p := New(rpm, clock)

	var stamps []time.Time
	for i := 0; i < 3*rpm; i++ {
		p.Wait()
		stamps = append(stamps, clock.Now())
	}

	for i, start := range stamps {
		count := 0
		for _, s := range stamps {
			if !s.Before(start) && s.Before(start.Add(time.Minute)) {
				count++
			}
		}
		if count > rpm {
			t.Fatalf("window starting at call %d contains %d calls, ceiling is %d", i, count, rpm)
		}
	}
}

func TestInterval(t *testing.T) {
	tests := []struct {
		name string
		rpm  int
		want time.Duration
	}{
		{name: "15 per minute", rpm: 15, want: 4 * time.Second},
		{name: "60 per minute", rpm: 60, want: time.Second},
		{name: "1 per minute", rpm: 1, want: time.Minute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.rpm, newFakeClock())
			if got := p.Interval(); got != tt.want {
				t.Errorf("Interval() = %v, want %v", got, tt.want)
			}
		})
	}
}
