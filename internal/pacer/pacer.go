// Package pacer enforces the annotation provider's requests-per-minute
// ceiling by spacing calls at a fixed interval.
//
// With interval = 60s / requestsPerMinute, call timestamps are strictly
// increasing and at least one interval apart, so no rolling 60-second
// window ever contains more than requestsPerMinute calls. The clock is
// injectable so the pacing policy is testable without real sleeps.
package pacer

import (
	"time"

	"photo-tagger/internal/metrics"
)

// Clock abstracts wall time and sleeping for the pacer.
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// RealClock returns a Clock backed by the system clock.
func RealClock() Clock {
	return realClock{}
}

// Pacer spaces successive calls at a fixed interval. Not safe for
// concurrent use; the batch runs on a single goroutine.
type Pacer struct {
	interval time.Duration
	clock    Clock
	last     time.Time
	started  bool
}

// New creates a Pacer for the given requests-per-minute ceiling.
// requestsPerMinute must be positive (validated at configuration load).
func New(requestsPerMinute int, clock Clock) *Pacer {
	return &Pacer{
		interval: time.Minute / time.Duration(requestsPerMinute),
		clock:    clock,
	}
}

// Interval returns the spacing between successive calls.
func (p *Pacer) Interval() time.Duration {
	return p.interval
}

// Wait blocks until the next call may be issued and records its slot.
// The first call passes immediately. Returns the time spent waiting.
func (p *Pacer) Wait() time.Duration {
	now := p.clock.Now()

	if !p.started {
		p.started = true
		p.last = now
		return 0
	}

	next := p.last.Add(p.interval)
	if now.Before(next) {
		wait := next.Sub(now)
		p.clock.Sleep(wait)
		p.last = next
		metrics.PacerWaitSeconds.Add(wait.Seconds())
		return wait
	}

	p.last = now
	return 0
}
