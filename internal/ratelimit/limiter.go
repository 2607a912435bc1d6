// Package ratelimit implements an adaptive rate limiter shared by every
// concurrent caller of a remote API family. Acquire spaces calls at least
// one interval apart; Report widens or narrows the interval based on
// observed throttling and success signals.
package ratelimit

import (
	"context"
	"sync"
	"time"
)

// Outcome classifies a completed remote call for Report.
type Outcome int

const (
	// OK means the call succeeded.
	OK Outcome = iota

	// Throttled means the remote signalled rate limiting.
	Throttled

	// Failed means the call failed for a reason unrelated to throttling.
	// It is not evidence of being throttled and leaves the interval alone.
	Failed
)

// Default policy values, matching the sync defaults of the pipeline.
const (
	DefaultInterval = 300 * time.Millisecond
	DefaultFloor    = 100 * time.Millisecond
	DefaultCeiling  = 5 * time.Second

	// DefaultSlowFactor multiplies the interval on a throttle signal.
	DefaultSlowFactor = 1.5

	// DefaultFastFactor multiplies the interval after a success streak.
	DefaultFastFactor = 0.9

	// DefaultSpeedUpAfter is the consecutive-success run length required
	// before the interval narrows.
	DefaultSpeedUpAfter = 10
)

// Config tunes a Limiter. Zero values fall back to the defaults above.
type Config struct {
	Interval     time.Duration
	Floor        time.Duration
	Ceiling      time.Duration
	SlowFactor   float64
	FastFactor   float64
	SpeedUpAfter int
}

// Limiter is the process-wide gate for one remote API family.
// All mutable state is guarded by a single mutex; every read-modify-write
// happens in one critical section so concurrent workers stay evenly spaced.
type Limiter struct {
	mu           sync.Mutex
	interval     time.Duration
	floor        time.Duration
	ceiling      time.Duration
	slowFactor   float64
	fastFactor   float64
	speedUpAfter int
	successRun   int
	next         time.Time
}

// New creates a limiter from cfg, applying defaults for zero fields.
func New(cfg Config) *Limiter {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Floor <= 0 {
		cfg.Floor = DefaultFloor
	}
	if cfg.Ceiling <= 0 {
		cfg.Ceiling = DefaultCeiling
	}
	if cfg.SlowFactor <= 1 {
		cfg.SlowFactor = DefaultSlowFactor
	}
	if cfg.FastFactor <= 0 || cfg.FastFactor >= 1 {
		cfg.FastFactor = DefaultFastFactor
	}
	if cfg.SpeedUpAfter <= 0 {
		cfg.SpeedUpAfter = DefaultSpeedUpAfter
	}

	return &Limiter{
		interval:     cfg.Interval,
		floor:        cfg.Floor,
		ceiling:      cfg.Ceiling,
		slowFactor:   cfg.SlowFactor,
		fastFactor:   cfg.FastFactor,
		speedUpAfter: cfg.SpeedUpAfter,
	}
}

// Acquire blocks until the caller is permitted to issue one remote call.
// Permission reserves the slot: the next caller waits at least one interval
// beyond this reservation, so concurrent callers serialize instead of
// bursting.
func (l *Limiter) Acquire(ctx context.Context) error {
	for {
		l.mu.Lock()
		now := time.Now()
		if !now.Before(l.next) {
			l.next = now.Add(l.interval)
			l.mu.Unlock()
			return nil
		}
		wait := l.next.Sub(now)
		l.mu.Unlock()

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Report records the outcome of the call that Acquire permitted.
func (l *Limiter) Report(outcome Outcome) {
	l.mu.Lock()
	defer l.mu.Unlock()

	switch outcome {
	case Throttled:
		l.successRun = 0
		l.interval = time.Duration(float64(l.interval) * l.slowFactor)
		if l.interval > l.ceiling {
			l.interval = l.ceiling
		}
	case OK:
		l.successRun++
		if l.successRun >= l.speedUpAfter {
			l.successRun = 0
			l.interval = time.Duration(float64(l.interval) * l.fastFactor)
			if l.interval < l.floor {
				l.interval = l.floor
			}
		}
	case Failed:
		// Not a throttling signal; the interval stays put.
		l.successRun = 0
	}
}

// Interval returns the current minimum inter-call interval.
func (l *Limiter) Interval() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.interval
}
