// Package throttle implements the per-job adaptive request pacing.
package throttle

import (
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"bibledownloader/internal/domain"
)

const (
	// SuccessStreak is the run of successes after which the delay shrinks.
	SuccessStreak   = 5
	FailureWindow   = 10 * time.Minute
	RateLimitWindow = 60 * time.Second
	JitterRatio     = 0.2
)

// Preset holds the pacing parameters selected by a speed preference.
type Preset struct {
	Base     time.Duration
	Max      time.Duration
	RampUp   float64
	RampDown float64
	Initial  time.Duration
}

var presets = map[domain.Speed]Preset{
	domain.SpeedConservative: {Base: 500 * time.Millisecond, Max: 10 * time.Second, RampUp: 2.0, RampDown: 0.9, Initial: 750 * time.Millisecond},
	domain.SpeedBalanced:     {Base: 100 * time.Millisecond, Max: 5 * time.Second, RampUp: 1.5, RampDown: 0.85, Initial: 200 * time.Millisecond},
	domain.SpeedAggressive:   {Base: 50 * time.Millisecond, Max: 3 * time.Second, RampUp: 1.5, RampDown: 0.8, Initial: 75 * time.Millisecond},
}

// PresetFor returns the preset for speed, falling back to balanced.
func PresetFor(speed domain.Speed) Preset {
	if p, ok := presets[speed]; ok {
		return p
	}
	return presets[domain.SpeedBalanced]
}

var sourceFloors = map[string]time.Duration{
	"bible.com":      100 * time.Millisecond,
	"basisbijbel.nl": 200 * time.Millisecond,
	"debijbel.nl":    300 * time.Millisecond,
}

// SourceFloor is the minimum wait a source requires regardless of learned state.
func SourceFloor(source string) time.Duration {
	return sourceFloors[source]
}

// State is a point-in-time copy of the throttle counters.
type State struct {
	Current              time.Duration
	ConsecutiveSuccesses int
	RecentFailures       int
	LastRateLimit        time.Time
}

// Throttle is safe for concurrent use by the fetches of one batch. Request
// slots come from a rate.Limiter whose interval follows the learned delay.
type Throttle struct {
	mu            sync.Mutex
	limiter       *rate.Limiter
	preset        Preset
	floor         time.Duration
	current       time.Duration
	successes     int
	failures      []time.Time
	lastRateLimit time.Time

	now    func() time.Time
	random func() float64
}

// Option customizes a Throttle.
type Option func(*Throttle)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(t *Throttle) { t.now = now }
}

// WithRandom replaces the jitter source; fn must return values in [0, 1).
func WithRandom(fn func() float64) Option {
	return func(t *Throttle) { t.random = fn }
}

// New creates the throttle for one job.
func New(speed domain.Speed, source string, opts ...Option) *Throttle {
	p := PresetFor(speed)
	t := &Throttle{
		preset:  p,
		floor:   SourceFloor(source),
		current: p.Initial,
		now:     time.Now,
		random:  rand.Float64,
	}
	for _, opt := range opts {
		opt(t)
	}
	t.limiter = rate.NewLimiter(rate.Every(t.interval(t.now())), 1)
	return t
}

// Success records a completed fetch.
func (t *Throttle) Success() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.successes++
	if t.successes >= SuccessStreak {
		t.current = t.clamp(time.Duration(float64(t.current) * t.preset.RampDown))
	}
}

// Failure records a failed fetch. Only rate-limit failures grow the delay.
func (t *Throttle) Failure(rateLimited bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	t.successes = 0
	t.failures = append(pruneBefore(t.failures, now.Add(-FailureWindow)), now)
	if rateLimited {
		t.lastRateLimit = now
		t.current = t.clamp(time.Duration(float64(t.current) * t.preset.RampUp))
	}
}

// Delay returns the current pacing interval, jitter included. The
// scheduler uses it as the pause between batches.
func (t *Throttle) Delay() time.Duration {
	t.mu.Lock()
	defer t.mu.Unlock()
	d := t.interval(t.now())
	return d + t.jitter(d)
}

// Reserve claims the next request slot and returns the jittered wait before
// it. Concurrent callers get staggered slots. cancel hands the slot back
// when the caller gives up before sending.
func (t *Throttle) Reserve() (wait time.Duration, cancel func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	now := t.now()
	d := t.interval(now)
	t.limiter.SetLimitAt(now, rate.Every(d))
	r := t.limiter.ReserveN(now, 1)
	wait = max(r.DelayFrom(now)+t.jitter(d), 0)
	return wait, func() { r.CancelAt(t.now()) }
}

// interval is the learned delay raised to the source floor and doubled
// inside the rate-limit window. Callers hold mu.
func (t *Throttle) interval(now time.Time) time.Duration {
	wait := max(t.current, t.floor)
	if !t.lastRateLimit.IsZero() && now.Sub(t.lastRateLimit) < RateLimitWindow {
		wait *= 2
	}
	return wait
}

func (t *Throttle) jitter(d time.Duration) time.Duration {
	return time.Duration(float64(d) * JitterRatio * (2*t.random() - 1))
}

// Snapshot returns the current counters.
func (t *Throttle) Snapshot() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = pruneBefore(t.failures, t.now().Add(-FailureWindow))
	return State{
		Current:              t.current,
		ConsecutiveSuccesses: t.successes,
		RecentFailures:       len(t.failures),
		LastRateLimit:        t.lastRateLimit,
	}
}

func (t *Throttle) clamp(d time.Duration) time.Duration {
	if d < t.preset.Base {
		return t.preset.Base
	}
	if d > t.preset.Max {
		return t.preset.Max
	}
	return d
}

func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && ts[i].Before(cutoff) {
		i++
	}
	return ts[i:]
}
