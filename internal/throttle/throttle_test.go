package throttle

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"bibledownloader/internal/domain"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) Now() time.Time          { return c.t }
func (c *fakeClock) Advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestThrottle(speed domain.Speed, source string, clock *fakeClock, r float64) *Throttle {
	return New(speed, source, WithClock(clock.Now), WithRandom(func() float64 { return r }))
}

func TestInitialDelayUsesPreset(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThrottle(domain.SpeedBalanced, "bible.com", clock, 0.5)
	assert.Equal(t, 200*time.Millisecond, th.Delay())
	assert.Equal(t, 200*time.Millisecond, th.Snapshot().Current)
}

func TestSourceFloorWins(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThrottle(domain.SpeedAggressive, "debijbel.nl", clock, 0.5)
	assert.Equal(t, 300*time.Millisecond, th.Delay())
}

func TestSuccessStreakShrinksTowardBase(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThrottle(domain.SpeedBalanced, "", clock, 0.5)

	for i := 0; i < SuccessStreak-1; i++ {
		th.Success()
	}
	assert.Equal(t, 200*time.Millisecond, th.Snapshot().Current)

	th.Success()
	assert.Equal(t, 170*time.Millisecond, th.Snapshot().Current)

	for i := 0; i < 50; i++ {
		th.Success()
	}
	assert.Equal(t, 100*time.Millisecond, th.Snapshot().Current)
}

func TestFailureResetsStreak(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThrottle(domain.SpeedBalanced, "", clock, 0.5)

	for i := 0; i < 4; i++ {
		th.Success()
	}
	th.Failure(false)
	st := th.Snapshot()
	assert.Equal(t, 0, st.ConsecutiveSuccesses)
	assert.Equal(t, 1, st.RecentFailures)
	assert.Equal(t, 200*time.Millisecond, st.Current)
	assert.True(t, st.LastRateLimit.IsZero())

	th.Success()
	assert.Equal(t, 200*time.Millisecond, th.Snapshot().Current)
}

func TestRateLimitGrowsAndDoubles(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThrottle(domain.SpeedBalanced, "bible.com", clock, 0.5)

	th.Failure(true)
	assert.Equal(t, 300*time.Millisecond, th.Snapshot().Current)
	assert.Equal(t, 600*time.Millisecond, th.Delay())

	clock.Advance(RateLimitWindow + time.Second)
	assert.Equal(t, 300*time.Millisecond, th.Delay())
}

func TestRateLimitClampedAtMax(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThrottle(domain.SpeedAggressive, "", clock, 0.5)
	for i := 0; i < 40; i++ {
		th.Failure(true)
	}
	assert.Equal(t, 3*time.Second, th.Snapshot().Current)
}

func TestFailuresPrunedAfterWindow(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThrottle(domain.SpeedBalanced, "", clock, 0.5)

	th.Failure(false)
	clock.Advance(5 * time.Minute)
	th.Failure(false)
	assert.Equal(t, 2, th.Snapshot().RecentFailures)

	clock.Advance(6 * time.Minute)
	assert.Equal(t, 1, th.Snapshot().RecentFailures)

	clock.Advance(10 * time.Minute)
	assert.Equal(t, 0, th.Snapshot().RecentFailures)
}

func TestJitterBounded(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	low := newTestThrottle(domain.SpeedBalanced, "", clock, 0)
	high := newTestThrottle(domain.SpeedBalanced, "", clock, 0.999999)

	assert.Equal(t, 160*time.Millisecond, low.Delay())
	assert.InDelta(t, float64(240*time.Millisecond), float64(high.Delay()), float64(time.Microsecond))

	live := New(domain.SpeedBalanced, "")
	for i := 0; i < 200; i++ {
		d := live.Delay()
		assert.GreaterOrEqual(t, d, 160*time.Millisecond)
		assert.LessOrEqual(t, d, 240*time.Millisecond)
	}
}

func TestReserveStaggersRequests(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThrottle(domain.SpeedBalanced, "bible.com", clock, 0.5)

	var waits []time.Duration
	for i := 0; i < 3; i++ {
		d, _ := th.Reserve()
		waits = append(waits, d)
	}
	assert.InDelta(t, 0, float64(waits[0]), float64(time.Microsecond))
	assert.InDelta(t, float64(200*time.Millisecond), float64(waits[1]), float64(time.Microsecond))
	assert.InDelta(t, float64(400*time.Millisecond), float64(waits[2]), float64(time.Microsecond))

	clock.Advance(time.Second)
	d, _ := th.Reserve()
	assert.InDelta(t, 0, float64(d), float64(time.Microsecond))
}

func TestReserveFollowsRateLimitDoubling(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThrottle(domain.SpeedBalanced, "bible.com", clock, 0.5)

	th.Failure(true)
	first, _ := th.Reserve()
	second, _ := th.Reserve()
	assert.InDelta(t, 0, float64(first), float64(time.Microsecond))
	assert.InDelta(t, float64(600*time.Millisecond), float64(second), float64(time.Microsecond))
}

func TestReserveCancelReturnsSlot(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	th := newTestThrottle(domain.SpeedBalanced, "bible.com", clock, 0.5)

	_, _ = th.Reserve()
	d, cancel := th.Reserve()
	assert.InDelta(t, float64(200*time.Millisecond), float64(d), float64(time.Microsecond))
	cancel()

	again, _ := th.Reserve()
	assert.InDelta(t, float64(200*time.Millisecond), float64(again), float64(time.Millisecond))
}

func TestReserveJitterBounded(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	low := newTestThrottle(domain.SpeedBalanced, "", clock, 0)

	_, _ = low.Reserve()
	d, _ := low.Reserve()
	assert.InDelta(t, float64(160*time.Millisecond), float64(d), float64(time.Microsecond))
}

func TestConcurrencyTable(t *testing.T) {
	tests := []struct {
		source string
		speed  domain.Speed
		want   int
	}{
		{"bible.com", domain.SpeedConservative, 2},
		{"bible.com", domain.SpeedBalanced, 4},
		{"bible.com", domain.SpeedAggressive, 6},
		{"basisbijbel.nl", domain.SpeedAggressive, 4},
		{"debijbel.nl", domain.SpeedConservative, 1},
		{"debijbel.nl", domain.SpeedBalanced, 2},
		{"unknown", domain.SpeedBalanced, 2},
		{"bible.com", domain.Speed(""), 4},
	}
	for _, tc := range tests {
		if got := Concurrency(tc.source, tc.speed); got != tc.want {
			t.Fatalf("Concurrency(%q, %q) = %d, want %d", tc.source, tc.speed, got, tc.want)
		}
	}
}

func TestPresetForFallsBackToBalanced(t *testing.T) {
	assert.Equal(t, PresetFor(domain.SpeedBalanced), PresetFor("turbo"))
	assert.Greater(t, PresetFor(domain.SpeedConservative).Base, PresetFor(domain.SpeedAggressive).Base)
}
