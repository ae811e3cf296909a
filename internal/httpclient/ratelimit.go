package httpclient

import (
	"sync"
	"time"
)

// Clock abstracts time so tests can inject a virtual clock instead of
// sleeping in real time (§8 "Cooldown" test).
type Clock interface {
	Now() time.Time
	Sleep(d time.Duration)
}

type realClock struct{}

func (realClock) Now() time.Time        { return time.Now() }
func (realClock) Sleep(d time.Duration) { time.Sleep(d) }

// NewRealClock returns the wall-clock Clock implementation. Other
// subsystems (the queue's retry/cooldown sleeps) default to this one and
// substitute a fake in tests, the same way the limiter does.
func NewRealClock() Clock { return realClock{} }

// RateLimiter enforces a per-process minimum interval between outbound
// requests (§4.1). A rate of 0 disables limiting entirely. The queue
// worker and a connectivity probe racing it (§4.7 WaitForConnectivity
// calls DoRaw directly, bypassing the queue) both call Wait, so it must
// serialise genuinely concurrent callers, not just guard against misuse.
type RateLimiter struct {
	mu             sync.Mutex
	rate           float64 // requests per second; 0 disables limiting
	lastDispatchAt time.Time
	clock          Clock
}

const minRate = 0.25

// NewRateLimiter creates a limiter at the given initial rate (req/s).
func NewRateLimiter(rate float64) *RateLimiter {
	return &RateLimiter{rate: rate, clock: realClock{}}
}

// WithClock overrides the limiter's clock, for deterministic tests.
func (l *RateLimiter) WithClock(c Clock) *RateLimiter {
	l.mu.Lock()
	l.clock = c
	l.mu.Unlock()
	return l
}

// SetRate updates the limiter's rate. Takes effect starting with the next
// dispatch; any caller already inside Wait keeps the interval it was
// computed against.
func (l *RateLimiter) SetRate(rate float64) {
	l.mu.Lock()
	l.rate = rate
	l.mu.Unlock()
}

// Rate returns the limiter's current rate.
func (l *RateLimiter) Rate() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rate
}

// Wait blocks until the next dispatch is permitted, then records the
// dispatch time. Must be called immediately before issuing the request.
// The mutex is held across the sleep itself, not just the bookkeeping
// around it — releasing it between computing wait and sleeping would let
// two concurrent callers read the same lastDispatchAt and both dispatch
// at once, which defeats the minimum-interval guarantee entirely.
func (l *RateLimiter) Wait() {
	l.mu.Lock()
	defer l.mu.Unlock()

	rate := l.rate
	clock := l.clock
	if rate <= 0 {
		l.lastDispatchAt = clock.Now()
		return
	}
	interval := time.Duration(float64(time.Second) / rate)
	earliest := l.lastDispatchAt.Add(interval)
	wait := earliest.Sub(clock.Now())
	if wait > 0 {
		clock.Sleep(wait)
	}
	l.lastDispatchAt = clock.Now()
}

// AdaptRateLimit halves the current rate in response to a rate-limit
// signal, with a floor of 0.25 req/s (§4.1 "Adaptive rate change").
// A disabled limiter (rate == 0) is left untouched — there is nothing to
// adapt away from.
func (l *RateLimiter) AdaptRateLimit() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.rate <= 0 {
		return
	}
	l.rate /= 2
	if l.rate < minRate {
		l.rate = minRate
	}
}
