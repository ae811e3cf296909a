package httpclient

import (
	"testing"
	"time"
)

// fakeClock advances only when Sleep is called, so the test runs
// instantly while still exercising the real interval arithmetic.
type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }
func (c *fakeClock) Sleep(d time.Duration) { c.now = c.now.Add(d) }

func TestRateLimiterEnforcesInterval(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	l := NewRateLimiter(2).WithClock(clk) // 2 req/s => 500ms interval

	l.Wait()
	first := clk.now
	l.Wait()
	second := clk.now

	if second.Sub(first) < 500*time.Millisecond {
		t.Fatalf("expected >=500ms between dispatches, got %v", second.Sub(first))
	}
}

func TestRateLimiterDisabledAtZero(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	l := NewRateLimiter(0).WithClock(clk)
	l.Wait()
	l.Wait()
	if clk.now != time.Unix(0, 0) {
		t.Fatalf("disabled limiter should never sleep, clock advanced to %v", clk.now)
	}
}

func TestAdaptRateLimitHalvesWithFloor(t *testing.T) {
	l := NewRateLimiter(1.0)
	l.AdaptRateLimit()
	if l.Rate() != 0.5 {
		t.Fatalf("expected 0.5, got %v", l.Rate())
	}
	l.AdaptRateLimit()
	if l.Rate() != 0.25 {
		t.Fatalf("expected 0.25, got %v", l.Rate())
	}
	l.AdaptRateLimit()
	if l.Rate() != 0.25 {
		t.Fatalf("expected floor 0.25, got %v", l.Rate())
	}
}

func TestSetRateTakesEffect(t *testing.T) {
	l := NewRateLimiter(1.0)
	l.SetRate(5.0)
	if l.Rate() != 5.0 {
		t.Fatalf("expected 5.0, got %v", l.Rate())
	}
}
