package queue

import (
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"desec-core/internal/httpclient"
	"desec-core/internal/model"
)

// fakeClock advances only when Sleep is called, so retry/cooldown tests
// never wait in real time (§8 "virtual clock" testable property).
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Sleep(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newTestQueue(t *testing.T, handler http.HandlerFunc) (*Queue, *fakeClock) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client := httpclient.New(srv.URL, 0, func() (string, bool) { return "t", true })
	clk := &fakeClock{now: time.Unix(0, 0)}
	q := New(client, 0).WithClock(clk)
	q.Start()
	t.Cleanup(q.Stop)
	return q, clk
}

func waitFor(t *testing.T, ch <-chan Item, timeout time.Duration) Item {
	t.Helper()
	select {
	case it := <-ch:
		return it
	case <-time.After(timeout):
		t.Fatal("timed out waiting for queue item completion")
		return Item{}
	}
}

func TestSubmitDeliversFIFOWithinPriority(t *testing.T) {
	q, _ := newTestQueue(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	done := make(chan Item, 2)
	q.Submit(Submission{Priority: model.PriorityNormal, Request: model.Request{Method: http.MethodGet, URL: "/a"}, Callback: func(it Item) { done <- it }})
	q.Submit(Submission{Priority: model.PriorityNormal, Request: model.Request{Method: http.MethodGet, URL: "/b"}, Callback: func(it Item) { done <- it }})

	first := waitFor(t, done, time.Second)
	second := waitFor(t, done, time.Second)

	if first.Request.URL != "/a" || second.Request.URL != "/b" {
		t.Fatalf("expected FIFO order a,b — got %s,%s", first.Request.URL, second.Request.URL)
	}
}

func TestHighPriorityDispatchesBeforeLowOnceQueued(t *testing.T) {
	q, _ := newTestQueue(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	q.Pause()

	done := make(chan Item, 2)
	q.Submit(Submission{Priority: model.PriorityLow, Request: model.Request{Method: http.MethodGet, URL: "/low"}, Callback: func(it Item) { done <- it }})
	q.Submit(Submission{Priority: model.PriorityHigh, Request: model.Request{Method: http.MethodGet, URL: "/high"}, Callback: func(it Item) { done <- it }})
	q.Resume()

	first := waitFor(t, done, time.Second)
	second := waitFor(t, done, time.Second)
	if first.Request.URL != "/high" || second.Request.URL != "/low" {
		t.Fatalf("expected high before low — got %s,%s", first.Request.URL, second.Request.URL)
	}
}

func TestRetryThenSuccess(t *testing.T) {
	var calls atomic.Int32
	q, _ := newTestQueue(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "1")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		w.WriteHeader(http.StatusOK)
	})

	done := make(chan Item, 1)
	q.Submit(Submission{Priority: model.PriorityNormal, Request: model.Request{Method: http.MethodGet, URL: "/x"}, Callback: func(it Item) { done <- it }})

	final := waitFor(t, done, 2*time.Second)
	if final.Status != model.StatusOK {
		t.Fatalf("expected final status ok, got %s (err=%s)", final.Status, final.Err)
	}
	if final.RetryCount != 1 {
		t.Fatalf("expected retry_count=1, got %d", final.RetryCount)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 server calls, got %d", calls.Load())
	}
}

func TestLongRateLimitEntersCooldownAndAutoResumes(t *testing.T) {
	q, _ := newTestQueue(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "120")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	done := make(chan Item, 1)
	q.Submit(Submission{Priority: model.PriorityNormal, Request: model.Request{Method: http.MethodGet, URL: "/x"}, Callback: func(it Item) { done <- it }})

	final := waitFor(t, done, 2*time.Second)
	if final.Status != model.StatusRateLimited {
		t.Fatalf("expected rate_limited terminal status, got %s", final.Status)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if !q.Paused() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("queue did not auto-resume after cooldown")
}

func TestCancelPendingItemNeverDispatches(t *testing.T) {
	var calls atomic.Int32
	q, _ := newTestQueue(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	q.Pause()

	done := make(chan Item, 1)
	h := q.Submit(Submission{Priority: model.PriorityNormal, Request: model.Request{Method: http.MethodGet, URL: "/x"}, Callback: func(it Item) { done <- it }})
	if !h.Cancel() {
		t.Fatal("expected cancel of pending item to succeed")
	}

	final := waitFor(t, done, time.Second)
	if final.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", final.Status)
	}
	if calls.Load() != 0 {
		t.Fatalf("expected 0 server calls for a cancelled pending item, got %d", calls.Load())
	}
}

func TestPauseBlocksDispatchUntilResume(t *testing.T) {
	var calls atomic.Int32
	q, _ := newTestQueue(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusOK)
	})
	q.Pause()

	done := make(chan Item, 1)
	q.Submit(Submission{Priority: model.PriorityNormal, Request: model.Request{Method: http.MethodGet, URL: "/x"}, Callback: func(it Item) { done <- it }})

	select {
	case <-done:
		t.Fatal("item dispatched while queue was paused")
	case <-time.After(100 * time.Millisecond):
	}

	q.Resume()
	final := waitFor(t, done, time.Second)
	if final.Status != model.StatusOK {
		t.Fatalf("expected ok after resume, got %s", final.Status)
	}
}
