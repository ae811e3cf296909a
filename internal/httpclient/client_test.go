package httpclient

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c := New(srv.URL, 0, func() (string, bool) { return "test-token", true })
	return c, srv
}

func TestClientClassifiesSuccess(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Token test-token" {
			t.Errorf("unexpected Authorization header: %q", got)
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"ok":true}`))
	})
	res := c.ListZones(context.Background())
	if !res.OK() {
		t.Fatalf("expected OK, got %+v", res)
	}
}

func TestClientClassifiesRateLimited(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "2")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"detail":"slow down"}`))
	})
	res := c.GetAccount(context.Background())
	if res.Kind != KindRateLimited {
		t.Fatalf("expected KindRateLimited, got %v", res.Kind)
	}
	if res.RetryAfter != 2 {
		t.Fatalf("expected retry_after=2, got %d", res.RetryAfter)
	}
}

func TestClientClassifiesUnauthenticated(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	res := c.ListZones(context.Background())
	if res.Kind != KindUnauthenticated {
		t.Fatalf("expected KindUnauthenticated, got %v", res.Kind)
	}
}

func TestClientClassifiesClientErrorNonFieldErrors(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"non_field_errors":["Another RRset with the same subdomain and type exists for this domain."]}`))
	})
	res := c.ListZones(context.Background())
	if res.Kind != KindClientError {
		t.Fatalf("expected KindClientError, got %v", res.Kind)
	}
	want := "Another RRset with the same subdomain and type exists for this domain."
	if res.Message != want {
		t.Fatalf("expected message %q, got %q", want, res.Message)
	}
}

func TestClientDefaultRetryAfter(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	})
	res := c.ListZones(context.Background())
	if res.RetryAfter != defaultRetryAfter {
		t.Fatalf("expected default retry_after=%d, got %d", defaultRetryAfter, res.RetryAfter)
	}
}
