// Package httpclient is the thin REST façade over the service's HTTP API:
// it issues requests, enforces the rate limiter, and classifies every
// response into the discriminated Result taxonomy from §4.1/§7.
package httpclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"desec-core/internal/model"
)

// DefaultBaseURL is the production deSEC API root (§6).
const DefaultBaseURL = "https://desec.io/api/v1"

// DefaultTimeout is the per-request HTTP timeout (§5).
const DefaultTimeout = 30 * time.Second

const defaultRetryAfter = 30 // seconds, when the server omits one (§4.1)

// TokenSource supplies the current plaintext API token for the
// Authorization header. It is a function, not a field, so the client
// never holds the token longer than the call that needs it — the
// credential store remains the single place the token is decrypted
// (§4.6, §7 "Credential hygiene").
type TokenSource func() (string, bool)

// Client issues REST calls against the service and classifies their
// outcome. It holds no queue/retry logic of its own — that lives one
// layer up, in the queue (§4.2) — but it does own the rate limiter
// because the limiter's contract ("wait before every dispatch") is a
// property of the transport, not of scheduling.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      TokenSource
	limiter    *RateLimiter
}

// New creates a Client against baseURL, rate-limited at rate req/s.
func New(baseURL string, rate float64, token TokenSource) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		baseURL:    baseURL,
		token:      token,
		limiter:    NewRateLimiter(rate),
	}
}

// Limiter exposes the client's rate limiter so the queue can call
// AdaptRateLimit after a rate-limit event and the façade can expose
// SetRate.
func (c *Client) Limiter() *RateLimiter { return c.limiter }

// SetTimeout overrides the per-request HTTP timeout (default 30s, §5).
func (c *Client) SetTimeout(d time.Duration) { c.httpClient.Timeout = d }

// Do issues one request and classifies the response. The rate limiter is
// always consulted first, even on a retry — the spec gives the limiter
// no special-cased exemption for retried calls.
func (c *Client) Do(ctx context.Context, method, path string, body any) Result {
	var raw []byte
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return Result{Kind: KindClientError, Message: fmt.Sprintf("encode request body: %v", err)}
		}
		raw = b
	}
	return c.DoRaw(ctx, model.Request{Method: method, URL: path, Body: raw})
}

// DoRaw dispatches an already-built Request without re-encoding its body.
// This is the primitive the queue worker uses: every QueueItem carries a
// Request built ahead of time by a façade helper, and the worker never
// needs to know which endpoint it belongs to (§4.2).
func (c *Client) DoRaw(ctx context.Context, req model.Request) Result {
	var reader io.Reader
	if len(req.Body) > 0 {
		reader = bytes.NewReader(req.Body)
	}

	c.limiter.Wait()

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, c.baseURL+req.URL, reader)
	if err != nil {
		return Result{Kind: KindNetwork, Message: err.Error()}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	correlationID := uuid.NewString()
	httpReq.Header.Set("X-Request-Id", correlationID)
	if tok, ok := c.token(); ok && tok != "" {
		httpReq.Header.Set("Authorization", "Token "+tok)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return Result{Kind: KindNetwork, Message: err.Error()}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{Kind: KindNetwork, Message: err.Error()}
	}

	result := classify(resp, respBody)
	result.CorrelationID = correlationID
	return result
}

func classify(resp *http.Response, body []byte) Result {
	code := resp.StatusCode
	switch {
	case code >= 200 && code < 300:
		return Result{Kind: KindNone, StatusCode: code, Payload: body}
	case code == http.StatusTooManyRequests:
		return Result{Kind: KindRateLimited, StatusCode: code, RetryAfter: retryAfterFrom(resp, body), Message: extractMessage(body)}
	case code == http.StatusUnauthorized:
		return Result{Kind: KindUnauthenticated, StatusCode: code, Message: "token invalid; re-authenticate"}
	case code == http.StatusForbidden:
		return Result{Kind: KindForbidden, StatusCode: code, Message: extractMessage(body)}
	case code >= 400 && code < 500:
		return Result{Kind: KindClientError, StatusCode: code, Message: extractMessage(body)}
	case code >= 500:
		return Result{Kind: KindServerError, StatusCode: code, Message: extractMessage(body)}
	default:
		return Result{Kind: KindServerError, StatusCode: code, Message: "unexpected status code"}
	}
}

// retryAfterFrom reads Retry-After from the header first, then a
// retry_after body field, defaulting to 30 seconds (§4.1).
func retryAfterFrom(resp *http.Response, body []byte) int {
	if h := resp.Header.Get("Retry-After"); h != "" {
		if n, err := strconv.Atoi(h); err == nil {
			return n
		}
	}
	var payload struct {
		RetryAfter int `json:"retry_after"`
	}
	if err := json.Unmarshal(body, &payload); err == nil && payload.RetryAfter > 0 {
		return payload.RetryAfter
	}
	return defaultRetryAfter
}

// extractMessage pulls non_field_errors[0] when present, falling back to
// the raw body text (§4.1).
func extractMessage(body []byte) string {
	var payload struct {
		NonFieldErrors []string `json:"non_field_errors"`
		Detail         string   `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if len(payload.NonFieldErrors) > 0 {
			return payload.NonFieldErrors[0]
		}
		if payload.Detail != "" {
			return payload.Detail
		}
	}
	return string(body)
}

// --- Zones ---

func (c *Client) ListZones(ctx context.Context) Result {
	return c.Do(ctx, http.MethodGet, "/domains/", nil)
}

func (c *Client) CreateZone(ctx context.Context, name string) Result {
	return c.Do(ctx, http.MethodPost, "/domains/", map[string]string{"name": name})
}

func (c *Client) GetZone(ctx context.Context, name string) Result {
	return c.Do(ctx, http.MethodGet, fmt.Sprintf("/domains/%s/", name), nil)
}

func (c *Client) DeleteZone(ctx context.Context, name string) Result {
	return c.Do(ctx, http.MethodDelete, fmt.Sprintf("/domains/%s/", name), nil)
}

// --- RRsets (synchronous helpers; the façade's refreshes go through the
// queue with the request builders in request.go instead) ---

func (c *Client) ListRRsets(ctx context.Context, zone string) Result {
	return c.Do(ctx, http.MethodGet, fmt.Sprintf("/domains/%s/rrsets/", zone), nil)
}

func (c *Client) CreateRRset(ctx context.Context, zone string, rr model.RRset) Result {
	return c.Do(ctx, http.MethodPost, fmt.Sprintf("/domains/%s/rrsets/", zone),
		rrsetBody{Subname: rr.Subname, Type: rr.Type, TTL: rr.TTL, Records: rr.Records})
}

func (c *Client) UpdateRRset(ctx context.Context, zone, subname, typ string, patch map[string]any) Result {
	return c.Do(ctx, http.MethodPatch, rrsetPath(zone, subname, typ), patch)
}

func (c *Client) DeleteRRset(ctx context.Context, zone, subname, typ string) Result {
	return c.Do(ctx, http.MethodDelete, rrsetPath(zone, subname, typ), nil)
}

func (c *Client) BulkPutRRsets(ctx context.Context, zone string, rrsets []model.RRset) Result {
	bodies := make([]rrsetBody, 0, len(rrsets))
	for _, rr := range rrsets {
		bodies = append(bodies, rrsetBody{Subname: rr.Subname, Type: rr.Type, TTL: rr.TTL, Records: rr.Records})
	}
	return c.Do(ctx, http.MethodPut, fmt.Sprintf("/domains/%s/rrsets/", zone), bodies)
}

// --- Account ---

func (c *Client) GetAccount(ctx context.Context) Result {
	return c.Do(ctx, http.MethodGet, "/auth/account/", nil)
}

// Token and token-policy lifecycle calls (§4.1 list_tokens/create_token/...,
// list_policies/create_policy/...) are dispatched through the queue like
// every other endpoint: the caller builds the model.Request with the
// NewXRequest builders in request.go and submits it through
// Facade.Submit, so there is no per-endpoint Client method for them — see
// internal/cli/token.go, internal/cli/policy.go.
