package httpclient

import "fmt"

// ErrorKind is the closed taxonomy of classified HTTP outcomes (§7).
type ErrorKind string

const (
	KindNone            ErrorKind = ""
	KindNetwork         ErrorKind = "network"
	KindUnauthenticated ErrorKind = "unauthenticated"
	KindForbidden       ErrorKind = "forbidden"
	KindClientError     ErrorKind = "client_error"
	KindRateLimited     ErrorKind = "rate_limited"
	KindServerError     ErrorKind = "server_error"
)

// Result is the discriminated outcome of one dispatched request. Exactly
// one of Payload/RetryAfter/error information is meaningful, selected by
// Kind. The façade and queue never receive a raw Go error from a
// dispatch — every classification is data (§7, §9).
type Result struct {
	Kind       ErrorKind
	StatusCode int
	Payload    []byte // raw JSON body, valid when Kind == KindNone
	Message    string // human-readable message, valid for error kinds
	RetryAfter int    // seconds, valid when Kind == KindRateLimited
	CorrelationID string // echoes the X-Request-Id sent with the dispatch
}

// OK reports whether the result is a successful 2xx response.
func (r Result) OK() bool { return r.Kind == KindNone }

func (r Result) Error() string {
	if r.OK() {
		return ""
	}
	return fmt.Sprintf("%s (http %d): %s", r.Kind, r.StatusCode, r.Message)
}
