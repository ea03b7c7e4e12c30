package httpmw

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/AlfredDev/throttlecore/limit"
)

// ResponseFabric writes the response for a throttled request. It
// exists as a seam the same way the teacher's RateLimiter.Handler
// hard-coded its JSON body inline but left room to swap formats — here
// that swap point is an actual interface instead of a TODO.
type ResponseFabric interface {
	WriteExceeded(w http.ResponseWriter, result limit.Result)
}

// DefaultResponseFabric writes a 429 with a Retry-After header and a
// small JSON body, the same shape the teacher's RateLimiter.Handler
// and ConcurrencyGuard.Middleware both wrote by hand.
type DefaultResponseFabric struct{}

func (DefaultResponseFabric) WriteExceeded(w http.ResponseWriter, result limit.Result) {
	seconds := int(result.RetryAfter.Seconds())
	if seconds < 1 {
		seconds = 1
	}
	w.Header().Set("Retry-After", strconv.Itoa(seconds))
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	fmt.Fprintf(w, `{"error":{"type":"rate_limit","rule":%q,"retry_after_seconds":%d}}`, result.RuleID, seconds)
}

// statusRecorder captures the status code next actually wrote, so the
// middleware can report a CircuitBreaker rule's outcome after the
// handler returns. The default is 200: net/http treats a handler that
// never calls WriteHeader as having written 200.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}
