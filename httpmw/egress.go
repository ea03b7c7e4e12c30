package httpmw

import (
	"net/http"

	"github.com/AlfredDev/throttlecore/engine"
)

// EgressFromResponse turns an upstream 429 response into an
// *engine.ThrottledError carrying its Retry-After header verbatim, so
// a caller proxying to that upstream can feed it straight into
// Engine.EvaluateIngressAndEgress as the error next() returns. Any
// other status is reported as nil — it is not this package's place to
// decide whether a non-429 upstream response is otherwise an error.
func EgressFromResponse(resp *http.Response) error {
	if resp.StatusCode != http.StatusTooManyRequests {
		return nil
	}
	return &engine.ThrottledError{RetryAfter: resp.Header.Get("Retry-After")}
}
