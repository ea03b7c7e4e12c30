// Package httpmw adapts the core engine to net/http: a request.Request
// view over *http.Request, a chi-compatible ingress middleware, and a
// ResponseFabric for writing the 429 response. It generalizes the
// teacher's RateLimiter.Handler and ConcurrencyGuard.Middleware
// (middleware/ratelimit.go, middleware/concurrency.go) from
// hand-rolled limiting logic into a thin adapter over engine.Engine.
package httpmw

import (
	"context"
	"net/http"

	"github.com/AlfredDev/throttlecore/request"
)

type claimsKey struct{}

// WithClaims attaches a claims bag (typically decoded auth token
// claims, set by an upstream auth middleware) to ctx so FromHTTP's
// Request.Claim can see it.
func WithClaims(ctx context.Context, claims map[string]any) context.Context {
	return context.WithValue(ctx, claimsKey{}, claims)
}

func claimsFrom(ctx context.Context) map[string]any {
	if v, ok := ctx.Value(claimsKey{}).(map[string]any); ok {
		return v
	}
	return nil
}

// httpRequest is a request.Request view over *http.Request that reads
// straight through to it rather than copying fields up front.
type httpRequest struct {
	r *http.Request
}

// FromHTTP adapts r to request.Request.
func FromHTTP(r *http.Request) request.Request {
	return httpRequest{r: r}
}

func (h httpRequest) Method() string { return h.r.Method }
func (h httpRequest) URI() string    { return h.r.URL.RequestURI() }
func (h httpRequest) Path() string   { return h.r.URL.Path }

func (h httpRequest) Header(name string) string {
	return h.r.Header.Get(name)
}

func (h httpRequest) Query(name string) string {
	return h.r.URL.Query().Get(name)
}

func (h httpRequest) Claim(name string) (any, bool) {
	claims := claimsFrom(h.r.Context())
	if claims == nil {
		return nil, false
	}
	v, ok := claims[name]
	return v, ok
}
