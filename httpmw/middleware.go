package httpmw

import (
	"context"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/AlfredDev/throttlecore/engine"
	"github.com/AlfredDev/throttlecore/limit"
)

// Middleware is the chi-compatible ingress adapter around an
// engine.Engine.
type Middleware struct {
	engine *engine.Engine
	fabric ResponseFabric
	logger zerolog.Logger
}

// New builds a Middleware. A nil fabric defaults to
// DefaultResponseFabric{}.
func New(e *engine.Engine, fabric ResponseFabric, logger zerolog.Logger) *Middleware {
	if fabric == nil {
		fabric = DefaultResponseFabric{}
	}
	return &Middleware{engine: e, fabric: fabric, logger: logger}
}

// Handler evaluates every applicable rule before next runs, writing
// the first exceeded result via the ResponseFabric instead of calling
// next. A store failure from a non-throwing rule is logged and the
// request proceeds, matching the engine's own per-rule failure policy
// rather than failing the whole request for it.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		req := FromHTTP(r)
		completion := &engine.Completion{}
		var cleanup []engine.CleanupCallback
		defer func() { engine.RunCleanup(context.Background(), cleanup) }()

		results, err := m.engine.Evaluate(r.Context(), req, completion, &cleanup)
		if err != nil {
			m.logger.Error().Err(err).Str("path", req.Path()).Msg("rate limit evaluation failed, admitting request")
			next.ServeHTTP(w, r)
			return
		}

		if result, ok := firstExceeded(results); ok {
			m.logger.Warn().Str("rule", result.RuleID).Str("path", req.Path()).Msg("request throttled")
			m.fabric.WriteExceeded(w, result)
			return
		}

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		if rec.status >= http.StatusInternalServerError {
			completion.MarkFailed()
		}
	})
}

func firstExceeded(results []limit.Result) (limit.Result, bool) {
	for _, r := range results {
		if r.Exceeded {
			return r, true
		}
	}
	return limit.Result{}, false
}
