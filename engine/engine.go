// Package engine is the core evaluation loop (spec §4.5): it walks a
// Config snapshot's rules in order, delegates each to its LimitMethod,
// runs the admission-delay poll loop for rules that allow one, and
// wires up the cleanup callbacks a caller must run at request
// completion.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlfredDev/throttlecore/config"
	"github.com/AlfredDev/throttlecore/limit"
	"github.com/AlfredDev/throttlecore/request"
	"github.com/AlfredDev/throttlecore/rule"
	"github.com/AlfredDev/throttlecore/store"
)

const defaultPollInterval = 50 * time.Millisecond

// ConfigSource is the slice of config.Manager the engine actually
// needs, named independently so callers can supply a test fake or a
// real Manager interchangeably.
type ConfigSource interface {
	Current() *config.Snapshot
}

// Engine ties a ConfigSource, a Store, and a logger together into the
// request-scoped evaluation described by spec §4.5. It holds no
// per-request state of its own — everything that varies per request
// lives in the Evaluate call's arguments and return values.
type Engine struct {
	source       ConfigSource
	store        store.Store
	logger       zerolog.Logger
	pollInterval time.Duration
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithPollInterval overrides the admission-delay poll interval (spec
// §4.5 step 4c's "sleep 50 milliseconds"); mainly useful for tests
// that don't want to wait 50ms a tick.
func WithPollInterval(d time.Duration) Option {
	return func(e *Engine) { e.pollInterval = d }
}

// New builds an Engine. source and st must not be nil.
func New(source ConfigSource, st store.Store, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		source:       source,
		store:        st,
		logger:       logger,
		pollInterval: defaultPollInterval,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs every rule in the current snapshot against req, in
// declared order (spec §4.5 steps 1-5). It appends a CleanupCallback
// to *cleanup for every rule that admitted the request, so the caller
// can run RunCleanup once the request finishes. completion may be nil
// if the caller never intends to report a failure outcome.
//
// A rule whose LimitMethod errors is logged at error level; if that
// method's ShouldThrowOnFailures is true the error is returned
// immediately with whatever results were already collected, aborting
// evaluation of the remaining rules. Otherwise the rule is treated as
// not exceeded and evaluation continues (spec §7's ConfigLoad/store
// failure policy, applied per rule — there is no global fallback,
// spec §9).
func (e *Engine) Evaluate(ctx context.Context, req request.Request, completion *Completion, cleanup *[]CleanupCallback) ([]limit.Result, error) {
	snap := e.source.Current()
	if snap == nil {
		snap = config.Empty
	}

	if rule.MatchAny(snap.Whitelist, req) {
		e.logger.Debug().Str("path", req.Path()).Msg("request matched whitelist, skipping evaluation")
		return nil, nil
	}

	var results []limit.Result
	tStart := time.Now()

	for _, r := range snap.Rules {
		result, cost, err := r.Evaluate(ctx, req, e.store, snap.UniqueName, snap.GlobalIdentity, snap.GlobalCost)
		if err != nil {
			e.logger.Error().Err(err).Str("rule", r.ID).Msg("limit method evaluation failed")
			if r.Limit.ShouldThrowOnFailures() {
				return results, err
			}
			continue
		}
		if result == nil {
			continue // matcher rejected the request
		}

		final := result
		if result.Exceeded && r.MaxDelaySeconds > 0 {
			waited, err := e.awaitAdmission(ctx, r, req, snap, tStart, result)
			if err != nil {
				e.logger.Error().Err(err).Str("rule", r.ID).Msg("admission delay failed")
				if r.Limit.ShouldThrowOnFailures() {
					return results, err
				}
			} else {
				final = waited
			}
		}

		if !final.Exceeded {
			e.registerCleanup(cleanup, r, *final, cost, completion)
		}
		results = append(results, *final)
	}

	return results, nil
}

// awaitAdmission implements spec §4.5 step 4c: while the request is
// still within its rule's delay budget, poll IsStillExceeded; once it
// clears, re-run the full IsExceeded to get a fresh (and possibly
// still-exceeded, if another caller raced in first) Result.
func (e *Engine) awaitAdmission(ctx context.Context, r rule.Rule, req request.Request, snap *config.Snapshot, tStart time.Time, initial *limit.Result) (*limit.Result, error) {
	budget := time.Duration(r.MaxDelaySeconds) * time.Second
	current := initial

	for {
		if time.Since(tStart) > budget || ctx.Err() != nil {
			return current, nil
		}

		stillExceeded, err := r.Limit.IsStillExceeded(ctx, e.store, current.CounterID)
		if err != nil {
			return current, err
		}

		if !stillExceeded {
			fresh, _, err := r.Evaluate(ctx, req, e.store, snap.UniqueName, snap.GlobalIdentity, snap.GlobalCost)
			if err != nil {
				return current, err
			}
			if fresh == nil {
				return current, nil
			}
			if !fresh.Exceeded {
				return fresh, nil
			}
			current = fresh
		}

		select {
		case <-ctx.Done():
			return current, nil
		case <-time.After(e.pollInterval):
		}
	}
}

// registerCleanup appends the CleanupCallback for a rule that just
// admitted a request. CircuitBreaker needs the real request outcome,
// so the engine type-asserts for limit.OutcomeObserver and feeds it
// completion's state; every other method gets the generic
// OnRequestProcessingFinished hook.
func (e *Engine) registerCleanup(cleanup *[]CleanupCallback, r rule.Rule, result limit.Result, cost int64, completion *Completion) {
	method := r.Limit
	id := result.CounterID

	if observer, ok := method.(limit.OutcomeObserver); ok {
		*cleanup = append(*cleanup, func(ctx context.Context) {
			if err := observer.Observe(ctx, e.store, id, cost, completion.succeeded()); err != nil {
				e.logger.Error().Err(err).Str("rule", r.ID).Msg("outcome observation failed")
			}
		})
		return
	}

	*cleanup = append(*cleanup, func(ctx context.Context) {
		if err := method.OnRequestProcessingFinished(ctx, e.store, id, cost); err != nil {
			e.logger.Error().Err(err).Str("rule", r.ID).Msg("cleanup callback failed")
		}
	})
}

// EvaluateIngressAndEgress runs ingress evaluation, and — only if the
// request was admitted — invokes next (the downstream call the
// request is actually being throttled in front of), fusing a
// *ThrottledError returned by next into the result set exactly like an
// exceeded ingress rule (spec §4.5 step 3's
// "isIngressOrEgressExceeded"). Any other error from next is returned
// unchanged.
func (e *Engine) EvaluateIngressAndEgress(ctx context.Context, req request.Request, completion *Completion, cleanup *[]CleanupCallback, next func() error) ([]limit.Result, error) {
	results, err := e.Evaluate(ctx, req, completion, cleanup)
	if err != nil {
		return results, err
	}
	if AnyExceeded(results) {
		return results, nil
	}

	nextErr := next()
	if nextErr == nil {
		return results, nil
	}

	if te, ok := AsThrottled(nextErr); ok {
		results = append(results, limit.Result{
			Exceeded:   true,
			RetryAfter: retryAfterDuration(te.RetryAfter, time.Now()),
			RuleID:     te.RuleID,
		})
		return results, nil
	}

	return results, nextErr
}

// AnyExceeded reports whether any result in results is exceeded (spec
// §4.5 step 5: the request is throttled if any rule, ingress or
// egress, reported exceeded).
func AnyExceeded(results []limit.Result) bool {
	for _, r := range results {
		if r.Exceeded {
			return true
		}
	}
	return false
}
