package limit

import (
	"context"
	"time"

	"github.com/AlfredDev/throttlecore/request"
	"github.com/AlfredDev/throttlecore/store"
)

// OutcomeObserver is implemented by LimitMethod variants that need to
// know whether the request they admitted ultimately succeeded or
// failed, not just that it finished. CircuitBreaker is the only
// built-in variant that implements it; the engine type-asserts for
// this interface when building a cleanup callback and falls back to
// the plain OnRequestProcessingFinished otherwise (spec's design note
// on "outcome-specific hooks").
type OutcomeObserver interface {
	Observe(ctx context.Context, st store.Store, id CounterID, cost int64, ok bool) error
}

// CircuitBreaker behaves like FixedWindow while closed: requests are
// admitted and failures are tallied against PermitLimit over
// IntervalSeconds. Once that many failures land in one interval, it
// opens and rejects everything except a single trial request per
// TrialIntervalSeconds; a trial that succeeds clears the failure
// tally and closes the breaker, one that fails re-opens it for
// another TrialIntervalSeconds.
//
// All state (the failure tally, the trial-slot tally) lives in the
// counter store rather than in local fields, so the breaker's open/
// closed state is shared the same way window counts are (spec §5:
// the store is the only cross-request shared mutable state).
type CircuitBreaker struct {
	PermitLimit          int64
	IntervalSeconds      int64
	TrialIntervalSeconds int64
	ThrowOnFailures      bool
}

var (
	_ Method          = (*CircuitBreaker)(nil)
	_ OutcomeObserver = (*CircuitBreaker)(nil)
)

func (c *CircuitBreaker) failureKey(scope Scope, now time.Time) string {
	bucket := windowFloor(now.Unix(), c.IntervalSeconds)
	parts := append(scopeParts(scope), "failures", itoa64(bucket))
	return key(parts...)
}

func (c *CircuitBreaker) trialKey(scope Scope, now time.Time) string {
	bucket := windowFloor(now.Unix(), c.TrialIntervalSeconds)
	parts := append(scopeParts(scope), "trial", itoa64(bucket))
	return key(parts...)
}

func (c *CircuitBreaker) IsExceeded(ctx context.Context, _ request.Request, cost int64, st store.Store, scope Scope) (*Result, error) {
	now := time.Now()
	fKey := c.failureKey(scope, now)

	failures, windowStart, ok, err := st.Get(ctx, fKey)
	if err != nil {
		return nil, err
	}
	id := CounterID{Key: fKey, Namespace: scope.Namespace, WindowStart: windowStart}

	if !ok || failures < c.PermitLimit {
		// Closed: admit, tally nothing here — failures are recorded
		// by Observe when a request actually fails.
		return &Result{Exceeded: false, CounterID: id, RuleID: scope.RuleID}, nil
	}

	// Open: only a single trial request per TrialIntervalSeconds gets
	// through, enforced the same way FixedWindow enforces PermitLimit
	// 1 — first Increment in the bucket wins.
	tKey := c.trialKey(scope, now)
	trialTTL := time.Duration(c.TrialIntervalSeconds)*time.Second + windowGrace
	trialValue, trialStart, err := st.Increment(ctx, tKey, cost, trialTTL, now)
	if err != nil {
		return nil, err
	}

	trialID := CounterID{Key: tKey, Namespace: scope.Namespace, WindowStart: trialStart, Aux: fKey}
	if trialValue <= 1 {
		return &Result{Exceeded: false, CounterID: trialID, RuleID: scope.RuleID}, nil
	}

	retryAfter := trialStart.Add(time.Duration(c.TrialIntervalSeconds) * time.Second).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &Result{Exceeded: true, CounterID: trialID, RetryAfter: retryAfter, RuleID: scope.RuleID}, nil
}

func (c *CircuitBreaker) IsStillExceeded(ctx context.Context, st store.Store, id CounterID) (bool, error) {
	value, _, ok, err := st.Get(ctx, id.Key)
	if err != nil {
		return true, err
	}
	if !ok {
		return false, nil
	}
	return value >= c.PermitLimit, nil
}

// OnRequestProcessingFinished is the fallback cleanup for callers that
// don't know the request outcome; it treats the request as successful.
// The engine prefers Observe whenever it can supply a real outcome.
func (c *CircuitBreaker) OnRequestProcessingFinished(ctx context.Context, st store.Store, id CounterID, cost int64) error {
	return c.Observe(ctx, st, id, cost, true)
}

// Observe records a trial or closed-state outcome. A failure
// increments the failure tally (tripping the breaker once it reaches
// PermitLimit); a success clears the tally, closing (or keeping
// closed) the breaker.
func (c *CircuitBreaker) Observe(ctx context.Context, st store.Store, id CounterID, _ int64, ok bool) error {
	failureKey := id.Aux
	if failureKey == "" {
		failureKey = id.Key
	}

	if ok {
		value, _, exists, err := st.Get(ctx, failureKey)
		if err != nil || !exists || value <= 0 {
			return err
		}
		return st.Decrement(ctx, failureKey, value)
	}

	_, _, err := st.Increment(ctx, failureKey, 1, time.Duration(c.IntervalSeconds)*time.Second+windowGrace, time.Now())
	return err
}

func (c *CircuitBreaker) ShouldThrowOnFailures() bool { return c.ThrowOnFailures }
