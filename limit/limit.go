// Package limit implements the closed set of LimitMethod strategies
// (spec §4.2): FixedWindow, SlidingWindow, Semaphore, and
// CircuitBreaker. Each knows how to compute its own counter key,
// increment it, test it, and clean it up; the engine never branches
// on the concrete type, only on the Method interface.
package limit

import (
	"context"
	"time"

	"github.com/AlfredDev/throttlecore/request"
	"github.com/AlfredDev/throttlecore/store"
)

// Scope carries the pieces of a Rule evaluation a LimitMethod needs
// to compute its counter key, resolved by the rule before it
// delegates to the method (spec §4.3 step 2-3): the service's unique
// namespace, the rule's own identifier, and the extracted caller
// identity ("" when the rule's effective identity extractor returned
// nil — spec §3's invariant that a nil identity drops out of the key
// entirely, rather than participating as the literal empty string).
type Scope struct {
	Namespace  string
	RuleID     string
	Identity   string
	HasIdentity bool
}

// CounterID uniquely identifies one counter cell (spec §3).
// WindowStart is the zero time for methods that don't use a window
// (e.g. Semaphore). Token is only populated by Semaphore, which needs
// to carry the exact reservation a cleanup callback must release.
// Aux is only populated by CircuitBreaker while a trial is pending: it
// names the failure-tally key so Observe can clear it on a successful
// trial even though Key itself points at the trial-slot counter.
// Every other method leaves both zero.
type CounterID struct {
	Key         string
	Namespace   string
	WindowStart time.Time
	Token       store.Token
	Aux         string
}

// Result is the outcome of evaluating one LimitMethod against one
// request (spec §3's LimitExceededResult). RuleID is empty when the
// Result was synthesized from a propagated egress signal rather than
// from evaluating a rule (spec §4.5 step 3).
type Result struct {
	Exceeded   bool
	CounterID  CounterID
	RetryAfter time.Duration
	RuleID     string
}

// Method is the LimitMethod contract (spec §4.2/§6): three operations
// plus a failure policy. Implementations must be safe for concurrent
// use by multiple requests evaluating the same rule.
type Method interface {
	// IsExceeded evaluates the method against one request of the
	// given cost, returning nil if the method itself doesn't apply
	// (reserved for future variants; the four built-in methods always
	// return a non-nil *Result once scope is resolved).
	IsExceeded(ctx context.Context, req request.Request, cost int64, st store.Store, scope Scope) (*Result, error)

	// IsStillExceeded re-checks a previously exceeded counter without
	// performing a fresh increment, used by the engine's
	// admission-delay poll loop (spec §4.5 step 4c).
	IsStillExceeded(ctx context.Context, st store.Store, id CounterID) (bool, error)

	// OnRequestProcessingFinished runs the method's cleanup — a
	// no-op for window-based methods, a release for Semaphore, a
	// success observation for CircuitBreaker. The engine calls
	// OutcomeObserver.Observe instead whenever a method implements it
	// (see CircuitBreaker.Observe).
	OnRequestProcessingFinished(ctx context.Context, st store.Store, id CounterID, cost int64) error

	// ShouldThrowOnFailures reports whether a store error encountered
	// while evaluating this method should propagate to the caller
	// (true) or be logged and treated as "not exceeded" (false).
	ShouldThrowOnFailures() bool
}
