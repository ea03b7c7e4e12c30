package limit

import (
	"context"
	"time"

	"github.com/AlfredDev/throttlecore/request"
	"github.com/AlfredDev/throttlecore/store"
)

// Semaphore admits at most PermitLimit concurrent cost-units for a
// key, releasing a unit only when the request finishes rather than
// when a window elapses. TimeoutSeconds is surfaced to the caller as
// RetryAfter on rejection — a hint for how long a slot is typically
// held, not a wait the method itself performs (the engine's
// admission-delay loop owns any actual waiting).
type Semaphore struct {
	PermitLimit     int64
	TimeoutSeconds  int64
	ThrowOnFailures bool
}

var _ Method = (*Semaphore)(nil)

func (s *Semaphore) counterKey(scope Scope) string {
	return key(scopeParts(scope)...)
}

func (s *Semaphore) IsExceeded(ctx context.Context, _ request.Request, cost int64, st store.Store, scope Scope) (*Result, error) {
	k := s.counterKey(scope)

	// A single atomic multi-permit acquire: cost units all succeed or
	// all fail together (spec §4.2's "atomic multi-permit acquire or
	// fail as a single unit").
	token, ok, err := st.AcquireSemaphore(ctx, k, s.PermitLimit, cost, 0)
	if err != nil {
		return nil, err
	}

	id := CounterID{Key: k, Namespace: scope.Namespace, Token: token}
	if !ok {
		retryAfter := time.Duration(s.TimeoutSeconds) * time.Second
		return &Result{Exceeded: true, CounterID: id, RetryAfter: retryAfter, RuleID: scope.RuleID}, nil
	}
	return &Result{Exceeded: false, CounterID: id, RuleID: scope.RuleID}, nil
}

// IsStillExceeded probes for a single free slot and immediately
// releases it if found, leaving occupancy unchanged either way. A
// probe at cost=1 can under-report exhaustion for a higher-cost rule;
// that only costs the admission-delay loop one extra poll iteration,
// since the loop always re-validates through the real, full-cost
// IsExceeded before admitting.
func (s *Semaphore) IsStillExceeded(ctx context.Context, st store.Store, id CounterID) (bool, error) {
	token, ok, err := st.AcquireSemaphore(ctx, id.Key, s.PermitLimit, 1, 0)
	if err != nil {
		return true, err
	}
	if !ok {
		return true, nil
	}
	_ = st.ReleaseSemaphore(ctx, token)
	return false, nil
}

func (s *Semaphore) OnRequestProcessingFinished(ctx context.Context, st store.Store, id CounterID, _ int64) error {
	return st.ReleaseSemaphore(ctx, id.Token)
}

func (s *Semaphore) ShouldThrowOnFailures() bool { return s.ThrowOnFailures }
