package limit

import (
	"context"
	"time"

	"github.com/AlfredDev/throttlecore/request"
	"github.com/AlfredDev/throttlecore/store"
)

// windowGrace is added to a window's TTL so a counter cell outlives
// its window slightly, long enough for a concurrent reader that
// started just before the boundary to still see it (spec §3:
// "TTL equal to their window length plus a small grace").
const windowGrace = 2 * time.Second

// FixedWindow admits at most PermitLimit cost-units per
// IntervalSeconds-long window, keyed by floor(now/interval). It is
// the cheapest method: one Increment per request, no background
// state.
type FixedWindow struct {
	PermitLimit      int64
	IntervalSeconds  int64
	ThrowOnFailures bool
}

var _ Method = (*FixedWindow)(nil)

func (f *FixedWindow) interval() time.Duration {
	return time.Duration(f.IntervalSeconds) * time.Second
}

func (f *FixedWindow) counterKey(scope Scope, now time.Time) string {
	bucket := windowFloor(now.Unix(), f.IntervalSeconds)
	parts := append(scopeParts(scope), itoa64(bucket))
	return key(parts...)
}

func (f *FixedWindow) IsExceeded(ctx context.Context, _ request.Request, cost int64, st store.Store, scope Scope) (*Result, error) {
	now := time.Now()
	k := f.counterKey(scope, now)

	value, windowStart, err := st.Increment(ctx, k, cost, f.interval()+windowGrace, now)
	if err != nil {
		return nil, err
	}

	id := CounterID{Key: k, Namespace: scope.Namespace, WindowStart: windowStart}
	if value <= f.PermitLimit {
		return &Result{Exceeded: false, CounterID: id, RuleID: scope.RuleID}, nil
	}

	retryAfter := windowStart.Add(f.interval()).Sub(now)
	if retryAfter < 0 {
		retryAfter = 0
	}
	return &Result{Exceeded: true, CounterID: id, RetryAfter: retryAfter, RuleID: scope.RuleID}, nil
}

func (f *FixedWindow) IsStillExceeded(ctx context.Context, st store.Store, id CounterID) (bool, error) {
	value, _, ok, err := st.Get(ctx, id.Key)
	if err != nil {
		return true, err
	}
	if !ok {
		return false, nil
	}
	return value > f.PermitLimit, nil
}

// OnRequestProcessingFinished is a no-op: a fixed window's counter
// decays on its own once the window TTL elapses (spec §4.2).
func (f *FixedWindow) OnRequestProcessingFinished(context.Context, store.Store, CounterID, int64) error {
	return nil
}

func (f *FixedWindow) ShouldThrowOnFailures() bool { return f.ThrowOnFailures }
