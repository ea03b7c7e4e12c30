package limit_test

import (
	"context"
	"testing"

	"github.com/AlfredDev/throttlecore/limit"
	"github.com/AlfredDev/throttlecore/memstore"
)

func TestFixedWindowAdmitsUpToLimit(t *testing.T) {
	st := memstore.New()
	fw := &limit.FixedWindow{PermitLimit: 2, IntervalSeconds: 60}
	scope := limit.Scope{Namespace: "ns", RuleID: "r"}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		result, err := fw.IsExceeded(ctx, nil, 1, st, scope)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if result.Exceeded {
			t.Fatalf("expected request %d to be admitted", i)
		}
	}

	result, err := fw.IsExceeded(ctx, nil, 1, st, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Exceeded {
		t.Fatalf("expected the third request to exceed a limit of 2")
	}
	if result.RetryAfter <= 0 {
		t.Fatalf("expected a positive RetryAfter on an exceeded result")
	}
}

func TestFixedWindowIsStillExceededTracksCounter(t *testing.T) {
	st := memstore.New()
	fw := &limit.FixedWindow{PermitLimit: 1, IntervalSeconds: 60}
	scope := limit.Scope{Namespace: "ns", RuleID: "r"}
	ctx := context.Background()

	first, err := fw.IsExceeded(ctx, nil, 1, st, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Exceeded {
		t.Fatalf("expected the first request admitted")
	}

	second, err := fw.IsExceeded(ctx, nil, 1, st, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !second.Exceeded {
		t.Fatalf("expected the second request to exceed the limit")
	}

	stillExceeded, err := fw.IsStillExceeded(ctx, st, second.CounterID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stillExceeded {
		t.Fatalf("expected the counter to still report exceeded immediately after")
	}
}

func TestFixedWindowIsStillExceededReportsFalseOnceEvicted(t *testing.T) {
	st := memstore.New()
	fw := &limit.FixedWindow{PermitLimit: 1, IntervalSeconds: 60}
	scope := limit.Scope{Namespace: "ns", RuleID: "r"}
	ctx := context.Background()

	result, err := fw.IsExceeded(ctx, nil, 1, st, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stillExceeded, err := fw.IsStillExceeded(ctx, memstore.New(), result.CounterID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if stillExceeded {
		t.Fatalf("expected a counter absent from the store to report not exceeded")
	}
}

func TestFixedWindowKeyIsolatesByIdentity(t *testing.T) {
	st := memstore.New()
	fw := &limit.FixedWindow{PermitLimit: 1, IntervalSeconds: 60}
	ctx := context.Background()

	scopeA := limit.Scope{Namespace: "ns", RuleID: "r", Identity: "alice", HasIdentity: true}
	scopeB := limit.Scope{Namespace: "ns", RuleID: "r", Identity: "bob", HasIdentity: true}

	if _, err := fw.IsExceeded(ctx, nil, 1, st, scopeA); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := fw.IsExceeded(ctx, nil, 1, st, scopeB)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Exceeded {
		t.Fatalf("expected a different identity to get its own counter, not share alice's")
	}
}

func TestFixedWindowKeyDistinguishesMissingIdentityFromEmptyString(t *testing.T) {
	st := memstore.New()
	fw := &limit.FixedWindow{PermitLimit: 1, IntervalSeconds: 60}
	ctx := context.Background()

	noIdentity := limit.Scope{Namespace: "ns", RuleID: "r"}
	emptyIdentity := limit.Scope{Namespace: "ns", RuleID: "r", Identity: "", HasIdentity: true}

	if _, err := fw.IsExceeded(ctx, nil, 1, st, noIdentity); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	result, err := fw.IsExceeded(ctx, nil, 1, st, emptyIdentity)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Exceeded {
		t.Fatalf("expected HasIdentity to distinguish a nil identity from a literal empty string, got a shared counter")
	}
}

func TestFixedWindowRetryAfterNeverNegative(t *testing.T) {
	st := memstore.New()
	fw := &limit.FixedWindow{PermitLimit: 0, IntervalSeconds: 1}
	scope := limit.Scope{Namespace: "ns", RuleID: "r"}

	result, err := fw.IsExceeded(context.Background(), nil, 1, st, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Exceeded {
		t.Fatalf("expected a zero permit limit to always exceed")
	}
	if result.RetryAfter < 0 {
		t.Fatalf("expected RetryAfter to be clamped at zero, got %v", result.RetryAfter)
	}
}
