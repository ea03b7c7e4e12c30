package limit_test

import (
	"context"
	"testing"

	"github.com/AlfredDev/throttlecore/limit"
	"github.com/AlfredDev/throttlecore/memstore"
)

func TestSemaphoreAdmitsUpToPermitLimit(t *testing.T) {
	st := memstore.New()
	sem := &limit.Semaphore{PermitLimit: 2, TimeoutSeconds: 5}
	scope := limit.Scope{Namespace: "ns", RuleID: "r"}
	ctx := context.Background()

	first, err := sem.IsExceeded(ctx, nil, 1, st, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Exceeded {
		t.Fatalf("expected first acquire to succeed")
	}

	second, err := sem.IsExceeded(ctx, nil, 1, st, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Exceeded {
		t.Fatalf("expected second acquire to succeed at limit 2")
	}

	third, err := sem.IsExceeded(ctx, nil, 1, st, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !third.Exceeded {
		t.Fatalf("expected third acquire to exceed the limit")
	}
	if third.RetryAfter <= 0 {
		t.Fatalf("expected RetryAfter to reflect TimeoutSeconds when exceeded")
	}
}

func TestSemaphoreReleaseFreesASlot(t *testing.T) {
	st := memstore.New()
	sem := &limit.Semaphore{PermitLimit: 1, TimeoutSeconds: 5}
	scope := limit.Scope{Namespace: "ns", RuleID: "r"}
	ctx := context.Background()

	first, err := sem.IsExceeded(ctx, nil, 1, st, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if first.Exceeded {
		t.Fatalf("expected first acquire to succeed")
	}

	blocked, err := sem.IsExceeded(ctx, nil, 1, st, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !blocked.Exceeded {
		t.Fatalf("expected the slot to be occupied")
	}

	if err := sem.OnRequestProcessingFinished(ctx, st, first.CounterID, 1); err != nil {
		t.Fatalf("unexpected error releasing: %v", err)
	}

	after, err := sem.IsExceeded(ctx, nil, 1, st, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.Exceeded {
		t.Fatalf("expected the slot to be free again after release")
	}
}

func TestSemaphoreIsStillExceededProbesWithoutChangingOccupancy(t *testing.T) {
	st := memstore.New()
	sem := &limit.Semaphore{PermitLimit: 1, TimeoutSeconds: 5}
	scope := limit.Scope{Namespace: "ns", RuleID: "r"}
	ctx := context.Background()

	first, err := sem.IsExceeded(ctx, nil, 1, st, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stillExceeded, err := sem.IsStillExceeded(ctx, st, first.CounterID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !stillExceeded {
		t.Fatalf("expected the full slot to still report exceeded")
	}

	// The probe must not have consumed the occupied slot: releasing the
	// original holder should still free it up for a new acquire.
	if err := sem.OnRequestProcessingFinished(ctx, st, first.CounterID, 1); err != nil {
		t.Fatalf("unexpected error releasing: %v", err)
	}
	after, err := sem.IsExceeded(ctx, nil, 1, st, scope)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if after.Exceeded {
		t.Fatalf("expected a free slot after releasing the sole holder")
	}
}
