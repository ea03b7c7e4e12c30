package config_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/AlfredDev/throttlecore/config"
)

func TestManagerStartLoadsOnceInStaticMode(t *testing.T) {
	snap := &config.Snapshot{UniqueName: "svc"}
	var loads int32
	loader := config.LoaderFunc(func(context.Context) (*config.Snapshot, error) {
		atomic.AddInt32(&loads, 1)
		return snap, nil
	})

	mgr := config.NewManager(loader, 0, zerolog.Nop())
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer mgr.Dispose()

	if mgr.Current() != snap {
		t.Fatalf("expected Current to return the loaded snapshot")
	}

	// Static mode (reloadInterval <= 0) must never reload in the
	// background; give any errant goroutine a chance to fire.
	time.Sleep(20 * time.Millisecond)
	if got := atomic.LoadInt32(&loads); got != 1 {
		t.Fatalf("expected exactly one load in static mode, got %d", got)
	}
}

func TestManagerStartReturnsInitialLoadError(t *testing.T) {
	boom := errors.New("boom")
	loader := config.LoaderFunc(func(context.Context) (*config.Snapshot, error) {
		return nil, boom
	})

	mgr := config.NewManager(loader, 0, zerolog.Nop())
	err := mgr.Start(context.Background())
	if err == nil {
		t.Fatalf("expected Start to surface the initial load error")
	}
	if !errors.Is(err, boom) {
		t.Fatalf("expected the returned error to wrap the loader's error")
	}
	if mgr.Current() != nil {
		t.Fatalf("expected Current to stay nil after a failed initial load")
	}
}

func TestManagerReloadsOnInterval(t *testing.T) {
	snapA := &config.Snapshot{UniqueName: "a"}
	snapB := &config.Snapshot{UniqueName: "b"}

	var calls int32
	loader := config.LoaderFunc(func(context.Context) (*config.Snapshot, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return snapA, nil
		}
		return snapB, nil
	})

	mgr := config.NewManager(loader, 15*time.Millisecond, zerolog.Nop())
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer mgr.Dispose()

	if mgr.Current() != snapA {
		t.Fatalf("expected the initial snapshot to be snapA")
	}

	deadline := time.Now().Add(2 * time.Second)
	for mgr.Current() == snapA && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if mgr.Current() != snapB {
		t.Fatalf("expected a reload on the ticker to swap in snapB")
	}
}

func TestManagerReloadFailureKeepsLastGoodSnapshot(t *testing.T) {
	snapA := &config.Snapshot{UniqueName: "a"}
	boom := errors.New("transient")

	var calls int32
	loader := config.LoaderFunc(func(context.Context) (*config.Snapshot, error) {
		n := atomic.AddInt32(&calls, 1)
		if n == 1 {
			return snapA, nil
		}
		return nil, boom
	})

	mgr := config.NewManager(loader, 10*time.Millisecond, zerolog.Nop())
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer mgr.Dispose()

	time.Sleep(60 * time.Millisecond)
	if mgr.Current() != snapA {
		t.Fatalf("expected a failing reload to leave the last good snapshot in place")
	}
}

func TestManagerDisposeStopsReloadsAndIsIdempotent(t *testing.T) {
	loader := config.Static(&config.Snapshot{UniqueName: "svc"})
	mgr := config.NewManager(loader, 10*time.Millisecond, zerolog.Nop())
	if err := mgr.Start(context.Background()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mgr.Dispose()
	mgr.Dispose() // must not panic or block on a second call
}
