// Package store defines the abstract counter-store contract that
// every LimitMethod evaluates against (spec §4.1). Concrete backends
// live in sibling packages (memstore, redisstore); this package only
// specifies the interface and its error taxonomy.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Store is the shared counter backend. Every key embeds the owning
// Config's unique namespace upstream of this interface (see
// scopeParts in limit/key.go) so two services sharing a backend never
// collide.
//
// Increment must be linearizable per key: concurrent callers
// incrementing the same key never lose an update and never observe a
// torn read. Decrement and the semaphore pair only need to be
// best-effort serialized per key — they exist to undo or release work
// Increment already committed.
type Store interface {
	// Increment atomically adds cost to the named counter. If the
	// counter is absent or its current window has expired, it resets
	// to cost and stamps windowStart = now. It returns the
	// post-increment value and the active window's start time.
	Increment(ctx context.Context, key string, cost int64, ttl time.Duration, now time.Time) (value int64, windowStart time.Time, err error)

	// Decrement best-effort subtracts cost from key, clamped at zero.
	// Used by cleanup callbacks for semaphore-style limits; failures
	// are logged and swallowed by callers, never fatal to a request.
	Decrement(ctx context.Context, key string, cost int64) error

	// Get reads key without mutation. ok is false if the key is
	// absent or its window has already expired.
	Get(ctx context.Context, key string) (value int64, windowStart time.Time, ok bool, err error)

	// AcquireSemaphore attempts to reserve cost permits out of
	// permitLimit concurrent slots for key, waiting up to timeout. On
	// success it returns a Token identifying what to release; on
	// timeout it returns ok=false.
	AcquireSemaphore(ctx context.Context, key string, permitLimit int64, cost int64, timeout time.Duration) (token Token, ok bool, err error)

	// ReleaseSemaphore releases a token obtained from
	// AcquireSemaphore. Releasing an already-released or expired
	// token is a no-op, not an error.
	ReleaseSemaphore(ctx context.Context, token Token) error
}

// Token identifies a single semaphore reservation so it can be
// released exactly once, from a different goroutine or request scope
// than the one that acquired it.
type Token struct {
	Key string
	ID  string
}

// Error taxonomy (spec §7). Backends wrap the sentinel with
// fmt.Errorf("...: %w", ErrTransient) so callers can both log a
// specific message and errors.Is against the category.
var (
	// ErrTransient marks a backend failure that may succeed on retry
	// (timeout, connection reset, backend unavailable). Whether it is
	// fatal to the request is decided by the failing LimitMethod's
	// ShouldThrowOnFailures, not by this package.
	ErrTransient = errors.New("store: transient failure")

	// ErrCorrupt marks a backend read that could not be decoded into
	// a valid counter cell. Treated like ErrTransient by callers, but
	// logged at error level since it usually indicates a format
	// mismatch between writers rather than a flaky network.
	ErrCorrupt = errors.New("store: corrupt counter state")
)

// Transient wraps err as a transient store failure.
func Transient(op, key string, err error) error {
	return fmt.Errorf("store: %s %q: %w: %w", op, key, ErrTransient, err)
}

// Corrupt wraps err as a corrupt counter read.
func Corrupt(op, key string, err error) error {
	return fmt.Errorf("store: %s %q: %w: %w", op, key, ErrCorrupt, err)
}
