package engine

import "context"

// CleanupCallback is a deferred action that decrements or releases a
// specific counter cell (spec §3). It is owned by the request's scope
// and invoked exactly once at request completion.
type CleanupCallback func(ctx context.Context)

// RunCleanup invokes callbacks in the reverse of their registration
// order (spec §5), the same "last acquired, first released" ordering
// a stack of deferred actions would give for free, made explicit here
// because registration and invocation happen in different scopes.
func RunCleanup(ctx context.Context, callbacks []CleanupCallback) {
	for i := len(callbacks) - 1; i >= 0; i-- {
		callbacks[i](ctx)
	}
}

// Completion is the outcome cell a caller flips before running
// cleanup callbacks, so a CircuitBreaker rule's cleanup can record a
// success or failure outcome (spec §4.2: "the method observes
// response outcomes via onRequestProcessingFinished(ok)"). The zero
// value means success; call MarkFailed to report a failure. Every
// other LimitMethod ignores it entirely.
type Completion struct {
	failed bool
}

// MarkFailed records that the request ultimately failed.
func (c *Completion) MarkFailed() {
	if c != nil {
		c.failed = true
	}
}

func (c *Completion) succeeded() bool {
	return c == nil || !c.failed
}
