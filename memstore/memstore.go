// Package memstore is the in-process store.Store backend: a single
// mutex-guarded map of counter cells plus a map of buffered-channel
// semaphores, one per key. It generalizes the teacher's single-process
// RateLimiter and Semaphore (middleware/ratelimit.go,
// middleware/concurrency.go) into the abstract Store contract so the
// same engine code runs against it or against redisstore.
package memstore

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AlfredDev/throttlecore/store"
)

type counterCell struct {
	value       int64
	windowStart time.Time
	expiresAt   time.Time
}

type semaphoreCell struct {
	ch     chan struct{}
	active map[string]int64 // token ID -> permits held, for idempotent release
}

// Store is a memstore.
type Store struct {
	mu       sync.Mutex
	counters map[string]*counterCell
	sems     map[string]*semaphoreCell
}

var _ store.Store = (*Store)(nil)

// New builds an empty Store.
func New() *Store {
	return &Store{
		counters: make(map[string]*counterCell),
		sems:     make(map[string]*semaphoreCell),
	}
}

func (s *Store) Increment(_ context.Context, key string, cost int64, ttl time.Duration, now time.Time) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || now.After(c.expiresAt) {
		c = &counterCell{value: cost, windowStart: now, expiresAt: now.Add(ttl)}
		s.counters[key] = c
		return c.value, c.windowStart, nil
	}

	c.value += cost
	return c.value, c.windowStart, nil
}

func (s *Store) Decrement(_ context.Context, key string, cost int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok {
		return nil
	}
	c.value -= cost
	if c.value < 0 {
		c.value = 0
	}
	return nil
}

func (s *Store) Get(_ context.Context, key string) (int64, time.Time, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, ok := s.counters[key]
	if !ok || time.Now().After(c.expiresAt) {
		return 0, time.Time{}, false, nil
	}
	return c.value, c.windowStart, true, nil
}

func (s *Store) semaphore(key string, permitLimit int64) *semaphoreCell {
	s.mu.Lock()
	defer s.mu.Unlock()

	cell, ok := s.sems[key]
	if !ok {
		cell = &semaphoreCell{ch: make(chan struct{}, permitLimit), active: make(map[string]int64)}
		s.sems[key] = cell
	}
	return cell
}

func (s *Store) AcquireSemaphore(ctx context.Context, key string, permitLimit, cost int64, timeout time.Duration) (store.Token, bool, error) {
	cell := s.semaphore(key, permitLimit)
	deadline := time.Now().Add(timeout)

	var acquired int64
	rollback := func() {
		for ; acquired > 0; acquired-- {
			<-cell.ch
		}
	}

	for acquired < cost {
		remaining := time.Until(deadline)
		if remaining < 0 {
			remaining = 0
		}
		timer := time.NewTimer(remaining)
		select {
		case cell.ch <- struct{}{}:
			timer.Stop()
			acquired++
		case <-timer.C:
			rollback()
			return store.Token{}, false, nil
		case <-ctx.Done():
			timer.Stop()
			rollback()
			return store.Token{}, false, ctx.Err()
		}
	}

	id := uuid.NewString()
	s.mu.Lock()
	cell.active[id] = cost
	s.mu.Unlock()

	return store.Token{Key: key, ID: id}, true, nil
}

func (s *Store) ReleaseSemaphore(_ context.Context, token store.Token) error {
	s.mu.Lock()
	cell, ok := s.sems[token.Key]
	if !ok {
		s.mu.Unlock()
		return nil
	}
	cost, held := cell.active[token.ID]
	if !held {
		s.mu.Unlock()
		return nil
	}
	delete(cell.active, token.ID)
	s.mu.Unlock()

	for i := int64(0); i < cost; i++ {
		select {
		case <-cell.ch:
		default:
		}
	}
	return nil
}

// Sweep evicts counter cells whose window has expired and semaphore
// cells with no active reservations, the same periodic-eviction role
// the teacher's RateLimiter.Cleanup played. It is never called by the
// Store itself; a caller that wants bounded memory growth should run
// it on a ticker.
func (s *Store) Sweep(now time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, c := range s.counters {
		if now.After(c.expiresAt) {
			delete(s.counters, key)
		}
	}
	for key, cell := range s.sems {
		if len(cell.active) == 0 && len(cell.ch) == 0 {
			delete(s.sems, key)
		}
	}
}
