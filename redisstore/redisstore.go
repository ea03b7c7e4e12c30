// Package redisstore is the distributed store.Store backend: every
// counter and semaphore slot lives in Redis instead of process memory,
// so every replica of a service shares the same admission state. It
// generalizes the teacher's bare redisclient.Client wrapper
// (redisclient/redis.go) into the abstract Store contract, using Lua
// scripts for the operations that must stay linearizable.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/google/uuid"

	"github.com/AlfredDev/throttlecore/store"
)

// tokenSafetyTTL bounds how long a semaphore reservation can outlive
// its holder before Redis reclaims it on its own — a crashed process
// that never calls ReleaseSemaphore would otherwise leak a slot
// forever. It does not bound how long AcquireSemaphore itself waits;
// that is governed by the timeout argument.
const tokenSafetyTTL = 24 * time.Hour

// pollInterval is how often AcquireSemaphore retries a reservation
// that is currently full.
const pollInterval = 25 * time.Millisecond

// Store is a redisstore.
type Store struct {
	client *redis.Client

	incrScript    *redis.Script
	decrScript    *redis.Script
	acquireScript *redis.Script
	releaseScript *redis.Script
}

var _ store.Store = (*Store)(nil)

// New wraps an existing *redis.Client. The caller owns the client's
// lifecycle (New does not call Close).
func New(client *redis.Client) *Store {
	return &Store{
		client:        client,
		incrScript:    redis.NewScript(incrScriptSource),
		decrScript:    redis.NewScript(decrScriptSource),
		acquireScript: redis.NewScript(acquireScriptSource),
		releaseScript: redis.NewScript(releaseScriptSource),
	}
}

func valueKey(key string) string              { return key + ":v" }
func windowKey(key string) string             { return key + ":w" }
func semaphoreKey(key string) string          { return key + ":sem" }
func semaphoreTokenKey(key, id string) string { return key + ":sem:" + id }

// incrScriptSource resets the counter to cost (and records windowStart
// as a raw string, never passed through Lua's double-precision numeric
// conversion so a nanosecond epoch never loses precision) whenever the
// key is absent — i.e. whenever its previous window's TTL has already
// elapsed. Otherwise it just adds cost.
const incrScriptSource = `
local exists = redis.call('EXISTS', KEYS[1])
if exists == 0 then
  redis.call('SET', KEYS[1], ARGV[2], 'PX', ARGV[1])
  redis.call('SET', KEYS[2], ARGV[3], 'PX', ARGV[1])
  return {tonumber(ARGV[2]), ARGV[3]}
end
local v = redis.call('INCRBY', KEYS[1], ARGV[2])
local ws = redis.call('GET', KEYS[2])
return {v, ws}
`

const decrScriptSource = `
local exists = redis.call('EXISTS', KEYS[1])
if exists == 0 then
  return 0
end
local v = redis.call('DECRBY', KEYS[1], ARGV[1])
if v < 0 then
  redis.call('SET', KEYS[1], 0, 'KEEPTTL')
  return 0
end
return v
`

const acquireScriptSource = `
local v = redis.call('INCRBY', KEYS[1], ARGV[1])
if v > tonumber(ARGV[2]) then
  redis.call('DECRBY', KEYS[1], ARGV[1])
  return 0
end
redis.call('SET', KEYS[2], ARGV[1], 'PX', ARGV[3])
return 1
`

const releaseScriptSource = `
local cost = redis.call('GET', KEYS[2])
if not cost then
  return 0
end
redis.call('DEL', KEYS[2])
local v = redis.call('DECRBY', KEYS[1], cost)
if v < 0 then
  redis.call('SET', KEYS[1], 0)
end
return 1
`

func (s *Store) Increment(ctx context.Context, key string, cost int64, ttl time.Duration, now time.Time) (int64, time.Time, error) {
	res, err := s.incrScript.Run(ctx, s.client,
		[]string{valueKey(key), windowKey(key)},
		ttl.Milliseconds(), cost, strconv.FormatInt(now.UnixNano(), 10),
	).Result()
	if err != nil {
		return 0, time.Time{}, store.Transient("increment", key, err)
	}

	arr, ok := res.([]interface{})
	if !ok || len(arr) != 2 {
		return 0, time.Time{}, store.Corrupt("increment", key, fmt.Errorf("unexpected script result %T", res))
	}
	value, ok := arr[0].(int64)
	if !ok {
		return 0, time.Time{}, store.Corrupt("increment", key, fmt.Errorf("unexpected value type %T", arr[0]))
	}
	wsRaw, ok := arr[1].(string)
	if !ok {
		return 0, time.Time{}, store.Corrupt("increment", key, fmt.Errorf("unexpected window type %T", arr[1]))
	}
	wsNano, err := strconv.ParseInt(wsRaw, 10, 64)
	if err != nil {
		return 0, time.Time{}, store.Corrupt("increment", key, err)
	}

	return value, time.Unix(0, wsNano), nil
}

func (s *Store) Decrement(ctx context.Context, key string, cost int64) error {
	if _, err := s.decrScript.Run(ctx, s.client, []string{valueKey(key)}, cost).Result(); err != nil {
		return store.Transient("decrement", key, err)
	}
	return nil
}

func (s *Store) Get(ctx context.Context, key string) (int64, time.Time, bool, error) {
	vals, err := s.client.MGet(ctx, valueKey(key), windowKey(key)).Result()
	if err != nil {
		return 0, time.Time{}, false, store.Transient("get", key, err)
	}
	if vals[0] == nil || vals[1] == nil {
		return 0, time.Time{}, false, nil
	}

	value, err := strconv.ParseInt(vals[0].(string), 10, 64)
	if err != nil {
		return 0, time.Time{}, false, store.Corrupt("get", key, err)
	}
	wsNano, err := strconv.ParseInt(vals[1].(string), 10, 64)
	if err != nil {
		return 0, time.Time{}, false, store.Corrupt("get", key, err)
	}

	return value, time.Unix(0, wsNano), true, nil
}

func (s *Store) AcquireSemaphore(ctx context.Context, key string, permitLimit, cost int64, timeout time.Duration) (store.Token, bool, error) {
	deadline := time.Now().Add(timeout)
	id := uuid.NewString()
	semKey, tokKey := semaphoreKey(key), semaphoreTokenKey(key, id)

	for {
		res, err := s.acquireScript.Run(ctx, s.client,
			[]string{semKey, tokKey}, cost, permitLimit, tokenSafetyTTL.Milliseconds(),
		).Result()
		if err != nil {
			return store.Token{}, false, store.Transient("acquire_semaphore", key, err)
		}
		if acquired, _ := res.(int64); acquired == 1 {
			return store.Token{Key: key, ID: id}, true, nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return store.Token{}, false, nil
		}
		wait := pollInterval
		if remaining < wait {
			wait = remaining
		}
		select {
		case <-ctx.Done():
			return store.Token{}, false, ctx.Err()
		case <-time.After(wait):
		}
	}
}

func (s *Store) ReleaseSemaphore(ctx context.Context, token store.Token) error {
	semKey, tokKey := semaphoreKey(token.Key), semaphoreTokenKey(token.Key, token.ID)
	_, err := s.releaseScript.Run(ctx, s.client, []string{semKey, tokKey}).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return store.Transient("release_semaphore", token.Key, err)
	}
	return nil
}
