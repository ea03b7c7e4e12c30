package redisstore

import "testing"

// These exercise the pure, non-network pieces of the package; the
// scripts themselves are only exercised against a real Redis instance
// (see cmd/throttledemo), the same boundary the teacher drew around
// redisclient.Client.Ping.

func TestKeyHelpersAreStableAndDistinct(t *testing.T) {
	v := valueKey("k")
	w := windowKey("k")
	sem := semaphoreKey("k")
	tok := semaphoreTokenKey("k", "abc")

	seen := map[string]bool{}
	for _, k := range []string{v, w, sem, tok} {
		if seen[k] {
			t.Fatalf("expected distinct derived keys, got a collision at %q", k)
		}
		seen[k] = true
	}
}

func TestScriptSourcesAreNonEmpty(t *testing.T) {
	for name, src := range map[string]string{
		"incr":    incrScriptSource,
		"decr":    decrScriptSource,
		"acquire": acquireScriptSource,
		"release": releaseScriptSource,
	} {
		if src == "" {
			t.Fatalf("%s script source is empty", name)
		}
	}
}
