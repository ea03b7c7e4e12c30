// Package config implements spec §4.4: an immutable Config snapshot,
// a loader contract for producing one, and a Manager that keeps the
// "current" snapshot fresh via atomic whole-object replacement.
package config

import (
	"github.com/AlfredDev/throttlecore/rule"
)

// Snapshot is the in-memory Config (spec §3): an ordered list of
// rules evaluated in declared order, a whitelist that short-circuits
// evaluation entirely, and a service-unique namespace that every
// counter key is scoped by. Snapshots are immutable once built — a
// Manager never mutates one in place, it only ever swaps in a new
// one wholesale.
type Snapshot struct {
	Rules      []rule.Rule
	Whitelist  []rule.Matcher
	UniqueName string

	// GlobalIdentity/GlobalCost are the Config-wide extractors a Rule
	// falls back to when it has no extractor of its own (spec §4.3).
	GlobalIdentity rule.IdentityExtractor
	GlobalCost     rule.CostExtractor
}

// Empty is the snapshot the engine uses when no Config has ever
// loaded successfully (spec §7: "the engine behaves as if Rules were
// empty").
var Empty = &Snapshot{}
