// Package rule implements spec §4.3: a matcher plus one LimitMethod,
// a cost extractor, an identity extractor, and a maximum
// admission-delay budget.
package rule

import (
	"context"

	"github.com/AlfredDev/throttlecore/limit"
	"github.com/AlfredDev/throttlecore/request"
	"github.com/AlfredDev/throttlecore/store"
)

// IdentityExtractor resolves the caller identity a counter key is
// scoped to. ok is false when the rule should not scope by identity
// at all (spec §3's invariant: "if identity is null after applying
// global extractors, the counter key does not include identity").
type IdentityExtractor func(req request.Request) (id string, ok bool)

// CostExtractor resolves how many cost-units a request contributes to
// whichever counter its rule maps to.
type CostExtractor func(req request.Request) int64

// ConstantCost is the spec's default cost extractor: every request
// costs exactly 1.
func ConstantCost(request.Request) int64 { return 1 }

// Rule pairs a Matcher with one LimitMethod, its own optional
// identity/cost extractors (falling back to the Config's globals when
// nil), and a maximum delay budget a request may wait for admission.
type Rule struct {
	ID    string
	Match Matcher
	Limit limit.Method

	// Identity/Cost override the Config-wide extractors for this rule
	// specifically. Nil means "use the global one".
	Identity IdentityExtractor
	Cost     CostExtractor

	// MaxDelaySeconds bounds the engine's admission-delay loop for
	// this rule; zero means an exceeded result is never retried.
	MaxDelaySeconds int64
}

// resolved is the pure result of applying a Config's global
// extractors to a Rule — computing it never mutates the Rule, so
// applying it any number of times is trivially idempotent and never
// clobbers a per-rule override (spec §4.3: "applyGlobals must be
// idempotent; repeated application must not overwrite a per-rule
// override").
type resolved struct {
	identity IdentityExtractor
	cost     CostExtractor
}

func (r Rule) resolve(globalIdentity IdentityExtractor, globalCost CostExtractor) resolved {
	res := resolved{identity: r.Identity, cost: r.Cost}
	if res.identity == nil {
		res.identity = globalIdentity
	}
	if res.cost == nil {
		res.cost = globalCost
	}
	if res.cost == nil {
		res.cost = ConstantCost
	}
	return res
}

// Evaluate runs the rule against req (spec §4.3): it returns nil if
// the matcher rejects the request, otherwise it resolves the
// effective identity/cost extractors and delegates to the rule's
// LimitMethod.
func (r Rule) Evaluate(ctx context.Context, req request.Request, st store.Store, namespace string, globalIdentity IdentityExtractor, globalCost CostExtractor) (*limit.Result, int64, error) {
	if !r.Match.Match(req) {
		return nil, 0, nil
	}

	res := r.resolve(globalIdentity, globalCost)

	scope := limit.Scope{Namespace: namespace, RuleID: r.ID}
	if res.identity != nil {
		if id, ok := res.identity(req); ok {
			scope.Identity = id
			scope.HasIdentity = true
		}
	}

	cost := res.cost(req)
	if cost < 0 {
		cost = 0
	}

	result, err := r.Limit.IsExceeded(ctx, req, cost, st, scope)
	return result, cost, err
}
