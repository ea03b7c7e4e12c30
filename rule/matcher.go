package rule

import (
	"path"
	"strings"

	"github.com/AlfredDev/throttlecore/request"
)

// Matcher is the predicate a Rule (or a Config whitelist entry)
// evaluates against a request before doing anything else (spec §2's
// "matcher (URI pattern, HTTP method, header/claim predicates)").
// Every field left at its zero value is treated as "don't care".
type Matcher struct {
	// URIPattern is matched against the request's path (no query
	// string) with path.Match glob semantics ("*", "?", "[...]").
	// Empty matches any path.
	URIPattern string

	// Method, compared case-insensitively. Empty matches any method.
	Method string

	// HeaderName/HeaderValue: if HeaderName is set, the request must
	// carry that header with exactly HeaderValue. An empty
	// HeaderValue means "header present, any value".
	HeaderName  string
	HeaderValue string

	// ClaimName/ClaimValues: if ClaimName is set, the request's claim
	// bag must carry that claim and its string form must be one of
	// ClaimValues (or, if ClaimValues is empty, simply be present).
	ClaimName   string
	ClaimValues []string
}

// Match reports whether req satisfies every predicate set on m.
func (m Matcher) Match(req request.Request) bool {
	if m.URIPattern != "" {
		ok, err := path.Match(m.URIPattern, req.Path())
		if err != nil || !ok {
			return false
		}
	}

	if m.Method != "" && !strings.EqualFold(m.Method, req.Method()) {
		return false
	}

	if m.HeaderName != "" {
		v := req.Header(m.HeaderName)
		if v == "" {
			return false
		}
		if m.HeaderValue != "" && v != m.HeaderValue {
			return false
		}
	}

	if m.ClaimName != "" {
		v, ok := req.Claim(m.ClaimName)
		if !ok {
			return false
		}
		if len(m.ClaimValues) > 0 {
			s, isStr := v.(string)
			if !isStr {
				return false
			}
			found := false
			for _, want := range m.ClaimValues {
				if s == want {
					found = true
					break
				}
			}
			if !found {
				return false
			}
		}
	}

	return true
}

// MatchAny reports whether req satisfies at least one matcher in ms —
// the whitelist's short-circuit test (spec §4.5 step 2).
func MatchAny(ms []Matcher, req request.Request) bool {
	for _, m := range ms {
		if m.Match(req) {
			return true
		}
	}
	return false
}
