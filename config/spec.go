package config

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/invopop/validation"

	"github.com/AlfredDev/throttlecore/limit"
	"github.com/AlfredDev/throttlecore/request"
	"github.com/AlfredDev/throttlecore/rule"
)

// Spec is the host-agnostic configuration schema from spec §6: a
// list of rules, a whitelist of matchers, and a service-unique name.
// It is the YAML-shaped wire format; Build turns it into a *Snapshot.
type Spec struct {
	Rules      []RuleSpec    `yaml:"rules"`
	WhiteList  []MatcherSpec `yaml:"whiteList"`
	UniqueName string        `yaml:"uniqueName"`
}

// MatcherSpec is the wire shape of a rule.Matcher.
type MatcherSpec struct {
	UriPattern  string   `yaml:"uriPattern,omitempty"`
	Method      string   `yaml:"method,omitempty"`
	HeaderName  string   `yaml:"headerName,omitempty"`
	HeaderValue string   `yaml:"headerValue,omitempty"`
	ClaimName   string   `yaml:"claimName,omitempty"`
	ClaimValues []string `yaml:"claimValues,omitempty"`
}

func (m MatcherSpec) build() rule.Matcher {
	return rule.Matcher{
		URIPattern:  m.UriPattern,
		Method:      m.Method,
		HeaderName:  m.HeaderName,
		HeaderValue: m.HeaderValue,
		ClaimName:   m.ClaimName,
		ClaimValues: m.ClaimValues,
	}
}

// LimitMethodSpec is the tagged-variant wire shape of a limit.Method
// (spec §9: "tagged variants over inheritance").
type LimitMethodSpec struct {
	Type                 string `yaml:"type"`
	PermitLimit          int64  `yaml:"permitLimit"`
	IntervalSeconds      int64  `yaml:"intervalSeconds,omitempty"`
	NumberOfBuckets      int64  `yaml:"numberOfBuckets,omitempty"`
	TimeoutSeconds       int64  `yaml:"timeoutSeconds,omitempty"`
	TrialIntervalSeconds int64  `yaml:"trialIntervalSeconds,omitempty"`
	ThrowOnFailures      bool   `yaml:"throwOnFailures,omitempty"`
}

const (
	TypeFixedWindow    = "fixed_window"
	TypeSlidingWindow  = "sliding_window"
	TypeSemaphore      = "semaphore"
	TypeCircuitBreaker = "circuit_breaker"
)

func (s LimitMethodSpec) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.Type, validation.Required, validation.In(
			TypeFixedWindow, TypeSlidingWindow, TypeSemaphore, TypeCircuitBreaker,
		)),
		validation.Field(&s.PermitLimit, validation.Required, validation.Min(int64(1))),
		validation.Field(&s.IntervalSeconds, validation.When(
			s.Type == TypeFixedWindow || s.Type == TypeSlidingWindow || s.Type == TypeCircuitBreaker,
			validation.Required, validation.Min(int64(1)),
		)),
		validation.Field(&s.NumberOfBuckets, validation.When(
			s.Type == TypeSlidingWindow, validation.Required, validation.Min(int64(1)),
		)),
		validation.Field(&s.TimeoutSeconds, validation.When(
			s.Type == TypeSemaphore, validation.Min(int64(0)),
		)),
		validation.Field(&s.TrialIntervalSeconds, validation.When(
			s.Type == TypeCircuitBreaker, validation.Required, validation.Min(int64(1)),
		)),
	)
}

func (s LimitMethodSpec) build() (limit.Method, error) {
	switch s.Type {
	case TypeFixedWindow:
		return &limit.FixedWindow{
			PermitLimit:     s.PermitLimit,
			IntervalSeconds: s.IntervalSeconds,
			ThrowOnFailures: s.ThrowOnFailures,
		}, nil
	case TypeSlidingWindow:
		return &limit.SlidingWindow{
			PermitLimit:     s.PermitLimit,
			IntervalSeconds: s.IntervalSeconds,
			NumberOfBuckets: s.NumberOfBuckets,
			ThrowOnFailures: s.ThrowOnFailures,
		}, nil
	case TypeSemaphore:
		return &limit.Semaphore{
			PermitLimit:     s.PermitLimit,
			TimeoutSeconds:  s.TimeoutSeconds,
			ThrowOnFailures: s.ThrowOnFailures,
		}, nil
	case TypeCircuitBreaker:
		return &limit.CircuitBreaker{
			PermitLimit:          s.PermitLimit,
			IntervalSeconds:      s.IntervalSeconds,
			TrialIntervalSeconds: s.TrialIntervalSeconds,
			ThrowOnFailures:      s.ThrowOnFailures,
		}, nil
	default:
		return nil, fmt.Errorf("config: unknown limit method type %q", s.Type)
	}
}

// RuleSpec is the wire shape of a rule.Rule (spec §6).
type RuleSpec struct {
	ID                string          `yaml:"id,omitempty"`
	MatcherSpec       `yaml:",inline"`
	LimitMethod       LimitMethodSpec `yaml:"limitMethod"`
	MaxDelayInSeconds int64           `yaml:"maxDelayInSeconds,omitempty"`
	IdentityIdExtractor string        `yaml:"identityIdExtractor,omitempty"`
	CostExtractor       string        `yaml:"costExtractor,omitempty"`
}

func (s RuleSpec) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.LimitMethod),
		validation.Field(&s.MaxDelayInSeconds, validation.Min(int64(0))),
	)
}

func (s RuleSpec) build() (rule.Rule, error) {
	method, err := s.LimitMethod.build()
	if err != nil {
		return rule.Rule{}, err
	}

	identity, err := parseIdentityExtractor(s.IdentityIdExtractor)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("config: rule %q: %w", s.ID, err)
	}

	cost, err := parseCostExtractor(s.CostExtractor)
	if err != nil {
		return rule.Rule{}, fmt.Errorf("config: rule %q: %w", s.ID, err)
	}

	return rule.Rule{
		ID:              s.ID,
		Match:           s.MatcherSpec.build(),
		Limit:           method,
		Identity:        identity,
		Cost:            cost,
		MaxDelaySeconds: s.MaxDelayInSeconds,
	}, nil
}

func (s Spec) Validate() error {
	return validation.ValidateStruct(&s,
		validation.Field(&s.UniqueName, validation.Required),
		validation.Field(&s.Rules),
		validation.Field(&s.WhiteList),
	)
}

// Build validates s and converts it into an immutable *Snapshot.
func (s Spec) Build() (*Snapshot, error) {
	if err := s.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid spec: %w", err)
	}

	snap := &Snapshot{
		UniqueName: s.UniqueName,
		Whitelist:  make([]rule.Matcher, 0, len(s.WhiteList)),
		Rules:      make([]rule.Rule, 0, len(s.Rules)),
	}

	for _, m := range s.WhiteList {
		snap.Whitelist = append(snap.Whitelist, m.build())
	}

	for _, rs := range s.Rules {
		r, err := rs.build()
		if err != nil {
			return nil, err
		}
		snap.Rules = append(snap.Rules, r)
	}

	return snap, nil
}

// parseIdentityExtractor turns a schema string like "header:X-User-Id"
// or "claim:sub" into a rule.IdentityExtractor. An empty spec yields a
// nil extractor, meaning "fall through to the Config's global one".
func parseIdentityExtractor(spec string) (rule.IdentityExtractor, error) {
	if spec == "" {
		return nil, nil
	}
	kind, name, err := splitExtractorSpec(spec)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "header":
		return func(req request.Request) (string, bool) {
			v := req.Header(name)
			return v, v != ""
		}, nil
	case "claim":
		return func(req request.Request) (string, bool) {
			v, ok := req.Claim(name)
			if !ok {
				return "", false
			}
			s, ok := v.(string)
			return s, ok && s != ""
		}, nil
	case "query":
		return func(req request.Request) (string, bool) {
			v := req.Query(name)
			return v, v != ""
		}, nil
	default:
		return nil, fmt.Errorf("unknown identity extractor kind %q", kind)
	}
}

// parseCostExtractor turns a schema string like "const:5" or
// "header:X-Request-Cost" into a rule.CostExtractor.
func parseCostExtractor(spec string) (rule.CostExtractor, error) {
	if spec == "" {
		return nil, nil
	}
	kind, name, err := splitExtractorSpec(spec)
	if err != nil {
		return nil, err
	}
	switch kind {
	case "const":
		n, err := strconv.ParseInt(name, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("cost extractor %q: %w", spec, err)
		}
		return func(request.Request) int64 { return n }, nil
	case "header":
		return func(req request.Request) int64 { return parsePositiveInt(req.Header(name)) }, nil
	case "query":
		return func(req request.Request) int64 { return parsePositiveInt(req.Query(name)) }, nil
	default:
		return nil, fmt.Errorf("unknown cost extractor kind %q", kind)
	}
}

func splitExtractorSpec(spec string) (kind, name string, err error) {
	parts := strings.SplitN(spec, ":", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", fmt.Errorf("malformed extractor spec %q, want \"kind:name\"", spec)
	}
	return parts[0], parts[1], nil
}

func parsePositiveInt(s string) int64 {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 1
	}
	return n
}
