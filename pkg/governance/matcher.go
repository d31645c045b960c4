// Package governance implements rule evaluation and the disposition policy:
// a recommendation is checked against every non-negotiable, and the set of
// violations determines whether it is approved, flagged, or rejected.
package governance

import (
	"fmt"

	"github.com/compasshq/keel/pkg/contracts"
)

// RuleMatcher decides whether a single non-negotiable is violated by a
// recommendation. Implementations must be side-effect free and
// deterministic: identical inputs always produce identical answers.
// A matcher that cannot evaluate its input reports "not violated", never
// an error; malformed configuration is rejected at compile time instead.
type RuleMatcher interface {
	Name() string
	Matches(rule contracts.NonNegotiable, rec contracts.Recommendation) bool
}

// MatcherFactory compiles a rule's matcher spec into a RuleMatcher.
// Compilation failures surface here, at startup, so per-turn evaluation
// is defined never to fail.
type MatcherFactory func(rule contracts.NonNegotiable) (RuleMatcher, error)

// Matchers is the registry of matching strategies, keyed by
// MatcherSpec.Strategy.
type Matchers struct {
	factories map[string]MatcherFactory
}

// NewMatchers returns an empty registry.
func NewMatchers() *Matchers {
	return &Matchers{factories: make(map[string]MatcherFactory)}
}

// DefaultMatchers returns the registry with the built-in strategies:
// keyword, cel, and wasm.
func DefaultMatchers() *Matchers {
	m := NewMatchers()
	m.Register("keyword", NewKeywordMatcher)
	m.Register("cel", NewCELMatcher)
	m.Register("wasm", NewWASMMatcher)
	return m
}

// Register adds or replaces a strategy.
func (m *Matchers) Register(strategy string, factory MatcherFactory) {
	m.factories[strategy] = factory
}

// Compile builds the matcher for a rule.
func (m *Matchers) Compile(rule contracts.NonNegotiable) (RuleMatcher, error) {
	factory, ok := m.factories[rule.Matcher.Strategy]
	if !ok {
		return nil, fmt.Errorf("governance: rule %q uses unknown matcher strategy %q", rule.ID, rule.Matcher.Strategy)
	}
	matcher, err := factory(rule)
	if err != nil {
		return nil, fmt.Errorf("governance: compiling matcher for rule %q: %w", rule.ID, err)
	}
	return matcher, nil
}
