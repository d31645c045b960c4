package governance

import (
	"io"

	"github.com/compasshq/keel/pkg/contracts"
	"github.com/compasshq/keel/pkg/rulepack"
)

type compiledRule struct {
	rule    contracts.NonNegotiable
	matcher RuleMatcher
}

// Evaluator checks recommendations against one rule snapshot. It is built
// once per snapshot, is safe for concurrent use across sessions, and its
// Evaluate is pure: no side effects, deterministic for fixed inputs.
type Evaluator struct {
	rules []compiledRule // sorted by RuleNumber ascending
}

// NewEvaluator compiles every rule's matcher. Any compilation failure is a
// startup failure; a running evaluator can no longer fail per turn.
func NewEvaluator(snap *rulepack.Snapshot, matchers *Matchers) (*Evaluator, error) {
	compiled := make([]compiledRule, 0, len(snap.NonNegotiables))
	for _, rule := range snap.NonNegotiables {
		matcher, err := matchers.Compile(rule)
		if err != nil {
			// Release matchers compiled so far.
			closeMatchers(compiled)
			return nil, err
		}
		compiled = append(compiled, compiledRule{rule: rule, matcher: matcher})
	}
	return &Evaluator{rules: compiled}, nil
}

// Evaluate returns the violated rules, ordered by rule_number ascending.
// An empty snapshot trivially yields no violations.
func (e *Evaluator) Evaluate(rec contracts.Recommendation) []contracts.NonNegotiable {
	var violated []contracts.NonNegotiable
	for _, cr := range e.rules {
		if cr.matcher.Matches(cr.rule, rec) {
			violated = append(violated, cr.rule)
		}
	}
	return violated
}

// Close releases matcher resources (the wasm runtime holds native state).
func (e *Evaluator) Close() error {
	closeMatchers(e.rules)
	return nil
}

func closeMatchers(rules []compiledRule) {
	for _, cr := range rules {
		if closer, ok := cr.matcher.(io.Closer); ok {
			_ = closer.Close()
		}
	}
}

// RuleNumbers projects violations onto their stable rule numbers,
// preserving order.
func RuleNumbers(violations []contracts.NonNegotiable) []int {
	numbers := make([]int, 0, len(violations))
	for _, v := range violations {
		numbers = append(numbers, v.RuleNumber)
	}
	return numbers
}
