package governance

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compasshq/keel/pkg/contracts"
	"github.com/compasshq/keel/pkg/rulepack"
)

func keywordRule(num int, autoReject bool, keywords ...string) contracts.NonNegotiable {
	return contracts.NonNegotiable{
		ID:         "nn-test",
		RuleNumber: num,
		Title:      "test rule",
		AutoReject: autoReject,
		Matcher:    contracts.MatcherSpec{Strategy: "keyword", Keywords: keywords},
	}
}

func snapshotOf(rules ...contracts.NonNegotiable) *rulepack.Snapshot {
	return &rulepack.Snapshot{Version: "1.0.0", NonNegotiables: rules, LoadedAt: time.Now()}
}

func TestEvaluateOrdersByRuleNumber(t *testing.T) {
	snap := snapshotOf(
		keywordRule(2, false, "budget"),
		keywordRule(9, false, "budget"),
		keywordRule(4, false, "budget"),
	)
	// rulepack.Parse sorts; mirror that here since the snapshot is built by hand.
	snap.NonNegotiables[0], snap.NonNegotiables[1], snap.NonNegotiables[2] =
		keywordRule(2, false, "budget"), keywordRule(4, false, "budget"), keywordRule(9, false, "budget")

	ev, err := NewEvaluator(snap, DefaultMatchers())
	require.NoError(t, err)
	defer func() { _ = ev.Close() }()

	violated := ev.Evaluate(contracts.Recommendation{Text: "cut the budget"})
	assert.Equal(t, []int{2, 4, 9}, RuleNumbers(violated))
}

func TestEvaluateIsDeterministic(t *testing.T) {
	snap := snapshotOf(keywordRule(1, false, "margin"), keywordRule(2, true, "layoff"))
	ev, err := NewEvaluator(snap, DefaultMatchers())
	require.NoError(t, err)
	defer func() { _ = ev.Close() }()

	rec := contracts.Recommendation{Text: "Protect margin; consider a layoff freeze."}
	first := RuleNumbers(ev.Evaluate(rec))
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, RuleNumbers(ev.Evaluate(rec)))
	}
	s1, sc1 := Decide(ev.Evaluate(rec))
	s2, sc2 := Decide(ev.Evaluate(rec))
	assert.Equal(t, s1, s2)
	assert.Equal(t, sc1, sc2)
}

func TestEvaluateMatchesActionPayloads(t *testing.T) {
	snap := snapshotOf(keywordRule(1, false, "k-secret"))
	ev, err := NewEvaluator(snap, DefaultMatchers())
	require.NoError(t, err)
	defer func() { _ = ev.Close() }()

	rec := contracts.Recommendation{
		Text: "harmless text",
		ProposedActions: []contracts.Action{{
			Type:           "updateKpiValue",
			TargetEntityID: "k-secret",
			Payload:        json.RawMessage(`{"value": 1}`),
		}},
	}
	assert.Len(t, ev.Evaluate(rec), 1)
}

func TestNewEvaluatorRejectsBadCEL(t *testing.T) {
	rule := contracts.NonNegotiable{
		ID: "nn-bad", RuleNumber: 1, Title: "bad",
		Matcher: contracts.MatcherSpec{Strategy: "cel", Expression: "text.contains("},
	}
	_, err := NewEvaluator(snapshotOf(rule), DefaultMatchers())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "nn-bad")
}

func TestNewEvaluatorRejectsUnknownStrategy(t *testing.T) {
	rule := keywordRule(1, false, "x")
	rule.Matcher.Strategy = "telepathy"
	_, err := NewEvaluator(snapshotOf(rule), DefaultMatchers())
	require.Error(t, err)
}

// Scenario: recommendation matches only an auto-reject rule.
func TestAutoRejectRule(t *testing.T) {
	snap := snapshotOf(keywordRule(3, true, "layoff"))
	ev, err := NewEvaluator(snap, DefaultMatchers())
	require.NoError(t, err)
	defer func() { _ = ev.Close() }()

	violated := ev.Evaluate(contracts.Recommendation{Text: "Propose a layoff in Q3"})
	status, score := Decide(violated)
	assert.Equal(t, contracts.StatusRejected, status)
	assert.Equal(t, 0, score)
	assert.Equal(t, []int{3}, RuleNumbers(violated))
}

// Scenario: recommendation matches only an advisory (non-auto-reject) rule.
func TestFlaggedRule(t *testing.T) {
	snap := snapshotOf(keywordRule(5, false, "discount"))
	ev, err := NewEvaluator(snap, DefaultMatchers())
	require.NoError(t, err)
	defer func() { _ = ev.Close() }()

	violated := ev.Evaluate(contracts.Recommendation{Text: "Offer a 20% discount"})
	status, score := Decide(violated)
	assert.Equal(t, contracts.StatusFlagged, status)
	assert.Equal(t, 50, score)
}

func TestEmptySnapshotApproves(t *testing.T) {
	ev, err := NewEvaluator(snapshotOf(), DefaultMatchers())
	require.NoError(t, err)
	defer func() { _ = ev.Close() }()

	violated := ev.Evaluate(contracts.Recommendation{Text: "anything at all"})
	status, score := Decide(violated)
	assert.Empty(t, violated)
	assert.Equal(t, contracts.StatusApproved, status)
	assert.Equal(t, 100, score)
}
