package governance

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compasshq/keel/pkg/contracts"
)

func TestKeywordMatcherFoldsCase(t *testing.T) {
	m, err := NewKeywordMatcher(keywordRule(1, false, "Layoff"))
	require.NoError(t, err)

	rule := keywordRule(1, false, "Layoff")
	assert.True(t, m.Matches(rule, contracts.Recommendation{Text: "plan the LAYOFF"}))
	assert.True(t, m.Matches(rule, contracts.Recommendation{Text: "a layoff, quietly"}))
	assert.False(t, m.Matches(rule, contracts.Recommendation{Text: "lay flooring"}))
}

func TestKeywordMatcherNormalizesUnicode(t *testing.T) {
	m, err := NewKeywordMatcher(keywordRule(1, false, "KPI"))
	require.NoError(t, err)
	// Fullwidth "ＫＰＩ" NFKC-normalizes to "KPI".
	assert.True(t, m.Matches(contracts.NonNegotiable{}, contracts.Recommendation{Text: "drop the ＫＰＩ"}))
}

func TestKeywordMatcherRejectsEmptyConfig(t *testing.T) {
	_, err := NewKeywordMatcher(keywordRule(1, false))
	require.Error(t, err)
	_, err = NewKeywordMatcher(keywordRule(1, false, "  "))
	require.Error(t, err)
}

func celRule(expr string) contracts.NonNegotiable {
	return contracts.NonNegotiable{
		ID: "nn-cel", RuleNumber: 1, Title: "cel rule",
		Matcher: contracts.MatcherSpec{Strategy: "cel", Expression: expr},
	}
}

func TestCELMatcherText(t *testing.T) {
	m, err := NewCELMatcher(celRule(`text.contains("pause hiring")`))
	require.NoError(t, err)
	assert.True(t, m.Matches(contracts.NonNegotiable{}, contracts.Recommendation{Text: "we should pause hiring"}))
	assert.False(t, m.Matches(contracts.NonNegotiable{}, contracts.Recommendation{Text: "keep hiring"}))
}

func TestCELMatcherActions(t *testing.T) {
	m, err := NewCELMatcher(celRule(`"updateKpiTarget" in action_types && "k-revenue" in action_targets`))
	require.NoError(t, err)

	rec := contracts.Recommendation{
		ProposedActions: []contracts.Action{
			{Type: "updateKpiTarget", TargetEntityID: "k-revenue"},
		},
	}
	assert.True(t, m.Matches(contracts.NonNegotiable{}, rec))

	rec.ProposedActions[0].TargetEntityID = "k-nps"
	assert.False(t, m.Matches(contracts.NonNegotiable{}, rec))
}

func TestCELMatcherNonBoolResultIsNotViolated(t *testing.T) {
	m, err := NewCELMatcher(celRule(`text`))
	require.NoError(t, err)
	assert.False(t, m.Matches(contracts.NonNegotiable{}, contracts.Recommendation{Text: "whatever"}))
}

func TestWASMMatcherRequiresModulePath(t *testing.T) {
	_, err := NewWASMMatcher(contracts.NonNegotiable{
		Matcher: contracts.MatcherSpec{Strategy: "wasm"},
	})
	require.Error(t, err)
}

func TestWASMMatcherMissingModuleFailsCompile(t *testing.T) {
	_, err := NewWASMMatcher(contracts.NonNegotiable{
		Matcher: contracts.MatcherSpec{Strategy: "wasm", ModulePath: "/nonexistent/matcher.wasm"},
	})
	require.Error(t, err)
}
