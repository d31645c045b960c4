package rulepack

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compasshq/keel/pkg/contracts"
)

const validPack = `
version: "1.2.0"
non_negotiables:
  - id: nn-layoffs
    rule_number: 3
    title: No headcount reductions
    description: We grow through attrition, never layoffs.
    auto_reject: true
    matcher:
      strategy: keyword
      keywords: ["layoff", "headcount reduction"]
  - id: nn-discounting
    rule_number: 5
    title: No blanket discounting
    auto_reject: false
    matcher:
      strategy: cel
      expression: 'text.contains("discount")'
philosophy:
  - id: ph-mission
    type: mission
    title: Mission
    content: Help every team steer by the same map.
  - id: ph-candor
    type: value
    title: Candor
    content: Say the true thing early.
`

func TestParseValidPack(t *testing.T) {
	snap, err := Parse([]byte(validPack))
	require.NoError(t, err)

	assert.Equal(t, "1.2.0", snap.Version)
	require.Len(t, snap.NonNegotiables, 2)
	// Sorted by rule number ascending.
	assert.Equal(t, 3, snap.NonNegotiables[0].RuleNumber)
	assert.Equal(t, 5, snap.NonNegotiables[1].RuleNumber)
	assert.True(t, snap.NonNegotiables[0].AutoReject)

	values := snap.PhilosophyByType(contracts.PhilosophyValue)
	require.Len(t, values, 1)
	assert.Equal(t, "Candor", values[0].Title)
	assert.Empty(t, snap.PhilosophyByType(contracts.PhilosophyOperatingPrinciple))
}

func TestParseRejectsOldVersion(t *testing.T) {
	_, err := Parse([]byte(`version: "0.9.0"`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "does not satisfy")
}

func TestParseRejectsDuplicateRuleNumbers(t *testing.T) {
	pack := `
version: "1.0.0"
non_negotiables:
  - id: nn-a
    rule_number: 7
    title: A
    matcher: {strategy: keyword, keywords: ["a"]}
  - id: nn-b
    rule_number: 7
    title: B
    matcher: {strategy: keyword, keywords: ["b"]}
`
	_, err := Parse([]byte(pack))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rule_number 7")
}

func TestParseRejectsUnknownStrategy(t *testing.T) {
	pack := `
version: "1.0.0"
non_negotiables:
  - id: nn-a
    rule_number: 1
    title: A
    matcher: {strategy: regex}
`
	_, err := Parse([]byte(pack))
	require.Error(t, err)
}

func TestParseRejectsMalformedYAML(t *testing.T) {
	_, err := Parse([]byte("version: [unclosed"))
	require.Error(t, err)
}
