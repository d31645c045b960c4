//go:build property
// +build property

// Property-based tests for the disposition policy.
package governance

import (
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/compasshq/keel/pkg/contracts"
)

// TestAutoRejectDominance: any violation set containing at least one
// auto-reject rule is rejected, no matter how many advisory rules are
// also violated.
func TestAutoRejectDominance(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("auto-reject dominates", prop.ForAll(
		func(flags []bool, insertAt uint) bool {
			violations := make([]contracts.NonNegotiable, 0, len(flags)+1)
			for i, autoReject := range flags {
				violations = append(violations, contracts.NonNegotiable{
					RuleNumber: i + 1,
					AutoReject: autoReject,
				})
			}
			// Force at least one auto-reject rule into the set.
			pos := 0
			if len(violations) > 0 {
				pos = int(insertAt) % (len(violations) + 1)
			}
			forced := contracts.NonNegotiable{RuleNumber: len(flags) + 1, AutoReject: true}
			violations = append(violations[:pos], append([]contracts.NonNegotiable{forced}, violations[pos:]...)...)

			status, score := Decide(violations)
			return status == contracts.StatusRejected && score == ScoreRejected
		},
		gen.SliceOf(gen.Bool()),
		gen.UInt(),
	))

	properties.TestingRun(t)
}

// TestDecideTotalAndConsistent: Decide always yields one of the three
// dispositions with its fixed score, and is deterministic.
func TestDecideTotalAndConsistent(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("score matches status", prop.ForAll(
		func(flags []bool) bool {
			violations := make([]contracts.NonNegotiable, 0, len(flags))
			for i, autoReject := range flags {
				violations = append(violations, contracts.NonNegotiable{RuleNumber: i + 1, AutoReject: autoReject})
			}
			status1, score1 := Decide(violations)
			status2, score2 := Decide(violations)
			if status1 != status2 || score1 != score2 {
				return false
			}
			switch status1 {
			case contracts.StatusApproved:
				return score1 == ScoreApproved && len(violations) == 0
			case contracts.StatusRejected:
				return score1 == ScoreRejected
			case contracts.StatusFlagged:
				return score1 == ScoreFlagged && len(violations) > 0
			}
			return false
		},
		gen.SliceOf(gen.Bool()),
	))

	properties.TestingRun(t)
}
