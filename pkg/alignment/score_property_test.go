//go:build property
// +build property

package alignment

import (
	"context"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/compasshq/keel/pkg/contracts"
)

func score(t *testing.T, approved, flagged, rejected int) int {
	t.Helper()
	a := New(fixedCounts{
		contracts.StatusApproved: approved,
		contracts.StatusFlagged:  flagged,
		contracts.StatusRejected: rejected,
	}, emptySnapshot, nil, nil)
	report, err := a.Score(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return report.OverallScore
}

// Holding the total fixed, converting a flagged or rejected validation to
// approved never decreases the overall score.
func TestOverallScoreMonotonicity(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("approving more never scores lower", prop.ForAll(
		func(approved, flagged, rejected uint8) bool {
			a, f, r := int(approved), int(flagged), int(rejected)
			base := score(t, a, f, r)
			if f > 0 && score(t, a+1, f-1, r) < base {
				return false
			}
			if r > 0 && score(t, a+1, f, r-1) < base {
				return false
			}
			return true
		},
		gen.UInt8(),
		gen.UInt8(),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}

// The overall score is always within [0, 100] once data exists.
func TestOverallScoreBounds(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	properties := gopter.NewProperties(parameters)

	properties.Property("score bounded", prop.ForAll(
		func(approved, flagged, rejected uint8) bool {
			if approved == 0 && flagged == 0 && rejected == 0 {
				return true
			}
			s := score(t, int(approved), int(flagged), int(rejected))
			return s >= 0 && s <= 100
		},
		gen.UInt8(),
		gen.UInt8(),
		gen.UInt8(),
	))

	properties.TestingRun(t)
}
