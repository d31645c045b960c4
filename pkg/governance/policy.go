package governance

import "github.com/compasshq/keel/pkg/contracts"

// Per-disposition scores. These must stay consistent with the alignment
// aggregate formula: the aggregate is the validation-count-weighted mean
// of these values.
const (
	ScoreApproved = 100
	ScoreFlagged  = 50
	ScoreRejected = 0
)

// Decide maps a violation set to a disposition and score.
//
//	no violations                        → approved, 100
//	any violated rule with auto_reject   → rejected, 0
//	otherwise                            → flagged, 50
//
// An empty rule snapshot therefore always approves.
func Decide(violations []contracts.NonNegotiable) (contracts.ValidationStatus, int) {
	if len(violations) == 0 {
		return contracts.StatusApproved, ScoreApproved
	}
	for _, v := range violations {
		if v.AutoReject {
			return contracts.StatusRejected, ScoreRejected
		}
	}
	return contracts.StatusFlagged, ScoreFlagged
}
