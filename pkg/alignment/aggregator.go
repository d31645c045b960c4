// Package alignment computes the rolling alignment metrics the dashboard
// renders: an overall percentage derived from validation history plus a
// per-category breakdown.
package alignment

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/compasshq/keel/pkg/contracts"
	"github.com/compasshq/keel/pkg/governance"
	"github.com/compasshq/keel/pkg/rulepack"
)

// NoDataScore is returned as the overall score when no validations exist
// yet. It is a product decision ("healthy by default until measured"), not
// a statistic: callers must check TotalValidations to tell the neutral
// default apart from a measured 85.
const NoDataScore = 85

// CategoryScore is one breakdown entry.
type CategoryScore struct {
	Score int `json:"score"`
	Count int `json:"count"`
}

// Report is the aggregate alignment view.
type Report struct {
	OverallScore     int                      `json:"overall_score"`
	TotalValidations int                      `json:"total_validations"`
	Breakdown        map[string]CategoryScore `json:"breakdown"`
	ComputedAt       time.Time                `json:"computed_at"`
}

// Breakdown category keys.
const (
	CategoryValues         = "values"
	CategoryPrinciples     = "principles"
	CategoryNonNegotiables = "non_negotiables"
)

// CountsProvider is the slice of the ledger the aggregator reads.
type CountsProvider interface {
	CountsByStatus(ctx context.Context) (map[contracts.ValidationStatus]int, error)
}

// SnapshotProvider yields the rule snapshot currently in effect.
type SnapshotProvider func() *rulepack.Snapshot

// Aggregator computes reports lazily on read, with an optional cache in
// front. Aggregates are derived data; the ledger stays the source of truth.
type Aggregator struct {
	counts   CountsProvider
	snapshot SnapshotProvider
	cache    Cache
	logger   *slog.Logger
}

func New(counts CountsProvider, snapshot SnapshotProvider, cache Cache, logger *slog.Logger) *Aggregator {
	if cache == nil {
		cache = NopCache{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Aggregator{counts: counts, snapshot: snapshot, cache: cache, logger: logger}
}

// Score returns the current report, from cache when fresh. Cache failures
// are logged and fall through to a recompute; they never fail the read.
func (a *Aggregator) Score(ctx context.Context) (*Report, error) {
	if report, ok := a.cache.Get(ctx); ok {
		return report, nil
	}

	counts, err := a.counts.CountsByStatus(ctx)
	if err != nil {
		return nil, err
	}
	report := a.compute(counts)

	if err := a.cache.Set(ctx, report); err != nil {
		a.logger.Warn("alignment cache write failed", "error", err)
	}
	return report, nil
}

// Invalidate drops the cached report. Safe to call repeatedly; the
// executor calls it after every committed batch.
func (a *Aggregator) Invalidate(ctx context.Context) error {
	return a.cache.Invalidate(ctx)
}

func (a *Aggregator) compute(counts map[contracts.ValidationStatus]int) *Report {
	approved := counts[contracts.StatusApproved]
	flagged := counts[contracts.StatusFlagged]
	rejected := counts[contracts.StatusRejected]
	total := approved + flagged + rejected

	overall := NoDataScore
	if total > 0 {
		weighted := float64(approved*governance.ScoreApproved + flagged*governance.ScoreFlagged)
		overall = int(math.Round(weighted / float64(total)))
	}

	report := &Report{
		OverallScore:     overall,
		TotalValidations: total,
		Breakdown:        make(map[string]CategoryScore, 3),
		ComputedAt:       time.Now().UTC(),
	}

	// Non-negotiables: validation outcomes are rule-outcome-derived, so
	// the category score equals the overall score by construction.
	report.Breakdown[CategoryNonNegotiables] = CategoryScore{Score: overall, Count: total}

	// Values and principles use a presence heuristic: configured items
	// score full, none score zero. Placeholder until per-category
	// validation data exists; the heuristic measures configuration, not
	// behavior.
	var values, principles int
	if snap := a.snapshot(); snap != nil {
		values = len(snap.PhilosophyByType(contracts.PhilosophyValue))
		principles = len(snap.PhilosophyByType(contracts.PhilosophyGuidingPrinciple)) +
			len(snap.PhilosophyByType(contracts.PhilosophyOperatingPrinciple))
	}
	report.Breakdown[CategoryValues] = presenceScore(values)
	report.Breakdown[CategoryPrinciples] = presenceScore(principles)
	return report
}

func presenceScore(count int) CategoryScore {
	if count > 0 {
		return CategoryScore{Score: 100, Count: count}
	}
	return CategoryScore{Score: 0, Count: 0}
}
