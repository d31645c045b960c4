// Package planning is the collaborator-owned planning-data store: KPIs and
// OGSM items. The executor mutates it only through WithinTx, which is the
// isolation unit for an approved recommendation's action batch.
package planning

import (
	"context"
	"time"
)

// KPI is one tracked measure.
type KPI struct {
	ID           string
	Name         string
	CurrentValue float64
	TargetValue  float64
	UpdatedAt    time.Time
}

// OGSMItem is one objective/goal/strategy/measure row.
type OGSMItem struct {
	ID        string
	Kind      string // objective | goal | strategy | measure
	Title     string
	Status    string
	UpdatedAt time.Time
}

// KPIHistoryEntry is an append-only historical KPI reading.
type KPIHistoryEntry struct {
	ID         string
	KPIID      string
	Value      float64
	RecordedAt time.Time
}

// Tx is the write surface available inside one transaction. Every method
// returns contracts.ErrEntityNotFound when the target id does not exist.
type Tx interface {
	SetKPIValue(ctx context.Context, kpiID string, value float64) error
	SetKPITarget(ctx context.Context, kpiID string, target float64) error
	SetOGSMStatus(ctx context.Context, itemID string, status string) error
	AddKPIHistory(ctx context.Context, kpiID string, value float64) error
}

// Store is the planning-data collaborator interface.
type Store interface {
	// WithinTx runs fn inside one transaction. If fn returns an error the
	// transaction rolls back and none of its effects are visible.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error

	// Read surface, used by the dashboard collaborator and by tests.
	GetKPI(ctx context.Context, kpiID string) (*KPI, error)
	GetOGSMItem(ctx context.Context, itemID string) (*OGSMItem, error)
	KPIHistory(ctx context.Context, kpiID string) ([]KPIHistoryEntry, error)
}
