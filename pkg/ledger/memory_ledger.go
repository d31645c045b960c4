package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/compasshq/keel/pkg/canonicalize"
	"github.com/compasshq/keel/pkg/contracts"
)

// MemoryLedger is an in-process Ledger for tests and ephemeral runs.
// Same append-only contract as SQLLedger, no durability.
type MemoryLedger struct {
	mu       sync.Mutex
	records  []*contracts.ValidationRecord
	outcomes map[string]contracts.ExecutionOutcome
	keyring  *Keyring
	lastAt   time.Time
}

func NewMemoryLedger(keyring *Keyring) *MemoryLedger {
	return &MemoryLedger{
		outcomes: make(map[string]contracts.ExecutionOutcome),
		keyring:  keyring,
	}
}

func (m *MemoryLedger) Record(_ context.Context, status contracts.ValidationStatus, violatedRuleNumbers []int, rec contracts.Recommendation) (*contracts.ValidationRecord, error) {
	snapshot, err := canonicalize.JCS(rec)
	if err != nil {
		return nil, err
	}
	hash, err := canonicalize.Digest(rec)
	if err != nil {
		return nil, err
	}
	if violatedRuleNumbers == nil {
		violatedRuleNumbers = []int{}
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now().UTC()
	if !now.After(m.lastAt) {
		now = m.lastAt.Add(time.Microsecond)
	}
	m.lastAt = now

	record := &contracts.ValidationRecord{
		ID:                  uuid.New().String(),
		CreatedAt:           now,
		Status:              status,
		ViolatedRuleNumbers: violatedRuleNumbers,
		Snapshot:            snapshot,
		SnapshotHash:        hash,
	}
	record.Signature = m.keyring.Sign(signable(record))
	m.records = append(m.records, record)
	return record, nil
}

func (m *MemoryLedger) RecordOutcome(_ context.Context, outcome contracts.ExecutionOutcome) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.outcomes[outcome.ValidationID]; exists {
		return ErrOutcomeExists
	}
	m.outcomes[outcome.ValidationID] = outcome
	return nil
}

func (m *MemoryLedger) Recent(_ context.Context, n int) ([]*contracts.ValidationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*contracts.ValidationRecord, 0, n)
	for i := len(m.records) - 1; i >= 0 && len(out) < n; i-- {
		out = append(out, m.records[i])
	}
	return out, nil
}

func (m *MemoryLedger) CountsByStatus(_ context.Context) (map[contracts.ValidationStatus]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	counts := make(map[contracts.ValidationStatus]int)
	for _, r := range m.records {
		counts[r.Status]++
	}
	return counts, nil
}

func (m *MemoryLedger) Outcome(_ context.Context, validationID string) (*contracts.ExecutionOutcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if outcome, ok := m.outcomes[validationID]; ok {
		return &outcome, nil
	}
	return nil, nil
}
