// Package ledger implements the append-only validation ledger: every
// evaluated recommendation leaves exactly one immutable record, and
// execution outcomes for approved records are recorded alongside.
// There is no update and no delete; corrections are new records.
package ledger

import (
	"context"

	"github.com/compasshq/keel/pkg/contracts"
)

// Ledger is the durable validation history.
type Ledger interface {
	// Record appends one validation. CreatedAt is assigned here and is
	// strictly monotonically increasing within a ledger instance.
	Record(ctx context.Context, status contracts.ValidationStatus, violatedRuleNumbers []int, rec contracts.Recommendation) (*contracts.ValidationRecord, error)
	// RecordOutcome appends the execution outcome for an approved record.
	// A failed execution never downgrades the record's status; the pair
	// "approved but executed=false" is itself the audit signal.
	RecordOutcome(ctx context.Context, outcome contracts.ExecutionOutcome) error
	// Recent returns the n most recent records, newest first.
	Recent(ctx context.Context, n int) ([]*contracts.ValidationRecord, error)
	// CountsByStatus returns how many records exist per disposition.
	CountsByStatus(ctx context.Context) (map[contracts.ValidationStatus]int, error)
	// Outcome returns the execution outcome for a validation id, or nil.
	Outcome(ctx context.Context, validationID string) (*contracts.ExecutionOutcome, error)
}

// signable is the byte message a record signature covers: the snapshot
// hash binds the content, the id and status bind the disposition.
func signable(r *contracts.ValidationRecord) []byte {
	msg := r.ID + "|" + string(r.Status) + "|" + r.SnapshotHash + "|" + r.CreatedAt.UTC().Format("2006-01-02T15:04:05.999999999Z07:00")
	return []byte(msg)
}

// VerifyRecord checks a record's signature against the keyring.
func VerifyRecord(k *Keyring, r *contracts.ValidationRecord) bool {
	return k.Verify(signable(r), r.Signature)
}
