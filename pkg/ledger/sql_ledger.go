package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/compasshq/keel/pkg/canonicalize"
	"github.com/compasshq/keel/pkg/contracts"
)

var ErrOutcomeExists = errors.New("execution outcome already recorded")

// SQLLedger implements Ledger using database/sql.
// It supports both Postgres and SQLite via standard drivers.
type SQLLedger struct {
	db      *sql.DB
	keyring *Keyring

	mu     sync.Mutex
	lastAt time.Time
}

func NewSQLLedger(db *sql.DB, keyring *Keyring) *SQLLedger {
	return &SQLLedger{db: db, keyring: keyring}
}

const schema = `
CREATE TABLE IF NOT EXISTS validations (
	id TEXT PRIMARY KEY,
	created_at TIMESTAMP NOT NULL,
	status TEXT NOT NULL,
	violated_rule_numbers TEXT NOT NULL,
	snapshot TEXT NOT NULL,
	snapshot_hash TEXT NOT NULL,
	signature TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS execution_outcomes (
	validation_id TEXT PRIMARY KEY REFERENCES validations(id),
	executed BOOLEAN NOT NULL,
	failed_action_index INTEGER NOT NULL,
	error_kind TEXT,
	error_detail TEXT,
	completed_at TIMESTAMP NOT NULL
);
`

func (s *SQLLedger) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// nextTimestamp returns a strictly increasing UTC timestamp. Wall clocks
// can repeat at microsecond granularity under load; ledger ordering must not.
func (s *SQLLedger) nextTimestamp() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now().UTC()
	if !now.After(s.lastAt) {
		now = s.lastAt.Add(time.Microsecond)
	}
	s.lastAt = now
	return now
}

func (s *SQLLedger) Record(ctx context.Context, status contracts.ValidationStatus, violatedRuleNumbers []int, rec contracts.Recommendation) (*contracts.ValidationRecord, error) {
	snapshot, err := canonicalize.JCS(rec)
	if err != nil {
		return nil, fmt.Errorf("ledger: snapshot recommendation: %w", err)
	}
	hash, err := canonicalize.Digest(rec)
	if err != nil {
		return nil, fmt.Errorf("ledger: hash recommendation: %w", err)
	}
	if violatedRuleNumbers == nil {
		violatedRuleNumbers = []int{}
	}
	violated, err := json.Marshal(violatedRuleNumbers)
	if err != nil {
		return nil, fmt.Errorf("ledger: marshal violations: %w", err)
	}

	record := &contracts.ValidationRecord{
		ID:                  uuid.New().String(),
		CreatedAt:           s.nextTimestamp(),
		Status:              status,
		ViolatedRuleNumbers: violatedRuleNumbers,
		Snapshot:            snapshot,
		SnapshotHash:        hash,
	}
	record.Signature = s.keyring.Sign(signable(record))

	query := `
		INSERT INTO validations (id, created_at, status, violated_rule_numbers, snapshot, snapshot_hash, signature)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	_, err = s.db.ExecContext(ctx, query,
		record.ID, record.CreatedAt, string(record.Status), string(violated),
		string(snapshot), record.SnapshotHash, record.Signature,
	)
	if err != nil {
		return nil, fmt.Errorf("ledger: append validation: %w", err)
	}
	return record, nil
}

func (s *SQLLedger) RecordOutcome(ctx context.Context, outcome contracts.ExecutionOutcome) error {
	query := `
		INSERT INTO execution_outcomes (validation_id, executed, failed_action_index, error_kind, error_detail, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	_, err := s.db.ExecContext(ctx, query,
		outcome.ValidationID, outcome.Executed, outcome.FailedActionIndex,
		string(outcome.ErrorKind), outcome.ErrorDetail, outcome.CompletedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("ledger: append outcome: %w", err)
	}
	return nil
}

func (s *SQLLedger) Recent(ctx context.Context, n int) ([]*contracts.ValidationRecord, error) {
	query := `
		SELECT id, created_at, status, violated_rule_numbers, snapshot, snapshot_hash, signature
		FROM validations
		ORDER BY created_at DESC
		LIMIT $1
	`
	rows, err := s.db.QueryContext(ctx, query, n)
	if err != nil {
		return nil, fmt.Errorf("ledger: list recent: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var records []*contracts.ValidationRecord
	for rows.Next() {
		record, err := scanValidation(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func (s *SQLLedger) CountsByStatus(ctx context.Context) (map[contracts.ValidationStatus]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM validations GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("ledger: count by status: %w", err)
	}
	defer func() { _ = rows.Close() }()

	counts := make(map[contracts.ValidationStatus]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, err
		}
		counts[contracts.ValidationStatus(status)] = count
	}
	return counts, rows.Err()
}

func (s *SQLLedger) Outcome(ctx context.Context, validationID string) (*contracts.ExecutionOutcome, error) {
	query := `
		SELECT validation_id, executed, failed_action_index, error_kind, error_detail, completed_at
		FROM execution_outcomes
		WHERE validation_id = $1
	`
	row := s.db.QueryRowContext(ctx, query, validationID)

	var outcome contracts.ExecutionOutcome
	var kind, detail sql.NullString
	err := row.Scan(&outcome.ValidationID, &outcome.Executed, &outcome.FailedActionIndex, &kind, &detail, &outcome.CompletedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("ledger: load outcome: %w", err)
	}
	outcome.ErrorKind = contracts.ErrorKind(kind.String)
	outcome.ErrorDetail = detail.String
	return &outcome, nil
}

func scanValidation(rows *sql.Rows) (*contracts.ValidationRecord, error) {
	var record contracts.ValidationRecord
	var status, violated, snapshot string
	if err := rows.Scan(&record.ID, &record.CreatedAt, &status, &violated, &snapshot, &record.SnapshotHash, &record.Signature); err != nil {
		return nil, fmt.Errorf("ledger: scan validation: %w", err)
	}
	record.Status = contracts.ValidationStatus(status)
	record.Snapshot = json.RawMessage(snapshot)
	if err := json.Unmarshal([]byte(violated), &record.ViolatedRuleNumbers); err != nil {
		return nil, fmt.Errorf("ledger: decode violations: %w", err)
	}
	record.CreatedAt = record.CreatedAt.UTC()
	return &record, nil
}
