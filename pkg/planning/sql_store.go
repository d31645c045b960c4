package planning

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/compasshq/keel/pkg/contracts"
)

// SQLStore implements Store using database/sql, on SQLite or Postgres.
type SQLStore struct {
	db *sql.DB
}

func NewSQLStore(db *sql.DB) *SQLStore {
	return &SQLStore{db: db}
}

const schema = `
CREATE TABLE IF NOT EXISTS kpis (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	current_value REAL NOT NULL DEFAULT 0,
	target_value REAL NOT NULL DEFAULT 0,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS ogsm_items (
	id TEXT PRIMARY KEY,
	kind TEXT NOT NULL,
	title TEXT NOT NULL,
	status TEXT NOT NULL,
	updated_at TIMESTAMP NOT NULL
);
CREATE TABLE IF NOT EXISTS kpi_history (
	id TEXT PRIMARY KEY,
	kpi_id TEXT NOT NULL REFERENCES kpis(id),
	value REAL NOT NULL,
	recorded_at TIMESTAMP NOT NULL
);
`

func (s *SQLStore) Init(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// UpsertKPI seeds or replaces a KPI row. Used by the dashboard side and fixtures.
func (s *SQLStore) UpsertKPI(ctx context.Context, k KPI) error {
	query := `
		INSERT INTO kpis (id, name, current_value, target_value, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			current_value = EXCLUDED.current_value,
			target_value = EXCLUDED.target_value,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, k.ID, k.Name, k.CurrentValue, k.TargetValue, time.Now().UTC())
	return err
}

// UpsertOGSMItem seeds or replaces an OGSM row.
func (s *SQLStore) UpsertOGSMItem(ctx context.Context, item OGSMItem) error {
	query := `
		INSERT INTO ogsm_items (id, kind, title, status, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (id) DO UPDATE SET
			kind = EXCLUDED.kind,
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			updated_at = EXCLUDED.updated_at
	`
	_, err := s.db.ExecContext(ctx, query, item.ID, item.Kind, item.Title, item.Status, time.Now().UTC())
	return err
}

func (s *SQLStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("planning: begin tx: %w", err)
	}
	wrapped := &sqlTxWrapper{tx: sqlTx}
	if err := fn(wrapped); err != nil {
		if rbErr := sqlTx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("planning: rollback: %w", rbErr))
		}
		return err
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("planning: commit: %w", err)
	}
	return nil
}

func (s *SQLStore) GetKPI(ctx context.Context, kpiID string) (*KPI, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, current_value, target_value, updated_at FROM kpis WHERE id = $1`, kpiID)
	var k KPI
	err := row.Scan(&k.ID, &k.Name, &k.CurrentValue, &k.TargetValue, &k.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contracts.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("planning: get kpi %s: %w", kpiID, err)
	}
	return &k, nil
}

func (s *SQLStore) GetOGSMItem(ctx context.Context, itemID string) (*OGSMItem, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, kind, title, status, updated_at FROM ogsm_items WHERE id = $1`, itemID)
	var item OGSMItem
	err := row.Scan(&item.ID, &item.Kind, &item.Title, &item.Status, &item.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, contracts.ErrEntityNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("planning: get ogsm item %s: %w", itemID, err)
	}
	return &item, nil
}

func (s *SQLStore) KPIHistory(ctx context.Context, kpiID string) ([]KPIHistoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, kpi_id, value, recorded_at FROM kpi_history WHERE kpi_id = $1 ORDER BY recorded_at ASC`, kpiID)
	if err != nil {
		return nil, fmt.Errorf("planning: kpi history %s: %w", kpiID, err)
	}
	defer func() { _ = rows.Close() }()

	var entries []KPIHistoryEntry
	for rows.Next() {
		var e KPIHistoryEntry
		if err := rows.Scan(&e.ID, &e.KPIID, &e.Value, &e.RecordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

type sqlTxWrapper struct {
	tx *sql.Tx
}

func (w *sqlTxWrapper) SetKPIValue(ctx context.Context, kpiID string, value float64) error {
	return w.update(ctx,
		`UPDATE kpis SET current_value = $1, updated_at = $2 WHERE id = $3`,
		value, time.Now().UTC(), kpiID)
}

func (w *sqlTxWrapper) SetKPITarget(ctx context.Context, kpiID string, target float64) error {
	return w.update(ctx,
		`UPDATE kpis SET target_value = $1, updated_at = $2 WHERE id = $3`,
		target, time.Now().UTC(), kpiID)
}

func (w *sqlTxWrapper) SetOGSMStatus(ctx context.Context, itemID string, status string) error {
	return w.update(ctx,
		`UPDATE ogsm_items SET status = $1, updated_at = $2 WHERE id = $3`,
		status, time.Now().UTC(), itemID)
}

func (w *sqlTxWrapper) AddKPIHistory(ctx context.Context, kpiID string, value float64) error {
	// The referenced KPI must exist; the FK alone reports this too late on
	// some drivers, so check explicitly for a uniform error.
	var exists int
	err := w.tx.QueryRowContext(ctx, `SELECT 1 FROM kpis WHERE id = $1`, kpiID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return contracts.ErrEntityNotFound
	}
	if err != nil {
		return fmt.Errorf("planning: check kpi %s: %w", kpiID, err)
	}
	_, err = w.tx.ExecContext(ctx,
		`INSERT INTO kpi_history (id, kpi_id, value, recorded_at) VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), kpiID, value, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("planning: append kpi history: %w", err)
	}
	return nil
}

func (w *sqlTxWrapper) update(ctx context.Context, query string, args ...any) error {
	res, err := w.tx.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("planning: update: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("planning: rows affected: %w", err)
	}
	if affected == 0 {
		return contracts.ErrEntityNotFound
	}
	return nil
}
