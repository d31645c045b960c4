package planning

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/compasshq/keel/pkg/contracts"
	"github.com/compasshq/keel/pkg/database"
)

func newTestStore(t *testing.T) *SQLStore {
	t.Helper()
	db, err := database.Open("sqlite://:memory:")
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	s := NewSQLStore(db)
	require.NoError(t, s.Init(context.Background()))
	return s
}

func TestKPIRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertKPI(ctx, KPI{ID: "k1", Name: "Revenue", CurrentValue: 100, TargetValue: 500}))

	err := s.WithinTx(ctx, func(tx Tx) error {
		if err := tx.SetKPIValue(ctx, "k1", 250); err != nil {
			return err
		}
		return tx.AddKPIHistory(ctx, "k1", 250)
	})
	require.NoError(t, err)

	k, err := s.GetKPI(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 250.0, k.CurrentValue)

	history, err := s.KPIHistory(ctx, "k1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 250.0, history[0].Value)
}

func TestRollbackLeavesNoEffects(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertKPI(ctx, KPI{ID: "k1", Name: "NPS", CurrentValue: 40}))

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx Tx) error {
		if err := tx.SetKPIValue(ctx, "k1", 99); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	k, err := s.GetKPI(ctx, "k1")
	require.NoError(t, err)
	assert.Equal(t, 40.0, k.CurrentValue)
}

func TestMissingEntity(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	err := s.WithinTx(ctx, func(tx Tx) error {
		return tx.SetKPIValue(ctx, "missing", 1)
	})
	assert.ErrorIs(t, err, contracts.ErrEntityNotFound)

	_, err = s.GetKPI(ctx, "missing")
	assert.ErrorIs(t, err, contracts.ErrEntityNotFound)

	err = s.WithinTx(ctx, func(tx Tx) error {
		return tx.AddKPIHistory(ctx, "missing", 1)
	})
	assert.ErrorIs(t, err, contracts.ErrEntityNotFound)
}

func TestOGSMStatus(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertOGSMItem(ctx, OGSMItem{ID: "o1", Kind: "strategy", Title: "Expand EU", Status: "draft"}))
	err := s.WithinTx(ctx, func(tx Tx) error {
		return tx.SetOGSMStatus(ctx, "o1", "active")
	})
	require.NoError(t, err)

	item, err := s.GetOGSMItem(ctx, "o1")
	require.NoError(t, err)
	assert.Equal(t, "active", item.Status)
}
