package transcript

import (
	"context"
	"testing"
	"time"

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

func TestHistoryOrdering(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureSession(ctx, "sess-1"))

	base := time.Now()
	_, err := s.AppendMessage(ctx, "sess-1", RoleUser, "first", base)
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "sess-1", RoleAssistant, "second", base.Add(time.Millisecond))
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "sess-1", RoleUser, "third", base.Add(2*time.Millisecond))
	require.NoError(t, err)

	history, err := s.GetHistory(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []string{"first", "second", "third"},
		[]string{history[0].Text, history[1].Text, history[2].Text})
}

func TestEnsureSessionIsIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.EnsureSession(ctx, "sess-1"))
	require.NoError(t, s.EnsureSession(ctx, "sess-1"))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Len(t, sessions, 1)
}

// Deleting a session removes all of its messages; no orphans remain.
func TestDeleteSessionCascades(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.EnsureSession(ctx, "sess-1"))
	require.NoError(t, s.EnsureSession(ctx, "sess-2"))
	_, err := s.AppendMessage(ctx, "sess-1", RoleUser, "doomed", time.Now())
	require.NoError(t, err)
	_, err = s.AppendMessage(ctx, "sess-2", RoleUser, "survivor", time.Now())
	require.NoError(t, err)

	require.NoError(t, s.DeleteSession(ctx, "sess-1"))

	gone, err := s.GetHistory(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := s.GetHistory(ctx, "sess-2")
	require.NoError(t, err)
	assert.Len(t, kept, 1)

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "sess-2", sessions[0].ID)
}

func TestDeleteMissingSession(t *testing.T) {
	s := newTestStore(t)
	err := s.DeleteSession(context.Background(), "nope")
	assert.ErrorIs(t, err, contracts.ErrSessionNotFound)
}
