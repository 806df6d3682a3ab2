package storage

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bbh1312/sleep-cash-backend/internal"
)

func TestFileStorage_PersistsOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sleepcash.json")
	ctx := context.Background()

	s, err := NewFileStorage(path, internal.NewNopLogger())
	require.NoError(t, err)
	require.NoError(t, s.EnsureUser(ctx, &internal.User{ID: "u1", TotalPoints: decimal.Zero}))
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		return tx.SetUserPoints(ctx, "u1", decimal.RequireFromString("60.5"))
	}))
	require.NoError(t, s.Close())

	reloaded, err := NewFileStorage(path, internal.NewNopLogger())
	require.NoError(t, err)
	defer reloaded.Close()
	require.NoError(t, reloaded.WithinTx(ctx, func(tx Tx) error {
		u, err := tx.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.Equal(t, "60.5", u.TotalPoints.String())
		return nil
	}))
}

func TestFileStorage_CloseTwice(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sleepcash.json")
	s, err := NewFileStorage(path, internal.NewNopLogger())
	require.NoError(t, err)

	require.NoError(t, s.Close())
	assert.NotPanics(t, func() {
		assert.NoError(t, s.Close())
	})
}

func TestFileStorage_RowsAreCopies(t *testing.T) {
	s := NewMemoryStorage(internal.NewNopLogger())
	ctx := context.Background()
	require.NoError(t, s.EnsureUser(ctx, &internal.User{ID: "u1", TotalPoints: decimal.Zero}))

	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		u, err := tx.LockUser(ctx, "u1")
		require.NoError(t, err)
		u.TotalPoints = decimal.NewFromInt(500)
		return nil
	}))
	require.NoError(t, s.WithinTx(ctx, func(tx Tx) error {
		u, err := tx.GetUser(ctx, "u1")
		require.NoError(t, err)
		assert.True(t, u.TotalPoints.IsZero())
		return nil
	}))
}

func TestFileStorage_CanceledContext(t *testing.T) {
	s := NewMemoryStorage(internal.NewNopLogger())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := s.WithinTx(ctx, func(tx Tx) error {
		called = true
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, called)
}
