package pebble

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iho/goeconomy/internal/domain"
)

func testSnapshot(total int64) *domain.Snapshot {
	return &domain.Snapshot{
		Version: domain.SnapshotVersion,
		TakenAt: time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC),
		Accounts: []*domain.CurrencyAccount{{
			Owner:    "alice",
			Balances: map[string]*domain.Balance{"COINS": {Total: decimal.NewFromInt(total)}},
		}},
		NextEntryID:  1,
		NextOrderSeq: 1,
	}
}

func TestSnapshotStoreKeepsNewest(t *testing.T) {
	store, err := Open(t.TempDir(), 2)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	ctx := context.Background()

	_, err = store.Load(ctx)
	require.ErrorIs(t, err, domain.ErrSnapshotNotFound)

	for _, total := range []int64{10, 20, 30} {
		require.NoError(t, store.Save(ctx, testSnapshot(total)))
	}

	n, err := store.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := store.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Accounts[0].Balances["COINS"].Total.Equal(decimal.NewFromInt(30)))
}

func TestSnapshotStoreReopenContinuesSequence(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := Open(dir, 0)
	require.NoError(t, err)
	require.NoError(t, store.Save(ctx, testSnapshot(1)))
	require.NoError(t, store.Close())

	reopened, err := Open(dir, 0)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	require.NoError(t, reopened.Save(ctx, testSnapshot(2)))

	n, err := reopened.Count()
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	got, err := reopened.Load(ctx)
	require.NoError(t, err)
	assert.True(t, got.Accounts[0].Balances["COINS"].Total.Equal(decimal.NewFromInt(2)))
}

func TestKeyOrdering(t *testing.T) {
	assert.Less(t, string(keyFor(255)), string(keyFor(256)))
	assert.Equal(t, uint64(42), seqOf(keyFor(42)))
	assert.Equal(t, uint64(0), seqOf([]byte("snapshot/x")))
}
