package miner

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/satoshilite/core/internal/block"
	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/ledger"
	"github.com/satoshilite/core/internal/txn"
)

func mustAccount(t *testing.T) Account {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	addr, err := txn.AddressFromBytes(kp.Public)
	require.NoError(t, err)
	return Account{KeyPair: kp, Address: addr}
}

func TestMinePrependsCoinbaseAndSelfSpend(t *testing.T) {
	store := ledger.NewMemStore("v1")
	m := New(mustAccount(t), 4, 5, 10)

	result, err := m.Mine(context.Background(), store, crypto.ZeroHash, 50, false)
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Len(t, result.Block.Transactions, 2)
	require.True(t, result.Block.Transactions[0].IsCoinbase())
	require.False(t, result.Block.Transactions[1].IsCoinbase())
	require.NoError(t, block.Verify(result.Block, store, 50))
}

func TestMineDrainsPendingTransactions(t *testing.T) {
	store := ledger.NewMemStore("v1")
	m := New(mustAccount(t), 4, 5, 10)

	other, err := txn.CreateCoinbase(1, mustAccount(t).Address)
	require.NoError(t, err)
	store.AddPendingTransaction(other)

	result, err := m.Mine(context.Background(), store, crypto.ZeroHash, 50, false)
	require.NoError(t, err)
	require.True(t, result.Found)
	require.Len(t, result.Block.Transactions, 3)
	require.Empty(t, store.GetPendingTransactions())
}

func TestMineCancellationRestoresPending(t *testing.T) {
	store := ledger.NewMemStore("v1")
	m := New(mustAccount(t), 250, 5, 10) // unreachable difficulty forces cancellation to fire first

	other, err := txn.CreateCoinbase(1, mustAccount(t).Address)
	require.NoError(t, err)
	store.AddPendingTransaction(other)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := m.Mine(ctx, store, crypto.ZeroHash, 50, false)
	require.NoError(t, err)
	require.False(t, result.Found)
	require.Len(t, store.GetPendingTransactions(), 1)
}

func TestAdjustDifficultyIncreasesWhenBlocksTooFast(t *testing.T) {
	m := New(mustAccount(t), 10, 3, 60)
	m.recordBlockTime(0)
	m.recordBlockTime(10)
	m.recordBlockTime(20)
	m.recordBlockTime(30)
	m.AdjustDifficulty()
	require.Equal(t, uint8(11), m.Difficulty())
}

func TestAdjustDifficultyDecreasesWhenBlocksTooSlow(t *testing.T) {
	m := New(mustAccount(t), 10, 3, 10)
	m.recordBlockTime(0)
	m.recordBlockTime(100)
	m.recordBlockTime(200)
	m.recordBlockTime(300)
	m.AdjustDifficulty()
	require.Equal(t, uint8(9), m.Difficulty())
}
