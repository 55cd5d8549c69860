package badgerstore

import (
	"context"
	"testing"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"

	"github.com/satoshilite/core/internal/block"
	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/merkle"
	"github.com/satoshilite/core/internal/pow"
	"github.com/satoshilite/core/internal/txn"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	opts := badger.DefaultOptions("").WithInMemory(true).WithLogger(nil)
	db, err := badger.Open(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func mustAddr(t *testing.T) txn.Address {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	a, err := txn.AddressFromBytes(kp.Public)
	require.NoError(t, err)
	return a
}

func mineOnto(t *testing.T, prevHash crypto.Hash, reward txn.Satoshi, minerAddr txn.Address) block.Block {
	t.Helper()
	cb, err := txn.CreateCoinbase(reward, minerAddr)
	require.NoError(t, err)
	transactions := []txn.Transaction{cb}
	root := merkle.Root([]crypto.Hash{cb.Hash()})

	headerWithNonce := func(nonce uint32) block.Header {
		return block.Header{PreviousBlockHash: prevHash, MerkleRoot: root, Timestamp: 1230768000, Difficulty: 2, Nonce: nonce, Reward: reward}
	}
	nonce, _, found := pow.Search(context.Background(), 2, func(n uint32) crypto.Hash { return headerWithNonce(n).Hash() })
	require.True(t, found)
	return block.New(headerWithNonce(nonce), transactions)
}

func TestStoreInsertBlockAndReadBack(t *testing.T) {
	db := openTestDB(t)
	store := Open(db, "v1")

	minerAddr := mustAddr(t)
	genesis := mineOnto(t, crypto.ZeroHash, 50, minerAddr)
	require.NoError(t, store.InsertBlock(genesis))

	head, ok := store.Head()
	require.True(t, ok)
	require.Equal(t, genesis.Hash, head.Hash)
	require.Equal(t, 1, store.BlockHeight())

	utxos := store.GetUTXO(minerAddr)
	require.Len(t, utxos, 1)
	require.Equal(t, txn.Satoshi(50), utxos[0].Value)
}

func TestStoreRejectsDuplicateBlock(t *testing.T) {
	db := openTestDB(t)
	store := Open(db, "v1")
	minerAddr := mustAddr(t)
	genesis := mineOnto(t, crypto.ZeroHash, 50, minerAddr)
	require.NoError(t, store.InsertBlock(genesis))
	require.Error(t, store.InsertBlock(genesis))
}

func TestStorePendingTransactionsDrain(t *testing.T) {
	db := openTestDB(t)
	store := Open(db, "v1")
	minerAddr := mustAddr(t)
	cb, err := txn.CreateCoinbase(10, minerAddr)
	require.NoError(t, err)

	store.AddPendingTransaction(cb)
	require.Len(t, store.GetPendingTransactions(), 1)
	require.Len(t, store.ClearPendingTransactions(), 1)
	require.Empty(t, store.GetPendingTransactions())
}
