package block

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/merkle"
	"github.com/satoshilite/core/internal/pow"
	"github.com/satoshilite/core/internal/txn"
)

type fakeLedger struct {
	txs  map[crypto.Hash]txn.Transaction
	head crypto.Hash
	has  bool
}

func newFakeLedger() *fakeLedger { return &fakeLedger{txs: map[crypto.Hash]txn.Transaction{}} }

func (f *fakeLedger) GetTransaction(hash crypto.Hash) (txn.Transaction, bool) {
	tx, ok := f.txs[hash]
	return tx, ok
}

func (f *fakeLedger) HeadHash() (crypto.Hash, bool) { return f.head, f.has }

func (f *fakeLedger) add(tx txn.Transaction) { f.txs[tx.Hash()] = tx }

func mineHeader(t *testing.T, ledger *fakeLedger, reward txn.Satoshi, minerAddr txn.Address, difficulty uint8) Block {
	t.Helper()

	cb, err := txn.CreateCoinbase(reward, minerAddr)
	require.NoError(t, err)
	transactions := []txn.Transaction{cb}

	hashes := make([]crypto.Hash, len(transactions))
	for i, tx := range transactions {
		hashes[i] = tx.Hash()
	}
	root := merkle.Root(hashes)

	headerWithNonce := func(nonce uint32) Header {
		return Header{
			Version:           1,
			PreviousBlockHash: ledger.head,
			MerkleRoot:        root,
			Timestamp:         1230768000,
			Difficulty:        difficulty,
			Nonce:             nonce,
			Reward:            reward,
		}
	}

	nonce, _, found := pow.Search(context.Background(), difficulty, func(n uint32) crypto.Hash {
		return headerWithNonce(n).Hash()
	})
	require.True(t, found)

	return New(headerWithNonce(nonce), transactions)
}

func TestVerifyAcceptsWellFormedBlock(t *testing.T) {
	ledger := newFakeLedger()
	minerAddr := addrOf(t)

	b := mineHeader(t, ledger, 50, minerAddr, 4)
	require.NoError(t, Verify(b, ledger, 50))
}

func TestVerifyRejectsBadMerkleRoot(t *testing.T) {
	ledger := newFakeLedger()
	minerAddr := addrOf(t)

	b := mineHeader(t, ledger, 50, minerAddr, 4)
	b.Header.MerkleRoot = crypto.SHA256([]byte("tamper"))
	b.Hash = b.Header.Hash()

	err := Verify(b, ledger, 50)
	require.Error(t, err)
	var vf *VerificationFailure
	require.ErrorAs(t, err, &vf)
	require.Equal(t, FailureBadMerkle, vf.Kind)
}

func TestVerifyRejectsWrongParent(t *testing.T) {
	ledger := newFakeLedger()
	ledger.has = true
	ledger.head = crypto.SHA256([]byte("real-head"))
	minerAddr := addrOf(t)

	b := mineHeader(t, ledger, 50, minerAddr, 4)
	b.Header.PreviousBlockHash = crypto.SHA256([]byte("wrong-parent"))
	b.Hash = b.Header.Hash()

	err := Verify(b, ledger, 50)
	require.Error(t, err)
	var vf *VerificationFailure
	require.ErrorAs(t, err, &vf)
	require.Equal(t, FailureBadParent, vf.Kind)
}

func TestVerifyRejectsPoWBelowDifficulty(t *testing.T) {
	ledger := newFakeLedger()
	minerAddr := addrOf(t)

	b := mineHeader(t, ledger, 50, minerAddr, 4)
	b.Header.Difficulty = 250 // nonce was found for difficulty 4, not 250
	b.Hash = b.Header.Hash()

	err := Verify(b, ledger, 50)
	require.Error(t, err)
	var vf *VerificationFailure
	require.ErrorAs(t, err, &vf)
	require.Equal(t, FailureBadPoW, vf.Kind)
}

func TestHeaderCanonicalBytesLayout(t *testing.T) {
	prev := crypto.SHA256([]byte("parent"))
	h := Header{
		PreviousBlockHash: prev,
		Difficulty:        4,
		Timestamp:         1230768000,
		Nonce:             7,
		Reward:            50,
	}
	got := h.CanonicalBytes()
	require.True(t, len(got) > 32)
	require.Equal(t, prev[:], got[:32])
	require.Equal(t, "4" + "1230768000" + "7" + "50", string(got[32:]))
}

func addrOf(t *testing.T) txn.Address {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	a, err := txn.AddressFromBytes(kp.Public)
	require.NoError(t, err)
	return a
}
