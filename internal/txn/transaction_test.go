package txn

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/satoshilite/core/internal/crypto"
)

type fakeLedger struct {
	txs map[crypto.Hash]Transaction
}

func newFakeLedger() *fakeLedger { return &fakeLedger{txs: map[crypto.Hash]Transaction{}} }

func (f *fakeLedger) GetTransaction(hash crypto.Hash) (Transaction, bool) {
	tx, ok := f.txs[hash]
	return tx, ok
}

func (f *fakeLedger) add(tx Transaction) { f.txs[tx.Hash()] = tx }

func mustKeyPair(t *testing.T) crypto.KeyPair {
	t.Helper()
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)
	return kp
}

func addrOf(t *testing.T, kp crypto.KeyPair) Address {
	t.Helper()
	a, err := AddressFromBytes(kp.Public)
	require.NoError(t, err)
	return a
}

func TestCoinbaseRoundTrip(t *testing.T) {
	miner := mustKeyPair(t)
	minerAddr := addrOf(t, miner)

	cb, err := CreateCoinbase(50, minerAddr)
	require.NoError(t, err)
	require.True(t, cb.IsCoinbase())
	require.Equal(t, Satoshi(50), cb.Outputs[0].Value)

	ledger := newFakeLedger()
	require.NoError(t, VerifyAmounts(cb, ledger, 50))
	require.NoError(t, VerifyScripts(cb, ledger))
}

func TestCoinbaseNoncesDiffer(t *testing.T) {
	minerAddr := addrOf(t, mustKeyPair(t))
	a, err := CreateCoinbase(50, minerAddr)
	require.NoError(t, err)
	b, err := CreateCoinbase(50, minerAddr)
	require.NoError(t, err)
	require.NotEqual(t, a.Hash(), b.Hash())
}

func TestP2PKHRoundTripAndVerify(t *testing.T) {
	ledger := newFakeLedger()

	sender := mustKeyPair(t)
	senderAddr := addrOf(t, sender)
	receiver := mustKeyPair(t)
	receiverAddr := addrOf(t, receiver)

	cb, err := CreateCoinbase(100, senderAddr)
	require.NoError(t, err)
	ledger.add(cb)

	refs := []UTXORef{{PrevTxHash: cb.Hash(), OutIndex: 0, Value: 100}}
	tx, err := CreatePayToPubKeyHash(refs, 30, 0, sender, receiverAddr)
	require.NoError(t, err)

	require.Equal(t, Satoshi(70), tx.Outputs[1].Value) // change
	require.Equal(t, Satoshi(30), tx.Outputs[0].Value)

	require.NoError(t, VerifyAmounts(tx, ledger, 0))
	require.NoError(t, VerifyScripts(tx, ledger))
}

func TestP2PKHInsufficientFunds(t *testing.T) {
	sender := mustKeyPair(t)
	receiverAddr := addrOf(t, mustKeyPair(t))

	refs := []UTXORef{{PrevTxHash: crypto.SHA256([]byte("x")), OutIndex: 0, Value: 10}}
	_, err := CreatePayToPubKeyHash(refs, 30, 0, sender, receiverAddr)
	require.ErrorIs(t, err, ErrInsufficientFunds)
}

func TestVerifyScriptsRejectsTamperedSignature(t *testing.T) {
	ledger := newFakeLedger()

	sender := mustKeyPair(t)
	senderAddr := addrOf(t, sender)
	receiverAddr := addrOf(t, mustKeyPair(t))

	cb, err := CreateCoinbase(100, senderAddr)
	require.NoError(t, err)
	ledger.add(cb)

	refs := []UTXORef{{PrevTxHash: cb.Hash(), OutIndex: 0, Value: 100}}
	tx, err := CreatePayToPubKeyHash(refs, 30, 0, sender, receiverAddr)
	require.NoError(t, err)

	// Zero out the signature bytes in place (scenario 4 of the spec).
	tx.Inputs[0].ScriptSig.Items[0].Data = make([]byte, crypto.SignatureSize)

	err = VerifyScripts(tx, ledger)
	require.Error(t, err)
}

func TestVerifyAmountsRejectsMismatch(t *testing.T) {
	ledger := newFakeLedger()
	sender := mustKeyPair(t)
	senderAddr := addrOf(t, sender)
	receiverAddr := addrOf(t, mustKeyPair(t))

	cb, err := CreateCoinbase(50, senderAddr)
	require.NoError(t, err)
	ledger.add(cb)

	refs := []UTXORef{{PrevTxHash: cb.Hash(), OutIndex: 0, Value: 50}}
	tx, err := CreatePayToPubKeyHash(refs, 50, 0, sender, receiverAddr)
	require.NoError(t, err)
	// Inflate an output to break the amount equality invariant.
	tx.Outputs[0].Value += 10

	err = VerifyAmounts(tx, ledger, 0)
	require.Error(t, err)
}
