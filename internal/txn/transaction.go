// Package txn implements the transaction model: inputs, outputs,
// coinbase and pay-to-pubkey-hash construction, canonical hashing, and
// verification against a Ledger snapshot. Grounded on the teacher's
// blockchain/transaction.go (Hash/Serialize/Sign/Verify/NewTransaction
// shape), generalized from ECDSA/P2SH-by-hand to the spec's Ed25519 +
// explicit script-VM semantics.
package txn

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/script"
)

// Satoshi is a non-negative amount.
type Satoshi uint64

// Address is a raw 32-byte Ed25519 public key.
type Address [crypto.PublicKeySize]byte

func (a Address) Bytes() []byte { return a[:] }

// AddressFromBytes builds an Address from a public key slice.
func AddressFromBytes(b []byte) (Address, error) {
	var a Address
	if len(b) != crypto.PublicKeySize {
		return a, fmt.Errorf("txn: address must be %d bytes, got %d", crypto.PublicKeySize, len(b))
	}
	copy(a[:], b)
	return a, nil
}

// Input references a prior output being consumed.
type Input struct {
	UTXOTxHash   crypto.Hash
	UTXOOutIndex uint32
	ScriptSig    script.Script
}

// IsCoinbase reports whether in is the coinbase sentinel input.
func (in Input) IsCoinbase() bool {
	return in.UTXOTxHash == crypto.ZeroHash && in.UTXOOutIndex == 0
}

// hashableBytes returns utxo_tx_hash(32) || utxo_output_index(u32 BE) ||
// script_hashable_bytes per the canonical transaction byte layout.
func (in Input) hashableBytes() []byte {
	buf := make([]byte, 0, 32+4)
	buf = append(buf, in.UTXOTxHash[:]...)
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], in.UTXOOutIndex)
	buf = append(buf, idx[:]...)
	buf = append(buf, in.ScriptSig.HashableBytes()...)
	return buf
}

// Output pays value to receiver, locked by script_pub_key. Receiver
// shadows the script's bound public key so address indexes can be built
// without executing scripts.
type Output struct {
	Value        Satoshi
	ScriptPubKey script.Script
	Receiver     Address
}

// hashableBytes returns value(u64 BE) || script_hashable_bytes.
func (out Output) hashableBytes() []byte {
	buf := make([]byte, 0, 8)
	var v [8]byte
	binary.BigEndian.PutUint64(v[:], uint64(out.Value))
	buf = append(buf, v[:]...)
	buf = append(buf, out.ScriptPubKey.HashableBytes()...)
	return buf
}

// Transaction is the UTXO-model transaction: sender (zero-hash for
// coinbase), inputs, outputs.
type Transaction struct {
	Sender  Address
	Inputs  []Input
	Outputs []Output
}

// Hash computes SHA-256 over the concatenation of each input's canonical
// bytes followed by each output's canonical bytes.
func (tx Transaction) Hash() crypto.Hash {
	var buf []byte
	for _, in := range tx.Inputs {
		buf = append(buf, in.hashableBytes()...)
	}
	for _, out := range tx.Outputs {
		buf = append(buf, out.hashableBytes()...)
	}
	return crypto.SHA256(buf)
}

// IsCoinbase reports whether tx is a coinbase transaction.
func (tx Transaction) IsCoinbase() bool {
	return len(tx.Inputs) == 1 && tx.Inputs[0].IsCoinbase()
}

// p2pkhLockScript builds the standard locking template bound to pub:
// DUP, HASH256, <hash(pub)>, EQUALVERIFY, CHECKSIG. The unlock side pushes
// the spender's raw public key, so DUP+HASH256 must be compared against
// pub's hash, not pub itself.
func p2pkhLockScript(pub Address) script.Script {
	hash := crypto.SHA256(pub.Bytes())
	return script.New(
		script.OpItem(script.OpDup),
		script.OpItem(script.OpHash256),
		script.Data(hash[:]),
		script.OpItem(script.OpEqualVerify),
		script.OpItem(script.OpCheckSig),
	)
}

// CreateCoinbase builds the block's first transaction: one sentinel input
// (zero-hash, index 0, NOP + a random 8-byte nonce to ensure uniqueness
// across blocks with equal rewards) and one output paying reward to
// miner, locked with the standard P2PKH template so it is immediately
// self-spendable.
func CreateCoinbase(reward Satoshi, miner Address) (Transaction, error) {
	nonce := make([]byte, 8)
	if _, err := rand.Read(nonce); err != nil {
		return Transaction{}, fmt.Errorf("txn: coinbase nonce: %w", err)
	}

	in := Input{
		UTXOTxHash:   crypto.ZeroHash,
		UTXOOutIndex: 0,
		ScriptSig:    script.New(script.OpItem(script.OpNop), script.Data(nonce)),
	}
	out := Output{
		Value:        reward,
		ScriptPubKey: p2pkhLockScript(miner),
		Receiver:     miner,
	}
	return Transaction{
		Sender:  Address{}, // zero-hash for coinbase
		Inputs:  []Input{in},
		Outputs: []Output{out},
	}, nil
}

// CreateCoinbaseDeterministic builds a coinbase transaction whose
// sentinel input carries a fixed, empty nonce instead of a random one.
// Only the genesis block uses this: every node must derive the exact
// same genesis hash, so its coinbase cannot depend on crypto/rand.
func CreateCoinbaseDeterministic(reward Satoshi, miner Address) (Transaction, error) {
	in := Input{
		UTXOTxHash:   crypto.ZeroHash,
		UTXOOutIndex: 0,
		ScriptSig:    script.New(script.OpItem(script.OpNop)),
	}
	out := Output{
		Value:        reward,
		ScriptPubKey: p2pkhLockScript(miner),
		Receiver:     miner,
	}
	return Transaction{
		Sender:  Address{},
		Inputs:  []Input{in},
		Outputs: []Output{out},
	}, nil
}

// UTXORef names a spendable output available to a pay-to-pubkey-hash
// construction.
type UTXORef struct {
	PrevTxHash crypto.Hash
	OutIndex   uint32
	Value      Satoshi
}

// ErrInsufficientFunds is returned when the supplied inputs cannot cover
// amount+fee.
var ErrInsufficientFunds = errors.New("txn: insufficient funds")

// CreatePayToPubKeyHash builds and signs a P2PKH transaction spending
// inputs (selected in the given order until cumulative value covers
// amount+fee) from sender to receiver, with change returned to sender.
func CreatePayToPubKeyHash(inputs []UTXORef, amount, fee Satoshi, sender crypto.KeyPair, receiver Address) (Transaction, error) {
	senderAddr, err := AddressFromBytes(sender.Public)
	if err != nil {
		return Transaction{}, err
	}

	var selected []UTXORef
	var total Satoshi
	for _, ref := range inputs {
		selected = append(selected, ref)
		total += ref.Value
		if total >= amount+fee {
			break
		}
	}
	if total < amount+fee {
		return Transaction{}, ErrInsufficientFunds
	}

	outputs := []Output{{
		Value:        amount,
		ScriptPubKey: p2pkhLockScript(receiver),
		Receiver:     receiver,
	}}
	if change := total - amount - fee; change > 0 {
		outputs = append(outputs, Output{
			Value:        change,
			ScriptPubKey: p2pkhLockScript(senderAddr),
			Receiver:     senderAddr,
		})
	}

	txInputs := make([]Input, len(selected))
	for i, ref := range selected {
		// Step 3: install a placeholder script; the tx_hash-role item's
		// content is irrelevant, it is excluded from hashing.
		txInputs[i] = Input{
			UTXOTxHash:   ref.PrevTxHash,
			UTXOOutIndex: ref.OutIndex,
			ScriptSig: script.New(
				script.TaggedData([]byte{}, script.RoleTxHash),
				script.Data(senderAddr.Bytes()),
			),
		}
	}

	tx := Transaction{Sender: senderAddr, Inputs: txInputs, Outputs: outputs}
	txHash := tx.Hash()

	for i := range tx.Inputs {
		sig, err := crypto.Sign(sender.Secret, txHash[:])
		if err != nil {
			return Transaction{}, err
		}
		tx.Inputs[i].ScriptSig = script.New(
			script.TaggedData(sig, script.RoleSig),
			script.Data(senderAddr.Bytes()),
		)
	}

	return tx, nil
}
