// Package block implements the block header (C5): canonical byte layout,
// header hashing, and full block verification against a ledger snapshot.
// Grounded on the teacher's blockchain/block.go + blockchain/proof.go
// (header-carries-nonce, Serialize/Deserialize shape), generalized to the
// spec's explicit header field set and Merkle-root invariant.
package block

import (
	"fmt"
	"strconv"

	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/merkle"
	"github.com/satoshilite/core/internal/pow"
	"github.com/satoshilite/core/internal/txn"
)

// Header carries the fields that link one block to its parent and bind
// the block's transaction set via its Merkle root.
type Header struct {
	Version            uint32
	PreviousBlockHash  crypto.Hash
	MerkleRoot         crypto.Hash
	Timestamp          int64 // seconds since epoch
	Difficulty         uint8 // target bits
	Nonce              uint32
	Reward             txn.Satoshi
}

// CanonicalBytes returns previous_block_hash(32) ||
// ASCII_decimal(difficulty) || ASCII_decimal(timestamp) ||
// ASCII_decimal(nonce) || ASCII_decimal(reward), the exact byte layout
// the spec requires header hashing to reproduce.
func (h Header) CanonicalBytes() []byte {
	var buf []byte
	buf = append(buf, h.PreviousBlockHash[:]...)
	buf = append(buf, []byte(strconv.FormatUint(uint64(h.Difficulty), 10))...)
	buf = append(buf, []byte(strconv.FormatInt(h.Timestamp, 10))...)
	buf = append(buf, []byte(strconv.FormatUint(uint64(h.Nonce), 10))...)
	buf = append(buf, []byte(strconv.FormatUint(uint64(h.Reward), 10))...)
	return buf
}

// Hash computes the header hash: SHA-256 of CanonicalBytes.
func (h Header) Hash() crypto.Hash {
	return crypto.SHA256(h.CanonicalBytes())
}

// Block is a header plus its transactions; Hash caches the header hash at
// construction time (blocks are immutable once inserted).
type Block struct {
	Header       Header
	Transactions []txn.Transaction
	Hash         crypto.Hash
}

// New builds a Block, computing the header hash.
func New(header Header, transactions []txn.Transaction) Block {
	return Block{Header: header, Transactions: transactions, Hash: header.Hash()}
}

// VerificationFailureKind classifies block-level failures (§7).
type VerificationFailureKind int

const (
	FailureBadMerkle VerificationFailureKind = iota
	FailureBadParent
	FailureBadPoW
	FailureTxInvalid
)

type VerificationFailure struct {
	Kind VerificationFailureKind
	Msg  string
}

func (e *VerificationFailure) Error() string { return e.Msg }

// LedgerView is the minimal surface block verification needs: the
// current chain head hash and transaction lookups (satisfied
// structurally by ledger.MemStore / badgerstore.Store). The block reward
// is passed to Verify separately.
type LedgerView interface {
	txn.LedgerView
	HeadHash() (crypto.Hash, bool)
}

func txHashes(transactions []txn.Transaction) []crypto.Hash {
	hashes := make([]crypto.Hash, len(transactions))
	for i, tx := range transactions {
		hashes[i] = tx.Hash()
	}
	return hashes
}

// seenOverlay wraps a LedgerView with transactions already verified
// earlier in the same block, so a later input can spend an output
// produced by an earlier transaction in that block (e.g. the miner's
// coinbase self-spend) before the block is ever committed. Committed
// lookups fall through to the wrapped ledger.
type seenOverlay struct {
	LedgerView
	seen map[crypto.Hash]txn.Transaction
}

func (o *seenOverlay) GetTransaction(hash crypto.Hash) (txn.Transaction, bool) {
	if tx, ok := o.seen[hash]; ok {
		return tx, true
	}
	return o.LedgerView.GetTransaction(hash)
}

// Verify checks Inv-5 (Merkle root matches), that the header's parent is
// the ledger's current head, that header_hash <= target(difficulty), and
// that every transaction verifies per txn.VerifyAgainstLedger. Inputs
// are resolved against the ledger plus every transaction already
// processed earlier in this same block, mirroring the teacher's
// practice of threading the block's own transaction list through
// verification rather than consulting only the committed store.
func Verify(b Block, ledger LedgerView, blockReward txn.Satoshi) error {
	wantRoot := merkle.Root(txHashes(b.Transactions))
	if wantRoot != b.Header.MerkleRoot {
		return &VerificationFailure{Kind: FailureBadMerkle, Msg: fmt.Sprintf("merkle root mismatch: header=%s computed=%s", b.Header.MerkleRoot, wantRoot)}
	}

	head, ok := ledger.HeadHash()
	if ok && b.Header.PreviousBlockHash != head {
		return &VerificationFailure{Kind: FailureBadParent, Msg: fmt.Sprintf("block does not extend head: parent=%s head=%s", b.Header.PreviousBlockHash, head)}
	}

	if !pow.MeetsTarget(b.Header.Hash(), b.Header.Difficulty) {
		return &VerificationFailure{Kind: FailureBadPoW, Msg: "header hash does not meet target"}
	}

	overlay := &seenOverlay{LedgerView: ledger, seen: make(map[crypto.Hash]txn.Transaction, len(b.Transactions))}
	for _, tx := range b.Transactions {
		if err := txn.VerifyAgainstLedger(tx, overlay, blockReward); err != nil {
			return &VerificationFailure{Kind: FailureTxInvalid, Msg: fmt.Sprintf("transaction %s: %v", tx.Hash(), err)}
		}
		overlay.seen[tx.Hash()] = tx
	}
	return nil
}
