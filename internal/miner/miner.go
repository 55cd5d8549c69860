// Package miner implements mining state and the mine operation (C8):
// draining the pending pool, prepending a coinbase and its immediate
// self-spend, building the header, and running proof-of-work. Grounded
// on the teacher's blockchain/proof.go mining loop, generalized from a
// single static Difficulty constant to a sliding-window difficulty
// retarget, and from "gasless" mining to the spec's coinbase self-spend
// step (see original_source/src/mining/miner.rs, which always prepends
// both transactions before pending work).
package miner

import (
	"context"
	"time"

	"github.com/satoshilite/core/internal/block"
	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/ledger"
	"github.com/satoshilite/core/internal/merkle"
	"github.com/satoshilite/core/internal/pow"
	"github.com/satoshilite/core/internal/txn"
)

// Account is the minimal identity a Miner needs: a keypair to sign the
// coinbase self-spend, and the address that receives block rewards.
type Account struct {
	KeyPair crypto.KeyPair
	Address txn.Address
}

// Miner tracks adjustable difficulty and a sliding window of recent
// block durations used to retarget it.
type Miner struct {
	difficulty            uint8
	blockAdjustmentWindow int
	targetBlockSecs       int64
	durations             []int64 // seconds between consecutive mined blocks
	lastBlockTime         int64
	hasLastBlockTime      bool
	hashCount             uint64
	Account               Account
}

// New builds a Miner starting at initialDifficulty.
func New(account Account, initialDifficulty uint8, blockAdjustmentWindow int, targetBlockSecs int64) *Miner {
	return &Miner{
		difficulty:            initialDifficulty,
		blockAdjustmentWindow: blockAdjustmentWindow,
		targetBlockSecs:       targetBlockSecs,
		Account:               account,
	}
}

func (m *Miner) Difficulty() uint8 { return m.difficulty }

// Result is returned from Mine: either a fully built block, or none on
// cancellation. HashCount is the running total of hash attempts,
// exposed for diagnostics/metrics.
type Result struct {
	Block     block.Block
	Found     bool
	HashCount uint64
}

// nowFn is overridable in tests so header timestamps are deterministic.
var nowFn = func() int64 { return time.Now().Unix() }

// Mine implements §4.8's five-step procedure: drain pending
// transactions, prepend coinbase + self-spend, compute the Merkle
// root, build the header, run PoW (or simulation when fake is true).
func (m *Miner) Mine(ctx context.Context, store ledger.Ledger, prevHash crypto.Hash, reward txn.Satoshi, fake bool) (Result, error) {
	pending := store.ClearPendingTransactions()

	coinbase, err := txn.CreateCoinbase(reward, m.Account.Address)
	if err != nil {
		return Result{}, err
	}

	selfSpend, err := txn.CreatePayToPubKeyHash(
		[]txn.UTXORef{{PrevTxHash: coinbase.Hash(), OutIndex: 0, Value: reward}},
		reward, 0, m.Account.KeyPair, m.Account.Address,
	)
	if err != nil {
		return Result{}, err
	}

	transactions := make([]txn.Transaction, 0, 2+len(pending))
	transactions = append(transactions, coinbase, selfSpend)
	transactions = append(transactions, pending...)

	hashes := make([]crypto.Hash, len(transactions))
	for i, tx := range transactions {
		hashes[i] = tx.Hash()
	}
	root := merkle.Root(hashes)

	timestamp := nowFn()
	headerWithNonce := func(nonce uint32) block.Header {
		return block.Header{
			Version:           1,
			PreviousBlockHash: prevHash,
			MerkleRoot:        root,
			Timestamp:         timestamp,
			Difficulty:        m.difficulty,
			Nonce:             nonce,
			Reward:            reward,
		}
	}

	var nonce uint32
	var found bool
	var attempts uint64

	if fake {
		n, _, ok := pow.SearchSimulated(ctx, func(n uint32) crypto.Hash { return headerWithNonce(n).Hash() })
		nonce, found = n, ok
		attempts = 1
	} else {
		n, _, ok := pow.Search(ctx, m.difficulty, func(n uint32) crypto.Hash { return headerWithNonce(n).Hash() })
		nonce, found = n, ok
		attempts = uint64(nonce) + 1
	}
	m.hashCount += attempts

	if !found {
		// Cancelled: the transactions we drained from the pool are put
		// back so they aren't silently lost to a lost mining race.
		for _, tx := range pending {
			store.AddPendingTransaction(tx)
		}
		return Result{HashCount: m.hashCount}, nil
	}

	mined := block.New(headerWithNonce(nonce), transactions)
	m.recordBlockTime(timestamp)
	return Result{Block: mined, Found: true, HashCount: m.hashCount}, nil
}

func (m *Miner) recordBlockTime(timestamp int64) {
	if m.hasLastBlockTime {
		m.durations = append(m.durations, timestamp-m.lastBlockTime)
		if len(m.durations) > m.blockAdjustmentWindow {
			m.durations = m.durations[len(m.durations)-m.blockAdjustmentWindow:]
		}
	}
	m.lastBlockTime = timestamp
	m.hasLastBlockTime = true
}

// AdjustDifficulty compares the average of the tracked sliding window
// of block durations against targetBlockSecs, nudging difficulty by ±1
// when outside ±20% of target. Intended to be called once every
// blockAdjustmentWindow committed blocks; a no-op until the window has
// filled.
func (m *Miner) AdjustDifficulty() {
	if len(m.durations) < m.blockAdjustmentWindow {
		return
	}

	var total int64
	for _, d := range m.durations {
		total += d
	}
	avg := total / int64(len(m.durations))

	lower := m.targetBlockSecs * 80 / 100
	upper := m.targetBlockSecs * 120 / 100

	switch {
	case avg < lower && m.difficulty < 255:
		m.difficulty++
	case avg > upper && m.difficulty > 1:
		m.difficulty--
	}
}
