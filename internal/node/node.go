// Package node implements the main loop (C9): racing a mining attempt
// against inbound network blocks, verifying and committing whichever
// wins, and retargeting difficulty. Grounded on the teacher's
// network.go StartServer/HandleBlock flow (block arrival triggers
// AddBlock, mining triggers broadcast) and blockchain.go's single
// chain-mutation path, generalized from the teacher's unconditional
// single-threaded acceptance into the spec's explicit mining-vs-network
// race with cancellation.
package node

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/satoshilite/core/internal/block"
	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/ledger"
	"github.com/satoshilite/core/internal/merkle"
	"github.com/satoshilite/core/internal/miner"
	"github.com/satoshilite/core/internal/p2p"
	"github.com/satoshilite/core/internal/txn"
)

// genesisTimestamp is fixed so independently-started nodes derive an
// identical genesis block hash (§6).
const genesisTimestamp = 1231006505 // 2009-01-03T18:15:05Z

// Genesis builds the deterministic genesis block: previous hash zero,
// reward zero, single coinbase transaction to the zero address.
func Genesis() block.Block {
	cb, err := txn.CreateCoinbaseDeterministic(0, txn.Address{})
	if err != nil {
		// CreateCoinbaseDeterministic never touches crypto/rand, so this
		// path is unreachable; a panic here would indicate a build bug.
		panic(err)
	}
	header := block.Header{
		Version:           1,
		PreviousBlockHash: crypto.ZeroHash,
		Timestamp:         genesisTimestamp,
		Difficulty:        0,
		Nonce:             0,
		Reward:            0,
	}
	transactions := []txn.Transaction{cb}
	return blockWithRoot(header, transactions)
}

func blockWithRoot(header block.Header, transactions []txn.Transaction) block.Block {
	hashes := make([]crypto.Hash, len(transactions))
	for i, tx := range transactions {
		hashes[i] = tx.Hash()
	}
	header.MerkleRoot = merkle.Root(hashes)
	return block.New(header, transactions)
}

// Node wires a Ledger, a Miner, and a p2p peer table together and
// drives the main loop. It satisfies p2p.NodeView so the RPC server can
// reach into it without an import cycle.
type Node struct {
	Ledger             ledger.Ledger
	Miner              *miner.Miner
	Peers              *p2p.Table
	Log                zerolog.Logger
	Reward             txn.Satoshi
	BlockTimeSecs      int64
	AdjustmentInterval int
	FakeMining         bool

	announce chan block.Block

	mu        sync.RWMutex
	hashIndex map[crypto.Hash]block.Block

	committedSinceRetarget int
}

// New builds a Node ready to run. Callers are responsible for having
// inserted a genesis block into ledger before calling Run.
func New(store ledger.Ledger, m *miner.Miner, peers *p2p.Table, log zerolog.Logger, reward txn.Satoshi, blockTimeSecs int64, adjustmentInterval int, fakeMining bool) *Node {
	return &Node{
		Ledger:             store,
		Miner:              m,
		Peers:              peers,
		Log:                log.With().Str("component", "node").Logger(),
		Reward:             reward,
		BlockTimeSecs:      blockTimeSecs,
		AdjustmentInterval: adjustmentInterval,
		FakeMining:         fakeMining,
		announce:           make(chan block.Block, 16),
		hashIndex:          map[crypto.Hash]block.Block{},
	}
}

func (n *Node) BlockHeight() int { return n.Ledger.BlockHeight() }

func (n *Node) Blocks() []block.Block { return n.Ledger.GetBlocks() }

// GetBlockByHash looks hash up among the blocks committed through
// InsertBlock, then on the ledger's active chain (which also holds blocks
// inserted into the ledger directly, such as the genesis block).
func (n *Node) GetBlockByHash(hash crypto.Hash) (block.Block, bool) {
	n.mu.RLock()
	b, ok := n.hashIndex[hash]
	n.mu.RUnlock()
	if ok {
		return b, true
	}
	for _, b := range n.Ledger.GetBlocks() {
		if b.Hash == hash {
			return b, true
		}
	}
	return block.Block{}, false
}

// AnnounceBlock pushes an externally-received block onto the
// multi-producer block-announce channel. A full channel drops the
// announcement rather than blocking the RPC goroutine that delivered
// it; the sender's peer will be behind by one block until its next
// announcement or a future sync.
func (n *Node) AnnounceBlock(b block.Block) {
	select {
	case n.announce <- b:
	default:
		n.Log.Warn().Str("hash", b.Hash.String()).Msg("announce channel full, dropping block")
	}
}

func (n *Node) InsertBlock(b block.Block) error {
	if err := n.Ledger.InsertBlock(b); err != nil {
		return err
	}
	n.indexBlock(b)
	return nil
}

func (n *Node) indexBlock(b block.Block) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.hashIndex[b.Hash] = b
}

func (n *Node) AddPendingTransaction(tx txn.Transaction) { n.Ledger.AddPendingTransaction(tx) }

func (n *Node) GetTransaction(hash crypto.Hash) (txn.Transaction, bool) {
	return n.Ledger.GetTransaction(hash)
}

func (n *Node) GetUTXO(addr txn.Address) []ledger.UTXOEntry { return n.Ledger.GetUTXO(addr) }

// Run executes the main loop (§4.9) until ctx is cancelled.
func (n *Node) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err := n.runIteration(ctx); err != nil {
			return err
		}
	}
}

func (n *Node) runIteration(parent context.Context) error {
	prevHash, _ := n.Ledger.HeadHash()

	ctx, cancel := context.WithCancel(parent)
	defer cancel()

	group, gctx := errgroup.WithContext(ctx)

	miningResult := make(chan miner.Result, 1)
	group.Go(func() error {
		result, err := n.Miner.Mine(gctx, n.Ledger, prevHash, n.Reward, n.FakeMining)
		if err != nil {
			return err
		}
		miningResult <- result
		return nil
	})

	netResult := make(chan block.Block, 1)
	group.Go(func() error {
		n.runNetworkRound(ctx, prevHash, netResult)
		return nil
	})

	var winner block.Block
	var haveWinner bool
	var minerWon bool

	select {
	case <-parent.Done():
		cancel()
		_ = group.Wait()
		return parent.Err()
	case result := <-miningResult:
		cancel()
		_ = group.Wait()
		if result.Found {
			winner, haveWinner, minerWon = result.Block, true, true
		}
	case b := <-netResult:
		cancel()
		_ = group.Wait()
		winner, haveWinner, minerWon = b, true, false
	}

	if !haveWinner {
		return nil
	}

	if minerWon {
		for _, err := range p2p.Publish(n.Peers, winner) {
			n.Log.Warn().Err(err).Msg("failed to publish mined block to a peer")
		}
	}

	if err := block.Verify(winner, n.Ledger, n.Reward); err != nil {
		n.Log.Warn().Err(err).Str("hash", winner.Hash.String()).Msg("winning block failed verification, dropping")
		for _, tx := range winner.Transactions {
			n.Ledger.RemoveTransaction(tx.Hash())
		}
		return nil
	}

	if err := n.InsertBlock(winner); err != nil {
		n.Log.Warn().Err(err).Msg("failed to commit winning block")
		return nil
	}

	n.committedSinceRetarget++
	if n.AdjustmentInterval > 0 && n.committedSinceRetarget%n.AdjustmentInterval == 0 {
		n.Miner.AdjustDifficulty()
	}
	return nil
}

// runNetworkRound waits for an announced block that extends prevHash,
// self-aborting after BlockTimeSecs if nothing qualifying arrives.
// Non-extending announcements are logged and the wait continues.
func (n *Node) runNetworkRound(ctx context.Context, prevHash crypto.Hash, out chan<- block.Block) {
	timeout := time.Duration(n.BlockTimeSecs) * time.Second
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			return
		case b := <-n.announce:
			if b.Header.PreviousBlockHash == prevHash {
				out <- b
				return
			}
			n.Log.Warn().Str("hash", b.Hash.String()).Msg("received block does not extend current head, ignoring")
		}
	}
}

