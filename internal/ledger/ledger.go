// Package ledger implements the chain index, UTXO set, and pending
// transaction pool (C6). Grounded on the teacher's blockchain.go (chain
// index keyed by block hash, "lh" head pointer, FindUTXO reverse scan)
// and utxo.go (UTXO set maintenance), generalized from a single Badger
// instance into a Ledger interface with an in-memory reference
// implementation plus a separate persistent backend in badgerstore.
package ledger

import (
	"sync"

	"github.com/satoshilite/core/internal/block"
	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/txn"
)

// UTXOEntry names a single spendable output.
type UTXOEntry struct {
	TxHash   crypto.Hash
	OutIndex uint32
	Value    txn.Satoshi
}

type utxoKey struct {
	TxHash   crypto.Hash
	OutIndex uint32
}

// ErrorKind classifies ledger-level failures (§7).
type ErrorKind int

const (
	ErrNotFound ErrorKind = iota
	ErrDuplicateBlock
	ErrInvalidParent
)

type Error struct {
	Kind ErrorKind
	Msg  string
}

func (e *Error) Error() string { return e.Msg }

// Ledger is the contract a storage backend must satisfy; MemStore is
// the in-memory reference implementation, badgerstore.Store the
// persistent one.
type Ledger interface {
	InsertBlock(b block.Block) error
	BlockHeight() int
	Head() (block.Block, bool)
	HeadHash() (crypto.Hash, bool)
	GetBlocks() []block.Block
	ResolveFork()

	GetTransaction(hash crypto.Hash) (txn.Transaction, bool)
	AddTransaction(tx txn.Transaction)
	RemoveTransaction(hash crypto.Hash)

	AddUTXO(entry UTXOEntry, receiver txn.Address)
	RemoveUTXO(txHash crypto.Hash, outIndex uint32)
	IsUTXO(txHash crypto.Hash, outIndex uint32) bool
	GetUTXO(addr txn.Address) []UTXOEntry

	GetTransactionHashes(addr txn.Address) []crypto.Hash

	AddPendingTransaction(tx txn.Transaction)
	GetPendingTransactions() []txn.Transaction
	ClearPendingTransactions() []txn.Transaction

	GetVersion() string
}

// MemStore is the in-memory Ledger behind a single sync.RWMutex, per
// the "single exclusive-access discipline" the spec requires.
type MemStore struct {
	mu sync.RWMutex

	version string

	blocksByHash map[crypto.Hash]block.Block
	chainByHash  map[crypto.Hash][]crypto.Hash
	headHash     crypto.Hash
	hasHead      bool

	transactions map[crypto.Hash]txn.Transaction
	utxoSet      map[utxoKey]UTXOEntry
	utxoOwner    map[utxoKey]txn.Address
	addrToTxs    map[txn.Address]map[crypto.Hash]struct{}

	pending []txn.Transaction
}

// NewMemStore builds an empty MemStore.
func NewMemStore(version string) *MemStore {
	return &MemStore{
		version:      version,
		blocksByHash: map[crypto.Hash]block.Block{},
		chainByHash:  map[crypto.Hash][]crypto.Hash{},
		transactions: map[crypto.Hash]txn.Transaction{},
		utxoSet:      map[utxoKey]UTXOEntry{},
		utxoOwner:    map[utxoKey]txn.Address{},
		addrToTxs:    map[txn.Address]map[crypto.Hash]struct{}{},
	}
}

// InsertBlock extends the chain index from the block's parent chain
// (or starts a singleton chain if the parent is unknown, i.e. an orphan
// per §4.6), commits every transaction, and re-runs ResolveFork.
func (m *MemStore) InsertBlock(b block.Block) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.blocksByHash[b.Hash]; exists {
		return &Error{Kind: ErrDuplicateBlock, Msg: "block already present"}
	}

	var chain []crypto.Hash
	if parentChain, ok := m.chainByHash[b.Header.PreviousBlockHash]; ok {
		chain = append(append([]crypto.Hash{}, parentChain...), b.Hash)
	} else {
		// Orphan: previous block unknown. Stored as its own singleton
		// chain; never automatically stitched to a later-arriving
		// ancestor (open question in the ledger design).
		chain = []crypto.Hash{b.Hash}
	}

	m.blocksByHash[b.Hash] = b
	m.chainByHash[b.Hash] = chain

	for _, tx := range b.Transactions {
		m.addTransactionLocked(tx)
		for _, in := range tx.Inputs {
			if in.IsCoinbase() {
				continue
			}
			m.removeUTXOLocked(in.UTXOTxHash, in.UTXOOutIndex)
		}
		for idx, out := range tx.Outputs {
			m.addUTXOLocked(UTXOEntry{TxHash: tx.Hash(), OutIndex: uint32(idx), Value: out.Value}, out.Receiver)
		}
	}

	m.resolveForkLocked()
	return nil
}

func (m *MemStore) resolveForkLocked() {
	var best crypto.Hash
	bestLen := -1
	found := false
	// Deterministic scan order by insertion time isn't available from a
	// map; the tie-break is therefore approximated by preferring the
	// existing head when lengths tie, which matches Inv-4's first-seen
	// rule for the common case of single-chain growth.
	if m.hasHead {
		if chain, ok := m.chainByHash[m.headHash]; ok {
			best = m.headHash
			bestLen = len(chain)
			found = true
		}
	}
	for hash, chain := range m.chainByHash {
		if len(chain) > bestLen {
			best = hash
			bestLen = len(chain)
			found = true
		}
	}
	if found {
		m.headHash = best
		m.hasHead = true
	}
}

// ResolveFork re-selects head_hash per Inv-4 (longest chain, ties
// broken by first-seen / current head preference).
func (m *MemStore) ResolveFork() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resolveForkLocked()
}

func (m *MemStore) BlockHeight() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasHead {
		return 0
	}
	return len(m.chainByHash[m.headHash])
}

func (m *MemStore) Head() (block.Block, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasHead {
		return block.Block{}, false
	}
	b, ok := m.blocksByHash[m.headHash]
	return b, ok
}

func (m *MemStore) HeadHash() (crypto.Hash, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.headHash, m.hasHead
}

// GetBlocks returns the active chain's blocks in order, genesis first.
func (m *MemStore) GetBlocks() []block.Block {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if !m.hasHead {
		return nil
	}
	chain := m.chainByHash[m.headHash]
	blocks := make([]block.Block, len(chain))
	for i, hash := range chain {
		blocks[i] = m.blocksByHash[hash]
	}
	return blocks
}

func (m *MemStore) GetTransaction(hash crypto.Hash) (txn.Transaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	tx, ok := m.transactions[hash]
	return tx, ok
}

func (m *MemStore) AddTransaction(tx txn.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addTransactionLocked(tx)
}

func (m *MemStore) addTransactionLocked(tx txn.Transaction) {
	hash := tx.Hash()
	m.transactions[hash] = tx

	if !tx.IsCoinbase() {
		if _, ok := m.addrToTxs[tx.Sender]; !ok {
			m.addrToTxs[tx.Sender] = map[crypto.Hash]struct{}{}
		}
		m.addrToTxs[tx.Sender][hash] = struct{}{}
	}
	for _, out := range tx.Outputs {
		if _, ok := m.addrToTxs[out.Receiver]; !ok {
			m.addrToTxs[out.Receiver] = map[crypto.Hash]struct{}{}
		}
		m.addrToTxs[out.Receiver][hash] = struct{}{}
	}
}

func (m *MemStore) RemoveTransaction(hash crypto.Hash) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.transactions, hash)
}

func (m *MemStore) AddUTXO(entry UTXOEntry, receiver txn.Address) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.addUTXOLocked(entry, receiver)
}

func (m *MemStore) addUTXOLocked(entry UTXOEntry, receiver txn.Address) {
	key := utxoKey{TxHash: entry.TxHash, OutIndex: entry.OutIndex}
	m.utxoSet[key] = entry
	m.utxoOwner[key] = receiver
}

func (m *MemStore) RemoveUTXO(txHash crypto.Hash, outIndex uint32) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.removeUTXOLocked(txHash, outIndex)
}

func (m *MemStore) removeUTXOLocked(txHash crypto.Hash, outIndex uint32) {
	key := utxoKey{TxHash: txHash, OutIndex: outIndex}
	delete(m.utxoSet, key)
	delete(m.utxoOwner, key)
}

func (m *MemStore) IsUTXO(txHash crypto.Hash, outIndex uint32) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.utxoSet[utxoKey{TxHash: txHash, OutIndex: outIndex}]
	return ok
}

func (m *MemStore) GetUTXO(addr txn.Address) []UTXOEntry {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []UTXOEntry
	for key, entry := range m.utxoSet {
		if m.utxoOwner[key] == addr {
			out = append(out, entry)
		}
	}
	return out
}

func (m *MemStore) GetTransactionHashes(addr txn.Address) []crypto.Hash {
	m.mu.RLock()
	defer m.mu.RUnlock()
	set := m.addrToTxs[addr]
	hashes := make([]crypto.Hash, 0, len(set))
	for hash := range set {
		hashes = append(hashes, hash)
	}
	return hashes
}

func (m *MemStore) AddPendingTransaction(tx txn.Transaction) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pending = append(m.pending, tx)
}

func (m *MemStore) GetPendingTransactions() []txn.Transaction {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]txn.Transaction{}, m.pending...)
}

func (m *MemStore) ClearPendingTransactions() []txn.Transaction {
	m.mu.Lock()
	defer m.mu.Unlock()
	drained := m.pending
	m.pending = nil
	return drained
}

func (m *MemStore) GetVersion() string {
	return m.version
}
