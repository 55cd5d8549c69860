// Package badgerstore implements ledger.Ledger over a Badger key-value
// database, the persistent counterpart to ledger.MemStore. Grounded on
// the teacher's blockchain.go (badger.Open/View/Update usage, "lh" head
// pointer, hash-keyed block storage) and utxo.go (prefix-scanned UTXO
// set), generalized to the spec's Ledger interface and key schema.
package badgerstore

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"strings"
	"sync"

	"github.com/dgraph-io/badger/v4"

	"github.com/satoshilite/core/internal/block"
	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/ledger"
	"github.com/satoshilite/core/internal/txn"
)

// Key prefixes. Blocks are keyed directly by hash (no prefix, matching
// the teacher's scheme) since block hashes never collide with the
// fixed-prefix keys below.
const (
	headKey        = "lh"
	chainPrefix    = "chain-index/"
	utxoPrefix     = "utxo-"
	addrPrefix     = "addr-"
	versionKey     = "version"
)

// Store is a Badger-backed Ledger. Chain, transaction and UTXO reads and
// writes go through Badger transactions, which need no additional
// locking; the in-memory pending pool is guarded by its own mutex.
type Store struct {
	db      *badger.DB
	version string
	pending pendingPool
}

// Open wraps an already-opened *badger.DB. Callers own the DB's
// lifecycle (Close, directory management); Store itself performs no
// filesystem setup, unlike the teacher's InitBlockChain which also
// decided on a DB path.
func Open(db *badger.DB, version string) *Store {
	return &Store{db: db, version: version}
}

func init() {
	gob.Register(block.Block{})
}

func utxoDBKey(txHash crypto.Hash, outIndex uint32) []byte {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], outIndex)
	return append(append([]byte(utxoPrefix), txHash[:]...), idx[:]...)
}

func addrDBKey(addr txn.Address, txHash crypto.Hash) []byte {
	return append(append([]byte(addrPrefix), addr[:]...), txHash[:]...)
}

func chainDBKey(hash crypto.Hash) []byte {
	return append([]byte(chainPrefix), hash[:]...)
}

func encodeChain(chain []crypto.Hash) []byte {
	buf := make([]byte, 0, len(chain)*32)
	for _, h := range chain {
		buf = append(buf, h[:]...)
	}
	return buf
}

func decodeChain(raw []byte) []crypto.Hash {
	chain := make([]crypto.Hash, 0, len(raw)/32)
	for i := 0; i+32 <= len(raw); i += 32 {
		var h crypto.Hash
		copy(h[:], raw[i:i+32])
		chain = append(chain, h)
	}
	return chain
}

func encodeUTXO(entry ledger.UTXOEntry) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(entry); err != nil {
		panic(fmt.Sprintf("badgerstore: encode utxo: %v", err))
	}
	return buf.Bytes()
}

func decodeUTXO(raw []byte) (ledger.UTXOEntry, error) {
	var entry ledger.UTXOEntry
	err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&entry)
	return entry, err
}

func encodeBlock(b block.Block) []byte {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(b); err != nil {
		panic(fmt.Sprintf("badgerstore: encode block: %v", err))
	}
	return buf.Bytes()
}

func decodeBlock(raw []byte) (block.Block, error) {
	var b block.Block
	err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&b)
	return b, err
}

// InsertBlock mirrors ledger.MemStore.InsertBlock's chain-index
// extension and UTXO maintenance but against Badger, all inside one
// read-write transaction.
func (s *Store) InsertBlock(b block.Block) error {
	return s.db.Update(func(tx *badger.Txn) error {
		if _, err := tx.Get(b.Hash[:]); err == nil {
			return &ledger.Error{Kind: ledger.ErrDuplicateBlock, Msg: "block already present"}
		}

		var chain []crypto.Hash
		if item, err := tx.Get(chainDBKey(b.Header.PreviousBlockHash)); err == nil {
			raw, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			chain = append(decodeChain(raw), b.Hash)
		} else {
			chain = []crypto.Hash{b.Hash}
		}

		if err := tx.Set(b.Hash[:], encodeBlock(b)); err != nil {
			return err
		}
		if err := tx.Set(chainDBKey(b.Hash), encodeChain(chain)); err != nil {
			return err
		}

		for _, t := range b.Transactions {
			if err := addTransactionTx(tx, t); err != nil {
				return err
			}
			for _, in := range t.Inputs {
				if in.IsCoinbase() {
					continue
				}
				// UTXO keys carry the receiver as a suffix, so the spent
				// entry is found by its (tx hash, index) prefix.
				prefix := utxoDBKey(in.UTXOTxHash, in.UTXOOutIndex)
				opts := badger.DefaultIteratorOptions
				opts.Prefix = prefix
				it := tx.NewIterator(opts)
				var spent [][]byte
				for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
					spent = append(spent, it.Item().KeyCopy(nil))
				}
				it.Close()
				for _, key := range spent {
					if err := tx.Delete(key); err != nil {
						return err
					}
				}
			}
			for idx, out := range t.Outputs {
				entry := ledger.UTXOEntry{TxHash: t.Hash(), OutIndex: uint32(idx), Value: out.Value}
				ownedKey := append(utxoDBKey(entry.TxHash, entry.OutIndex), out.Receiver[:]...)
				if err := tx.Set(ownedKey, encodeUTXO(entry)); err != nil {
					return err
				}
			}
		}

		return resolveForkTx(tx)
	})
}

func addTransactionTx(tx *badger.Txn, t txn.Transaction) error {
	hash := t.Hash()
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(t); err != nil {
		return err
	}
	if err := tx.Set(append([]byte("tx-"), hash[:]...), buf.Bytes()); err != nil {
		return err
	}
	if !t.IsCoinbase() {
		if err := tx.Set(addrDBKey(t.Sender, hash), nil); err != nil {
			return err
		}
	}
	for _, out := range t.Outputs {
		if err := tx.Set(addrDBKey(out.Receiver, hash), nil); err != nil {
			return err
		}
	}
	return nil
}

// resolveForkTx re-scans every chain-index entry to find the longest
// chain, the same full-scan approach as ledger.MemStore.resolveForkLocked.
// There is one chain-index entry per stored block, so each call is linear
// in the number of blocks. Among equally long chains the first in key
// order wins.
func resolveForkTx(tx *badger.Txn) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(chainPrefix)
	it := tx.NewIterator(opts)
	defer it.Close()

	var bestHash crypto.Hash
	bestLen := -1
	for it.Seek([]byte(chainPrefix)); it.ValidForPrefix([]byte(chainPrefix)); it.Next() {
		raw, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		chain := decodeChain(raw)
		if len(chain) > bestLen {
			bestLen = len(chain)
			bestHash = chain[len(chain)-1]
		}
	}
	if bestLen < 0 {
		return nil
	}
	return tx.Set([]byte(headKey), bestHash[:])
}

func (s *Store) ResolveFork() {
	_ = s.db.Update(func(tx *badger.Txn) error { return resolveForkTx(tx) })
}

func (s *Store) BlockHeight() int {
	chain, ok := s.headChain()
	if !ok {
		return 0
	}
	return len(chain)
}

func (s *Store) headChain() ([]crypto.Hash, bool) {
	var chain []crypto.Hash
	found := false
	_ = s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get([]byte(headKey))
		if err != nil {
			return nil
		}
		headRaw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		var head crypto.Hash
		copy(head[:], headRaw)

		item, err = tx.Get(chainDBKey(head))
		if err != nil {
			return nil
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		chain = decodeChain(raw)
		found = true
		return nil
	})
	return chain, found
}

func (s *Store) Head() (block.Block, bool) {
	chain, ok := s.headChain()
	if !ok || len(chain) == 0 {
		return block.Block{}, false
	}
	return s.blockByHash(chain[len(chain)-1])
}

func (s *Store) HeadHash() (crypto.Hash, bool) {
	chain, ok := s.headChain()
	if !ok || len(chain) == 0 {
		return crypto.Hash{}, false
	}
	return chain[len(chain)-1], true
}

func (s *Store) blockByHash(hash crypto.Hash) (block.Block, bool) {
	var b block.Block
	found := false
	_ = s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(hash[:])
		if err != nil {
			return nil
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		decoded, err := decodeBlock(raw)
		if err != nil {
			return err
		}
		b = decoded
		found = true
		return nil
	})
	return b, found
}

func (s *Store) GetBlocks() []block.Block {
	chain, ok := s.headChain()
	if !ok {
		return nil
	}
	blocks := make([]block.Block, 0, len(chain))
	for _, hash := range chain {
		if b, ok := s.blockByHash(hash); ok {
			blocks = append(blocks, b)
		}
	}
	return blocks
}

func (s *Store) GetTransaction(hash crypto.Hash) (txn.Transaction, bool) {
	var t txn.Transaction
	found := false
	_ = s.db.View(func(tx *badger.Txn) error {
		item, err := tx.Get(append([]byte("tx-"), hash[:]...))
		if err != nil {
			return nil
		}
		raw, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&t); err != nil {
			return err
		}
		found = true
		return nil
	})
	return t, found
}

func (s *Store) AddTransaction(t txn.Transaction) {
	_ = s.db.Update(func(tx *badger.Txn) error { return addTransactionTx(tx, t) })
}

func (s *Store) RemoveTransaction(hash crypto.Hash) {
	_ = s.db.Update(func(tx *badger.Txn) error { return tx.Delete(append([]byte("tx-"), hash[:]...)) })
}

func (s *Store) AddUTXO(entry ledger.UTXOEntry, receiver txn.Address) {
	_ = s.db.Update(func(tx *badger.Txn) error {
		key := append(utxoDBKey(entry.TxHash, entry.OutIndex), receiver[:]...)
		return tx.Set(key, encodeUTXO(entry))
	})
}

func (s *Store) RemoveUTXO(txHash crypto.Hash, outIndex uint32) {
	_ = s.db.Update(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := utxoDBKey(txHash, outIndex)
		opts.Prefix = prefix
		it := tx.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if err := tx.Delete(it.Item().KeyCopy(nil)); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *Store) IsUTXO(txHash crypto.Hash, outIndex uint32) bool {
	found := false
	_ = s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		prefix := utxoDBKey(txHash, outIndex)
		opts.Prefix = prefix
		it := tx.NewIterator(opts)
		defer it.Close()
		it.Seek(prefix)
		found = it.ValidForPrefix(prefix)
		return nil
	})
	return found
}

func (s *Store) GetUTXO(addr txn.Address) []ledger.UTXOEntry {
	var entries []ledger.UTXOEntry
	_ = s.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = []byte(utxoPrefix)
		it := tx.NewIterator(opts)
		defer it.Close()
		for it.Seek([]byte(utxoPrefix)); it.ValidForPrefix([]byte(utxoPrefix)); it.Next() {
			key := it.Item().KeyCopy(nil)
			if !bytes.HasSuffix(key, addr[:]) {
				continue
			}
			raw, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			entry, err := decodeUTXO(raw)
			if err != nil {
				return err
			}
			entries = append(entries, entry)
		}
		return nil
	})
	return entries
}

func (s *Store) GetTransactionHashes(addr txn.Address) []crypto.Hash {
	var hashes []crypto.Hash
	_ = s.db.View(func(tx *badger.Txn) error {
		prefix := append([]byte(addrPrefix), addr[:]...)
		opts := badger.DefaultIteratorOptions
		opts.Prefix = prefix
		it := tx.NewIterator(opts)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			key := it.Item().KeyCopy(nil)
			if len(key) < 32 {
				continue
			}
			var h crypto.Hash
			copy(h[:], key[len(key)-32:])
			hashes = append(hashes, h)
		}
		return nil
	})
	return hashes
}

// pending transactions are held in-process (not persisted): a crash
// loses the mempool, matching the teacher's own design of never
// persisting anything it could instead regenerate from peers.
type pendingPool struct {
	mu    sync.Mutex
	items []txn.Transaction
}

func (s *Store) AddPendingTransaction(t txn.Transaction) {
	s.pending.mu.Lock()
	defer s.pending.mu.Unlock()
	s.pending.items = append(s.pending.items, t)
}

func (s *Store) GetPendingTransactions() []txn.Transaction {
	s.pending.mu.Lock()
	defer s.pending.mu.Unlock()
	return append([]txn.Transaction{}, s.pending.items...)
}

func (s *Store) ClearPendingTransactions() []txn.Transaction {
	s.pending.mu.Lock()
	defer s.pending.mu.Unlock()
	drained := s.pending.items
	s.pending.items = nil
	return drained
}

func (s *Store) GetVersion() string { return s.version }

// unlockRetry reports whether err mentions Badger's LOCK file, the error
// an open fails with when a lock file was left behind by an unclean
// shutdown. It neither removes the file nor reopens the database.
func unlockRetry(err error) bool {
	return err != nil && strings.Contains(err.Error(), "LOCK")
}
