package p2p

import (
	"encoding/json"
	"fmt"

	"github.com/satoshilite/core/internal/block"
	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/ledger"
	"github.com/satoshilite/core/internal/txn"
)

// call sends a request frame to peer and returns the response payload,
// retrying once after invalidating a stale connection (the persistent
// connection may have been closed by the remote end between calls).
func call(peer *Peer, command string, request any) (string, []byte, error) {
	body, err := json.Marshal(request)
	if err != nil {
		return "", nil, fmt.Errorf("p2p: encode %s request: %w", command, err)
	}

	for attempt := 0; attempt < 2; attempt++ {
		conn, err := peer.dial()
		if err != nil {
			return "", nil, fmt.Errorf("p2p: dial %s: %w", peer.Address, err)
		}
		if err := writeFrame(conn, command, body); err != nil {
			peer.invalidate()
			continue
		}
		replyCmd, payload, err := readFrame(conn)
		if err != nil {
			peer.invalidate()
			continue
		}
		if replyCmd == cmdError {
			var errResp errorResponse
			_ = json.Unmarshal(payload, &errResp)
			return "", nil, fmt.Errorf("p2p: peer %s rejected %s: %s", peer.Address, command, errResp.Message)
		}
		return replyCmd, payload, nil
	}
	return "", nil, fmt.Errorf("p2p: %s to %s failed after retry", command, peer.Address)
}

// Handshake performs the Handshake RPC against peer and returns the
// peer's reply; it does not add peer to any peer table.
func Handshake(peer *Peer, selfAddr string, selfHeight int) (HandshakeMessage, error) {
	_, payload, err := call(peer, cmdHandshake, HandshakeMessage{Version: protocolVersion, BlockHeight: selfHeight, ServerAddress: selfAddr})
	if err != nil {
		return HandshakeMessage{}, err
	}
	var resp HandshakeMessage
	if err := json.Unmarshal(payload, &resp); err != nil {
		return HandshakeMessage{}, fmt.Errorf("p2p: decode handshake response: %w", err)
	}
	return resp, nil
}

func GetPeerList(peer *Peer) ([]string, error) {
	_, payload, err := call(peer, cmdGetPeerList, struct{}{})
	if err != nil {
		return nil, err
	}
	var resp GetPeerListResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}
	return resp.Peers, nil
}

func GetChain(peer *Peer) ([]block.Block, error) {
	_, payload, err := call(peer, cmdGetChain, struct{}{})
	if err != nil {
		return nil, err
	}
	var resp GetChainResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}
	return resp.Blocks, nil
}

// PublishBlock sends b via AddBlock to peer; errors are returned for
// the caller to log, never fatal to the publishing loop.
func PublishBlock(peer *Peer, b block.Block) error {
	_, _, err := call(peer, cmdAddBlock, AddBlockRequest{Block: b})
	return err
}

func GetBlock(peer *Peer, hash crypto.Hash) (block.Block, bool, error) {
	_, payload, err := call(peer, cmdGetBlock, GetBlockRequest{Hash: hash})
	if err != nil {
		return block.Block{}, false, err
	}
	var resp GetBlockResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return block.Block{}, false, err
	}
	return resp.Block, resp.Found, nil
}

// AddTransaction submits tx to peer's pending pool.
func AddTransaction(peer *Peer, tx txn.Transaction) error {
	_, _, err := call(peer, cmdAddTx, AddTransactionRequest{Transaction: tx})
	return err
}

// GetTransaction looks up a committed transaction on peer by hash.
func GetTransaction(peer *Peer, hash crypto.Hash) (txn.Transaction, bool, error) {
	_, payload, err := call(peer, cmdGetTx, GetTransactionRequest{Hash: hash})
	if err != nil {
		return txn.Transaction{}, false, err
	}
	var resp GetTransactionResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return txn.Transaction{}, false, err
	}
	return resp.Transaction, resp.Found, nil
}

// GetUTXO lists peer's view of address's spendable outputs.
func GetUTXO(peer *Peer, address txn.Address) ([]ledger.UTXOEntry, error) {
	_, payload, err := call(peer, cmdGetUTXO, GetUTXORequest{Address: address})
	if err != nil {
		return nil, err
	}
	var resp GetUTXOResponse
	if err := json.Unmarshal(payload, &resp); err != nil {
		return nil, err
	}
	return resp.UTXOs, nil
}

// Publish sends b to every peer in the current table snapshot
// (§4.10's "Block publication"). Per-peer failures are collected but
// don't stop delivery to the rest.
func Publish(table *Table, b block.Block) []error {
	var errs []error
	for _, peer := range table.Snapshot() {
		if err := PublishBlock(peer, b); err != nil {
			errs = append(errs, err)
		}
	}
	return errs
}

// SyncResult reports how many blocks were adopted from the best peer
// found during startup sync.
type SyncResult struct {
	PeerAddress string
	Adopted     int
}

// Sync implements §4.10's startup synchronization: handshake every
// seed (skipping self and already-known peers), pick the tallest
// chain, pull it via GetChain, and insert unseen blocks in order,
// aborting the whole batch on the first verification failure (no
// partial rollback of blocks already inserted earlier in the batch,
// per the open-question decision).
func Sync(table *Table, selfAddr string, selfHeight int, seedList []string, insert func(block.Block) error, known func(crypto.Hash) bool) (SyncResult, error) {
	var bestPeer *Peer
	bestHeight := -1

	for _, addr := range seedList {
		if addr == selfAddr || table.Has(addr) {
			continue
		}
		peer := table.Add(addr)
		resp, err := Handshake(peer, selfAddr, selfHeight)
		if err != nil {
			continue
		}
		if resp.BlockHeight > bestHeight {
			bestHeight = resp.BlockHeight
			bestPeer = peer
		}
	}

	if bestPeer == nil || bestHeight <= selfHeight {
		return SyncResult{}, nil
	}

	chain, err := GetChain(bestPeer)
	if err != nil {
		return SyncResult{}, fmt.Errorf("p2p: sync chain fetch from %s: %w", bestPeer.Address, err)
	}

	adopted := 0
	for _, b := range chain {
		if known(b.Hash) {
			continue
		}
		if err := insert(b); err != nil {
			return SyncResult{PeerAddress: bestPeer.Address, Adopted: adopted}, fmt.Errorf("p2p: sync aborted at block %s: %w", b.Hash, err)
		}
		adopted++
	}
	return SyncResult{PeerAddress: bestPeer.Address, Adopted: adopted}, nil
}
