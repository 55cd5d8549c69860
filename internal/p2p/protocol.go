package p2p

import (
	"github.com/satoshilite/core/internal/block"
	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/ledger"
	"github.com/satoshilite/core/internal/txn"
)

// Command names double as the frame's fixed 12-byte prefix.
const (
	cmdHandshake      = "handshake"
	cmdGetPeerList    = "getpeers"
	cmdGetChain       = "getchain"
	cmdAddBlock       = "addblock"
	cmdGetBlock       = "getblock"
	cmdAddTx          = "addtx"
	cmdGetTx          = "gettx"
	cmdGetUTXO        = "getutxo"
)

// HandshakeRequest/Response share a shape per the op table.
type HandshakeMessage struct {
	Version       int    `json:"version"`
	BlockHeight   int    `json:"block_height"`
	ServerAddress string `json:"server_address"`
}

type GetPeerListResponse struct {
	Peers []string `json:"peers"`
}

type GetChainResponse struct {
	Blocks []block.Block `json:"blocks"`
}

type AddBlockRequest struct {
	Block block.Block `json:"block"`
}

type GetBlockRequest struct {
	Hash crypto.Hash `json:"hash"`
}

type GetBlockResponse struct {
	Block block.Block `json:"block"`
	Found bool        `json:"found"`
}

type AddTransactionRequest struct {
	Transaction txn.Transaction `json:"transaction"`
}

type GetTransactionRequest struct {
	Hash crypto.Hash `json:"hash"`
}

type GetTransactionResponse struct {
	Transaction txn.Transaction `json:"transaction"`
	Found       bool            `json:"found"`
}

type GetUTXORequest struct {
	Address txn.Address `json:"address"`
}

type GetUTXOResponse struct {
	UTXOs []ledger.UTXOEntry `json:"utxos"`
}

// errorResponse carries a BadRequest-style failure back to the caller
// instead of the expected response payload; the receiving side
// distinguishes it by a reply command equal to cmdError.
type errorResponse struct {
	Message string `json:"message"`
}

const cmdError = "error"
