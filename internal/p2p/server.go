package p2p

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/satoshilite/core/internal/block"
	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/ledger"
	"github.com/satoshilite/core/internal/txn"
)

// NodeView is the surface the p2p server and sync routine need from
// the node, kept as a narrow interface (rather than importing package
// node directly) to avoid a p2p <-> node import cycle; node.Node
// satisfies it structurally.
type NodeView interface {
	BlockHeight() int
	Blocks() []block.Block
	GetBlockByHash(hash crypto.Hash) (block.Block, bool)
	InsertBlock(b block.Block) error
	AnnounceBlock(b block.Block)
	AddPendingTransaction(tx txn.Transaction)
	GetTransaction(hash crypto.Hash) (txn.Transaction, bool)
	GetUTXO(addr txn.Address) []ledger.UTXOEntry
}

const protocolVersion = 1

// Server is one node's RPC listener plus its peer table.
type Server struct {
	SelfAddress string
	Peers       *Table
	Node        NodeView
	Log         zerolog.Logger

	listener net.Listener
}

func NewServer(selfAddress string, node NodeView, log zerolog.Logger) *Server {
	return &Server{
		SelfAddress: selfAddress,
		Peers:       NewTable(selfAddress),
		Node:        node,
		Log:         log.With().Str("component", "p2p").Logger(),
	}
}

// ListenAndServe binds the listener and accepts connections until ln
// is closed or the process exits; each connection is served in its
// own goroutine, per the teacher's StartServer/HandleConnection split.
func (s *Server) ListenAndServe() error {
	ln, err := net.Listen("tcp", s.SelfAddress)
	if err != nil {
		return fmt.Errorf("p2p: listen: %w", err)
	}
	s.listener = ln

	for {
		conn, err := ln.Accept()
		if err != nil {
			return err
		}
		go s.handleConnection(conn)
	}
}

func (s *Server) Close() error {
	if s.listener == nil {
		return nil
	}
	return s.listener.Close()
}

func (s *Server) handleConnection(conn net.Conn) {
	defer conn.Close()

	// Serve request frames until the client closes the connection, so a
	// peer's cached connection can carry sequential RPCs.
	for {
		requestID := uuid.NewString()
		log := s.Log.With().Str("request_id", requestID).Str("remote", conn.RemoteAddr().String()).Logger()

		command, payload, err := readFrame(conn)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				log.Warn().Err(err).Msg("failed to read request frame")
			}
			return
		}

		replyCmd, reply, err := s.dispatch(command, payload, conn.RemoteAddr().String())
		if err != nil {
			log.Warn().Err(err).Str("command", command).Msg("request failed")
			body, _ := json.Marshal(errorResponse{Message: err.Error()})
			if err := writeFrame(conn, cmdError, body); err != nil {
				return
			}
			continue
		}
		log.Debug().Str("command", command).Msg("request handled")
		if err := writeFrame(conn, replyCmd, reply); err != nil {
			log.Warn().Err(err).Msg("failed to write response frame")
			return
		}
	}
}

func (s *Server) dispatch(command string, payload []byte, remoteAddr string) (string, []byte, error) {
	switch command {
	case cmdHandshake:
		var req HandshakeMessage
		if err := json.Unmarshal(payload, &req); err != nil {
			return "", nil, fmt.Errorf("bad handshake payload: %w", err)
		}
		if req.Version != protocolVersion {
			s.Log.Warn().Int("peer_version", req.Version).Msg("version mismatch")
		}
		if req.ServerAddress != "" && !s.Peers.Has(req.ServerAddress) {
			s.Peers.Add(req.ServerAddress)
		}
		resp := HandshakeMessage{Version: protocolVersion, BlockHeight: s.Node.BlockHeight(), ServerAddress: s.SelfAddress}
		body, err := json.Marshal(resp)
		return cmdHandshake, body, err

	case cmdGetPeerList:
		body, err := json.Marshal(GetPeerListResponse{Peers: s.Peers.Addresses()})
		return cmdGetPeerList, body, err

	case cmdGetChain:
		body, err := json.Marshal(GetChainResponse{Blocks: s.Node.Blocks()})
		return cmdGetChain, body, err

	case cmdAddBlock:
		var req AddBlockRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return "", nil, fmt.Errorf("bad add-block payload: %w", err)
		}
		s.Node.AnnounceBlock(req.Block)
		return cmdAddBlock, nil, nil

	case cmdGetBlock:
		var req GetBlockRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return "", nil, fmt.Errorf("bad get-block payload: %w", err)
		}
		b, found := s.Node.GetBlockByHash(req.Hash)
		body, err := json.Marshal(GetBlockResponse{Block: b, Found: found})
		return cmdGetBlock, body, err

	case cmdAddTx:
		var req AddTransactionRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return "", nil, fmt.Errorf("bad add-transaction payload: %w", err)
		}
		s.Node.AddPendingTransaction(req.Transaction)
		return cmdAddTx, nil, nil

	case cmdGetTx:
		var req GetTransactionRequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return "", nil, fmt.Errorf("bad get-transaction payload: %w", err)
		}
		tx, found := s.Node.GetTransaction(req.Hash)
		body, err := json.Marshal(GetTransactionResponse{Transaction: tx, Found: found})
		return cmdGetTx, body, err

	case cmdGetUTXO:
		var req GetUTXORequest
		if err := json.Unmarshal(payload, &req); err != nil {
			return "", nil, fmt.Errorf("bad get-utxo payload: %w", err)
		}
		body, err := json.Marshal(GetUTXOResponse{UTXOs: s.Node.GetUTXO(req.Address)})
		return cmdGetUTXO, body, err

	default:
		return "", nil, fmt.Errorf("unknown command %q", command)
	}
}
