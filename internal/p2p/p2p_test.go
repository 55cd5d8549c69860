package p2p

import (
	"bytes"
	"net"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/satoshilite/core/internal/block"
	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/ledger"
	"github.com/satoshilite/core/internal/txn"
)

func TestFrameRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, cmdHandshake, []byte(`{"version":1}`)))

	cmd, payload, err := readFrame(&buf)
	require.NoError(t, err)
	require.Equal(t, cmdHandshake, cmd)
	require.Equal(t, `{"version":1}`, string(payload))
}

func TestFrameRejectsOversizedLength(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeFrame(&buf, cmdHandshake, nil))
	// Corrupt the length field to claim an enormous payload.
	raw := buf.Bytes()
	raw[commandLength] = 0xff
	raw[commandLength+1] = 0xff
	raw[commandLength+2] = 0xff
	raw[commandLength+3] = 0xff

	_, _, err := readFrame(bytes.NewReader(raw))
	require.Error(t, err)
}

type stubNode struct {
	height int
	blocks []block.Block
	txs    map[crypto.Hash]txn.Transaction
	added  []txn.Transaction
}

func (n *stubNode) BlockHeight() int                          { return n.height }
func (n *stubNode) Blocks() []block.Block                     { return n.blocks }
func (n *stubNode) GetBlockByHash(h crypto.Hash) (block.Block, bool) {
	for _, b := range n.blocks {
		if b.Hash == h {
			return b, true
		}
	}
	return block.Block{}, false
}
func (n *stubNode) InsertBlock(b block.Block) error { n.blocks = append(n.blocks, b); return nil }
func (n *stubNode) AnnounceBlock(b block.Block)     { n.blocks = append(n.blocks, b) }
func (n *stubNode) AddPendingTransaction(tx txn.Transaction) { n.added = append(n.added, tx) }
func (n *stubNode) GetTransaction(h crypto.Hash) (txn.Transaction, bool) {
	tx, ok := n.txs[h]
	return tx, ok
}
func (n *stubNode) GetUTXO(addr txn.Address) []ledger.UTXOEntry { return nil }

func TestServerHandshakeAndGetChain(t *testing.T) {
	node := &stubNode{height: 3, txs: map[crypto.Hash]txn.Transaction{}}
	server := NewServer("127.0.0.1:0", node, zerolog.Nop())

	// Use an ephemeral port picked by the OS; ListenAndServe binds a
	// fixed address so tests pick their own listener directly instead.
	ln := mustListen(t)
	server.listener = ln
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		server.handleConnection(conn)
	}()

	peer := &Peer{Address: ln.Addr().String()}
	resp, err := Handshake(peer, "client:0", 1)
	require.NoError(t, err)
	require.Equal(t, 3, resp.BlockHeight)
}

func mustListen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })
	return ln
}
