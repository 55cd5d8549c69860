package p2p

import (
	"net"
	"sync"
)

// Peer is a persistent client connection to a known address.
type Peer struct {
	Address string

	mu   sync.Mutex
	conn net.Conn
}

// dial lazily opens (or reopens, if a previous attempt failed) the
// underlying connection. Calls are serialized per-peer so a single
// connection can be reused for sequential request/response RPCs.
func (p *Peer) dial() (net.Conn, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		return p.conn, nil
	}
	conn, err := net.Dial("tcp", p.Address)
	if err != nil {
		return nil, err
	}
	p.conn = conn
	return conn, nil
}

func (p *Peer) invalidate() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.conn != nil {
		_ = p.conn.Close()
		p.conn = nil
	}
}

func (p *Peer) Close() {
	p.invalidate()
}

// Table is the peer table: known peer addresses behind their own lock,
// kept separate from the ledger lock per the concurrency model.
type Table struct {
	mu    sync.RWMutex
	peers map[string]*Peer
	self  string
}

func NewTable(self string) *Table {
	return &Table{peers: map[string]*Peer{}, self: self}
}

// Has reports whether addr is already a known peer or is this node's
// own address.
func (t *Table) Has(addr string) bool {
	if addr == t.self {
		return true
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	_, ok := t.peers[addr]
	return ok
}

// Add inserts addr into the table if not already present, returning
// the Peer (new or existing).
func (t *Table) Add(addr string) *Peer {
	t.mu.Lock()
	defer t.mu.Unlock()
	if p, ok := t.peers[addr]; ok {
		return p
	}
	p := &Peer{Address: addr}
	t.peers[addr] = p
	return p
}

// Snapshot returns a point-in-time copy of the peer list, safe to
// range over without holding the table lock during network I/O.
func (t *Table) Snapshot() []*Peer {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]*Peer, 0, len(t.peers))
	for _, p := range t.peers {
		out = append(out, p)
	}
	return out
}

// Addresses returns the known peer addresses (for GetPeerList replies).
func (t *Table) Addresses() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]string, 0, len(t.peers))
	for addr := range t.peers {
		out = append(out, addr)
	}
	return out
}
