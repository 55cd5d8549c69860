// Package script implements the stack-based opcode VM used to lock and
// unlock transaction outputs, generalizing the teacher's address-hash
// comparison in wallet/wallet.go (IsLockedWithKey) into a real evaluator
// over a small opcode set, grounded on original_source/src/block/script.rs.
package script

import (
	"bytes"

	"github.com/satoshilite/core/internal/crypto"
)

// Op is an opcode understood by the evaluator.
type Op byte

const (
	OpTrue        Op = 81
	OpNop         Op = 97
	OpVerify      Op = 105
	OpReturn      Op = 106
	OpDup         Op = 118
	OpEqual       Op = 135
	OpEqualVerify Op = 136
	OpHash256     Op = 170
	OpCheckSig    Op = 172
)

// Role tags a data item so its bytes can be excluded from the hashable
// serialization used to seed a transaction's hash (see txn.Transaction.Hash).
type Role string

const (
	RoleNone    Role = ""
	RoleSig     Role = "sig"
	RoleTxHash  Role = "tx_hash"
)

// Item is either a literal data push (optionally role-tagged) or an
// opcode.
type Item struct {
	IsOp bool
	Op   Op
	Data []byte
	Role Role
}

// Data constructs an untagged data-push item.
func Data(b []byte) Item { return Item{Data: b} }

// TaggedData constructs a data-push item carrying a role tag.
func TaggedData(b []byte, role Role) Item { return Item{Data: b, Role: role} }

// OpItem constructs an opcode item.
func OpItem(op Op) Item { return Item{IsOp: true, Op: op} }

// Script is an ordered sequence of items.
type Script struct {
	Items []Item
}

// New constructs a Script from items.
func New(items ...Item) Script { return Script{Items: items} }

// HashableBytes serializes the script for hashing, omitting any item
// tagged with role "sig" or "tx_hash" so the transaction hash used for
// signing is stable across the two-phase signing procedure.
func (s Script) HashableBytes() []byte {
	var buf bytes.Buffer
	for _, item := range s.Items {
		if !item.IsOp && (item.Role == RoleSig || item.Role == RoleTxHash) {
			continue
		}
		if item.IsOp {
			buf.WriteByte(byte(item.Op))
		} else {
			buf.Write(item.Data)
		}
	}
	return buf.Bytes()
}

// Evaluator runs a concatenated script against a LIFO byte-string stack.
// It is bound to the hash of the transaction whose input is being
// unlocked, since CHECKSIG verifies against that hash.
type Evaluator struct {
	stack   [][]byte
	txHash  crypto.Hash
	aborted bool
}

// NewEvaluator constructs an Evaluator bound to txHash — the hash of the
// spending transaction, which is what its inputs' signatures cover.
func NewEvaluator(txHash crypto.Hash) *Evaluator {
	return &Evaluator{txHash: txHash}
}

// Execute runs items in order. It returns true iff every opcode succeeded
// and no RETURN/failed VERIFY aborted execution. Any stack underflow or
// unknown opcode fails the script.
func (e *Evaluator) Execute(items []Item) bool {
	for _, item := range items {
		if e.aborted {
			return false
		}
		if !item.IsOp {
			e.push(item.Data)
			continue
		}
		if !e.step(item.Op) {
			return false
		}
	}
	return !e.aborted
}

func (e *Evaluator) step(op Op) bool {
	switch op {
	case OpTrue:
		e.push([]byte{1})
		return true
	case OpNop:
		return true
	case OpDup:
		top, ok := e.peek()
		if !ok {
			return false
		}
		e.push(append([]byte{}, top...))
		return true
	case OpHash256:
		top, ok := e.pop()
		if !ok {
			return false
		}
		h := crypto.SHA256(top)
		e.push(h[:])
		return true
	case OpEqual:
		a, okA := e.pop()
		b, okB := e.pop()
		if !okA || !okB {
			return false
		}
		if bytes.Equal(a, b) {
			e.push([]byte{1})
		} else {
			e.push([]byte{0})
		}
		return true
	case OpEqualVerify:
		if !e.step(OpEqual) {
			return false
		}
		return e.step(OpVerify)
	case OpVerify:
		top, ok := e.pop()
		if !ok {
			return false
		}
		if len(top) != 1 || top[0] != 1 {
			e.aborted = true
			return false
		}
		return true
	case OpReturn:
		e.aborted = true
		return false
	case OpCheckSig:
		return e.checkSig()
	default:
		return false
	}
}

func (e *Evaluator) checkSig() bool {
	pubKey, okPub := e.pop()
	sig, okSig := e.pop()
	if !okPub || !okSig {
		return false
	}
	if err := crypto.Verify(e.txHash[:], pubKey, sig); err != nil {
		e.aborted = true
		return false
	}
	return true
}

func (e *Evaluator) push(item []byte) { e.stack = append(e.stack, item) }

func (e *Evaluator) pop() ([]byte, bool) {
	if len(e.stack) == 0 {
		return nil, false
	}
	top := e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
	return top, true
}

func (e *Evaluator) peek() ([]byte, bool) {
	if len(e.stack) == 0 {
		return nil, false
	}
	return e.stack[len(e.stack)-1], true
}
