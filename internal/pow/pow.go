// Package pow implements proof-of-work target derivation and the nonce
// search loop (C7). Grounded on the teacher's blockchain/proof.go
// (big.Int target shifted by difficulty, incremental nonce loop), with a
// cancellation poll and a simulation mode added per the spec.
package pow

import (
	"context"
	"crypto/rand"
	"math/big"
	"time"

	"github.com/satoshilite/core/internal/crypto"
)

// maxTargetBits is the width of the hash space a difficulty of 0 would
// leave unconstrained; difficulty shifts the 1-bit down from the top,
// mirroring the teacher's (256 - difficulty) left-shift of big.Int(1).
const maxTargetBits = 256

// Target returns the threshold a header hash must not exceed: the value
// of 1 left-shifted (256 - difficulty) bits, i.e. a higher difficulty
// yields a smaller, harder-to-reach target.
func Target(difficulty uint8) *big.Int {
	t := big.NewInt(1)
	shift := uint(maxTargetBits) - uint(difficulty)
	t.Lsh(t, shift)
	return t
}

// MeetsTarget reports whether hash, read as a big-endian unsigned
// integer, is less than or equal to target(difficulty).
func MeetsTarget(hash crypto.Hash, difficulty uint8) bool {
	hashInt := new(big.Int).SetBytes(hash[:])
	return hashInt.Cmp(Target(difficulty)) <= 0
}

// pollInterval is how often Search checks ctx for cancellation; checking
// every iteration would be wasteful at high difficulty, checking too
// rarely would make cancellation unresponsive.
const pollInterval = 10000

// Search repeatedly calls headerHash with increasing nonces, starting at
// 0, until the resulting hash meets target(difficulty) or ctx is
// cancelled. headerHash must be a pure function of nonce (the caller
// closes over the rest of the header fields).
//
// Returns the winning nonce, its header hash, and true; or zero values
// and false if ctx was cancelled first.
func Search(ctx context.Context, difficulty uint8, headerHash func(nonce uint32) crypto.Hash) (uint32, crypto.Hash, bool) {
	var nonce uint32
	for {
		if nonce%pollInterval == 0 {
			select {
			case <-ctx.Done():
				return 0, crypto.Hash{}, false
			default:
			}
		}

		hash := headerHash(nonce)
		if MeetsTarget(hash, difficulty) {
			return nonce, hash, true
		}

		if nonce == ^uint32(0) {
			// Nonce space exhausted; restart from 0. In practice the
			// caller will have rotated the coinbase nonce or timestamp
			// well before this ever triggers.
			nonce = 0
			continue
		}
		nonce++
	}
}

// fakeMinMillis and fakeMaxMillis bound the simulated mining delay (8-9s
// per the spec's simulation mode).
const (
	fakeMinMillis = 8000
	fakeMaxMillis = 9000
)

// SearchSimulated stands in for Search when simulation mode is enabled:
// it sleeps a random 8-9s (or returns early on cancellation) and returns
// a random nonce paired with headerHash(nonce), without regard to
// whether that hash actually meets the target.
func SearchSimulated(ctx context.Context, headerHash func(nonce uint32) crypto.Hash) (uint32, crypto.Hash, bool) {
	delay := time.Duration(fakeMinMillis+randIntn(fakeMaxMillis-fakeMinMillis)) * time.Millisecond
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return 0, crypto.Hash{}, false
	case <-timer.C:
	}

	nonce := randUint32()
	return nonce, headerHash(nonce), true
}

func randIntn(n int) int {
	if n <= 0 {
		return 0
	}
	max := big.NewInt(int64(n))
	v, err := rand.Int(rand.Reader, max)
	if err != nil {
		return 0
	}
	return int(v.Int64())
}

func randUint32() uint32 {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0
	}
	return uint32(b[0])<<24 | uint32(b[1])<<16 | uint32(b[2])<<8 | uint32(b[3])
}
