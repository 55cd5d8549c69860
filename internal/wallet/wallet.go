// Package wallet holds a signing keypair and derives the human-displayable
// address layered on top of it. Grounded on the teacher's wallet/wallet.go
// (Address/PublicKeyHash/Checksum shape), generalized from ECDSA-P256 +
// SHA256/RIPEMD160 over a raw public key to Ed25519 keys whose canonical
// on-chain Address is already the raw public key; base58+ripemd160 here is
// purely a display-layer fingerprint, never fed back into consensus.
package wallet

import (
	"bytes"
	"crypto/sha256"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/ripemd160"

	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/txn"
)

// addressVersion is the display-address network version byte, carried over
// from the teacher's Bitcoin-mainnet convention.
const addressVersion = byte(0x00)

// checksumLength is the number of checksum bytes appended before base58
// encoding, matching the teacher's address layout.
const checksumLength = 4

// Wallet is a single Ed25519 signing identity.
type Wallet struct {
	KeyPair crypto.KeyPair
}

// New generates a fresh wallet.
func New() (*Wallet, error) {
	kp, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, fmt.Errorf("wallet: generate keypair: %w", err)
	}
	return &Wallet{KeyPair: kp}, nil
}

// Address returns the canonical on-chain address: the raw Ed25519 public
// key. This is what transactions reference; it never touches base58.
func (w *Wallet) Address() (txn.Address, error) {
	return txn.AddressFromBytes(w.KeyPair.Public)
}

// Fingerprint returns RIPEMD160(SHA256(pubkey)), the short digest used to
// name this wallet's on-disk key file. It is not consensus-relevant.
func Fingerprint(pub []byte) []byte {
	sum := sha256.Sum256(pub)
	hasher := ripemd160.New()
	hasher.Write(sum[:])
	return hasher.Sum(nil)
}

// checksum is the first checksumLength bytes of double-SHA256(payload).
func checksum(payload []byte) []byte {
	first := sha256.Sum256(payload)
	second := sha256.Sum256(first[:])
	return second[:checksumLength]
}

// DisplayAddress renders a base58, checksummed, human-copyable form of the
// wallet's address: version || RIPEMD160(SHA256(pubkey)) || checksum. It is
// a display convenience only; the chain itself addresses outputs by the
// raw 32-byte public key.
func (w *Wallet) DisplayAddress() string {
	fingerprint := Fingerprint(w.KeyPair.Public)
	versioned := append([]byte{addressVersion}, fingerprint...)
	full := append(versioned, checksum(versioned)...)
	return base58.Encode(full)
}

// ValidateDisplayAddress checks that a base58 display address decodes to a
// well-formed version+fingerprint+checksum triple.
func ValidateDisplayAddress(address string) bool {
	decoded, err := base58.Decode(address)
	if err != nil {
		return false
	}
	if len(decoded) != 1+ripemd160.Size+checksumLength {
		return false
	}
	versioned := decoded[:1+ripemd160.Size]
	want := checksum(versioned)
	got := decoded[1+ripemd160.Size:]
	return bytes.Equal(want, got)
}
