// Package crypto implements the node's cryptographic primitives: SHA-256
// hashing, Ed25519 keypair generation, signing and verification, and the
// PKCS#8 persistence codec for a keypair.
package crypto

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"errors"
	"fmt"
)

// HashSize is the length in bytes of a Hash.
const HashSize = sha256.Size

// Hash is a 32-byte SHA-256 digest.
type Hash [HashSize]byte

// ZeroHash is the sentinel hash used by coinbase inputs and the genesis
// block's previous-block-hash field.
var ZeroHash = Hash{}

// String renders the hash as lowercase hex.
func (h Hash) String() string {
	return fmt.Sprintf("%x", h[:])
}

// MarshalText implements encoding.TextMarshaler so Hash round-trips through
// JSON (and zerolog fields) as hex instead of a base64 byte array.
func (h Hash) MarshalText() ([]byte, error) {
	return []byte(h.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (h *Hash) UnmarshalText(text []byte) error {
	decoded, err := decodeHex(text)
	if err != nil {
		return err
	}
	if len(decoded) != HashSize {
		return fmt.Errorf("crypto: hash must be %d bytes, got %d", HashSize, len(decoded))
	}
	copy(h[:], decoded)
	return nil
}

// SHA256 computes the SHA-256 digest of data.
func SHA256(data []byte) Hash {
	return Hash(sha256.Sum256(data))
}

// CryptoError distinguishes key-generation and signature failures from
// other errors in the system; it never indicates attacker-controlled data
// crashed the process.
type CryptoError struct {
	Op  string
	Err error
}

func (e *CryptoError) Error() string {
	return fmt.Sprintf("crypto: %s: %v", e.Op, e.Err)
}

func (e *CryptoError) Unwrap() error { return e.Err }

// ErrBadSignature is returned by Verify when the signature does not match.
var ErrBadSignature = errors.New("bad signature")

// PublicKeySize and SignatureSize mirror the Ed25519 constants; addresses
// and public keys share this 32-byte representation per the data model.
const (
	PublicKeySize = ed25519.PublicKeySize
	SecretKeySize = ed25519.PrivateKeySize
	SignatureSize = ed25519.SignatureSize
)

// KeyPair is an Ed25519 public/secret key pair.
type KeyPair struct {
	Public ed25519.PublicKey
	Secret ed25519.PrivateKey
}

// GenerateKeyPair produces a fresh Ed25519 keypair.
func GenerateKeyPair() (KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return KeyPair{}, &CryptoError{Op: "generate_keypair", Err: err}
	}
	return KeyPair{Public: pub, Secret: priv}, nil
}

// Sign produces a 64-byte Ed25519 signature over message.
func Sign(secret ed25519.PrivateKey, message []byte) ([]byte, error) {
	if len(secret) != SecretKeySize {
		return nil, &CryptoError{Op: "sign", Err: fmt.Errorf("malformed secret key (%d bytes)", len(secret))}
	}
	return ed25519.Sign(secret, message), nil
}

// Verify checks an Ed25519 signature over message against public.
func Verify(message, public, signature []byte) error {
	if len(public) != PublicKeySize {
		return &CryptoError{Op: "verify", Err: fmt.Errorf("malformed public key (%d bytes)", len(public))}
	}
	if len(signature) != SignatureSize {
		return &CryptoError{Op: "verify", Err: fmt.Errorf("malformed signature (%d bytes)", len(signature))}
	}
	if !ed25519.Verify(ed25519.PublicKey(public), message, signature) {
		return &CryptoError{Op: "verify", Err: ErrBadSignature}
	}
	return nil
}

// MarshalPKCS8 encodes a keypair's secret key as a PKCS#8 DER blob, the
// persistence format named by the spec (opaque to the rest of the core;
// only the key files written by internal/wallet depend on this function).
func MarshalPKCS8(kp KeyPair) ([]byte, error) {
	der, err := x509.MarshalPKCS8PrivateKey(kp.Secret)
	if err != nil {
		return nil, &CryptoError{Op: "marshal_pkcs8", Err: err}
	}
	return der, nil
}

// ParsePKCS8 decodes a PKCS#8 DER blob produced by MarshalPKCS8 back into a
// KeyPair.
func ParsePKCS8(der []byte) (KeyPair, error) {
	key, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return KeyPair{}, &CryptoError{Op: "parse_pkcs8", Err: err}
	}
	secret, ok := key.(ed25519.PrivateKey)
	if !ok {
		return KeyPair{}, &CryptoError{Op: "parse_pkcs8", Err: errors.New("not an Ed25519 key")}
	}
	pub, ok := secret.Public().(ed25519.PublicKey)
	if !ok {
		return KeyPair{}, &CryptoError{Op: "parse_pkcs8", Err: errors.New("could not derive public key")}
	}
	return KeyPair{Public: pub, Secret: secret}, nil
}

func decodeHex(text []byte) ([]byte, error) {
	decoded, err := hex.DecodeString(string(text))
	if err != nil {
		return nil, fmt.Errorf("crypto: invalid hex: %w", err)
	}
	return decoded, nil
}
