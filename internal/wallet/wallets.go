package wallet

import (
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/satoshilite/core/internal/crypto"
)

// keyFileExt is the suffix given to every persisted key file; its basename
// is the wallet's hex fingerprint so two wallets never collide on disk.
const keyFileExt = ".pk8"

// Wallets is an on-disk collection of keypairs, one PKCS#8 DER file per
// wallet inside dir, named by hex fingerprint. Grounded on the teacher's
// wallet/wallets.go CreateWallets/AddWallet/LoadFile/SaveFile shape,
// generalized from a single gob blob keyed by gob-encoded address to one
// file per key keyed by hex fingerprint, since PKCS#8 is already a
// self-contained per-key format.
type Wallets struct {
	dir     string
	wallets map[string]*Wallet // keyed by hex fingerprint
}

// Open loads every key file already present in dir, creating dir if it
// does not exist.
func Open(dir string) (*Wallets, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("wallet: create keys dir: %w", err)
	}
	ws := &Wallets{dir: dir, wallets: map[string]*Wallet{}}
	if err := ws.loadAll(); err != nil {
		return nil, err
	}
	return ws, nil
}

func (ws *Wallets) loadAll() error {
	entries, err := os.ReadDir(ws.dir)
	if err != nil {
		return fmt.Errorf("wallet: read keys dir: %w", err)
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != keyFileExt {
			continue
		}
		der, err := os.ReadFile(filepath.Join(ws.dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("wallet: read %s: %w", entry.Name(), err)
		}
		kp, err := crypto.ParsePKCS8(der)
		if err != nil {
			return fmt.Errorf("wallet: parse %s: %w", entry.Name(), err)
		}
		w := &Wallet{KeyPair: kp}
		ws.wallets[hex.EncodeToString(Fingerprint(kp.Public))] = w
	}
	return nil
}

// Add generates a fresh wallet, persists it, and returns its key.
func (ws *Wallets) Add() (*Wallet, error) {
	w, err := New()
	if err != nil {
		return nil, err
	}
	fingerprint := hex.EncodeToString(Fingerprint(w.KeyPair.Public))
	if err := ws.save(fingerprint, w); err != nil {
		return nil, err
	}
	ws.wallets[fingerprint] = w
	return w, nil
}

func (ws *Wallets) save(fingerprint string, w *Wallet) error {
	der, err := crypto.MarshalPKCS8(w.KeyPair)
	if err != nil {
		return err
	}
	path := filepath.Join(ws.dir, fingerprint+keyFileExt)
	if err := os.WriteFile(path, der, 0o600); err != nil {
		return fmt.Errorf("wallet: write %s: %w", path, err)
	}
	return nil
}

// Fingerprints returns every wallet's hex fingerprint, sorted for stable
// listing output.
func (ws *Wallets) Fingerprints() []string {
	out := make([]string, 0, len(ws.wallets))
	for fp := range ws.wallets {
		out = append(out, fp)
	}
	sort.Strings(out)
	return out
}

// Get looks up a wallet by its hex fingerprint.
func (ws *Wallets) Get(fingerprint string) (*Wallet, bool) {
	w, ok := ws.wallets[fingerprint]
	return w, ok
}

// Len reports how many wallets are loaded.
func (ws *Wallets) Len() int { return len(ws.wallets) }
