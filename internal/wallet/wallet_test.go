package wallet

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewWalletAddressRoundTrips(t *testing.T) {
	w, err := New()
	require.NoError(t, err)

	addr, err := w.Address()
	require.NoError(t, err)
	require.Equal(t, w.KeyPair.Public, addr.Bytes())
}

func TestDisplayAddressValidates(t *testing.T) {
	w, err := New()
	require.NoError(t, err)

	display := w.DisplayAddress()
	require.True(t, ValidateDisplayAddress(display))
	require.False(t, ValidateDisplayAddress("not-a-real-address"))
}

func TestDisplayAddressDiffersPerWallet(t *testing.T) {
	a, err := New()
	require.NoError(t, err)
	b, err := New()
	require.NoError(t, err)
	require.NotEqual(t, a.DisplayAddress(), b.DisplayAddress())
}

func TestWalletsAddAndPersist(t *testing.T) {
	dir := t.TempDir()

	ws, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, 0, ws.Len())

	w, err := ws.Add()
	require.NoError(t, err)
	require.Equal(t, 1, ws.Len())

	fingerprints := ws.Fingerprints()
	require.Len(t, fingerprints, 1)

	reopened, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, 1, reopened.Len())

	loaded, ok := reopened.Get(fingerprints[0])
	require.True(t, ok)
	require.Equal(t, w.KeyPair.Public, loaded.KeyPair.Public)
	require.Equal(t, w.KeyPair.Secret, loaded.KeyPair.Secret)
}

func TestWalletsOpenCreatesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "keys")
	ws, err := Open(dir)
	require.NoError(t, err)
	require.Equal(t, 0, ws.Len())
}
