package crypto

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	msg := []byte("hello ledger")
	sig, err := Sign(kp.Secret, msg)
	require.NoError(t, err)

	require.NoError(t, Verify(msg, kp.Public, sig))
}

func TestVerifyRejectsBadSignature(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	sig, err := Sign(kp.Secret, []byte("real message"))
	require.NoError(t, err)

	err = Verify([]byte("tampered message"), kp.Public, sig)
	require.Error(t, err)
}

func TestVerifyRejectsMalformedInputs(t *testing.T) {
	require.Error(t, Verify([]byte("m"), []byte("short"), make([]byte, SignatureSize)))
	require.Error(t, Verify([]byte("m"), make([]byte, PublicKeySize), []byte("short")))
}

func TestPKCS8RoundTrip(t *testing.T) {
	kp, err := GenerateKeyPair()
	require.NoError(t, err)

	der, err := MarshalPKCS8(kp)
	require.NoError(t, err)

	restored, err := ParsePKCS8(der)
	require.NoError(t, err)
	require.Equal(t, kp.Public, restored.Public)
}

func TestHashTextRoundTrip(t *testing.T) {
	h := SHA256([]byte("payload"))
	text, err := h.MarshalText()
	require.NoError(t, err)

	var h2 Hash
	require.NoError(t, h2.UnmarshalText(text))
	require.Equal(t, h, h2)
}
