package script

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/satoshilite/core/internal/crypto"
)

func TestEvaluatorDupEqualVerify(t *testing.T) {
	e := NewEvaluator(crypto.Hash{})
	ok := e.Execute([]Item{
		Data([]byte("x")),
		OpItem(OpDup),
		OpItem(OpEqual),
		OpItem(OpVerify),
	})
	require.True(t, ok)
}

func TestEvaluatorUnderflowFails(t *testing.T) {
	e := NewEvaluator(crypto.Hash{})
	require.False(t, e.Execute([]Item{OpItem(OpDup)}))
}

func TestEvaluatorReturnAborts(t *testing.T) {
	e := NewEvaluator(crypto.Hash{})
	require.False(t, e.Execute([]Item{OpItem(OpTrue), OpItem(OpReturn)}))
}

func TestEvaluatorCheckSig(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	txHash := crypto.SHA256([]byte("some tx"))
	sig, err := crypto.Sign(kp.Secret, txHash[:])
	require.NoError(t, err)

	e := NewEvaluator(txHash)
	ok := e.Execute([]Item{
		Data(sig),
		Data(kp.Public),
		OpItem(OpCheckSig),
	})
	require.True(t, ok)
}

func TestEvaluatorCheckSigBadSignatureAborts(t *testing.T) {
	kp, err := crypto.GenerateKeyPair()
	require.NoError(t, err)

	txHash := crypto.SHA256([]byte("some tx"))
	e := NewEvaluator(txHash)
	ok := e.Execute([]Item{
		Data(make([]byte, crypto.SignatureSize)),
		Data(kp.Public),
		OpItem(OpCheckSig),
	})
	require.False(t, ok)
}

func TestHashableBytesOmitsSigRole(t *testing.T) {
	s := New(
		TaggedData([]byte("signature-bytes"), RoleSig),
		Data([]byte("public-key")),
	)
	require.Equal(t, []byte("public-key"), s.HashableBytes())
}
