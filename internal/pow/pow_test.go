package pow

import (
	"context"
	"math/big"
	"testing"
	"testing/quick"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/satoshilite/core/internal/crypto"
)

func TestTargetMonotonicWithDifficulty(t *testing.T) {
	low := Target(4)
	high := Target(8)
	require.Equal(t, 1, low.Cmp(high), "higher difficulty must yield a smaller target")
}

func TestMeetsTargetZeroHashAlwaysMeets(t *testing.T) {
	require.True(t, MeetsTarget(crypto.Hash{}, 250))
}

func TestSearchFindsNonceAtLowDifficulty(t *testing.T) {
	base := crypto.SHA256([]byte("header-prefix"))
	headerHash := func(nonce uint32) crypto.Hash {
		buf := append(append([]byte{}, base[:]...), byte(nonce), byte(nonce>>8), byte(nonce>>16), byte(nonce>>24))
		return crypto.SHA256(buf)
	}

	nonce, hash, found := Search(context.Background(), 4, headerHash)
	require.True(t, found)
	require.True(t, MeetsTarget(hash, 4))
	require.Equal(t, headerHash(nonce), hash)
}

func TestSearchRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	headerHash := func(nonce uint32) crypto.Hash { return crypto.SHA256([]byte{byte(nonce)}) }
	_, _, found := Search(ctx, 250, headerHash)
	require.False(t, found)
}

func TestSearchSimulatedRespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	headerHash := func(nonce uint32) crypto.Hash { return crypto.SHA256([]byte{byte(nonce)}) }
	_, _, found := SearchSimulated(ctx, headerHash)
	require.False(t, found)
}

// TestQuickMeetsTargetAgreesWithBigIntComparison checks MeetsTarget never
// disagrees with a direct big.Int comparison against Target, for any hash
// and difficulty: the "PoW never false-positives" property.
func TestQuickMeetsTargetAgreesWithBigIntComparison(t *testing.T) {
	property := func(raw [32]byte, difficulty uint8) bool {
		hash := crypto.Hash(raw)
		want := new(big.Int).SetBytes(hash[:]).Cmp(Target(difficulty)) <= 0
		return MeetsTarget(hash, difficulty) == want
	}
	require.NoError(t, quick.Check(property, &quick.Config{MaxCount: 200}))
}
