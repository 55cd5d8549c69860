package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDefaultValues(t *testing.T) {
	cfg := Default()
	require.Equal(t, int64(600), cfg.Mining.BlockTimeSecs)
	require.Equal(t, uint8(16), cfg.Mining.StartDifficultyBit)
	require.Equal(t, 3000, cfg.Network.Port)
}

func TestLoadOverridesFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "node.toml")
	contents := `
[mining]
start_difficulty_bit = 4
mining_reward = 10

[network]
port = 4001
seed_list = ["localhost:4000"]
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, uint8(4), cfg.Mining.StartDifficultyBit)
	require.Equal(t, uint64(10), cfg.Mining.MiningReward)
	require.Equal(t, 4001, cfg.Network.Port)
	require.Equal(t, []string{"localhost:4000"}, cfg.Network.SeedList)
	// Unset-in-file fields retain their documented defaults.
	require.Equal(t, int64(600), cfg.Mining.BlockTimeSecs)
}

func TestLoadAppliesEnvironmentOverride(t *testing.T) {
	t.Setenv("NODE_PORT", "5000")
	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, 5000, cfg.Network.Port)
}
