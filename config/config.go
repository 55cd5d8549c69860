// Package config loads node configuration from a TOML file with
// environment-variable overrides, covering the "core-relevant options"
// table. Grounded on the pack's convention of pairing
// github.com/BurntSushi/toml for file parsing with
// github.com/kelseyhightower/envconfig for environment overrides; the
// teacher itself takes port/address as CLI flags only, so this is the
// spec's ambient configuration stack rather than a teacher carry-over.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"
	"github.com/kelseyhightower/envconfig"
)

// Mining covers the proof-of-work and reward parameters.
type Mining struct {
	BlockTimeSecs           int64  `toml:"block_time_secs" envconfig:"BLOCK_TIME_SECS"`
	BlockAdjustmentInterval int    `toml:"block_adjustment_interval" envconfig:"BLOCK_ADJUSTMENT_INTERVAL"`
	StartDifficultyBit      uint8  `toml:"start_difficulty_bit" envconfig:"START_DIFFICULTY_BIT"`
	MiningReward            uint64 `toml:"mining_reward" envconfig:"MINING_REWARD"`
}

// Simulation covers dev/test mining shortcuts.
type Simulation struct {
	FakeMining bool `toml:"fake_mining" envconfig:"FAKE_MINING"`
}

// Network covers the RPC listener and peer discovery.
type Network struct {
	Port     int      `toml:"port" envconfig:"PORT"`
	SeedList []string `toml:"seed_list" envconfig:"SEED_LIST"`
}

// Account names where this node's signing key lives.
type Account struct {
	KeysPath string `toml:"keys_path" envconfig:"KEYS_PATH"`
}

// Config is the full node configuration.
type Config struct {
	Mining     Mining     `toml:"mining"`
	Simulation Simulation `toml:"simulation"`
	Network    Network    `toml:"network"`
	Account    Account    `toml:"account"`
}

// Default returns the documented built-in defaults, used to seed a
// Config before the TOML file and environment overrides are applied.
func Default() Config {
	return Config{
		Mining: Mining{
			BlockTimeSecs:           600,
			BlockAdjustmentInterval: 10,
			StartDifficultyBit:      16,
			MiningReward:            50,
		},
		Network: Network{
			Port: 3000,
		},
		Account: Account{
			KeysPath: "./wallet.key",
		},
	}
}

// Load reads path as TOML into a Config seeded with Default, then
// applies NODE_*-prefixed environment variable overrides on top. Only
// fields with a corresponding environment variable set are touched by
// the override pass, so TOML-supplied values survive untouched.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: decode %s: %w", path, err)
		}
	}
	// Each section is processed on its own so a field's variable is
	// NODE_<tag> (e.g. NODE_PORT), not NODE_<SECTION>_<tag>.
	for _, section := range []any{&cfg.Mining, &cfg.Simulation, &cfg.Network, &cfg.Account} {
		if err := envconfig.Process("NODE", section); err != nil {
			return Config{}, fmt.Errorf("config: apply environment overrides: %w", err)
		}
	}
	return cfg, nil
}
