// Command noded runs a full node: it mines, verifies, serves RPCs to
// peers, and keeps a persistent UTXO ledger. Grounded on the teacher's
// network.StartServer/CloseDB entry point, generalized from a bare
// net.Listen + log.Panic server into a config-driven node wired through
// zerolog, badger, and a death/v3 signal handler.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"syscall"

	"github.com/dgraph-io/badger/v4"
	"github.com/rs/zerolog"
	"github.com/vrecan/death/v3"

	"github.com/satoshilite/core/config"
	"github.com/satoshilite/core/internal/block"
	"github.com/satoshilite/core/internal/crypto"
	"github.com/satoshilite/core/internal/ledger/badgerstore"
	"github.com/satoshilite/core/internal/miner"
	"github.com/satoshilite/core/internal/node"
	"github.com/satoshilite/core/internal/p2p"
	"github.com/satoshilite/core/internal/txn"
	"github.com/satoshilite/core/internal/wallet"
)

const version = "satoshilite-1"

func main() {
	configPath := flag.String("config", "", "path to a TOML config file (optional)")
	dbPath := flag.String("db", "./data", "badger data directory")
	selfAddr := flag.String("addr", "localhost:3000", "this node's advertised host:port")
	flag.Parse()

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).With().Timestamp().Str("service", "noded").Logger()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}

	if err := os.MkdirAll(*dbPath, 0o755); err != nil {
		log.Fatal().Err(err).Msg("create db dir")
	}
	db, err := badger.Open(badger.DefaultOptions(*dbPath).WithLogger(nil))
	if err != nil {
		log.Fatal().Err(err).Msg("open badger")
	}

	shutdown := death.NewDeath(syscall.SIGINT, syscall.SIGTERM, os.Interrupt)

	store := badgerstore.Open(db, version)

	if store.BlockHeight() == 0 {
		genesis := node.Genesis()
		if err := store.InsertBlock(genesis); err != nil {
			log.Fatal().Err(err).Msg("insert genesis")
		}
		log.Info().Str("hash", genesis.Hash.String()).Msg("inserted genesis block")
	}

	ws, err := wallet.Open(cfg.Account.KeysPath)
	if err != nil {
		log.Fatal().Err(err).Msg("open wallet keys")
	}
	fingerprints := ws.Fingerprints()
	var w *wallet.Wallet
	if len(fingerprints) == 0 {
		w, err = ws.Add()
		if err != nil {
			log.Fatal().Err(err).Msg("create mining wallet")
		}
		log.Info().Str("address", w.DisplayAddress()).Msg("generated new mining wallet")
	} else {
		var ok bool
		w, ok = ws.Get(fingerprints[0])
		if !ok {
			log.Fatal().Msg("wallet fingerprint vanished between listing and lookup")
		}
	}
	minerAddr, err := w.Address()
	if err != nil {
		log.Fatal().Err(err).Msg("derive miner address")
	}

	m := miner.New(
		miner.Account{KeyPair: w.KeyPair, Address: minerAddr},
		cfg.Mining.StartDifficultyBit,
		cfg.Mining.BlockAdjustmentInterval,
		cfg.Mining.BlockTimeSecs,
	)

	peers := p2p.NewTable(*selfAddr)
	n := node.New(store, m, peers, log, txn.Satoshi(cfg.Mining.MiningReward), cfg.Mining.BlockTimeSecs, cfg.Mining.BlockAdjustmentInterval, cfg.Simulation.FakeMining)

	server := p2p.NewServer(*selfAddr, n, log)
	server.Peers = peers
	go func() {
		if err := server.ListenAndServe(); err != nil {
			log.Error().Err(err).Msg("rpc server stopped")
		}
	}()
	defer server.Close()

	if len(cfg.Network.SeedList) > 0 {
		reward := txn.Satoshi(cfg.Mining.MiningReward)
		verifyAndInsert := func(b block.Block) error {
			if err := block.Verify(b, store, reward); err != nil {
				return err
			}
			return n.InsertBlock(b)
		}
		result, err := p2p.Sync(peers, *selfAddr, n.BlockHeight(), cfg.Network.SeedList, verifyAndInsert, func(h crypto.Hash) bool {
			_, ok := n.GetBlockByHash(h)
			return ok
		})
		if err != nil {
			log.Warn().Err(err).Msg("startup sync failed")
		} else if result.Adopted > 0 {
			log.Info().Str("peer", result.PeerAddress).Int("adopted", result.Adopted).Msg("synced chain from peer")
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		shutdown.WaitForDeathWithFunc(func() {
			log.Info().Msg("shutting down")
			cancel()
			server.Close()
			db.Close()
		})
	}()

	if err := n.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatal().Err(err).Msg("node main loop exited")
	}
	fmt.Fprintln(os.Stderr, "noded: stopped")
}
