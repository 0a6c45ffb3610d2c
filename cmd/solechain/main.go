// Command solechain runs a single P2P node: blockchain store, account
// state, mempool, miner, transaction generator, gossip worker pool and
// HTTP control surface, all wired together here.
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/libp2p/go-libp2p/core/peer"

	"github.com/unisalento/solechain/internal/api"
	"github.com/unisalento/solechain/internal/chainstore"
	"github.com/unisalento/solechain/internal/cli"
	"github.com/unisalento/solechain/internal/config"
	"github.com/unisalento/solechain/internal/keys"
	"github.com/unisalento/solechain/internal/logging"
	"github.com/unisalento/solechain/internal/mempool"
	"github.com/unisalento/solechain/internal/miner"
	"github.com/unisalento/solechain/internal/network"
	"github.com/unisalento/solechain/internal/state"
	"github.com/unisalento/solechain/internal/txgen"
	"github.com/unisalento/solechain/internal/types"
	"github.com/unisalento/solechain/internal/ui"
	"github.com/unisalento/solechain/internal/wire"
	"github.com/unisalento/solechain/internal/worker"
)

// version is a fixed string rather than ldflags injection — no build
// tooling is part of this educational node.
const version = "1.0"

// icoAllocation is the ICO amount the genesis block's state snapshot
// grants to the first demo identity (see DESIGN.md's Open Question
// decision on which account receives it).
const icoAllocation = 1_000_000

func main() {
	os.Exit(cli.Execute(run))
}

func run(cfg *config.Config) error {
	log, err := logging.New(cfg.Verbosity)
	if err != nil {
		return fmt.Errorf("main: build logger: %w", err)
	}
	defer log.Sync()

	demo := keys.Demo()
	port, err := p2pPort(cfg.P2PAddr)
	if err != nil {
		return fmt.Errorf("main: parse --p2p address: %w", err)
	}
	self := keys.SelectForPort(port, demo)
	log.Infow("adopted demo identity", "port", port, "address", self.Address.String())

	blockchain := chainstore.New()
	stateStore := state.NewStore()
	stateStore.SeedGenesis(blockchain.Tip(), demo[0].Address, icoAllocation)
	pool := mempool.New()

	p2p, err := network.New(cfg.P2PAddr, log)
	if err != nil {
		return fmt.Errorf("main: start p2p network: %w", err)
	}

	gossip := worker.New(blockchain, stateStore, pool, p2p, log)
	p2p.OnConnect(func(p peer.ID) {
		p2p.Send(p, wire.NewBlockHashes{Hashes: []types.H256{blockchain.Tip()}})
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	for _, peerAddr := range cfg.ConnectPeers {
		if err := p2p.Connect(ctx, peerAddr); err != nil {
			log.Warnw("failed to connect to configured peer", "peer", peerAddr, "error", err)
		}
	}
	cancel()

	minerCtx, minerHandle, minedBlocks := miner.New(blockchain, pool, log)
	minerCtx.Start()
	gossip.ConsumeMinedBlocks(minedBlocks)

	receivers := otherDemoAddresses(demo, self.Address)
	txgenCtx, txgenHandle, generatedTxs := txgen.New(blockchain, stateStore, self, receivers, log)
	txgenCtx.Start()
	gossip.ConsumeGeneratedTransactions(generatedTxs)

	gossip.Start(cfg.P2PWorkers)

	demoAddresses := [3]types.Address{demo[0].Address, demo[1].Address, demo[2].Address}
	apiServer := api.New(blockchain, stateStore, minerHandle, txgenHandle, func() {
		p2p.Broadcast(wire.Ping{Text: "Test ping"})
	}, demoAddresses, log)
	gossip.OnBlockAccepted = apiServer.NotifyBlockAccepted
	gossip.OnTransactionAccepted = apiServer.NotifyTransactionAccepted

	httpServer := &http.Server{
		Addr:         cfg.APIAddr,
		Handler:      apiServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	go func() {
		log.Infow("http control surface listening", "addr", cfg.APIAddr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Errorw("http server stopped", "error", err)
		}
	}()

	ui.Banner(version)
	ui.PrintInfo("p2p listening on %s, peer id %s", cfg.P2PAddr, p2p.ID())
	ui.PrintInfo("http control surface on http://%s", cfg.APIAddr)
	ui.PrintInfo("this node's demo identity: %s", self.Address.String())

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ui.PrintWarning("shutdown signal received, stopping...")
	minerHandle.Exit()
	txgenHandle.Exit()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Warnw("http server shutdown error", "error", err)
	}
	if err := p2p.Close(); err != nil {
		log.Warnw("p2p host close error", "error", err)
	}

	ui.PrintSuccess("node shut down cleanly")
	return nil
}

func p2pPort(addr string) (int, error) {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0, err
	}
	return strconv.Atoi(portStr)
}

func otherDemoAddresses(demo [3]types.KeyPair, self types.Address) []types.Address {
	var out []types.Address
	for _, k := range demo {
		if k.Address != self {
			out = append(out, k.Address)
		}
	}
	return out
}
