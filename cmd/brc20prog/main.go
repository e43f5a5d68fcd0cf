// Command brc20prog runs the BRC20 programmable module's JSON-RPC
// daemon: it opens the on-disk store, wires the Bitcoin RPC and
// balance-oracle clients, builds the custom precompile set, and serves
// the module's JSON-RPC API until interrupted.
package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/brc20-prog/brc20-programmable-module/balanceoracle"
	"github.com/brc20-prog/brc20-programmable-module/bitcoinrpc"
	"github.com/brc20-prog/brc20-programmable-module/cache"
	"github.com/brc20-prog/brc20-programmable-module/engine"
	"github.com/brc20-prog/brc20-programmable-module/internal/config"
	"github.com/brc20-prog/brc20-programmable-module/internal/xlog"
	"github.com/brc20-prog/brc20-programmable-module/kvstore"
	"github.com/brc20-prog/brc20-programmable-module/precompiles"
	"github.com/brc20-prog/brc20-programmable-module/rpcserver"
)

var (
	logLevel string
	logFile  string
)

func main() {
	root := &cobra.Command{
		Use:   "brc20prog",
		Short: "BRC20 programmable module JSON-RPC daemon",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}
	root.Flags().StringVarP(&logLevel, "log-level", "l", "", "log level (debug, info, warn, error); overrides BRC20_PROG_LOG_LEVEL")
	root.Flags().StringVarP(&logFile, "log-file", "f", "", "additional log file path; overrides BRC20_PROG_LOG_FILE")

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if logFile != "" {
		cfg.LogFile = logFile
	}
	if err := xlog.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("configuring logging: %w", err)
	}
	logger := xlog.New("main")

	store, err := kvstore.Open(cfg.DBPath, cfg.DBMaxOpenFiles)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	if err := store.ConfigTable().Reconcile(cfg.PersistedValues()); err != nil {
		return fmt.Errorf("reconciling persisted config: %w", err)
	}

	network := bitcoinrpc.NetworkParams(cfg.BitcoinRPCNetwork)

	rpcClient, err := bitcoinrpc.Dial(cfg.BitcoinRPCURL, cfg.BitcoinRPCUser, cfg.BitcoinRPCPassword)
	if err != nil {
		if cfg.BitcoinRPCFailOnStartup {
			return fmt.Errorf("dialing bitcoin rpc: %w", err)
		}
		logger.Warnf("bitcoin rpc unreachable at startup, continuing: %v", err)
	} else if err := bitcoinrpc.ValidateNetwork(rpcClient, cfg.BitcoinRPCNetwork); err != nil {
		if cfg.BitcoinRPCFailOnStartup {
			return fmt.Errorf("validating bitcoin network: %w", err)
		}
		logger.Warnf("bitcoin network validation failed, continuing: %v", err)
	}

	oracle := balanceoracle.New(cfg.BalanceOracleURL)

	extraPrecompiles := precompiles.Build(precompiles.Config{
		BitcoinRPC:    rpcClient,
		BalanceOracle: oracle,
		Network:       network,
	})

	versioned := cache.NewVersionedStore(store, "accounts", "code", "storage")
	eng := engine.New(store, versioned, extraPrecompiles, xlog.New("engine"))

	// The BRC20 controller deploy-and-assert (engine.Initialise) is not
	// run here: it is triggered by the indexer's brc20_initialise RPC
	// call, matching original_source/src/server/start.rs, where process
	// startup never deploys anything on its own.
	handler := rpcserver.NewHandler(eng, cfg.RPCEnableAuth, cfg.RPCUser, cfg.RPCPassword)
	server := rpcserver.NewServer(handler, cfg.RPCBindAddress)
	if err := server.Start(); err != nil {
		return fmt.Errorf("starting rpc server: %w", err)
	}
	logger.Infof("brc20prog listening on %s", cfg.RPCBindAddress)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	logger.Infof("shutting down")
	return server.Stop()
}
